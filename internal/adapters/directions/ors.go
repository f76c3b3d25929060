package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/observability"
	"trike-itinerary-service/internal/platform/obs"
	"trike-itinerary-service/internal/ports"
)

// Pedestrian pace used for the synthetic duration of too-close segments.
const walkingSpeedMps = 1.4

// ORSProvider implements DirectionsProvider and Geocoder using
// OpenRouteService. It short-circuits trivial segments below tooCloseMeters
// without spending provider quota, and retries transient failures with
// backoff. Safe for concurrent use.
type ORSProvider struct {
	session        *http.Client
	apiKey         string
	baseURL        string
	tooCloseMeters float64
}

func NewORSProvider(apiKey, baseURL string, tooCloseMeters float64) (*ORSProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	if tooCloseMeters <= 0 {
		tooCloseMeters = 50
	}

	return &ORSProvider{
		session:        &http.Client{Timeout: 10 * time.Second},
		apiKey:         apiKey,
		baseURL:        baseURL,
		tooCloseMeters: tooCloseMeters,
	}, nil
}

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Segments []struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"segments"`
		} `json:"properties"`
	} `json:"features"`
}

// Route returns geometry, distance, and duration between two points. Segments
// below the too-close radius return a synthetic straight-line leg without
// calling the provider.
func (o *ORSProvider) Route(ctx context.Context, start, end domain.Coordinates, profile string) (_ ports.RouteLeg, err error) {
	defer obs.Time(ctx, "ors.Route")(&err)

	if !start.Valid() || !end.Valid() {
		return ports.RouteLeg{}, &domain.ValidationError{Reason: "route endpoints must be finite coordinates"}
	}
	if profile == "" {
		profile = "driving-car"
	}

	if meters := start.DistanceMeters(end); meters < o.tooCloseMeters {
		return ports.RouteLeg{
			Geometry:        []domain.Coordinates{start, end},
			DistanceKm:      meters / 1000,
			DurationSeconds: int(meters / walkingSpeedMps),
			TooClose:        true,
		}, nil
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", o.baseURL, profile)

	payload, err := json.Marshal(directionsRequest{
		Coordinates: [][]float64{start.LonLat(), end.LonLat()},
	})
	if err != nil {
		return ports.RouteLeg{}, fmt.Errorf("marshal directions request: %w", err)
	}

	observability.ProviderCalls.Inc()

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		body := bytes.NewReader(payload)
		return o.newRequest(ctx, http.MethodPost, endpoint, body)
	})
	if err != nil {
		observability.ProviderErrors.Inc()
		return ports.RouteLeg{}, fmt.Errorf("%w: directions request: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		observability.ProviderErrors.Inc()
		return ports.RouteLeg{}, fmt.Errorf("%w: decode directions response: %v", domain.ErrProviderUnavailable, err)
	}

	if len(dr.Features) == 0 || len(dr.Features[0].Properties.Segments) == 0 {
		observability.ProviderErrors.Inc()
		return ports.RouteLeg{}, fmt.Errorf("%w: no route in directions response", domain.ErrProviderUnavailable)
	}

	feature := dr.Features[0]
	coords := feature.Geometry.Coordinates
	if len(coords) < 2 {
		observability.ProviderErrors.Inc()
		return ports.RouteLeg{}, fmt.Errorf("%w: degenerate geometry in directions response", domain.ErrProviderUnavailable)
	}

	geometry := make([]domain.Coordinates, 0, len(coords))
	for _, c := range coords {
		if len(c) != 2 {
			observability.ProviderErrors.Inc()
			return ports.RouteLeg{}, fmt.Errorf("%w: invalid coordinate in directions response", domain.ErrProviderUnavailable)
		}
		geometry = append(geometry, domain.Coordinates{Lat: c[1], Lon: c[0]})
	}

	segment := feature.Properties.Segments[0]
	return ports.RouteLeg{
		Geometry:        geometry,
		DistanceKm:      segment.Distance / 1000,
		DurationSeconds: int(segment.Duration),
	}, nil
}
