package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/platform/obs"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves a street address via OpenRouteService (/geocode/search).
func (o *ORSProvider) Geocode(ctx context.Context, address string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.Geocode")(&err)

	if address == "" {
		return domain.Coordinates{}, &domain.ValidationError{Reason: "address must be non-empty"}
	}

	endpoint := o.baseURL + "/geocode/search"

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := o.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", address)
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: geocode request: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: decode geocode response: %v", domain.ErrProviderUnavailable, err)
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("%w: no geocode results for %q", domain.ErrNotFound, address)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, fmt.Errorf("%w: invalid coordinate format for %q", domain.ErrProviderUnavailable, address)
	}

	return domain.Coordinates{Lon: coords[0], Lat: coords[1]}, nil
}
