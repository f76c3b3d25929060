package directions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"trike-itinerary-service/internal/domain"
)

func testProvider(t *testing.T, baseURL string) *ORSProvider {
	t.Helper()
	p, err := NewORSProvider("test-key", baseURL, 50)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestRouteTooCloseShortCircuits(t *testing.T) {
	// Server that fails the test if anything reaches it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called for a too-close segment")
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL)

	// ~11 m apart.
	start := domain.Coordinates{Lat: 14.5995, Lon: 120.9842}
	end := domain.Coordinates{Lat: 14.5996, Lon: 120.9842}

	leg, err := p.Route(context.Background(), start, end, "driving-car")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !leg.TooClose {
		t.Fatal("expected TooClose leg")
	}
	if len(leg.Geometry) != 2 {
		t.Fatalf("geometry has %d points, want 2", len(leg.Geometry))
	}
	if leg.DistanceKm <= 0 || leg.DistanceKm > 0.05 {
		t.Fatalf("distance = %v km, want a few meters", leg.DistanceKm)
	}
	// Duration is the straight distance at walking pace.
	wantSecs := int(leg.DistanceKm * 1000 / walkingSpeedMps)
	if leg.DurationSeconds != wantSecs {
		t.Fatalf("duration = %d s, want %d s", leg.DurationSeconds, wantSecs)
	}
}

func TestRouteParsesDirectionsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "test-key" {
			t.Errorf("Authorization = %q, want api key", got)
		}
		var req directionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Coordinates) != 2 || req.Coordinates[0][0] != 120.9842 {
			t.Errorf("coordinates not lon-lat ordered: %v", req.Coordinates)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"features": [{
				"geometry": {"coordinates": [[120.9842, 14.5995], [120.9845, 14.6010], [120.9842, 14.6030]]},
				"properties": {"segments": [{"distance": 412.5, "duration": 96.2}]}
			}]
		}`))
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL)

	// ~389 m apart: beyond the 50 m short-circuit.
	start := domain.Coordinates{Lat: 14.5995, Lon: 120.9842}
	end := domain.Coordinates{Lat: 14.6030, Lon: 120.9842}

	leg, err := p.Route(context.Background(), start, end, "driving-car")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if leg.TooClose {
		t.Fatal("unexpected TooClose for a 389 m segment")
	}
	if len(leg.Geometry) != 3 {
		t.Fatalf("geometry has %d points, want 3", len(leg.Geometry))
	}
	if leg.Geometry[1].Lat != 14.6010 || leg.Geometry[1].Lon != 120.9845 {
		t.Fatalf("geometry not converted to lat-lon: %+v", leg.Geometry[1])
	}
	if leg.DistanceKm != 0.4125 {
		t.Fatalf("distance = %v km, want 0.4125", leg.DistanceKm)
	}
	if leg.DurationSeconds != 96 {
		t.Fatalf("duration = %d s, want 96", leg.DurationSeconds)
	}
}

func TestRouteRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"features": [{
				"geometry": {"coordinates": [[120.9842, 14.5995], [120.9842, 14.6030]]},
				"properties": {"segments": [{"distance": 389.0, "duration": 90.0}]}
			}]
		}`))
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL)
	start := domain.Coordinates{Lat: 14.5995, Lon: 120.9842}
	end := domain.Coordinates{Lat: 14.6030, Lon: 120.9842}

	leg, err := p.Route(context.Background(), start, end, "driving-car")
	if err != nil {
		t.Fatalf("route after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("server saw %d calls, want 3", got)
	}
	if leg.DurationSeconds != 90 {
		t.Fatalf("duration = %d, want 90", leg.DurationSeconds)
	}
}

func TestRouteClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL)
	start := domain.Coordinates{Lat: 14.5995, Lon: 120.9842}
	end := domain.Coordinates{Lat: 14.6030, Lon: 120.9842}

	_, err := p.Route(context.Background(), start, end, "driving-car")
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server saw %d calls, want 1 (4xx is not retried)", got)
	}
}

func TestRouteInvalidCoordinates(t *testing.T) {
	p := testProvider(t, "http://127.0.0.1:0")

	_, err := p.Route(context.Background(),
		domain.Coordinates{Lat: 95, Lon: 0},
		domain.Coordinates{Lat: 14.6, Lon: 120.98}, "driving-car")

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("text"); got != "Quiapo Church" {
			t.Errorf("text = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features": [{"geometry": {"coordinates": [120.9837, 14.5986]}}]}`))
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL)

	c, err := p.Geocode(context.Background(), "Quiapo Church")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if c.Lat != 14.5986 || c.Lon != 120.9837 {
		t.Fatalf("coordinates = %+v", c)
	}
}

func TestGeocodeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features": []}`))
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL)

	_, err := p.Geocode(context.Background(), "nowhere at all")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
