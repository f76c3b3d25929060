package directions

import (
	"context"
	"math"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/ports"
)

// MockProvider is a scripted DirectionsProvider for tests. When RouteFn is
// nil every call returns a two-point straight leg derived from the
// great-circle distance at ~30 km/h.
type MockProvider struct {
	RouteFn   func(start, end domain.Coordinates) (ports.RouteLeg, error)
	GeocodeFn func(address string) (domain.Coordinates, error)
	Calls     int
}

func (m *MockProvider) Route(_ context.Context, start, end domain.Coordinates, _ string) (ports.RouteLeg, error) {
	m.Calls++
	if m.RouteFn != nil {
		return m.RouteFn(start, end)
	}

	km := start.DistanceKm(end)
	return ports.RouteLeg{
		Geometry:        []domain.Coordinates{start, end},
		DistanceKm:      km,
		DurationSeconds: int(math.Round(km / 30 * 3600)),
	}, nil
}

func (m *MockProvider) Geocode(_ context.Context, address string) (domain.Coordinates, error) {
	if m.GeocodeFn != nil {
		return m.GeocodeFn(address)
	}
	return domain.Coordinates{}, domain.ErrNotFound
}
