package ports

import (
	"context"

	"trike-itinerary-service/internal/domain"
)

// RouteLeg is the result of one directions lookup between two points.
type RouteLeg struct {
	Geometry        []domain.Coordinates
	DistanceKm      float64
	DurationSeconds int
	// TooClose marks segments below the provider's minimum distance. The
	// geometry is the straight start-end pair and the duration assumes
	// walking speed; no external call was made.
	TooClose bool
}

// DirectionsProvider retrieves road geometry, distance, and duration between
// two coordinates from an external directions service.
type DirectionsProvider interface {
	Route(ctx context.Context, start, end domain.Coordinates, profile string) (RouteLeg, error)
}

// Geocoder resolves a street address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
}
