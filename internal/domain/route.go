package domain

import "time"

// RouteSnapshot is an immutable record of one computed route for a booking.
// Superseded snapshots are deactivated, never deleted, so route history is
// preserved for audit.
type RouteSnapshot struct {
	ID              int64
	BookingID       int64
	Geometry        []Coordinates
	DistanceKm      float64
	DurationSeconds int
	CreatedAt       time.Time
	Active          bool
}
