package services

import (
	"context"
	"fmt"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/ports"
)

// Guard holds the acceptance checks a driver must pass before claiming a
// booking: seat capacity and detour distance.
type Guard struct {
	Bookings ports.BookingRepository
	Drivers  ports.DriverRepository
}

// SeatsAvailable reports whether the driver's vehicle can seat the candidate
// booking on top of every in-progress booking. Passengers stay counted until
// their booking reaches a terminal status, whether or not they have been
// dropped off, which keeps the check conservative. A driver without a
// vehicle can never accept.
func (g *Guard) SeatsAvailable(ctx context.Context, driverID int64, candidate *domain.Booking) (bool, error) {
	vehicle, err := g.Drivers.GetVehicle(ctx, driverID)
	if err != nil {
		if err == domain.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("capacity check: %w", err)
	}

	active, err := g.Bookings.ListActiveByDriver(ctx, driverID)
	if err != nil {
		return false, fmt.Errorf("capacity check: %w", err)
	}

	load := candidate.Seats()
	for _, b := range active {
		load += b.Seats()
	}
	return load <= vehicle.MaxCapacity, nil
}

// PickupWithinDetour reports whether the candidate's pickup lies within
// maxKm of any point on the driver's current tour: the driver's position,
// plus every active booking's pickup and destination. With no reference
// points the check passes, so a free driver can accept from anywhere.
//
// This is deliberately coarse. It bounds how far off-course a new pickup can
// pull the driver without costing a routing call per candidate; the planner
// decides the actual visiting order afterwards.
func (g *Guard) PickupWithinDetour(ctx context.Context, driverID int64, candidate *domain.Booking, maxKm float64) (bool, error) {
	if candidate.Pickup == nil {
		return true, nil
	}

	var points []domain.Coordinates
	if pos, err := g.Drivers.GetPosition(ctx, driverID); err == nil && pos.Coord.Valid() {
		points = append(points, pos.Coord)
	}

	active, err := g.Bookings.ListActiveByDriver(ctx, driverID)
	if err != nil {
		return false, fmt.Errorf("detour check: %w", err)
	}
	for _, b := range active {
		if b.Pickup != nil {
			points = append(points, *b.Pickup)
		}
		if b.Destination != nil {
			points = append(points, *b.Destination)
		}
	}

	if len(points) == 0 {
		return true, nil
	}

	for _, p := range points {
		if p.DistanceKm(*candidate.Pickup) <= maxKm {
			return true, nil
		}
	}
	return false, nil
}
