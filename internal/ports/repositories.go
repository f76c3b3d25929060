package ports

import (
	"context"
	"time"

	"trike-itinerary-service/internal/domain"
)

// BookingRepository persists bookings. No planning logic lives here; the
// storage layer only creates, updates, and queries by filter.
type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	CreateBooking(ctx context.Context, b *domain.Booking) error
	UpdateBooking(ctx context.Context, b *domain.Booking) error

	// ListActiveByDriver returns the driver's in-progress bookings
	// (accepted, on_the_way, started).
	ListActiveByDriver(ctx context.Context, driverID int64) ([]*domain.Booking, error)

	// RiderHasActiveBooking reports whether the rider has an in-progress booking.
	RiderHasActiveBooking(ctx context.Context, riderID int64) (bool, error)

	// ClaimPending atomically assigns the driver to a pending, unassigned
	// booking and moves it to accepted. Returns ErrNotFound when the booking
	// is missing, already claimed, or no longer pending, so exactly one of
	// two racing drivers wins.
	ClaimPending(ctx context.Context, bookingID, driverID int64, startTime time.Time) (*domain.Booking, error)
}

type StopRepository interface {
	GetStop(ctx context.Context, id string) (*domain.Stop, error)
	CreateStop(ctx context.Context, s *domain.Stop) error
	UpdateStop(ctx context.Context, s *domain.Stop) error
	ListByBooking(ctx context.Context, bookingID int64) ([]*domain.Stop, error)

	// ListActiveStopsByDriver returns all stops belonging to the driver's
	// in-progress bookings, completed and pending alike.
	ListActiveStopsByDriver(ctx context.Context, driverID int64) ([]*domain.Stop, error)
}

type DriverRepository interface {
	GetDriver(ctx context.Context, id int64) (*domain.Driver, error)
	SetDriverStatus(ctx context.Context, id int64, status domain.DriverStatus) error

	// GetVehicle returns the driver's vehicle, or ErrNotFound when the driver
	// has none (in which case the capacity guard always fails).
	GetVehicle(ctx context.Context, driverID int64) (*domain.Vehicle, error)

	GetPosition(ctx context.Context, driverID int64) (*domain.DriverPosition, error)
	SavePosition(ctx context.Context, p *domain.DriverPosition) error
}

type RiderRepository interface {
	GetRider(ctx context.Context, id int64) (*domain.Rider, error)
	SetRiderStatus(ctx context.Context, id int64, status domain.RiderStatus) error
}

type RouteSnapshotRepository interface {
	// SaveSnapshot stores a new active snapshot for the booking, deactivating
	// any previously active one. Old snapshots are kept for history.
	SaveSnapshot(ctx context.Context, s *domain.RouteSnapshot) error

	// ActiveSnapshot returns the booking's active snapshot, or ErrNotFound.
	ActiveSnapshot(ctx context.Context, bookingID int64) (*domain.RouteSnapshot, error)
}
