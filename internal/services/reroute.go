package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/observability"
	"trike-itinerary-service/internal/platform/obs"
	"trike-itinerary-service/internal/ports"
)

// ShouldReroute reports whether the driver has deviated from the active
// snapshot: true when the position is farther than thresholdMeters from
// every point of the stored geometry, or when there is no usable geometry
// at all.
func ShouldReroute(pos domain.Coordinates, snap *domain.RouteSnapshot, thresholdMeters float64) bool {
	if snap == nil || len(snap.Geometry) == 0 {
		return true
	}
	for _, p := range snap.Geometry {
		if pos.DistanceMeters(p) <= thresholdMeters {
			return false
		}
	}
	return true
}

// LocationService ingests driver position updates and keeps each active
// booking's route snapshot fresh when the driver strays off it.
type LocationService struct {
	Bookings  ports.BookingRepository
	Drivers   ports.DriverRepository
	Snapshots ports.RouteSnapshotRepository
	Provider  ports.DirectionsProvider

	DeviationThresholdMeters float64
	Profile                  string
	Logger                   *slog.Logger
}

func (l *LocationService) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// UpdateLocation stores the position and runs the deviation check against
// every active booking. Reroute failures are logged, never returned: a
// position update must succeed even when the routing provider is down.
func (l *LocationService) UpdateLocation(ctx context.Context, p *domain.DriverPosition) (err error) {
	defer obs.Time(ctx, "location.UpdateLocation")(&err)

	if !p.Coord.Valid() {
		return &domain.ValidationError{Reason: "latitude and longitude must be finite and in range"}
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	if err := l.Drivers.SavePosition(ctx, p); err != nil {
		return fmt.Errorf("update location: %w", err)
	}

	active, err := l.Bookings.ListActiveByDriver(ctx, p.DriverID)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}

	for _, b := range active {
		if err := l.checkAndReroute(ctx, b, p.Coord); err != nil {
			l.logger().WarnContext(ctx, "reroute check failed",
				"booking_id", b.ID, "driver_id", p.DriverID, "err", err)
		}
	}
	return nil
}

// checkAndReroute recomputes the booking's route when the driver has left
// the active snapshot. Before the ride starts the target is the pickup;
// after, the destination.
func (l *LocationService) checkAndReroute(ctx context.Context, b *domain.Booking, pos domain.Coordinates) error {
	target := l.routeTarget(b)
	if target == nil {
		return nil
	}

	snap, err := l.Snapshots.ActiveSnapshot(ctx, b.ID)
	if err != nil && err != domain.ErrNotFound {
		return err
	}

	if !ShouldReroute(pos, snap, l.DeviationThresholdMeters) {
		return nil
	}

	return l.reroute(ctx, b, pos, *target)
}

func (l *LocationService) routeTarget(b *domain.Booking) *domain.Coordinates {
	switch b.Status {
	case domain.StatusAccepted, domain.StatusOnTheWay:
		return b.Pickup
	case domain.StatusStarted:
		return b.Destination
	default:
		return nil
	}
}

func (l *LocationService) reroute(ctx context.Context, b *domain.Booking, from, to domain.Coordinates) error {
	leg, err := l.Provider.Route(ctx, from, to, l.Profile)
	if err != nil {
		return err
	}

	snap := &domain.RouteSnapshot{
		BookingID:       b.ID,
		Geometry:        leg.Geometry,
		DistanceKm:      leg.DistanceKm,
		DurationSeconds: leg.DurationSeconds,
	}
	if err := l.Snapshots.SaveSnapshot(ctx, snap); err != nil {
		return err
	}

	applyLegEstimates(b, leg)
	if err := l.Bookings.UpdateBooking(ctx, b); err != nil {
		return err
	}

	observability.ReroutesTotal.Inc()
	l.logger().InfoContext(ctx, "route recomputed",
		"booking_id", b.ID, "distance_km", leg.DistanceKm)
	return nil
}

// ManualReroute forces a fresh route for one booking, requested by its
// assigned driver. Unlike the automatic check it skips the deviation test.
func (l *LocationService) ManualReroute(ctx context.Context, bookingID, driverID int64) (_ *domain.RouteSnapshot, err error) {
	defer obs.Time(ctx, "location.ManualReroute")(&err)

	b, err := l.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("reroute booking %d: %w", bookingID, err)
	}
	if b.DriverID == nil || *b.DriverID != driverID {
		return nil, domain.ErrPermissionDenied
	}

	target := l.routeTarget(b)
	if target == nil {
		return nil, &domain.ValidationError{Reason: "booking has no active route target"}
	}

	pos, err := l.Drivers.GetPosition(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("reroute booking %d: %w", bookingID, err)
	}

	if err := l.reroute(ctx, b, pos.Coord, *target); err != nil {
		return nil, fmt.Errorf("reroute booking %d: %w", bookingID, err)
	}
	return l.Snapshots.ActiveSnapshot(ctx, bookingID)
}
