package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/observability"
	"trike-itinerary-service/internal/platform/obs"
	"trike-itinerary-service/internal/ports"
)

// TripService drives the booking lifecycle: acceptance, cancellation, and
// stop completion. Mutations for one driver are serialized through a
// per-driver lock so replanning never interleaves with a concurrent
// completion on the same itinerary.
type TripService struct {
	Bookings  ports.BookingRepository
	Stops     ports.StopRepository
	Drivers   ports.DriverRepository
	Riders    ports.RiderRepository
	Snapshots ports.RouteSnapshotRepository
	Provider  ports.DirectionsProvider
	Cache     ports.PayloadCache

	Planner *Planner
	Guard   *Guard

	DetourMaxKm     float64
	ProximityMeters float64
	Profile         string
	Logger          *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (t *TripService) driverLock(driverID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks == nil {
		t.locks = make(map[int64]*sync.Mutex)
	}
	l, ok := t.locks[driverID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[driverID] = l
	}
	return l
}

func (t *TripService) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// Accept claims a pending booking for the driver. The capacity and detour
// guards run first; the claim itself is a conditional update, so when two
// drivers race exactly one wins and the other sees ErrNotFound. On success
// the booking is accepted, rider and driver move to in-trip, the booking's
// stops exist, and the driver's itinerary is replanned.
func (t *TripService) Accept(ctx context.Context, bookingID, driverID int64) (_ *domain.Booking, err error) {
	defer obs.Time(ctx, "trips.Accept")(&err)

	lock := t.driverLock(driverID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := t.Drivers.GetDriver(ctx, driverID); err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}

	candidate, err := t.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}

	ok, err := t.Guard.SeatsAvailable(ctx, driverID, candidate)
	if err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}
	if !ok {
		return nil, domain.ErrCapacityExceeded
	}

	ok, err = t.Guard.PickupWithinDetour(ctx, driverID, candidate, t.DetourMaxKm)
	if err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}
	if !ok {
		return nil, domain.ErrDetourTooFar
	}

	active, err := t.Bookings.RiderHasActiveBooking(ctx, candidate.RiderID)
	if err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}
	if active {
		return nil, domain.ErrRiderAlreadyActive
	}

	booking, err := t.Bookings.ClaimPending(ctx, bookingID, driverID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}

	if err := t.Drivers.SetDriverStatus(ctx, driverID, domain.DriverInTrip); err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}
	if err := t.Riders.SetRiderStatus(ctx, booking.RiderID, domain.RiderInTrip); err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}

	if err := t.Planner.EnsureStops(ctx, booking); err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}
	if _, err := t.Planner.PlanDriverStops(ctx, driverID); err != nil {
		return nil, fmt.Errorf("accept booking %d: %w", bookingID, err)
	}

	t.snapshotToPickup(ctx, booking, driverID)
	t.invalidateRouteInfo(ctx, booking, booking.DriverID)

	t.logger().InfoContext(ctx, "booking accepted",
		"booking_id", booking.ID, "driver_id", driverID, "rider_id", booking.RiderID)
	return booking, nil
}

// snapshotToPickup stores the driver-to-pickup route and refreshes the
// booking's estimates. Best effort: a routing outage must not undo an accept
// that already happened.
func (t *TripService) snapshotToPickup(ctx context.Context, b *domain.Booking, driverID int64) {
	if b.Pickup == nil {
		return
	}
	pos, err := t.Drivers.GetPosition(ctx, driverID)
	if err != nil {
		return
	}

	leg, err := t.Provider.Route(ctx, pos.Coord, *b.Pickup, t.Profile)
	if err != nil {
		t.logger().WarnContext(ctx, "route to pickup failed",
			"booking_id", b.ID, "driver_id", driverID, "err", err)
		return
	}

	snap := &domain.RouteSnapshot{
		BookingID:       b.ID,
		Geometry:        leg.Geometry,
		DistanceKm:      leg.DistanceKm,
		DurationSeconds: leg.DurationSeconds,
	}
	if err := t.Snapshots.SaveSnapshot(ctx, snap); err != nil {
		t.logger().WarnContext(ctx, "save route snapshot failed", "booking_id", b.ID, "err", err)
		return
	}

	applyLegEstimates(b, leg)
	if err := t.Bookings.UpdateBooking(ctx, b); err != nil {
		t.logger().WarnContext(ctx, "update booking estimates failed", "booking_id", b.ID, "err", err)
	}
}

func applyLegEstimates(b *domain.Booking, leg ports.RouteLeg) {
	km := leg.DistanceKm
	mins := leg.DurationSeconds / 60
	eta := time.Now().Add(time.Duration(leg.DurationSeconds) * time.Second)
	b.EstimatedDistanceKm = &km
	b.EstimatedDurationMin = &mins
	b.EstimatedArrival = &eta
}

// CancelByRider cancels the rider's own booking. Allowed while the booking
// is pending, accepted, or on the way; once the ride has started only the
// dropoff completes it. A pending unassigned booking dies for good; a booking
// with a driver assigned goes back to the unassigned pool instead.
func (t *TripService) CancelByRider(ctx context.Context, bookingID, riderID int64) (_ *domain.Booking, err error) {
	defer obs.Time(ctx, "trips.CancelByRider")(&err)

	booking, err := t.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", bookingID, err)
	}
	if booking.RiderID != riderID {
		return nil, domain.ErrPermissionDenied
	}
	if !booking.Status.RiderCancellable() {
		return nil, domain.ErrNotCancellable
	}

	return t.cancel(ctx, booking, domain.StatusCancelledByRider)
}

// CancelByDriver lets the assigned driver abandon a booking they accepted,
// even mid-ride. The booking reverts to pending and re-enters the unassigned
// pool rather than dying on the rider.
func (t *TripService) CancelByDriver(ctx context.Context, bookingID, driverID int64) (_ *domain.Booking, err error) {
	defer obs.Time(ctx, "trips.CancelByDriver")(&err)

	booking, err := t.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", bookingID, err)
	}
	if booking.DriverID == nil || *booking.DriverID != driverID {
		return nil, domain.ErrPermissionDenied
	}
	switch booking.Status {
	case domain.StatusAccepted, domain.StatusOnTheWay, domain.StatusStarted:
	default:
		return nil, domain.ErrNotCancellable
	}

	return t.cancel(ctx, booking, domain.StatusCancelledByDriver)
}

// cancel applies a cancellation. A pending booking with no driver assigned
// moves straight to the terminal status; once a driver is on it the booking
// instead reverts to pending with the driver and start time cleared, its
// stops reset, and the old driver's itinerary replanned.
func (t *TripService) cancel(ctx context.Context, booking *domain.Booking, terminal domain.BookingStatus) (*domain.Booking, error) {
	driverID := booking.DriverID

	if driverID != nil {
		lock := t.driverLock(*driverID)
		lock.Lock()
		defer lock.Unlock()
	}

	if driverID == nil {
		now := time.Now()
		booking.Status = terminal
		booking.EndTime = &now
	} else {
		booking.Status = domain.StatusPending
		booking.DriverID = nil
		booking.StartTime = nil
	}
	if err := t.Bookings.UpdateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", booking.ID, err)
	}

	if driverID != nil {
		if err := t.resetStops(ctx, booking.ID); err != nil {
			return nil, fmt.Errorf("cancel booking %d: %w", booking.ID, err)
		}
	}

	if err := t.Riders.SetRiderStatus(ctx, booking.RiderID, domain.RiderAvailable); err != nil {
		t.logger().WarnContext(ctx, "reset rider status failed", "rider_id", booking.RiderID, "err", err)
	}

	if driverID != nil {
		if err := t.settleDriverAfterChange(ctx, *driverID); err != nil {
			return nil, fmt.Errorf("cancel booking %d: %w", booking.ID, err)
		}
	}

	t.invalidateRouteInfo(ctx, booking, driverID)
	t.logger().InfoContext(ctx, "booking cancelled",
		"booking_id", booking.ID, "status", booking.Status)
	return booking, nil
}

// resetStops puts the booking's stops back in the unplanned state so the next
// accepting driver sequences them from scratch.
func (t *TripService) resetStops(ctx context.Context, bookingID int64) error {
	stops, err := t.Stops.ListByBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	for _, s := range stops {
		s.Status = domain.StopUpcoming
		s.Sequence = 0
		s.CompletedAt = nil
		if err := t.Stops.UpdateStop(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// CompleteStop marks a stop done. A dropoff is rejected outright while its
// pickup is pending, regardless of where the driver is standing; otherwise
// the driver must be within the proximity gate of the stop. Completing a
// pickup starts the ride; completing a dropoff finishes the booking.
func (t *TripService) CompleteStop(ctx context.Context, stopID string, driverID int64) (_ *domain.Stop, err error) {
	defer obs.Time(ctx, "trips.CompleteStop")(&err)

	lock := t.driverLock(driverID)
	lock.Lock()
	defer lock.Unlock()

	stop, err := t.Stops.GetStop(ctx, stopID)
	if err != nil {
		return nil, fmt.Errorf("complete stop %s: %w", stopID, err)
	}

	booking, err := t.Bookings.GetBooking(ctx, stop.BookingID)
	if err != nil {
		return nil, fmt.Errorf("complete stop %s: %w", stopID, err)
	}
	if booking.DriverID == nil || *booking.DriverID != driverID {
		return nil, domain.ErrPermissionDenied
	}

	if stop.Completed() {
		return stop, nil
	}

	if stop.Kind == domain.StopDropoff {
		done, err := t.pickupCompleted(ctx, stop.BookingID)
		if err != nil {
			return nil, fmt.Errorf("complete stop %s: %w", stopID, err)
		}
		if !done {
			return nil, domain.ErrPickupNotCompleted
		}
	}

	if err := t.checkProximity(ctx, driverID, stop); err != nil {
		return nil, err
	}

	now := time.Now()
	stop.Status = domain.StopCompleted
	stop.CompletedAt = &now
	if err := t.Stops.UpdateStop(ctx, stop); err != nil {
		return nil, fmt.Errorf("complete stop %s: %w", stopID, err)
	}
	observability.StopsCompleted.WithLabelValues(string(stop.Kind)).Inc()

	switch stop.Kind {
	case domain.StopPickup:
		booking.Status = domain.StatusStarted
		if booking.StartTime == nil {
			booking.StartTime = &now
		}
		if err := t.Bookings.UpdateBooking(ctx, booking); err != nil {
			return nil, fmt.Errorf("complete stop %s: %w", stopID, err)
		}
	case domain.StopDropoff:
		booking.Status = domain.StatusCompleted
		booking.EndTime = &now
		if err := t.Bookings.UpdateBooking(ctx, booking); err != nil {
			return nil, fmt.Errorf("complete stop %s: %w", stopID, err)
		}
		if err := t.Riders.SetRiderStatus(ctx, booking.RiderID, domain.RiderAvailable); err != nil {
			t.logger().WarnContext(ctx, "reset rider status failed", "rider_id", booking.RiderID, "err", err)
		}
	}

	if err := t.settleDriverAfterChange(ctx, driverID); err != nil {
		return nil, fmt.Errorf("complete stop %s: %w", stopID, err)
	}

	t.invalidateRouteInfo(ctx, booking, booking.DriverID)
	t.logger().InfoContext(ctx, "stop completed",
		"stop_id", stop.ID, "kind", stop.Kind, "booking_id", booking.ID)
	return stop, nil
}

func (t *TripService) pickupCompleted(ctx context.Context, bookingID int64) (bool, error) {
	stops, err := t.Stops.ListByBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	for _, s := range stops {
		if s.Kind == domain.StopPickup && s.Completed() {
			return true, nil
		}
	}
	return false, nil
}

// checkProximity enforces the completion gate. When either the driver's
// position or the stop's coordinates are unknown the gate is skipped: a
// missing GPS fix or a failed geocode must not strand the trip.
func (t *TripService) checkProximity(ctx context.Context, driverID int64, stop *domain.Stop) error {
	if stop.Coord == nil {
		return nil
	}
	pos, err := t.Drivers.GetPosition(ctx, driverID)
	if err != nil {
		return nil
	}

	dist := pos.Coord.DistanceMeters(*stop.Coord)
	if dist > t.ProximityMeters {
		return &domain.ProximityError{DistanceMeters: dist, RequiredMeters: t.ProximityMeters}
	}
	return nil
}

// settleDriverAfterChange replans the driver's remaining stops and flips the
// driver back to online when the itinerary is empty.
func (t *TripService) settleDriverAfterChange(ctx context.Context, driverID int64) error {
	ordered, err := t.Planner.PlanDriverStops(ctx, driverID)
	if err != nil {
		return err
	}

	remaining := 0
	for _, s := range ordered {
		if !s.Completed() {
			remaining++
		}
	}

	status := domain.DriverInTrip
	if remaining == 0 {
		status = domain.DriverOnline
	}
	if err := t.Drivers.SetDriverStatus(ctx, driverID, status); err != nil {
		return err
	}
	return nil
}

// invalidateRouteInfo drops cached route-info payloads for the booking. The
// key embeds status and driver, so every status the booking may have been
// cached under is cleared; driverID is the driver the entries were keyed
// under, which on a cancel is the one just unassigned. Best effort; entries
// expire within seconds anyway.
func (t *TripService) invalidateRouteInfo(ctx context.Context, b *domain.Booking, driverID *int64) {
	if t.Cache == nil {
		return
	}

	statuses := []domain.BookingStatus{
		domain.StatusPending, domain.StatusAccepted, domain.StatusOnTheWay,
		domain.StatusStarted, b.Status,
	}
	keys := make([]string, 0, 2*len(statuses))
	for _, st := range statuses {
		keys = append(keys, ports.RouteInfoKey(b.ID, st, nil))
		if driverID != nil {
			keys = append(keys, ports.RouteInfoKey(b.ID, st, driverID))
		}
	}
	if err := t.Cache.Delete(ctx, keys...); err != nil {
		t.logger().WarnContext(ctx, "invalidate route info cache failed",
			"booking_id", b.ID, "err", err)
	}
}
