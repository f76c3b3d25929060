package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/observability"
	"trike-itinerary-service/internal/platform/obs"
	"trike-itinerary-service/internal/ports"
)

// PlanStops orders a driver's stops greedily by nearest-next distance,
// starting from the driver's current position. Completed stops keep their
// historical order at the front; a booking's dropoff is never scheduled
// before its pickup is completed. The input is not modified.
//
// The plan is recomputed from scratch on every call. With tricycle-scale
// itineraries (a handful of stops) a full replan is cheaper to reason about
// than incremental reordering, and it self-heals after any out-of-band edit.
func PlanStops(stops []*domain.Stop, start *domain.Coordinates) []*domain.Stop {
	var completed, pending []*domain.Stop
	for _, s := range stops {
		if s.Completed() {
			completed = append(completed, s)
		} else {
			pending = append(pending, s)
		}
	}

	// Completed stops are history: sort by completion time, then by the
	// sequence they held, so replans never rewrite what already happened.
	sort.Slice(completed, func(i, j int) bool {
		ti, tj := completedAt(completed[i]), completedAt(completed[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		if completed[i].Sequence != completed[j].Sequence {
			return completed[i].Sequence < completed[j].Sequence
		}
		return completed[i].ID < completed[j].ID
	})

	pickedUp := make(map[int64]bool)
	for _, s := range completed {
		if s.Kind == domain.StopPickup {
			pickedUp[s.BookingID] = true
		}
	}

	ordered := make([]*domain.Stop, 0, len(stops))
	ordered = append(ordered, completed...)

	current := start
	remaining := append([]*domain.Stop(nil), pending...)

	for len(remaining) > 0 {
		idx := nextStopIndex(remaining, current, pickedUp)
		next := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		ordered = append(ordered, next)
		if next.Kind == domain.StopPickup {
			pickedUp[next.BookingID] = true
		}
		if next.Coord != nil {
			current = next.Coord
		}
	}

	return ordered
}

// nextStopIndex picks the nearest eligible stop. Eligible means a pickup, or
// a dropoff whose pickup is already scheduled or done. If nothing is eligible
// (possible only with orphaned dropoffs) the constraint is relaxed rather
// than losing the stop.
func nextStopIndex(remaining []*domain.Stop, current *domain.Coordinates, pickedUp map[int64]bool) int {
	best := -1
	bestDist := 0.0
	fallback := -1 // first eligible stop without coordinates

	consider := func(relaxed bool) {
		for i, s := range remaining {
			if !relaxed && s.Kind == domain.StopDropoff && !pickedUp[s.BookingID] {
				continue
			}
			if s.Coord == nil {
				if fallback == -1 {
					fallback = i
				}
				continue
			}
			if current == nil {
				// No known position: take the first locatable stop.
				best = i
				return
			}
			d := current.DistanceKm(*s.Coord)
			if best == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}
	}

	consider(false)
	if best == -1 && fallback == -1 {
		consider(true)
	}
	if best != -1 {
		return best
	}
	if fallback != -1 {
		return fallback
	}
	return 0
}

func completedAt(s *domain.Stop) time.Time {
	if s.CompletedAt != nil {
		return *s.CompletedAt
	}
	return time.Now()
}

// ApplySequenceAndStatus renumbers the ordered stops 1-based and marks the
// first non-completed stop CURRENT and the rest UPCOMING. It returns only the
// stops whose sequence or status actually changed.
func ApplySequenceAndStatus(ordered []*domain.Stop) []*domain.Stop {
	var changed []*domain.Stop
	currentSet := false

	for i, s := range ordered {
		seq := i + 1
		status := s.Status
		if !s.Completed() {
			if !currentSet {
				status = domain.StopCurrent
				currentSet = true
			} else {
				status = domain.StopUpcoming
			}
		}
		if s.Sequence != seq || s.Status != status {
			s.Sequence = seq
			s.Status = status
			changed = append(changed, s)
		}
	}
	return changed
}

// Planner replans a driver's full stop list and persists the result.
type Planner struct {
	Stops   ports.StopRepository
	Drivers ports.DriverRepository
}

// PlanDriverStops loads the driver's active stops and current position,
// reorders them, and writes back every stop whose sequence or status moved.
func (p *Planner) PlanDriverStops(ctx context.Context, driverID int64) (_ []*domain.Stop, err error) {
	defer obs.Time(ctx, "planner.PlanDriverStops")(&err)

	stops, err := p.Stops.ListActiveStopsByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("plan stops: %w", err)
	}
	if len(stops) == 0 {
		return nil, nil
	}

	start := p.startLocation(ctx, driverID)
	ordered := PlanStops(stops, start)

	for _, s := range ApplySequenceAndStatus(ordered) {
		if err := p.Stops.UpdateStop(ctx, s); err != nil {
			return nil, fmt.Errorf("plan stops: persist %s: %w", s.ID, err)
		}
	}

	observability.ReplansTotal.Inc()
	return ordered, nil
}

func (p *Planner) startLocation(ctx context.Context, driverID int64) *domain.Coordinates {
	pos, err := p.Drivers.GetPosition(ctx, driverID)
	if err != nil || !pos.Coord.Valid() {
		return nil
	}
	c := pos.Coord
	return &c
}

// EnsureStops creates the booking's pickup and dropoff stops if they do not
// exist yet. Idempotent; called when a driver accepts a booking.
func (p *Planner) EnsureStops(ctx context.Context, b *domain.Booking) error {
	existing, err := p.Stops.ListByBooking(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("ensure stops: %w", err)
	}

	have := make(map[domain.StopKind]bool, 2)
	for _, s := range existing {
		have[s.Kind] = true
	}

	now := time.Now()
	for _, spec := range []struct {
		kind    domain.StopKind
		address string
		coord   *domain.Coordinates
	}{
		{domain.StopPickup, b.PickupAddress, b.Pickup},
		{domain.StopDropoff, b.DestinationAddress, b.Destination},
	} {
		if have[spec.kind] {
			continue
		}
		stop := &domain.Stop{
			ID:         uuid.NewString(),
			BookingID:  b.ID,
			Kind:       spec.kind,
			Status:     domain.StopUpcoming,
			Passengers: b.Seats(),
			Address:    spec.address,
			Coord:      spec.coord,
			CreatedAt:  now,
		}
		if err := p.Stops.CreateStop(ctx, stop); err != nil {
			return fmt.Errorf("ensure stops: create %s: %w", spec.kind, err)
		}
	}
	return nil
}
