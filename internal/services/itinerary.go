package services

import (
	"context"
	"fmt"
	"math"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/platform/obs"
	"trike-itinerary-service/internal/ports"
)

// Itinerary is the driver-facing view of the whole planned tour: every stop
// in visiting order, the stitched map polyline, seat usage, and earnings.
type Itinerary struct {
	TotalEarnings   float64 `json:"total_earnings"`
	TotalBookings   int     `json:"total_bookings"`
	MaxCapacity     int     `json:"max_capacity"`
	CurrentCapacity int     `json:"current_capacity"`

	Stops            []ItineraryStop `json:"stops"`
	CurrentStopIndex int             `json:"current_stop_index"`

	FullRoutePolyline  [][]float64    `json:"full_route_polyline"`
	FullRouteIsPrecise bool           `json:"full_route_is_precise"`
	FullRouteSegments  []RouteSegment `json:"full_route_segments"`

	DriverStartCoordinate []float64 `json:"driver_start_coordinate,omitempty"`
}

type ItineraryStop struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	PassengerName  string    `json:"passenger_name"`
	PassengerCount int       `json:"passenger_count"`
	Address        string    `json:"address"`
	Note           string    `json:"note,omitempty"`
	BookingID      int64     `json:"booking_id"`
	Sequence       int       `json:"sequence"`
	Coordinates    []float64 `json:"coordinates,omitempty"`
}

// RouteSegment is one leg of the polyline, ending at a stop. Points are
// [lat, lon] pairs. Precise is false when the leg is a straight-line
// fallback rather than a routed geometry.
type RouteSegment struct {
	Kind    string      `json:"kind"`
	Points  [][]float64 `json:"points"`
	Precise bool        `json:"precise"`
}

// CurrentLoad returns the passengers currently on board: everyone whose
// pickup is completed and whose dropoff is not.
func CurrentLoad(stops []*domain.Stop) int {
	load := 0
	for _, s := range stops {
		if !s.Completed() {
			continue
		}
		switch s.Kind {
		case domain.StopPickup:
			load += s.Passengers
		case domain.StopDropoff:
			load -= s.Passengers
		}
	}
	if load < 0 {
		load = 0
	}
	return load
}

// ItineraryService assembles the full-tour payload for a driver.
type ItineraryService struct {
	Bookings ports.BookingRepository
	Riders   ports.RiderRepository
	Drivers  ports.DriverRepository
	Provider ports.DirectionsProvider
	Planner  *Planner

	Profile string
}

// Build replans the driver's stops and assembles the itinerary. Routing
// failures on individual legs degrade that leg to a straight line instead of
// failing the whole payload; FullRouteIsPrecise reports whether every leg was
// actually routed.
func (s *ItineraryService) Build(ctx context.Context, driverID int64) (_ *Itinerary, err error) {
	defer obs.Time(ctx, "itinerary.Build")(&err)

	ordered, err := s.Planner.PlanDriverStops(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("build itinerary: %w", err)
	}

	it := &Itinerary{
		Stops:              make([]ItineraryStop, 0, len(ordered)),
		FullRoutePolyline:  [][]float64{},
		FullRouteSegments:  []RouteSegment{},
		FullRouteIsPrecise: true,
		MaxCapacity:        1,
	}

	if vehicle, err := s.Drivers.GetVehicle(ctx, driverID); err == nil {
		it.MaxCapacity = vehicle.MaxCapacity
	}
	it.CurrentCapacity = CurrentLoad(ordered)

	bookings := make(map[int64]*domain.Booking)
	riderNames := make(map[int64]string)

	for _, stop := range ordered {
		b, ok := bookings[stop.BookingID]
		if !ok {
			b, err = s.Bookings.GetBooking(ctx, stop.BookingID)
			if err != nil {
				return nil, fmt.Errorf("build itinerary: booking %d: %w", stop.BookingID, err)
			}
			bookings[b.ID] = b
			if b.Fare != nil {
				it.TotalEarnings += *b.Fare
			}
		}

		name, ok := riderNames[b.RiderID]
		if !ok {
			if rider, err := s.Riders.GetRider(ctx, b.RiderID); err == nil {
				name = rider.Name
			}
			riderNames[b.RiderID] = name
		}

		entry := ItineraryStop{
			ID:             stop.ID,
			Type:           string(stop.Kind),
			Status:         string(stop.Status),
			PassengerName:  name,
			PassengerCount: stop.Passengers,
			Address:        stop.Address,
			Note:           stop.Note,
			BookingID:      stop.BookingID,
			Sequence:       stop.Sequence,
		}
		if stop.Coord != nil {
			entry.Coordinates = stop.Coord.LatLon()
		}
		it.Stops = append(it.Stops, entry)
	}
	it.TotalBookings = len(bookings)
	it.CurrentStopIndex = currentStopIndex(ordered)

	start := s.startCoordinate(ctx, driverID)
	if start != nil {
		it.DriverStartCoordinate = start.LatLon()
	}
	s.assembleRoute(ctx, it, ordered, start)

	return it, nil
}

// currentStopIndex points at the stop the driver should head to: the CURRENT
// stop if one is marked, otherwise the first non-completed stop, otherwise
// the last stop of a fully completed tour.
func currentStopIndex(ordered []*domain.Stop) int {
	if len(ordered) == 0 {
		return 0
	}
	for i, s := range ordered {
		if s.Status == domain.StopCurrent {
			return i
		}
	}
	for i, s := range ordered {
		if !s.Completed() {
			return i
		}
	}
	return len(ordered) - 1
}

func (s *ItineraryService) startCoordinate(ctx context.Context, driverID int64) *domain.Coordinates {
	pos, err := s.Drivers.GetPosition(ctx, driverID)
	if err != nil || !pos.Coord.Valid() {
		return nil
	}
	c := pos.Coord
	return &c
}

// assembleRoute stitches routed legs between consecutive locatable points
// into one polyline. Identical leg requests within one build are memoized on
// coordinates rounded to 5 decimals (~1 m), which collapses the repeated
// pickup/dropoff pairs of shared-stand tours.
func (s *ItineraryService) assembleRoute(ctx context.Context, it *Itinerary, ordered []*domain.Stop, start *domain.Coordinates) {
	type legKey struct{ aLat, aLon, bLat, bLon float64 }
	memo := make(map[legKey]ports.RouteLeg)

	route := func(a, b domain.Coordinates) (ports.RouteLeg, bool) {
		key := legKey{round5(a.Lat), round5(a.Lon), round5(b.Lat), round5(b.Lon)}
		if leg, ok := memo[key]; ok {
			return leg, !leg.TooClose
		}
		leg, err := s.Provider.Route(ctx, a, b, s.Profile)
		if err != nil {
			leg = ports.RouteLeg{Geometry: []domain.Coordinates{a, b}, TooClose: true}
		}
		memo[key] = leg
		return leg, err == nil && !leg.TooClose
	}

	prev := start
	for _, stop := range ordered {
		if stop.Coord == nil {
			continue
		}
		if prev == nil {
			prev = stop.Coord
			appendPoints(it, []domain.Coordinates{*stop.Coord})
			continue
		}

		leg, precise := route(*prev, *stop.Coord)
		if !precise {
			it.FullRouteIsPrecise = false
		}
		appendPoints(it, leg.Geometry)
		it.FullRouteSegments = append(it.FullRouteSegments, RouteSegment{
			Kind:    string(stop.Kind),
			Points:  toLatLon(leg.Geometry),
			Precise: precise,
		})
		prev = stop.Coord
	}
}

// appendPoints extends the polyline, dropping points that duplicate the
// current tail so joined legs do not stutter at shared endpoints.
func appendPoints(it *Itinerary, points []domain.Coordinates) {
	for _, p := range points {
		pair := p.LatLon()
		if n := len(it.FullRoutePolyline); n > 0 {
			last := it.FullRoutePolyline[n-1]
			if math.Abs(last[0]-pair[0]) < 1e-6 && math.Abs(last[1]-pair[1]) < 1e-6 {
				continue
			}
		}
		it.FullRoutePolyline = append(it.FullRoutePolyline, pair)
	}
}

func toLatLon(points []domain.Coordinates) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		out[i] = p.LatLon()
	}
	return out
}

func round5(v float64) float64 { return math.Round(v*1e5) / 1e5 }
