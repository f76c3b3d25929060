package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/platform/obs"
	"trike-itinerary-service/internal/ports"
)

// RouteInfoService assembles the polled trip-status payload shown to both
// the rider and the driver while a booking is live. Payloads are cached
// briefly under a key that embeds the booking status and assigned driver,
// so a state change naturally misses the stale entry.
type RouteInfoService struct {
	Bookings  ports.BookingRepository
	Stops     ports.StopRepository
	Drivers   ports.DriverRepository
	Snapshots ports.RouteSnapshotRepository
	Provider  ports.DirectionsProvider
	Cache     ports.PayloadCache
	Itinerary *ItineraryService

	Profile  string
	CacheTTL time.Duration
	Logger   *slog.Logger
}

func (s *RouteInfoService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

type routeInfoPayload struct {
	BookingID          int64      `json:"booking_id"`
	Status             string     `json:"status"`
	Fare               *float64   `json:"fare,omitempty"`
	Passengers         int        `json:"passengers"`
	PickupAddress      string     `json:"pickup_address"`
	PickupCoord        []float64  `json:"pickup_coordinates,omitempty"`
	DestinationAddress string     `json:"destination_address"`
	DestinationCoord   []float64  `json:"destination_coordinates,omitempty"`
	DistanceKm         *float64   `json:"estimated_distance_km,omitempty"`
	DurationMin        *int       `json:"estimated_duration_min,omitempty"`
	EstimatedArrival   *time.Time `json:"estimated_arrival,omitempty"`

	Driver     *routeInfoDriver `json:"driver,omitempty"`
	ETASeconds *int             `json:"eta_seconds,omitempty"`

	Route *routeInfoRoute `json:"route,omitempty"`
	Stops []routeInfoStop `json:"stops"`
	Tour  *Itinerary      `json:"itinerary,omitempty"`
}

type routeInfoDriver struct {
	ID        int64      `json:"id"`
	Position  []float64  `json:"position,omitempty"`
	UpdatedAt *time.Time `json:"position_updated_at,omitempty"`
}

type routeInfoRoute struct {
	Polyline        [][]float64 `json:"polyline"`
	DistanceKm      float64     `json:"distance_km"`
	DurationSeconds int         `json:"duration_seconds"`
}

type routeInfoStop struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Sequence    int        `json:"sequence"`
	Address     string     `json:"address"`
	Coordinates []float64  `json:"coordinates,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RouteInfo returns the trip-status payload for the viewer, who must be the
// booking's rider or its assigned driver.
func (s *RouteInfoService) RouteInfo(ctx context.Context, bookingID, viewerID int64) (_ json.RawMessage, err error) {
	defer obs.Time(ctx, "routeinfo.RouteInfo")(&err)

	b, err := s.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("route info for booking %d: %w", bookingID, err)
	}

	isRider := b.RiderID == viewerID
	isDriver := b.DriverID != nil && *b.DriverID == viewerID
	if !isRider && !isDriver {
		return nil, domain.ErrPermissionDenied
	}

	key := ports.RouteInfoKey(b.ID, b.Status, b.DriverID)
	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(ctx, key); err == nil && ok {
			return json.RawMessage(cached), nil
		}
	}

	payload := routeInfoPayload{
		BookingID:          b.ID,
		Status:             string(b.Status),
		Fare:               b.Fare,
		Passengers:         b.Seats(),
		PickupAddress:      b.PickupAddress,
		DestinationAddress: b.DestinationAddress,
		DistanceKm:         b.EstimatedDistanceKm,
		DurationMin:        b.EstimatedDurationMin,
		EstimatedArrival:   b.EstimatedArrival,
		Stops:              []routeInfoStop{},
	}
	if b.Pickup != nil {
		payload.PickupCoord = b.Pickup.LatLon()
	}
	if b.Destination != nil {
		payload.DestinationCoord = b.Destination.LatLon()
	}

	if b.DriverID != nil {
		payload.Driver = &routeInfoDriver{ID: *b.DriverID}
		if pos, err := s.Drivers.GetPosition(ctx, *b.DriverID); err == nil {
			payload.Driver.Position = pos.Coord.LatLon()
			ts := pos.Timestamp
			payload.Driver.UpdatedAt = &ts
			payload.ETASeconds = s.liveETA(ctx, b, pos.Coord)
		}
	}

	if snap, err := s.Snapshots.ActiveSnapshot(ctx, b.ID); err == nil {
		payload.Route = &routeInfoRoute{
			Polyline:        toLatLon(snap.Geometry),
			DistanceKm:      snap.DistanceKm,
			DurationSeconds: snap.DurationSeconds,
		}
	}

	stops, err := s.Stops.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("route info for booking %d: %w", bookingID, err)
	}
	for _, st := range stops {
		entry := routeInfoStop{
			ID:          st.ID,
			Type:        string(st.Kind),
			Status:      string(st.Status),
			Sequence:    st.Sequence,
			Address:     st.Address,
			CompletedAt: st.CompletedAt,
		}
		if st.Coord != nil {
			entry.Coordinates = st.Coord.LatLon()
		}
		payload.Stops = append(payload.Stops, entry)
	}

	if isDriver && b.Status.InProgress() {
		if tour, err := s.Itinerary.Build(ctx, *b.DriverID); err == nil {
			payload.Tour = tour
		} else {
			s.logger().WarnContext(ctx, "embed itinerary failed", "booking_id", b.ID, "err", err)
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("route info for booking %d: encode: %w", bookingID, err)
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, raw, s.CacheTTL); err != nil {
			s.logger().WarnContext(ctx, "cache route info failed", "booking_id", b.ID, "err", err)
		}
	}
	return raw, nil
}

// DriverLocation is the lightweight polled position view for one booking.
type DriverLocation struct {
	DriverID   int64     `json:"driver_id"`
	Position   []float64 `json:"position"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
	ETASeconds *int      `json:"eta_seconds,omitempty"`
}

// GetDriverLocation returns the assigned driver's live position for the
// booking's rider or driver.
func (s *RouteInfoService) GetDriverLocation(ctx context.Context, bookingID, viewerID int64) (_ *DriverLocation, err error) {
	defer obs.Time(ctx, "routeinfo.GetDriverLocation")(&err)

	b, err := s.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("driver location for booking %d: %w", bookingID, err)
	}
	if b.RiderID != viewerID && (b.DriverID == nil || *b.DriverID != viewerID) {
		return nil, domain.ErrPermissionDenied
	}
	if b.DriverID == nil {
		return nil, domain.ErrNotFound
	}

	pos, err := s.Drivers.GetPosition(ctx, *b.DriverID)
	if err != nil {
		return nil, fmt.Errorf("driver location for booking %d: %w", bookingID, err)
	}

	return &DriverLocation{
		DriverID:   pos.DriverID,
		Position:   pos.Coord.LatLon(),
		Heading:    pos.Heading,
		Speed:      pos.Speed,
		UpdatedAt:  pos.Timestamp,
		ETASeconds: s.liveETA(ctx, b, pos.Coord),
	}, nil
}

// GetCurrentRoute returns the booking's active route snapshot for its rider
// or driver.
func (s *RouteInfoService) GetCurrentRoute(ctx context.Context, bookingID, viewerID int64) (_ *domain.RouteSnapshot, err error) {
	defer obs.Time(ctx, "routeinfo.GetCurrentRoute")(&err)

	b, err := s.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("current route for booking %d: %w", bookingID, err)
	}
	if b.RiderID != viewerID && (b.DriverID == nil || *b.DriverID != viewerID) {
		return nil, domain.ErrPermissionDenied
	}
	return s.Snapshots.ActiveSnapshot(ctx, bookingID)
}

// liveETA routes from the driver's position to the booking's next target and
// returns the duration. Nil on any failure; the payload simply omits it.
func (s *RouteInfoService) liveETA(ctx context.Context, b *domain.Booking, from domain.Coordinates) *int {
	var target *domain.Coordinates
	switch b.Status {
	case domain.StatusAccepted, domain.StatusOnTheWay:
		target = b.Pickup
	case domain.StatusStarted:
		target = b.Destination
	}
	if target == nil {
		return nil
	}

	leg, err := s.Provider.Route(ctx, from, *target, s.Profile)
	if err != nil {
		return nil
	}
	secs := leg.DurationSeconds
	return &secs
}
