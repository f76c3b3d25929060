package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/platform/obs"
	"trike-itinerary-service/internal/ports"
)

// BookingService creates ride requests. Coordinates may be supplied directly
// or resolved from the addresses via the geocoder.
type BookingService struct {
	Bookings ports.BookingRepository
	Riders   ports.RiderRepository
	Provider ports.DirectionsProvider
	Geocoder ports.Geocoder

	Profile string
	Logger  *slog.Logger
}

func (s *BookingService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// CreateBookingInput is the raw request. Pickup and Destination coordinates
// are optional; missing ones are geocoded from the addresses.
type CreateBookingInput struct {
	RiderID            int64
	PickupAddress      string
	Pickup             *domain.Coordinates
	DestinationAddress string
	Destination        *domain.Coordinates
	Passengers         int
}

// CreateBooking validates the request, fills in missing coordinates and
// estimates, and stores a pending booking. A rider with an in-progress
// booking cannot open another one. Estimate failures are tolerated: the
// booking is still created, it just carries no fare or ETA yet.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (_ *domain.Booking, err error) {
	defer obs.Time(ctx, "bookings.CreateBooking")(&err)

	if err := validateBookingInput(in); err != nil {
		return nil, err
	}

	if _, err := s.Riders.GetRider(ctx, in.RiderID); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	active, err := s.Bookings.RiderHasActiveBooking(ctx, in.RiderID)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	if active {
		return nil, domain.ErrRiderAlreadyActive
	}

	b := &domain.Booking{
		RiderID:            in.RiderID,
		PickupAddress:      strings.TrimSpace(in.PickupAddress),
		Pickup:             in.Pickup,
		DestinationAddress: strings.TrimSpace(in.DestinationAddress),
		Destination:        in.Destination,
		Passengers:         in.Passengers,
		Status:             domain.StatusPending,
		BookingTime:        time.Now(),
	}

	s.resolveCoordinates(ctx, b)
	s.estimate(ctx, b)

	if err := s.Bookings.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger().InfoContext(ctx, "booking created",
		"booking_id", b.ID, "rider_id", b.RiderID, "passengers", b.Passengers)
	return b, nil
}

func validateBookingInput(in CreateBookingInput) error {
	if in.Passengers < 1 {
		return &domain.ValidationError{Reason: "passengers must be at least 1"}
	}
	if strings.TrimSpace(in.PickupAddress) == "" {
		return &domain.ValidationError{Reason: "pickup address must be non-empty"}
	}
	if strings.TrimSpace(in.DestinationAddress) == "" {
		return &domain.ValidationError{Reason: "destination address must be non-empty"}
	}
	if in.Pickup != nil && !in.Pickup.Valid() {
		return &domain.ValidationError{Reason: "pickup coordinates out of range"}
	}
	if in.Destination != nil && !in.Destination.Valid() {
		return &domain.ValidationError{Reason: "destination coordinates out of range"}
	}
	return nil
}

// resolveCoordinates geocodes any missing endpoint. Best effort: an address
// that fails to geocode leaves the coordinate nil, and the planner treats
// such stops as locate-last.
func (s *BookingService) resolveCoordinates(ctx context.Context, b *domain.Booking) {
	if s.Geocoder == nil {
		return
	}
	if b.Pickup == nil {
		if c, err := s.Geocoder.Geocode(ctx, b.PickupAddress); err == nil {
			b.Pickup = &c
		} else {
			s.logger().WarnContext(ctx, "geocode pickup failed", "address", b.PickupAddress, "err", err)
		}
	}
	if b.Destination == nil {
		if c, err := s.Geocoder.Geocode(ctx, b.DestinationAddress); err == nil {
			b.Destination = &c
		} else {
			s.logger().WarnContext(ctx, "geocode destination failed", "address", b.DestinationAddress, "err", err)
		}
	}
}

// estimate fills distance, duration, ETA, and fare from a pickup-to-
// destination routing call. Skipped when either endpoint is unlocated; a
// degenerate too-close trip gets the minimum fare on the straight distance.
func (s *BookingService) estimate(ctx context.Context, b *domain.Booking) {
	if b.Pickup == nil || b.Destination == nil {
		return
	}

	leg, err := s.Provider.Route(ctx, *b.Pickup, *b.Destination, s.Profile)
	if err != nil {
		s.logger().WarnContext(ctx, "estimate route failed", "booking_id", b.ID, "err", err)
		return
	}

	applyLegEstimates(b, leg)
	fare := domain.EstimateFare(leg.DistanceKm)
	b.Fare = &fare
}
