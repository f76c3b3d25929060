package domain

import "time"

// BookingStatus enumerates the booking lifecycle:
// pending -> accepted -> on_the_way -> started -> terminal.
type BookingStatus string

const (
	StatusPending           BookingStatus = "pending"
	StatusAccepted          BookingStatus = "accepted"
	StatusOnTheWay          BookingStatus = "on_the_way"
	StatusStarted           BookingStatus = "started"
	StatusCompleted         BookingStatus = "completed"
	StatusCancelledByRider  BookingStatus = "cancelled_by_rider"
	StatusCancelledByDriver BookingStatus = "cancelled_by_driver"
	StatusNoDriverFound     BookingStatus = "no_driver_found"
)

// InProgress reports whether a driver is actively serving the booking.
// on_the_way is a reserved intermediate state never set by any transition
// here; it counts as in progress for capacity and planning purposes.
func (s BookingStatus) InProgress() bool {
	switch s {
	case StatusAccepted, StatusOnTheWay, StatusStarted:
		return true
	}
	return false
}

// Terminal reports whether the booking can no longer change state.
func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelledByRider, StatusCancelledByDriver, StatusNoDriverFound:
		return true
	}
	return false
}

// RiderCancellable reports whether a rider may still cancel the booking.
func (s BookingStatus) RiderCancellable() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusOnTheWay:
		return true
	}
	return false
}

// Booking is a single transport request from a rider. DriverID is non-nil
// exactly while the booking is in progress. Bookings are never deleted; they
// transition to a terminal status instead.
type Booking struct {
	ID                 int64
	RiderID            int64
	DriverID           *int64
	PickupAddress      string
	Pickup             *Coordinates
	DestinationAddress string
	Destination        *Coordinates
	Passengers         int
	Status             BookingStatus

	Fare                 *float64
	EstimatedDistanceKm  *float64
	EstimatedDurationMin *int
	EstimatedArrival     *time.Time

	BookingTime time.Time
	StartTime   *time.Time
	EndTime     *time.Time
}

// Seats returns the passenger count, treating missing/zero as one.
func (b *Booking) Seats() int {
	if b.Passengers < 1 {
		return 1
	}
	return b.Passengers
}
