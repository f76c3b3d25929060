package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested resource is not found, or when
	// a booking is no longer in the state an operation requires (e.g. a
	// concurrent accept already claimed it).
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied is returned when the actor is neither the booking's
	// rider nor its driver.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCapacityExceeded is returned when accepting a booking would exceed
	// the driver's vehicle capacity.
	ErrCapacityExceeded = errors.New("vehicle capacity would be exceeded")

	// ErrDetourTooFar is returned when a pickup lies outside the detour
	// radius of the driver's current route approximation.
	ErrDetourTooFar = errors.New("pickup is too far from the driver's current route")

	// ErrRiderAlreadyActive is returned when the rider already has an
	// in-progress booking.
	ErrRiderAlreadyActive = errors.New("rider already has an active trip")

	// ErrNotCancellable is returned when a booking can no longer be cancelled.
	ErrNotCancellable = errors.New("booking can no longer be cancelled")

	// ErrPickupNotCompleted is returned when a dropoff completion is attempted
	// before the booking's pickup has been completed.
	ErrPickupNotCompleted = errors.New("pickup must be completed before dropoff")

	// ErrProviderUnavailable marks a failed directions/geocode call. Callers
	// fall back to straight-line segments rather than aborting.
	ErrProviderUnavailable = errors.New("route provider unavailable")
)

// ValidationError rejects malformed input before any state mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// ProximityError reports a stop completion attempted from too far away.
type ProximityError struct {
	DistanceMeters float64
	RequiredMeters float64
}

func (e *ProximityError) Error() string {
	return fmt.Sprintf("must be within %.0fm of the stop location, currently %.1fm away",
		e.RequiredMeters, e.DistanceMeters)
}
