package domain

import "time"

type DriverStatus string

const (
	DriverOffline DriverStatus = "Offline"
	DriverOnline  DriverStatus = "Online"
	DriverInTrip  DriverStatus = "In_trip"
)

type RiderStatus string

const (
	RiderAvailable RiderStatus = "Available"
	RiderInTrip    RiderStatus = "In_trip"
)

type Driver struct {
	ID     int64
	Name   string
	Status DriverStatus
}

type Rider struct {
	ID     int64
	Name   string
	Status RiderStatus
}

// Vehicle carries the seat capacity used by the acceptance guard. A vehicle
// is associated with exactly one driver at a time.
type Vehicle struct {
	ID          int64
	DriverID    int64
	PlateNumber string
	MaxCapacity int
}

// DriverPosition is the last-known position of a driver. There is a single
// record per driver, overwritten on each update; route snapshots serve as
// trip history, not this record.
type DriverPosition struct {
	DriverID  int64
	Coord     Coordinates
	Heading   *float64
	Speed     *float64
	Accuracy  *float64
	Timestamp time.Time
}
