package domain

import "time"

type StopKind string

const (
	StopPickup  StopKind = "PICKUP"
	StopDropoff StopKind = "DROPOFF"
)

type StopStatus string

const (
	StopUpcoming  StopStatus = "UPCOMING"
	StopCurrent   StopStatus = "CURRENT"
	StopCompleted StopStatus = "COMPLETED"
)

// Stop is one pickup or dropoff obligation belonging to exactly one booking.
// The ID is a UUID and stable across replanning; Sequence is recomputed on
// every planning pass and is not an identity field. A booking's DROPOFF stop
// may only complete after its PICKUP stop has completed.
type Stop struct {
	ID          string
	BookingID   int64
	Kind        StopKind
	Status      StopStatus
	Sequence    int
	Passengers  int
	Address     string
	Coord       *Coordinates
	Note        string
	CompletedAt *time.Time
	CreatedAt   time.Time
}

func (s *Stop) Completed() bool { return s.Status == StopCompleted }
