package dto

// CreateBookingRequest opens a new ride request. Coordinates are optional;
// when absent the server geocodes the addresses.
type CreateBookingRequest struct {
	RiderID            int64    `json:"rider_id"`
	PickupAddress      string   `json:"pickup_address"`
	PickupLat          *float64 `json:"pickup_lat,omitempty"`
	PickupLon          *float64 `json:"pickup_lon,omitempty"`
	DestinationAddress string   `json:"destination_address"`
	DestinationLat     *float64 `json:"destination_lat,omitempty"`
	DestinationLon     *float64 `json:"destination_lon,omitempty"`
	Passengers         int      `json:"passengers"`
}

type AcceptBookingRequest struct {
	DriverID int64 `json:"driver_id"`
}

// CancelBookingRequest identifies who is cancelling. Role is "rider" or
// "driver"; the actor must match the booking's rider or assigned driver.
type CancelBookingRequest struct {
	ActorID int64  `json:"actor_id"`
	Role    string `json:"role"`
}

type RerouteRequest struct {
	DriverID int64 `json:"driver_id"`
}

type UpdateLocationRequest struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Heading  *float64 `json:"heading,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}
