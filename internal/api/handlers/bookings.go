package handlers

import (
	"net/http"

	"trike-itinerary-service/internal/api/dto"
	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/services"
)

// BookingHandler serves the booking lifecycle endpoints.
type BookingHandler struct {
	Bookings  *services.BookingService
	Trips     *services.TripService
	RouteInfo *services.RouteInfoService
	Location  *services.LocationService
}

type bookingResponse struct {
	ID                 int64     `json:"id"`
	RiderID            int64     `json:"rider_id"`
	DriverID           *int64    `json:"driver_id,omitempty"`
	Status             string    `json:"status"`
	PickupAddress      string    `json:"pickup_address"`
	PickupCoord        []float64 `json:"pickup_coordinates,omitempty"`
	DestinationAddress string    `json:"destination_address"`
	DestinationCoord   []float64 `json:"destination_coordinates,omitempty"`
	Passengers         int       `json:"passengers"`
	Fare               *float64  `json:"fare,omitempty"`
	DistanceKm         *float64  `json:"estimated_distance_km,omitempty"`
	DurationMin        *int      `json:"estimated_duration_min,omitempty"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:                 b.ID,
		RiderID:            b.RiderID,
		DriverID:           b.DriverID,
		Status:             string(b.Status),
		PickupAddress:      b.PickupAddress,
		DestinationAddress: b.DestinationAddress,
		Passengers:         b.Seats(),
		Fare:               b.Fare,
		DistanceKm:         b.EstimatedDistanceKm,
		DurationMin:        b.EstimatedDurationMin,
	}
	if b.Pickup != nil {
		resp.PickupCoord = b.Pickup.LatLon()
	}
	if b.Destination != nil {
		resp.DestinationCoord = b.Destination.LatLon()
	}
	return resp
}

// Create handles POST /api/bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	in := services.CreateBookingInput{
		RiderID:            req.RiderID,
		PickupAddress:      req.PickupAddress,
		DestinationAddress: req.DestinationAddress,
		Passengers:         req.Passengers,
	}
	if req.PickupLat != nil && req.PickupLon != nil {
		in.Pickup = &domain.Coordinates{Lat: *req.PickupLat, Lon: *req.PickupLon}
	}
	if req.DestinationLat != nil && req.DestinationLon != nil {
		in.Destination = &domain.Coordinates{Lat: *req.DestinationLat, Lon: *req.DestinationLon}
	}

	b, err := h.Bookings.CreateBooking(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

// Accept handles POST /api/bookings/{id}/accept.
func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req dto.AcceptBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	b, err := h.Trips.Accept(r.Context(), bookingID, req.DriverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// Cancel handles POST /api/bookings/{id}/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req dto.CancelBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var b *domain.Booking
	switch req.Role {
	case "rider":
		b, err = h.Trips.CancelByRider(r.Context(), bookingID, req.ActorID)
	case "driver":
		b, err = h.Trips.CancelByDriver(r.Context(), bookingID, req.ActorID)
	default:
		writeError(w, &domain.ValidationError{Reason: `role must be "rider" or "driver"`})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// GetRouteInfo handles GET /api/bookings/{id}/route-info?viewer_id=N.
func (h *BookingHandler) GetRouteInfo(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	viewerID, err := queryID(r, "viewer_id")
	if err != nil {
		writeError(w, err)
		return
	}

	raw, err := h.RouteInfo.RouteInfo(r.Context(), bookingID, viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

// GetDriverLocation handles GET /api/bookings/{id}/driver-location?viewer_id=N.
func (h *BookingHandler) GetDriverLocation(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	viewerID, err := queryID(r, "viewer_id")
	if err != nil {
		writeError(w, err)
		return
	}

	loc, err := h.RouteInfo.GetDriverLocation(r.Context(), bookingID, viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// GetCurrentRoute handles GET /api/bookings/{id}/route?viewer_id=N.
func (h *BookingHandler) GetCurrentRoute(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	viewerID, err := queryID(r, "viewer_id")
	if err != nil {
		writeError(w, err)
		return
	}

	snap, err := h.RouteInfo.GetCurrentRoute(r.Context(), bookingID, viewerID)
	if err != nil {
		writeError(w, err)
		return
	}

	polyline := make([][]float64, len(snap.Geometry))
	for i, c := range snap.Geometry {
		polyline[i] = c.LatLon()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"booking_id":       snap.BookingID,
		"polyline":         polyline,
		"distance_km":      snap.DistanceKm,
		"duration_seconds": snap.DurationSeconds,
		"created_at":       snap.CreatedAt,
	})
}

// Reroute handles POST /api/bookings/{id}/reroute.
func (h *BookingHandler) Reroute(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req dto.RerouteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	snap, err := h.Location.ManualReroute(r.Context(), bookingID, req.DriverID)
	if err != nil {
		writeError(w, err)
		return
	}

	polyline := make([][]float64, len(snap.Geometry))
	for i, c := range snap.Geometry {
		polyline[i] = c.LatLon()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"booking_id":       snap.BookingID,
		"polyline":         polyline,
		"distance_km":      snap.DistanceKm,
		"duration_seconds": snap.DurationSeconds,
	})
}
