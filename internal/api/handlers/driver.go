package handlers

import (
	"net/http"
	"time"

	"trike-itinerary-service/internal/api/dto"
	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/services"
)

// DriverHandler serves the driver-facing endpoints: itinerary, location
// updates, and stop completion.
type DriverHandler struct {
	Itinerary *services.ItineraryService
	Trips     *services.TripService
	Location  *services.LocationService
}

// GetItinerary handles GET /api/drivers/{id}/itinerary.
func (h *DriverHandler) GetItinerary(w http.ResponseWriter, r *http.Request) {
	driverID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	it, err := h.Itinerary.Build(r.Context(), driverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// UpdateLocation handles POST /api/drivers/{id}/location.
func (h *DriverHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	driverID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req dto.UpdateLocationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	pos := &domain.DriverPosition{
		DriverID:  driverID,
		Coord:     domain.Coordinates{Lat: req.Lat, Lon: req.Lon},
		Heading:   req.Heading,
		Speed:     req.Speed,
		Accuracy:  req.Accuracy,
		Timestamp: time.Now(),
	}
	if err := h.Location.UpdateLocation(r.Context(), pos); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CompleteStop handles POST /api/drivers/{id}/stops/{stopID}/complete.
func (h *DriverHandler) CompleteStop(w http.ResponseWriter, r *http.Request) {
	driverID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	stopID := r.PathValue("stopID")
	if stopID == "" {
		writeError(w, &domain.ValidationError{Reason: "invalid stopID"})
		return
	}

	stop, err := h.Trips.CompleteStop(r.Context(), stopID, driverID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"id":         stop.ID,
		"booking_id": stop.BookingID,
		"type":       stop.Kind,
		"status":     stop.Status,
		"sequence":   stop.Sequence,
	}
	if stop.CompletedAt != nil {
		resp["completed_at"] = stop.CompletedAt
	}
	writeJSON(w, http.StatusOK, resp)
}
