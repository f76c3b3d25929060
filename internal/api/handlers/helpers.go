package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"trike-itinerary-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(raw); err != nil {
		slog.Error("write response", "err", err)
	}
}

type errorBody struct {
	Error          string   `json:"error"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	RequiredMeters *float64 `json:"required_meters,omitempty"`
}

// writeError maps domain errors onto HTTP statuses: missing resources 404,
// permission failures 403, guard rejections 409, bad requests 400, provider
// outages 502, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	var perr *domain.ProximityError

	switch {
	case errors.As(err, &perr):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:          perr.Error(),
			DistanceMeters: &perr.DistanceMeters,
			RequiredMeters: &perr.RequiredMeters,
		})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error()})
	case errors.Is(err, domain.ErrPickupNotCompleted),
		errors.Is(err, domain.ErrNotCancellable):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "permission denied"})
	case errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrDetourTooFar),
		errors.Is(err, domain.ErrRiderAlreadyActive):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "routing provider unavailable"})
	default:
		slog.Error("unhandled request error", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Reason: "invalid " + name}
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Reason: "invalid " + name}
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Reason: "malformed request body"}
	}
	return nil
}
