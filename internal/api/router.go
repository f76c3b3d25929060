package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trike-itinerary-service/internal/api/handlers"
	"trike-itinerary-service/internal/services"
)

// Services bundles everything the router needs.
type Services struct {
	Bookings  *services.BookingService
	Trips     *services.TripService
	Itinerary *services.ItineraryService
	RouteInfo *services.RouteInfoService
	Location  *services.LocationService
}

// NewRouter wires all endpoints onto a ServeMux with request logging.
func NewRouter(svc Services) http.Handler {
	bookings := &handlers.BookingHandler{
		Bookings:  svc.Bookings,
		Trips:     svc.Trips,
		RouteInfo: svc.RouteInfo,
		Location:  svc.Location,
	}
	drivers := &handlers.DriverHandler{
		Itinerary: svc.Itinerary,
		Trips:     svc.Trips,
		Location:  svc.Location,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/bookings", bookings.Create)
	mux.HandleFunc("GET /api/bookings/{id}/route-info", bookings.GetRouteInfo)
	mux.HandleFunc("GET /api/bookings/{id}/driver-location", bookings.GetDriverLocation)
	mux.HandleFunc("GET /api/bookings/{id}/route", bookings.GetCurrentRoute)
	mux.HandleFunc("POST /api/bookings/{id}/accept", bookings.Accept)
	mux.HandleFunc("POST /api/bookings/{id}/cancel", bookings.Cancel)
	mux.HandleFunc("POST /api/bookings/{id}/reroute", bookings.Reroute)

	mux.HandleFunc("GET /api/drivers/{id}/itinerary", drivers.GetItinerary)
	mux.HandleFunc("POST /api/drivers/{id}/location", drivers.UpdateLocation)
	mux.HandleFunc("POST /api/drivers/{id}/stops/{stopID}/complete", drivers.CompleteStop)

	return withRequestLogging(mux)
}
