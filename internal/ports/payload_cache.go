package ports

import (
	"context"
	"fmt"
	"time"

	"trike-itinerary-service/internal/domain"
)

// PayloadCache is a short-TTL cache for assembled route-info payloads,
// absorbing duplicate polling requests from multiple viewers of one trip.
type PayloadCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RouteInfoKey builds the cache key for a booking's route-info payload.
// Status and driver are part of the key so entries die with the state change.
func RouteInfoKey(bookingID int64, status domain.BookingStatus, driverID *int64) string {
	driver := "none"
	if driverID != nil {
		driver = fmt.Sprintf("%d", *driverID)
	}
	return fmt.Sprintf("route_info:%d:%s:%s", bookingID, status, driver)
}
