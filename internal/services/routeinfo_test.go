package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trike-itinerary-service/internal/adapters/cache"
	"trike-itinerary-service/internal/adapters/directions"
	"trike-itinerary-service/internal/adapters/repositories"
	"trike-itinerary-service/internal/domain"
)

type routeInfoFixture struct {
	store    *repositories.MemoryStore
	provider *directions.MockProvider
	svc      *RouteInfoService
	driverID int64
	riderID  int64
}

func newRouteInfoFixture(t *testing.T, withCache bool) *routeInfoFixture {
	t.Helper()

	store := repositories.NewMemoryStore()
	provider := &directions.MockProvider{}
	planner := &Planner{Stops: store, Drivers: store}

	f := &routeInfoFixture{
		store:    store,
		provider: provider,
		driverID: 7,
		riderID:  1,
		svc: &RouteInfoService{
			Bookings:  store,
			Stops:     store,
			Drivers:   store,
			Snapshots: store,
			Provider:  provider,
			Itinerary: &ItineraryService{
				Bookings: store,
				Riders:   store,
				Drivers:  store,
				Provider: provider,
				Planner:  planner,
				Profile:  "driving-car",
			},
			Profile:  "driving-car",
			CacheTTL: 15 * time.Second,
		},
	}
	if withCache {
		srv := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		f.svc.Cache = cache.NewRedisPayloadCacheFromClient(client)
	}

	store.PutDriver(domain.Driver{ID: f.driverID, Name: "Mang Ben", Status: domain.DriverInTrip})
	store.PutVehicle(domain.Vehicle{ID: 1, DriverID: f.driverID, PlateNumber: "TRK-1021", MaxCapacity: 3})
	store.PutRider(domain.Rider{ID: f.riderID, Name: "Ana Reyes", Status: domain.RiderInTrip})
	return f
}

func (f *routeInfoFixture) acceptedBooking(t *testing.T) *domain.Booking {
	t.Helper()
	ctx := context.Background()

	fare := 85.0
	b := &domain.Booking{
		RiderID:            f.riderID,
		DriverID:           &f.driverID,
		Status:             domain.StatusAccepted,
		Passengers:         2,
		Fare:               &fare,
		PickupAddress:      "Quiapo Church",
		Pickup:             coord(14.5986, 120.9837),
		DestinationAddress: "Blumentritt Station",
		Destination:        coord(14.6227, 120.9830),
	}
	require.NoError(t, f.store.CreateBooking(ctx, b))
	require.NoError(t, f.svc.Itinerary.Planner.EnsureStops(ctx, b))
	require.NoError(t, f.store.SavePosition(ctx, &domain.DriverPosition{
		DriverID: f.driverID, Coord: domain.Coordinates{Lat: 14.5995, Lon: 120.9842},
	}))
	return b
}

func decodePayload(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestRouteInfoForRider(t *testing.T) {
	f := newRouteInfoFixture(t, false)
	b := f.acceptedBooking(t)

	raw, err := f.svc.RouteInfo(context.Background(), b.ID, f.riderID)
	require.NoError(t, err)

	m := decodePayload(t, raw)
	assert.Equal(t, float64(b.ID), m["booking_id"])
	assert.Equal(t, "accepted", m["status"])
	assert.Equal(t, 85.0, m["fare"])
	assert.Equal(t, "Quiapo Church", m["pickup_address"])

	driver, ok := m["driver"].(map[string]any)
	require.True(t, ok, "driver block present when assigned")
	assert.Equal(t, float64(f.driverID), driver["id"])
	assert.NotNil(t, driver["position"])

	assert.NotNil(t, m["eta_seconds"], "rider sees the live ETA to pickup")
	assert.Len(t, m["stops"], 2)
	assert.Nil(t, m["itinerary"], "riders do not get the driver tour")
}

func TestRouteInfoForDriverEmbedsItinerary(t *testing.T) {
	f := newRouteInfoFixture(t, false)
	b := f.acceptedBooking(t)

	raw, err := f.svc.RouteInfo(context.Background(), b.ID, f.driverID)
	require.NoError(t, err)

	m := decodePayload(t, raw)
	tour, ok := m["itinerary"].(map[string]any)
	require.True(t, ok, "drivers get the embedded tour")
	assert.Equal(t, float64(1), tour["total_bookings"])
	assert.Equal(t, 85.0, tour["total_earnings"])
}

func TestRouteInfoPermissionDenied(t *testing.T) {
	f := newRouteInfoFixture(t, false)
	b := f.acceptedBooking(t)

	_, err := f.svc.RouteInfo(context.Background(), b.ID, 999)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestRouteInfoCached(t *testing.T) {
	f := newRouteInfoFixture(t, true)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	first, err := f.svc.RouteInfo(ctx, b.ID, f.riderID)
	require.NoError(t, err)
	callsAfterFirst := f.provider.Calls

	second, err := f.svc.RouteInfo(ctx, b.ID, f.riderID)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, callsAfterFirst, f.provider.Calls, "cached response skips the provider")
}

func TestRouteInfoCacheKeyedByStatus(t *testing.T) {
	f := newRouteInfoFixture(t, true)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	_, err := f.svc.RouteInfo(ctx, b.ID, f.riderID)
	require.NoError(t, err)

	b.Status = domain.StatusStarted
	require.NoError(t, f.store.UpdateBooking(ctx, b))

	raw, err := f.svc.RouteInfo(ctx, b.ID, f.riderID)
	require.NoError(t, err)
	m := decodePayload(t, raw)
	assert.Equal(t, "started", m["status"], "a status change misses the stale cache entry")
}

func TestGetDriverLocation(t *testing.T) {
	f := newRouteInfoFixture(t, false)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	loc, err := f.svc.GetDriverLocation(ctx, b.ID, f.riderID)
	require.NoError(t, err)
	assert.Equal(t, f.driverID, loc.DriverID)
	assert.InDelta(t, 14.5995, loc.Position[0], 1e-9)
	require.NotNil(t, loc.ETASeconds)
	assert.Greater(t, *loc.ETASeconds, 0)

	_, err = f.svc.GetDriverLocation(ctx, b.ID, 999)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestGetDriverLocationUnassigned(t *testing.T) {
	f := newRouteInfoFixture(t, false)
	ctx := context.Background()

	b := &domain.Booking{RiderID: f.riderID, Status: domain.StatusPending, Passengers: 1}
	require.NoError(t, f.store.CreateBooking(ctx, b))

	_, err := f.svc.GetDriverLocation(ctx, b.ID, f.riderID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetCurrentRoute(t *testing.T) {
	f := newRouteInfoFixture(t, false)
	b := f.acceptedBooking(t)
	ctx := context.Background()

	_, err := f.svc.GetCurrentRoute(ctx, b.ID, f.riderID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "no snapshot saved yet")

	require.NoError(t, f.store.SaveSnapshot(ctx, &domain.RouteSnapshot{
		BookingID: b.ID,
		Geometry:  []domain.Coordinates{{Lat: 14.5995, Lon: 120.9842}, *b.Pickup},
	}))

	snap, err := f.svc.GetCurrentRoute(ctx, b.ID, f.riderID)
	require.NoError(t, err)
	assert.True(t, snap.Active)
	assert.Len(t, snap.Geometry, 2)

	_, err = f.svc.GetCurrentRoute(ctx, b.ID, 999)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestRouteInfoPendingBookingWithoutDriver(t *testing.T) {
	f := newRouteInfoFixture(t, false)
	ctx := context.Background()

	b := &domain.Booking{
		RiderID:            f.riderID,
		Status:             domain.StatusPending,
		Passengers:         1,
		PickupAddress:      "Quiapo Church",
		DestinationAddress: "Blumentritt Station",
	}
	require.NoError(t, f.store.CreateBooking(ctx, b))

	raw, err := f.svc.RouteInfo(ctx, b.ID, f.riderID)
	require.NoError(t, err)

	m := decodePayload(t, raw)
	assert.Equal(t, "pending", m["status"])
	assert.Nil(t, m["driver"])
	assert.Nil(t, m["route"])
	assert.Len(t, m["stops"], 0)
}
