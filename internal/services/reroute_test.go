package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trike-itinerary-service/internal/adapters/directions"
	"trike-itinerary-service/internal/adapters/repositories"
	"trike-itinerary-service/internal/domain"
	"trike-itinerary-service/internal/ports"
)

func TestShouldReroute(t *testing.T) {
	onRoute := domain.Coordinates{Lat: 14.6010, Lon: 120.9850}
	snap := &domain.RouteSnapshot{
		Geometry: []domain.Coordinates{
			{Lat: 14.5995, Lon: 120.9842},
			onRoute,
			{Lat: 14.6100, Lon: 120.9900},
		},
	}

	assert.False(t, ShouldReroute(onRoute, snap, 100), "standing on the route")

	// ~55 m north of a route point: inside the 100 m threshold.
	near := domain.Coordinates{Lat: onRoute.Lat + 0.0005, Lon: onRoute.Lon}
	assert.False(t, ShouldReroute(near, snap, 100))

	// ~550 m off every point.
	far := domain.Coordinates{Lat: onRoute.Lat + 0.005, Lon: onRoute.Lon + 0.005}
	assert.True(t, ShouldReroute(far, snap, 100))

	assert.True(t, ShouldReroute(onRoute, nil, 100), "no snapshot means reroute")
	assert.True(t, ShouldReroute(onRoute, &domain.RouteSnapshot{}, 100), "empty geometry means reroute")
}

type locationFixture struct {
	store    *repositories.MemoryStore
	provider *directions.MockProvider
	svc      *LocationService
	driverID int64
}

func newLocationFixture(t *testing.T) *locationFixture {
	t.Helper()

	store := repositories.NewMemoryStore()
	provider := &directions.MockProvider{}
	f := &locationFixture{
		store:    store,
		provider: provider,
		driverID: 7,
		svc: &LocationService{
			Bookings:                 store,
			Drivers:                  store,
			Snapshots:                store,
			Provider:                 provider,
			DeviationThresholdMeters: 100,
			Profile:                  "driving-car",
		},
	}
	store.PutDriver(domain.Driver{ID: f.driverID, Name: "Mang Ben", Status: domain.DriverInTrip})
	return f
}

func (f *locationFixture) acceptedBooking(t *testing.T) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		RiderID:     1,
		DriverID:    &f.driverID,
		Status:      domain.StatusAccepted,
		Passengers:  1,
		Pickup:      coord(14.6010, 120.9850),
		Destination: coord(14.6227, 120.9830),
	}
	require.NoError(t, f.store.CreateBooking(context.Background(), b))
	return b
}

func TestUpdateLocationRejectsInvalidCoordinates(t *testing.T) {
	f := newLocationFixture(t)

	err := f.svc.UpdateLocation(context.Background(), &domain.DriverPosition{
		DriverID: f.driverID,
		Coord:    domain.Coordinates{Lat: 95, Lon: 120},
	})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateLocationCreatesSnapshotWhenNoneExists(t *testing.T) {
	f := newLocationFixture(t)
	ctx := context.Background()
	b := f.acceptedBooking(t)

	err := f.svc.UpdateLocation(ctx, &domain.DriverPosition{
		DriverID: f.driverID,
		Coord:    domain.Coordinates{Lat: 14.5995, Lon: 120.9842},
	})
	require.NoError(t, err)

	snap, err := f.store.ActiveSnapshot(ctx, b.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Geometry)
	assert.Equal(t, 1, f.provider.Calls)

	updated, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.EstimatedDistanceKm)
	assert.Greater(t, *updated.EstimatedDistanceKm, 0.0)
	assert.NotNil(t, updated.EstimatedArrival)

	pos, err := f.store.GetPosition(ctx, f.driverID)
	require.NoError(t, err)
	assert.InDelta(t, 14.5995, pos.Coord.Lat, 1e-9)
}

func TestUpdateLocationOnRouteDoesNotReroute(t *testing.T) {
	f := newLocationFixture(t)
	ctx := context.Background()
	b := f.acceptedBooking(t)

	onRoute := domain.Coordinates{Lat: 14.6000, Lon: 120.9845}
	require.NoError(t, f.store.SaveSnapshot(ctx, &domain.RouteSnapshot{
		BookingID: b.ID,
		Geometry:  []domain.Coordinates{{Lat: 14.5995, Lon: 120.9842}, onRoute, *b.Pickup},
	}))

	err := f.svc.UpdateLocation(ctx, &domain.DriverPosition{DriverID: f.driverID, Coord: onRoute})
	require.NoError(t, err)
	assert.Equal(t, 0, f.provider.Calls)
}

func TestUpdateLocationOffRouteReroutes(t *testing.T) {
	f := newLocationFixture(t)
	ctx := context.Background()
	b := f.acceptedBooking(t)

	first := &domain.RouteSnapshot{
		BookingID: b.ID,
		Geometry:  []domain.Coordinates{{Lat: 14.5995, Lon: 120.9842}, *b.Pickup},
	}
	require.NoError(t, f.store.SaveSnapshot(ctx, first))

	// ~1.1 km east of the stored line.
	err := f.svc.UpdateLocation(ctx, &domain.DriverPosition{
		DriverID: f.driverID,
		Coord:    domain.Coordinates{Lat: 14.6000, Lon: 120.9950},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.provider.Calls)

	snap, err := f.store.ActiveSnapshot(ctx, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, snap.ID, "a fresh snapshot replaces the stale one")
}

func TestUpdateLocationProviderDownStillSavesPosition(t *testing.T) {
	f := newLocationFixture(t)
	ctx := context.Background()
	f.acceptedBooking(t)
	f.provider.RouteFn = func(start, end domain.Coordinates) (ports.RouteLeg, error) {
		return ports.RouteLeg{}, domain.ErrProviderUnavailable
	}

	pos := &domain.DriverPosition{
		DriverID: f.driverID,
		Coord:    domain.Coordinates{Lat: 14.5995, Lon: 120.9842},
	}
	require.NoError(t, f.svc.UpdateLocation(ctx, pos), "routing outage must not fail the position update")

	saved, err := f.store.GetPosition(ctx, f.driverID)
	require.NoError(t, err)
	assert.InDelta(t, pos.Coord.Lat, saved.Coord.Lat, 1e-9)
}

func TestRouteTargetFollowsStatus(t *testing.T) {
	f := newLocationFixture(t)
	b := f.acceptedBooking(t)

	assert.Equal(t, b.Pickup, f.svc.routeTarget(b))

	b.Status = domain.StatusStarted
	assert.Equal(t, b.Destination, f.svc.routeTarget(b))

	b.Status = domain.StatusCompleted
	assert.Nil(t, f.svc.routeTarget(b))
}

func TestManualReroute(t *testing.T) {
	f := newLocationFixture(t)
	ctx := context.Background()
	b := f.acceptedBooking(t)
	require.NoError(t, f.store.SavePosition(ctx, &domain.DriverPosition{
		DriverID: f.driverID,
		Coord:    domain.Coordinates{Lat: 14.5995, Lon: 120.9842},
	}))

	snap, err := f.svc.ManualReroute(ctx, b.ID, f.driverID)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Geometry)
	assert.True(t, snap.Active)
}

func TestManualRerouteWrongDriver(t *testing.T) {
	f := newLocationFixture(t)
	b := f.acceptedBooking(t)

	_, err := f.svc.ManualReroute(context.Background(), b.ID, 999)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}
