package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"trike-itinerary-service/internal/domain"
)

func TestClaimPendingSingleWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	b := &domain.Booking{RiderID: 1, Status: domain.StatusPending, Passengers: 1}
	if err := store.CreateBooking(ctx, b); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	const drivers = 8
	var wg sync.WaitGroup
	wins := make(chan int64, drivers)

	for d := int64(1); d <= drivers; d++ {
		wg.Add(1)
		go func(driverID int64) {
			defer wg.Done()
			if _, err := store.ClaimPending(ctx, b.ID, driverID, time.Now()); err == nil {
				wins <- driverID
			}
		}(d)
	}
	wg.Wait()
	close(wins)

	var winners []int64
	for id := range wins {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winning driver, got %d: %v", len(winners), winners)
	}

	got, err := store.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if got.Status != domain.StatusAccepted {
		t.Fatalf("status = %q, want %q", got.Status, domain.StatusAccepted)
	}
	if got.DriverID == nil || *got.DriverID != winners[0] {
		t.Fatalf("driver id = %v, want %d", got.DriverID, winners[0])
	}
}

func TestClaimPendingAlreadyClaimed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	driverID := int64(7)
	b := &domain.Booking{RiderID: 1, DriverID: &driverID, Status: domain.StatusAccepted}
	if err := store.CreateBooking(ctx, b); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if _, err := store.ClaimPending(ctx, b.ID, 8, time.Now()); err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveSnapshotDeactivatesPrevious(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &domain.RouteSnapshot{BookingID: 9, DistanceKm: 1.2}
	second := &domain.RouteSnapshot{BookingID: 9, DistanceKm: 3.4}
	if err := store.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveSnapshot(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	active, err := store.ActiveSnapshot(ctx, 9)
	if err != nil {
		t.Fatalf("active snapshot: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("active snapshot id = %d, want %d", active.ID, second.ID)
	}
	if active.DistanceKm != 3.4 {
		t.Fatalf("active distance = %v, want 3.4", active.DistanceKm)
	}
}

func TestListActiveStopsByDriverFiltersTerminal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	driverID := int64(5)
	active := &domain.Booking{RiderID: 1, DriverID: &driverID, Status: domain.StatusStarted}
	done := &domain.Booking{RiderID: 2, DriverID: &driverID, Status: domain.StatusCompleted}
	for _, b := range []*domain.Booking{active, done} {
		if err := store.CreateBooking(ctx, b); err != nil {
			t.Fatalf("create booking: %v", err)
		}
	}

	stops := []*domain.Stop{
		{ID: "a", BookingID: active.ID, Kind: domain.StopPickup},
		{ID: "b", BookingID: active.ID, Kind: domain.StopDropoff},
		{ID: "c", BookingID: done.ID, Kind: domain.StopPickup},
	}
	for _, s := range stops {
		if err := store.CreateStop(ctx, s); err != nil {
			t.Fatalf("create stop: %v", err)
		}
	}

	got, err := store.ListActiveStopsByDriver(ctx, driverID)
	if err != nil {
		t.Fatalf("list stops: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d stops, want 2", len(got))
	}
	for _, s := range got {
		if s.BookingID != active.ID {
			t.Fatalf("stop %s belongs to booking %d, want %d", s.ID, s.BookingID, active.ID)
		}
	}
}
