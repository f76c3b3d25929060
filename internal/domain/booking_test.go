package domain

import "testing"

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status      BookingStatus
		inProgress  bool
		terminal    bool
		cancellable bool
	}{
		{StatusPending, false, false, true},
		{StatusAccepted, true, false, true},
		{StatusOnTheWay, true, false, true},
		{StatusStarted, true, false, false},
		{StatusCompleted, false, true, false},
		{StatusCancelledByRider, false, true, false},
		{StatusCancelledByDriver, false, true, false},
		{StatusNoDriverFound, false, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.InProgress(); got != tt.inProgress {
				t.Errorf("InProgress() = %v, want %v", got, tt.inProgress)
			}
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.RiderCancellable(); got != tt.cancellable {
				t.Errorf("RiderCancellable() = %v, want %v", got, tt.cancellable)
			}
		})
	}
}

func TestSeats(t *testing.T) {
	if got := (&Booking{Passengers: 3}).Seats(); got != 3 {
		t.Fatalf("Seats() = %d, want 3", got)
	}
	if got := (&Booking{}).Seats(); got != 1 {
		t.Fatalf("Seats() with zero passengers = %d, want 1", got)
	}
}

func TestEstimateFare(t *testing.T) {
	tests := []struct {
		km   float64
		want float64
	}{
		{0, 40},
		{1, 55},
		{2.5, 77.5},
		{4, 100},
	}
	for _, tt := range tests {
		if got := EstimateFare(tt.km); got != tt.want {
			t.Errorf("EstimateFare(%v) = %v, want %v", tt.km, got, tt.want)
		}
	}
}
