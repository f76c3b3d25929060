package repositories

import (
	"context"
	"sync"
	"time"

	"trike-itinerary-service/internal/domain"
)

// MemoryStore is an in-memory implementation of every repository port. It
// backs tests and local runs without a database. Records are stored by value
// and copied on the way out so callers mutate snapshots, not shared state.
type MemoryStore struct {
	mu sync.RWMutex

	nextBookingID  int64
	nextSnapshotID int64

	bookings  map[int64]domain.Booking
	stops     map[string]domain.Stop
	drivers   map[int64]domain.Driver
	riders    map[int64]domain.Rider
	vehicles  map[int64]domain.Vehicle // keyed by driver id
	positions map[int64]domain.DriverPosition
	snapshots map[int64][]domain.RouteSnapshot // keyed by booking id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextBookingID:  1,
		nextSnapshotID: 1,
		bookings:       make(map[int64]domain.Booking),
		stops:          make(map[string]domain.Stop),
		drivers:        make(map[int64]domain.Driver),
		riders:         make(map[int64]domain.Rider),
		vehicles:       make(map[int64]domain.Vehicle),
		positions:      make(map[int64]domain.DriverPosition),
		snapshots:      make(map[int64][]domain.RouteSnapshot),
	}
}

// Seed helpers, not part of the ports.

func (m *MemoryStore) PutDriver(d domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
}

func (m *MemoryStore) PutRider(r domain.Rider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[r.ID] = r
}

func (m *MemoryStore) PutVehicle(v domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.DriverID] = v
}

// BookingRepository

func (m *MemoryStore) GetBooking(_ context.Context, id int64) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (m *MemoryStore) CreateBooking(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == 0 {
		b.ID = m.nextBookingID
		m.nextBookingID++
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) UpdateBooking(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return domain.ErrNotFound
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) ListActiveByDriver(_ context.Context, driverID int64) ([]*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Booking, 0, 4)
	for _, b := range m.bookings {
		if b.DriverID != nil && *b.DriverID == driverID && b.Status.InProgress() {
			cp := b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) RiderHasActiveBooking(_ context.Context, riderID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.RiderID == riderID && b.Status.InProgress() {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ClaimPending(_ context.Context, bookingID, driverID int64, startTime time.Time) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok || b.Status != domain.StatusPending || b.DriverID != nil {
		return nil, domain.ErrNotFound
	}

	b.DriverID = &driverID
	b.Status = domain.StatusAccepted
	b.StartTime = &startTime
	m.bookings[bookingID] = b

	cp := b
	return &cp, nil
}

// StopRepository

func (m *MemoryStore) GetStop(_ context.Context, id string) (*domain.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) CreateStop(_ context.Context, s *domain.Stop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops[s.ID] = *s
	return nil
}

func (m *MemoryStore) UpdateStop(_ context.Context, s *domain.Stop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stops[s.ID]; !ok {
		return domain.ErrNotFound
	}
	m.stops[s.ID] = *s
	return nil
}

func (m *MemoryStore) ListByBooking(_ context.Context, bookingID int64) ([]*domain.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Stop, 0, 2)
	for _, s := range m.stops {
		if s.BookingID == bookingID {
			cp := s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListActiveStopsByDriver(_ context.Context, driverID int64) ([]*domain.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make(map[int64]bool)
	for _, b := range m.bookings {
		if b.DriverID != nil && *b.DriverID == driverID && b.Status.InProgress() {
			active[b.ID] = true
		}
	}

	out := make([]*domain.Stop, 0, 2*len(active))
	for _, s := range m.stops {
		if active[s.BookingID] {
			cp := s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RiderRepository

func (m *MemoryStore) GetRider(_ context.Context, id int64) (*domain.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.riders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) SetRiderStatus(_ context.Context, id int64, status domain.RiderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.riders[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	m.riders[id] = r
	return nil
}

// DriverRepository

func (m *MemoryStore) GetDriver(_ context.Context, id int64) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (m *MemoryStore) SetDriverStatus(_ context.Context, id int64, status domain.DriverStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	m.drivers[id] = d
	return nil
}

func (m *MemoryStore) GetVehicle(_ context.Context, driverID int64) (*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[driverID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (m *MemoryStore) GetPosition(_ context.Context, driverID int64) (*domain.DriverPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[driverID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) SavePosition(_ context.Context, p *domain.DriverPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.DriverID] = *p
	return nil
}

// RouteSnapshotRepository

func (m *MemoryStore) SaveSnapshot(_ context.Context, s *domain.RouteSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.snapshots[s.BookingID]
	for i := range existing {
		existing[i].Active = false
	}

	s.ID = m.nextSnapshotID
	m.nextSnapshotID++
	s.Active = true
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.snapshots[s.BookingID] = append(existing, *s)
	return nil
}

func (m *MemoryStore) ActiveSnapshot(_ context.Context, bookingID int64) (*domain.RouteSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.snapshots[bookingID] {
		if s.Active {
			cp := s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}
