package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trike-itinerary-service/internal/domain"
)

// PostgresStore implements every repository port on top of database/sql with
// the pgx driver. One store covers all aggregates; the tables are small and
// the queries per entity are few enough that splitting types buys nothing.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const bookingColumns = `id, rider_id, driver_id,
	pickup_address, pickup_lat, pickup_lon,
	destination_address, destination_lat, destination_lon,
	passengers, status, fare, est_distance_km, est_duration_min,
	estimated_arrival, booking_time, start_time, end_time`

func scanBooking(row interface{ Scan(...any) error }) (*domain.Booking, error) {
	var (
		b            domain.Booking
		driverID     sql.NullInt64
		pickupLat    sql.NullFloat64
		pickupLon    sql.NullFloat64
		destLat      sql.NullFloat64
		destLon      sql.NullFloat64
		fare         sql.NullFloat64
		estKm        sql.NullFloat64
		estMin       sql.NullInt64
		estArrival   sql.NullTime
		startTime    sql.NullTime
		endTime      sql.NullTime
	)

	err := row.Scan(&b.ID, &b.RiderID, &driverID,
		&b.PickupAddress, &pickupLat, &pickupLon,
		&b.DestinationAddress, &destLat, &destLon,
		&b.Passengers, &b.Status, &fare, &estKm, &estMin,
		&estArrival, &b.BookingTime, &startTime, &endTime)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		b.DriverID = &driverID.Int64
	}
	if pickupLat.Valid && pickupLon.Valid {
		b.Pickup = &domain.Coordinates{Lat: pickupLat.Float64, Lon: pickupLon.Float64}
	}
	if destLat.Valid && destLon.Valid {
		b.Destination = &domain.Coordinates{Lat: destLat.Float64, Lon: destLon.Float64}
	}
	if fare.Valid {
		b.Fare = &fare.Float64
	}
	if estKm.Valid {
		b.EstimatedDistanceKm = &estKm.Float64
	}
	if estMin.Valid {
		v := int(estMin.Int64)
		b.EstimatedDurationMin = &v
	}
	if estArrival.Valid {
		b.EstimatedArrival = &estArrival.Time
	}
	if startTime.Valid {
		b.StartTime = &startTime.Time
	}
	if endTime.Valid {
		b.EndTime = &endTime.Time
	}
	return &b, nil
}

func nullCoord(c *domain.Coordinates) (lat, lon sql.NullFloat64) {
	if c != nil {
		lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: c.Lon, Valid: true}
	}
	return lat, lon
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

// BookingRepository

func (s *PostgresStore) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

func (s *PostgresStore) CreateBooking(ctx context.Context, b *domain.Booking) error {
	pickupLat, pickupLon := nullCoord(b.Pickup)
	destLat, destLon := nullCoord(b.Destination)
	if b.BookingTime.IsZero() {
		b.BookingTime = time.Now()
	}

	var driverID sql.NullInt64
	if b.DriverID != nil {
		driverID = sql.NullInt64{Int64: *b.DriverID, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bookings (rider_id, driver_id,
			pickup_address, pickup_lat, pickup_lon,
			destination_address, destination_lat, destination_lon,
			passengers, status, fare, est_distance_km, est_duration_min,
			estimated_arrival, booking_time, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id`,
		b.RiderID, driverID,
		b.PickupAddress, pickupLat, pickupLon,
		b.DestinationAddress, destLat, destLon,
		b.Passengers, b.Status, nullFloat(b.Fare), nullFloat(b.EstimatedDistanceKm), nullInt(b.EstimatedDurationMin),
		nullTime(b.EstimatedArrival), b.BookingTime, nullTime(b.StartTime), nullTime(b.EndTime),
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBooking(ctx context.Context, b *domain.Booking) error {
	pickupLat, pickupLon := nullCoord(b.Pickup)
	destLat, destLon := nullCoord(b.Destination)

	var driverID sql.NullInt64
	if b.DriverID != nil {
		driverID = sql.NullInt64{Int64: *b.DriverID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET rider_id = $1, driver_id = $2,
			pickup_address = $3, pickup_lat = $4, pickup_lon = $5,
			destination_address = $6, destination_lat = $7, destination_lon = $8,
			passengers = $9, status = $10, fare = $11,
			est_distance_km = $12, est_duration_min = $13, estimated_arrival = $14,
			start_time = $15, end_time = $16
		WHERE id = $17`,
		b.RiderID, driverID,
		b.PickupAddress, pickupLat, pickupLon,
		b.DestinationAddress, destLat, destLon,
		b.Passengers, b.Status, nullFloat(b.Fare),
		nullFloat(b.EstimatedDistanceKm), nullInt(b.EstimatedDurationMin), nullTime(b.EstimatedArrival),
		nullTime(b.StartTime), nullTime(b.EndTime),
		b.ID)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListActiveByDriver(ctx context.Context, driverID int64) ([]*domain.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE driver_id = $1 AND status IN ('accepted', 'on_the_way', 'started')
		ORDER BY booking_time`, driverID)
	if err != nil {
		return nil, fmt.Errorf("list active bookings for driver %d: %w", driverID, err)
	}
	defer rows.Close()

	var out []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RiderHasActiveBooking(ctx context.Context, riderID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE rider_id = $1 AND status IN ('accepted', 'on_the_way', 'started')
		)`, riderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active booking for rider %d: %w", riderID, err)
	}
	return exists, nil
}

func (s *PostgresStore) ClaimPending(ctx context.Context, bookingID, driverID int64, startTime time.Time) (*domain.Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE bookings SET driver_id = $1, status = 'accepted', start_time = $2
		WHERE id = $3 AND status = 'pending' AND driver_id IS NULL
		RETURNING `+bookingColumns, driverID, startTime, bookingID)

	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim booking %d: %w", bookingID, err)
	}
	return b, nil
}

// StopRepository

const stopColumns = `id, booking_id, kind, status, sequence, passengers,
	address, lat, lon, note, completed_at, created_at`

func scanStop(row interface{ Scan(...any) error }) (*domain.Stop, error) {
	var (
		s           domain.Stop
		lat, lon    sql.NullFloat64
		completedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.BookingID, &s.Kind, &s.Status, &s.Sequence, &s.Passengers,
		&s.Address, &lat, &lon, &s.Note, &completedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		s.Coord = &domain.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return &s, nil
}

func (s *PostgresStore) GetStop(ctx context.Context, id string) (*domain.Stop, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stopColumns+` FROM stops WHERE id = $1`, id)
	st, err := scanStop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stop %s: %w", id, err)
	}
	return st, nil
}

func (s *PostgresStore) CreateStop(ctx context.Context, st *domain.Stop) error {
	lat, lon := nullCoord(st.Coord)
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stops (id, booking_id, kind, status, sequence, passengers,
			address, lat, lon, note, completed_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		st.ID, st.BookingID, st.Kind, st.Status, st.Sequence, st.Passengers,
		st.Address, lat, lon, st.Note, nullTime(st.CompletedAt), st.CreatedAt)
	if err != nil {
		return fmt.Errorf("create stop %s: %w", st.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateStop(ctx context.Context, st *domain.Stop) error {
	lat, lon := nullCoord(st.Coord)

	res, err := s.db.ExecContext(ctx, `
		UPDATE stops SET kind = $1, status = $2, sequence = $3, passengers = $4,
			address = $5, lat = $6, lon = $7, note = $8, completed_at = $9
		WHERE id = $10`,
		st.Kind, st.Status, st.Sequence, st.Passengers,
		st.Address, lat, lon, st.Note, nullTime(st.CompletedAt), st.ID)
	if err != nil {
		return fmt.Errorf("update stop %s: %w", st.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByBooking(ctx context.Context, bookingID int64) ([]*domain.Stop, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stopColumns+` FROM stops WHERE booking_id = $1 ORDER BY sequence, created_at`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list stops for booking %d: %w", bookingID, err)
	}
	defer rows.Close()
	return collectStops(rows)
}

func (s *PostgresStore) ListActiveStopsByDriver(ctx context.Context, driverID int64) ([]*domain.Stop, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stopColumnsPrefixed(`s`)+`
		FROM stops s
		JOIN bookings b ON b.id = s.booking_id
		WHERE b.driver_id = $1 AND b.status IN ('accepted', 'on_the_way', 'started')
		ORDER BY s.sequence, s.created_at`, driverID)
	if err != nil {
		return nil, fmt.Errorf("list active stops for driver %d: %w", driverID, err)
	}
	defer rows.Close()
	return collectStops(rows)
}

func stopColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.booking_id, ` + alias + `.kind, ` + alias + `.status, ` +
		alias + `.sequence, ` + alias + `.passengers, ` + alias + `.address, ` +
		alias + `.lat, ` + alias + `.lon, ` + alias + `.note, ` +
		alias + `.completed_at, ` + alias + `.created_at`
}

func collectStops(rows *sql.Rows) ([]*domain.Stop, error) {
	var out []*domain.Stop
	for rows.Next() {
		st, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DriverRepository

func (s *PostgresStore) GetDriver(ctx context.Context, id int64) (*domain.Driver, error) {
	var d domain.Driver
	err := s.db.QueryRowContext(ctx, `SELECT id, name, status FROM drivers WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver %d: %w", id, err)
	}
	return &d, nil
}

func (s *PostgresStore) SetDriverStatus(ctx context.Context, id int64, status domain.DriverStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE drivers SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set driver %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, driverID int64) (*domain.Vehicle, error) {
	var v domain.Vehicle
	err := s.db.QueryRowContext(ctx, `
		SELECT id, driver_id, plate_number, max_capacity FROM vehicles WHERE driver_id = $1`, driverID).
		Scan(&v.ID, &v.DriverID, &v.PlateNumber, &v.MaxCapacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle for driver %d: %w", driverID, err)
	}
	return &v, nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, driverID int64) (*domain.DriverPosition, error) {
	var (
		p                       domain.DriverPosition
		heading, speed, accuracy sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT driver_id, lat, lon, heading, speed, accuracy, updated_at
		FROM driver_positions WHERE driver_id = $1`, driverID).
		Scan(&p.DriverID, &p.Coord.Lat, &p.Coord.Lon, &heading, &speed, &accuracy, &p.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position for driver %d: %w", driverID, err)
	}
	if heading.Valid {
		p.Heading = &heading.Float64
	}
	if speed.Valid {
		p.Speed = &speed.Float64
	}
	if accuracy.Valid {
		p.Accuracy = &accuracy.Float64
	}
	return &p, nil
}

func (s *PostgresStore) SavePosition(ctx context.Context, p *domain.DriverPosition) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO driver_positions (driver_id, lat, lon, heading, speed, accuracy, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (driver_id) DO UPDATE SET
			lat = EXCLUDED.lat, lon = EXCLUDED.lon,
			heading = EXCLUDED.heading, speed = EXCLUDED.speed,
			accuracy = EXCLUDED.accuracy, updated_at = EXCLUDED.updated_at`,
		p.DriverID, p.Coord.Lat, p.Coord.Lon,
		nullFloat(p.Heading), nullFloat(p.Speed), nullFloat(p.Accuracy), p.Timestamp)
	if err != nil {
		return fmt.Errorf("save position for driver %d: %w", p.DriverID, err)
	}
	return nil
}

// RiderRepository

func (s *PostgresStore) GetRider(ctx context.Context, id int64) (*domain.Rider, error) {
	var r domain.Rider
	err := s.db.QueryRowContext(ctx, `SELECT id, name, status FROM riders WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rider %d: %w", id, err)
	}
	return &r, nil
}

func (s *PostgresStore) SetRiderStatus(ctx context.Context, id int64, status domain.RiderStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE riders SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set rider %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RouteSnapshotRepository
//
// Geometry is stored as a JSONB array of [lat, lon] pairs. PostGIS would be
// overkill here: the snapshot is only ever read back whole for deviation
// checks and map rendering, never queried spatially.

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *domain.RouteSnapshot) error {
	pairs := make([][2]float64, len(snap.Geometry))
	for i, c := range snap.Geometry {
		pairs[i] = [2]float64{c.Lat, c.Lon}
	}
	geom, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("encode snapshot geometry: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE route_snapshots SET active = FALSE WHERE booking_id = $1 AND active`, snap.BookingID); err != nil {
		return fmt.Errorf("deactivate snapshots for booking %d: %w", snap.BookingID, err)
	}

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	snap.Active = true

	err = tx.QueryRowContext(ctx, `
		INSERT INTO route_snapshots (booking_id, geometry, distance_km, duration_seconds, created_at, active)
		VALUES ($1,$2,$3,$4,$5,TRUE)
		RETURNING id`,
		snap.BookingID, geom, snap.DistanceKm, snap.DurationSeconds, snap.CreatedAt).Scan(&snap.ID)
	if err != nil {
		return fmt.Errorf("insert snapshot for booking %d: %w", snap.BookingID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActiveSnapshot(ctx context.Context, bookingID int64) (*domain.RouteSnapshot, error) {
	var (
		snap domain.RouteSnapshot
		geom []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, booking_id, geometry, distance_km, duration_seconds, created_at, active
		FROM route_snapshots WHERE booking_id = $1 AND active
		ORDER BY created_at DESC LIMIT 1`, bookingID).
		Scan(&snap.ID, &snap.BookingID, &geom, &snap.DistanceKm, &snap.DurationSeconds, &snap.CreatedAt, &snap.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active snapshot for booking %d: %w", bookingID, err)
	}

	var pairs [][2]float64
	if err := json.Unmarshal(geom, &pairs); err != nil {
		return nil, fmt.Errorf("decode snapshot geometry: %w", err)
	}
	snap.Geometry = make([]domain.Coordinates, len(pairs))
	for i, p := range pairs {
		snap.Geometry[i] = domain.Coordinates{Lat: p[0], Lon: p[1]}
	}
	return &snap, nil
}
