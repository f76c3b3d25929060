package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS riders (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'available'
	)`,
	`CREATE TABLE IF NOT EXISTS drivers (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'offline'
	)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id           BIGSERIAL PRIMARY KEY,
		driver_id    BIGINT NOT NULL REFERENCES drivers(id),
		plate_number TEXT NOT NULL,
		max_capacity INTEGER NOT NULL,
		UNIQUE (driver_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                  BIGSERIAL PRIMARY KEY,
		rider_id            BIGINT NOT NULL REFERENCES riders(id),
		driver_id           BIGINT REFERENCES drivers(id),
		pickup_address      TEXT NOT NULL,
		pickup_lat          DOUBLE PRECISION,
		pickup_lon          DOUBLE PRECISION,
		destination_address TEXT NOT NULL,
		destination_lat     DOUBLE PRECISION,
		destination_lon     DOUBLE PRECISION,
		passengers          INTEGER NOT NULL DEFAULT 1,
		status              TEXT NOT NULL DEFAULT 'pending',
		fare                DOUBLE PRECISION,
		est_distance_km     DOUBLE PRECISION,
		est_duration_min    INTEGER,
		estimated_arrival   TIMESTAMPTZ,
		booking_time        TIMESTAMPTZ NOT NULL DEFAULT now(),
		start_time          TIMESTAMPTZ,
		end_time            TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS stops (
		id           TEXT PRIMARY KEY,
		booking_id   BIGINT NOT NULL REFERENCES bookings(id),
		kind         TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'UPCOMING',
		sequence     INTEGER NOT NULL DEFAULT 0,
		passengers   INTEGER NOT NULL DEFAULT 1,
		address      TEXT NOT NULL DEFAULT '',
		lat          DOUBLE PRECISION,
		lon          DOUBLE PRECISION,
		note         TEXT NOT NULL DEFAULT '',
		completed_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS driver_positions (
		driver_id  BIGINT PRIMARY KEY REFERENCES drivers(id),
		lat        DOUBLE PRECISION NOT NULL,
		lon        DOUBLE PRECISION NOT NULL,
		heading    DOUBLE PRECISION,
		speed      DOUBLE PRECISION,
		accuracy   DOUBLE PRECISION,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS route_snapshots (
		id               BIGSERIAL PRIMARY KEY,
		booking_id       BIGINT NOT NULL REFERENCES bookings(id),
		geometry         JSONB NOT NULL,
		distance_km      DOUBLE PRECISION NOT NULL,
		duration_seconds INTEGER NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		active           BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_driver_status ON bookings (driver_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_rider_status ON bookings (rider_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_stops_booking ON stops (booking_id)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_booking_active ON route_snapshots (booking_id, active)`,
}

// InitSchema creates all tables and indexes if they do not exist. Statements
// are idempotent so running it on every startup is safe.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// SeedDemoData inserts a small fixture set for local development: one driver
// with a vehicle and two riders. Does nothing when drivers already exist.
func SeedDemoData(ctx context.Context, db *sql.DB) error {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drivers`).Scan(&n); err != nil {
		return fmt.Errorf("seed: count drivers: %w", err)
	}
	if n > 0 {
		return nil
	}

	stmts := []string{
		`INSERT INTO drivers (name, status) VALUES ('Mang Ben', 'online')`,
		`INSERT INTO vehicles (driver_id, plate_number, max_capacity)
			SELECT id, 'TRK-1021', 3 FROM drivers WHERE name = 'Mang Ben'`,
		`INSERT INTO riders (name, status) VALUES ('Ana Reyes', 'available'), ('Luis Cruz', 'available')`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}
