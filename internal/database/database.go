package database

import (
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool using DATABASE_URL.
func Connect() (*sqlx.DB, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	log.Println("✅ Connected to database")
	return db, nil
}

// Migrate creates the schema. Statements are idempotent so the server can
// run them on every boot.
func Migrate(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'driver' CHECK (role IN ('driver', 'manager', 'admin')),
			service_segment TEXT NOT NULL DEFAULT 'ride_hail',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS service_segments (
			segment TEXT PRIMARY KEY,
			min_bond NUMERIC NOT NULL DEFAULT 0,
			min_active_seconds BIGINT NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS geofences (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			shift_type TEXT NOT NULL CHECK (shift_type IN ('morning', 'evening')),
			zone_id TEXT,
			kind TEXT NOT NULL DEFAULT 'start' CHECK (kind IN ('start', 'end')),
			center_lat DOUBLE PRECISION NOT NULL,
			center_lng DOUBLE PRECISION NOT NULL,
			radius_meters INTEGER NOT NULL CHECK (radius_meters > 0),
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_geofences_lookup ON geofences(shift_type, kind)`,

		`CREATE TABLE IF NOT EXISTS bond_balances (
			driver_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			available NUMERIC NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS shifts (
			id TEXT PRIMARY KEY,
			driver_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			shift_type TEXT NOT NULL CHECK (shift_type IN ('morning', 'evening')),
			zone_id TEXT,
			status TEXT NOT NULL DEFAULT 'scheduled' CHECK (status IN ('scheduled', 'active', 'on_break', 'completed', 'no_show', 'cancelled')),
			scheduled_start BIGINT NOT NULL,
			scheduled_end BIGINT NOT NULL,
			clock_in_at BIGINT,
			clock_in_lat DOUBLE PRECISION,
			clock_in_lng DOUBLE PRECISION,
			clock_in_accuracy DOUBLE PRECISION,
			ended_at BIGINT,
			clock_out_lat DOUBLE PRECISION,
			clock_out_lng DOUBLE PRECISION,
			end_notes TEXT,
			breaks JSONB NOT NULL DEFAULT '[]'::jsonb,
			checklist JSONB,
			late_arrival BOOLEAN NOT NULL DEFAULT FALSE,
			under_working BOOLEAN NOT NULL DEFAULT FALSE,
			has_incident BOOLEAN NOT NULL DEFAULT FALSE,
			summary JSONB,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			CHECK ((summary IS NOT NULL) = (status IN ('completed', 'no_show', 'cancelled')))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_driver_id ON shifts(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_status ON shifts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_scheduled_start ON shifts(scheduled_start)`,

		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL,
			device_info TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			UNIQUE(user_id, token)
		)`,

		`CREATE TABLE IF NOT EXISTS driver_current_location (
			driver_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			heading DOUBLE PRECISION,
			speed DOUBLE PRECISION,
			accuracy DOUBLE PRECISION,
			shift_id TEXT,
			timestamp BIGINT,
			is_connected BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at BIGINT NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("✅ Database migrations completed")
	return nil
}
