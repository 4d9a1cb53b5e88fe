package database

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func SeedSegments(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM service_segments"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Service segments already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding service segments...")

	segments := []map[string]interface{}{
		{"segment": "ride_hail", "min_bond": 1000.0, "min_active_seconds": 6 * 3600},
		{"segment": "delivery", "min_bond": 500.0, "min_active_seconds": 4 * 3600},
		{"segment": "premium", "min_bond": 2500.0, "min_active_seconds": 8 * 3600},
	}

	for _, seg := range segments {
		_, err := db.NamedExec(`
			INSERT INTO service_segments (segment, min_bond, min_active_seconds)
			VALUES (:segment, :min_bond, :min_active_seconds)`, seg)
		if err != nil {
			return err
		}
	}

	log.Printf("✅ Seeded %d service segments", len(segments))
	return nil
}

func SeedUsers(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding users...")

	users := []map[string]interface{}{
		{"email": "admin@fleetops.com", "password": "admin123", "name": "Fleet Admin", "role": "admin", "service_segment": "ride_hail"},
		{"email": "ops@fleetops.com", "password": "manager123", "name": "Ops Manager", "role": "manager", "service_segment": "ride_hail"},
		{"email": "ramon@fleetops.com", "password": "driver123", "name": "Ramon Cruz", "role": "driver", "service_segment": "ride_hail"},
		{"email": "liza@fleetops.com", "password": "driver123", "name": "Liza Santos", "role": "driver", "service_segment": "ride_hail"},
		{"email": "jojo@fleetops.com", "password": "driver123", "name": "Jojo Reyes", "role": "driver", "service_segment": "delivery"},
		{"email": "mika@fleetops.com", "password": "driver123", "name": "Mika Dela Rosa", "role": "driver", "service_segment": "premium"},
	}

	now := time.Now().Unix()
	for _, u := range users {
		hashed, err := bcrypt.GenerateFromPassword([]byte(u["password"].(string)), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u["id"] = uuid.New().String()
		u["password"] = string(hashed)
		u["created_at"] = now
		u["updated_at"] = now

		_, err = db.NamedExec(`
			INSERT INTO users (id, email, password, name, role, service_segment, created_at, updated_at)
			VALUES (:id, :email, :password, :name, :role, :service_segment, :created_at, :updated_at)`, u)
		if err != nil {
			return err
		}
	}

	log.Printf("✅ Seeded %d users", len(users))
	return nil
}

func SeedGeofences(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM geofences"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Geofences already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding geofences...")

	fences := []map[string]interface{}{
		{"name": "Manila Depot (AM)", "shift_type": "morning", "zone_id": nil, "kind": "start", "center_lat": 14.5995, "center_lng": 120.9842, "radius_meters": 150},
		{"name": "Manila Depot (PM)", "shift_type": "evening", "zone_id": nil, "kind": "start", "center_lat": 14.5995, "center_lng": 120.9842, "radius_meters": 150},
		{"name": "Makati Staging (AM)", "shift_type": "morning", "zone_id": "makati", "kind": "start", "center_lat": 14.5547, "center_lng": 121.0244, "radius_meters": 200},
		{"name": "Makati Return (AM)", "shift_type": "morning", "zone_id": "makati", "kind": "end", "center_lat": 14.5547, "center_lng": 121.0244, "radius_meters": 250},
	}

	now := time.Now().Unix()
	for _, f := range fences {
		f["id"] = uuid.New().String()
		f["created_at"] = now
		f["updated_at"] = now

		_, err := db.NamedExec(`
			INSERT INTO geofences (id, name, shift_type, zone_id, kind, center_lat, center_lng, radius_meters, created_at, updated_at)
			VALUES (:id, :name, :shift_type, :zone_id, :kind, :center_lat, :center_lng, :radius_meters, :created_at, :updated_at)`, f)
		if err != nil {
			return err
		}
	}

	log.Printf("✅ Seeded %d geofences", len(fences))
	return nil
}

// SeedBonds gives every seeded driver a bond balance. One driver is
// deliberately left short of the segment minimum so the insufficiency
// path is exercisable out of the box.
func SeedBonds(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM bond_balances"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Bond balances already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding bond balances...")

	balances := map[string]float64{
		"ramon@fleetops.com": 1500.0,
		"liza@fleetops.com":  500.0, // below the 1000 ride_hail minimum
		"jojo@fleetops.com":  800.0,
		"mika@fleetops.com":  3000.0,
	}

	now := time.Now().Unix()
	seeded := 0
	for email, available := range balances {
		result, err := db.Exec(`
			INSERT INTO bond_balances (driver_id, available, updated_at)
			SELECT id, $1, $2 FROM users WHERE email = $3`,
			available, now, email)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			seeded++
		}
	}

	log.Printf("✅ Seeded %d bond balances", seeded)
	return nil
}

// SeedShifts provisions today's scheduled shifts for the seeded
// drivers: a morning block (08:00-16:00) and an evening block
// (16:00-00:00) in server-local time.
func SeedShifts(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM shifts"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Shifts already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding today's shifts...")

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	morningStart := midnight.Add(8 * time.Hour).Unix()
	morningEnd := midnight.Add(16 * time.Hour).Unix()
	eveningStart := midnight.Add(16 * time.Hour).Unix()
	eveningEnd := midnight.Add(24 * time.Hour).Unix()

	shifts := []struct {
		email     string
		shiftType string
		zoneID    *string
		start     int64
		end       int64
	}{
		{"ramon@fleetops.com", "morning", nil, morningStart, morningEnd},
		{"liza@fleetops.com", "morning", strPtr("makati"), morningStart, morningEnd},
		{"jojo@fleetops.com", "evening", nil, eveningStart, eveningEnd},
		{"mika@fleetops.com", "evening", nil, eveningStart, eveningEnd},
	}

	ts := now.Unix()
	seeded := 0
	for _, s := range shifts {
		result, err := db.Exec(`
			INSERT INTO shifts (id, driver_id, shift_type, zone_id, status, scheduled_start, scheduled_end, breaks, created_at, updated_at)
			SELECT $1, id, $2, $3, 'scheduled', $4, $5, '[]'::jsonb, $6, $6 FROM users WHERE email = $7`,
			uuid.New().String(), s.shiftType, s.zoneID, s.start, s.end, ts, s.email)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			seeded++
		}
	}

	log.Printf("✅ Seeded %d shifts", seeded)
	return nil
}

func strPtr(s string) *string {
	return &s
}
