package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"fleetops-backend/internal/database"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if err := database.SeedSegments(db); err != nil {
		log.Fatalf("Segment seeding failed: %v", err)
	}
	if err := database.SeedUsers(db); err != nil {
		log.Fatalf("User seeding failed: %v", err)
	}
	if err := database.SeedGeofences(db); err != nil {
		log.Fatalf("Geofence seeding failed: %v", err)
	}
	if err := database.SeedBonds(db); err != nil {
		log.Fatalf("Bond seeding failed: %v", err)
	}
	if err := database.SeedShifts(db); err != nil {
		log.Fatalf("Shift seeding failed: %v", err)
	}

	// Query and display summary
	var result struct {
		Users     int `db:"users"`
		Geofences int `db:"geofences"`
		Shifts    int `db:"shifts"`
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM geofences) AS geofences,
			(SELECT COUNT(*) FROM shifts) AS shifts
	`
	if err := db.Get(&result, query); err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}

	fmt.Println("\n============================================================")
	fmt.Println("MIGRATION SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Users:      %d\n", result.Users)
	fmt.Printf("Geofences:  %d\n", result.Geofences)
	fmt.Printf("Shifts:     %d\n", result.Shifts)
	fmt.Println("============================================================")
}
