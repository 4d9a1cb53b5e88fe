package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"fleetops-backend/internal/database"
	"fleetops-backend/internal/handlers"
	"fleetops-backend/internal/middleware"
	"fleetops-backend/internal/services"
	"fleetops-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 FLEETOPS BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Connect to database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("❌ FATAL: database connection failed: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ FATAL: database migrations failed: %v", err)
	}

	// Seed reference data and demo fleet
	if err := database.SeedSegments(db); err != nil {
		log.Fatalf("❌ FATAL: segment seeding failed: %v", err)
	}
	if err := database.SeedUsers(db); err != nil {
		log.Fatalf("❌ FATAL: user seeding failed: %v", err)
	}
	if err := database.SeedGeofences(db); err != nil {
		log.Fatalf("❌ FATAL: geofence seeding failed: %v", err)
	}
	if err := database.SeedBonds(db); err != nil {
		log.Fatalf("❌ FATAL: bond seeding failed: %v", err)
	}
	if err := database.SeedShifts(db); err != nil {
		log.Fatalf("❌ FATAL: shift seeding failed: %v", err)
	}

	// Initialize Firebase Cloud Messaging
	// Supports both file path and base64-encoded credentials (for cloud deployments)
	var fcmService *services.FCMService
	if fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else {
		fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE")
		if fcmCredentialsFile == "" {
			fcmCredentialsFile = "./firebase-service-account.json"
		}

		fcmService, err = services.NewFCMService(fcmCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Wire the shift lifecycle engine
	store := database.NewStore(db)
	notifier := services.NewShiftNotifier(wsHub, fcmService, store)
	engine := services.NewShiftEngine(store, store, store, store, notifier, services.EngineConfigFromEnv())
	aggregator := services.NewAggregator(store, store)
	log.Println("✅ Shift lifecycle engine wired")

	// Background sweeps: overdue scheduled shifts become no-shows, and
	// finished windows get their under-working flags re-derived.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := engine.MarkNoShowSweep(ctx); err != nil {
				log.Printf("⚠️  No-show sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("✅ No-show sweep marked %d shifts", n)
			}
			cancel()
		}
	}()
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			asOf := time.Now()
			if n, err := engine.RecalculateUnderWorkingFlags(ctx, &asOf); err != nil {
				log.Printf("⚠️  Under-working sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("✅ Under-working sweep updated %d shifts", n)
			}
			cancel()
		}
	}()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub, db))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Driver endpoints (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			// Shift lifecycle
			r.Get("/driver/shift/current", handlers.CurrentShift(store))
			r.Get("/driver/shift-history", handlers.ShiftHistory(store))
			r.Post("/driver/shift/{id}/clock-in", handlers.ClockIn(engine, store))
			r.Post("/driver/shift/{id}/break/start", handlers.StartBreak(engine, store))
			r.Post("/driver/shift/{id}/break/end", handlers.EndBreak(engine, store))
			r.Post("/driver/shift/{id}/end", handlers.EndShift(engine, store))

			// FCM token registration
			r.Post("/driver/fcm-token", handlers.RegisterFCMToken(store))
		})

		// Manager endpoints (require authentication + manager or admin role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireAnyRole("manager", "admin"))

			// Shift administration
			r.Post("/manager/shifts/provision", handlers.ProvisionShift(store))
			r.Post("/manager/shifts/{id}/cancel", handlers.CancelShift(engine))
			r.Post("/manager/shifts/mark-no-show", handlers.MarkNoShowSweep(engine))
			r.Post("/manager/shifts/{id}/mark-no-show", handlers.MarkNoShow(engine))
			r.Post("/manager/shifts/{id}/incident", handlers.MarkIncident(store))
			r.Post("/manager/shifts/recalculate-underworking", handlers.RecalculateUnderWorking(engine))

			// Read projections
			r.Get("/manager/roll-call", handlers.RollCall(aggregator))
			r.Get("/manager/leaderboard", handlers.Leaderboard(aggregator))

			// Geofence provisioning
			r.Get("/manager/geofences", handlers.ListGeofences(store))
			r.Post("/manager/geofences", handlers.CreateGeofence(store))
		})
	})

	// Get port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Printf("⚠️  PORT not set, using default: %s", port)
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", port)
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Start server
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("❌ FATAL: server failed to start: %v", err)
	}
}
