package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetops-backend/internal/database"
	"fleetops-backend/internal/models"
	"fleetops-backend/internal/services"
	"fleetops-backend/pkg/utils"
)

type ProvisionShiftRequest struct {
	DriverID       string  `json:"driver_id"`
	ShiftType      string  `json:"shift_type"`
	ZoneID         *string `json:"zone_id,omitempty"`
	ScheduledStart int64   `json:"scheduled_start"`
	ScheduledEnd   int64   `json:"scheduled_end"`
}

type CancelShiftRequest struct {
	Reason string `json:"reason"`
}

// ProvisionShift creates a scheduled shift for a driver.
func ProvisionShift(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProvisionShiftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		shiftType := models.ShiftType(req.ShiftType)
		if req.DriverID == "" || !shiftType.IsValid() {
			utils.RespondError(w, http.StatusBadRequest, "driver_id and a valid shift_type are required")
			return
		}
		if req.ScheduledStart <= 0 || req.ScheduledEnd <= req.ScheduledStart {
			utils.RespondError(w, http.StatusBadRequest, "scheduled_end must be after scheduled_start")
			return
		}

		shift, err := store.CreateShift(r.Context(), req.DriverID, shiftType, req.ZoneID, req.ScheduledStart, req.ScheduledEnd)
		if err != nil {
			log.Printf("❌ Failed to provision shift for driver %s: %v", req.DriverID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to provision shift")
			return
		}

		log.Printf("✅ Provisioned %s shift %s for driver %s", shift.ShiftType, shift.ID, shift.DriverID)
		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    shift,
		})
	}
}

// CancelShift administratively cancels a shift that has not completed.
func CancelShift(engine *services.ShiftEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shiftID := chi.URLParam(r, "id")

		// The body is optional, but a malformed one is still rejected.
		var req CancelShiftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		shift, err := engine.CancelShift(r.Context(), shiftID, req.Reason)
		if err != nil {
			respondTransitionError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    shift,
		})
	}
}

// MarkNoShow flags a scheduled shift whose driver never arrived.
func MarkNoShow(engine *services.ShiftEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shiftID := chi.URLParam(r, "id")

		shift, err := engine.MarkNoShow(r.Context(), shiftID)
		if err != nil {
			respondTransitionError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    shift,
		})
	}
}

// MarkNoShowSweep transitions every overdue scheduled shift to no_show.
func MarkNoShowSweep(engine *services.ShiftEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		marked, err := engine.MarkNoShowSweep(r.Context())
		if err != nil {
			log.Printf("❌ No-show sweep failed: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Sweep failed")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]int{"marked": marked},
		})
	}
}

// MarkIncident flags a shift as having an incident. Idempotent.
func MarkIncident(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shiftID := chi.URLParam(r, "id")

		err := store.MarkIncident(r.Context(), shiftID)
		if errors.Is(err, models.ErrShiftNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Shift not found")
			return
		}
		if err != nil {
			log.Printf("❌ Failed to mark incident on shift %s: %v", shiftID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to mark incident")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
		})
	}
}

// RecalculateUnderWorking re-derives the under-working flag across
// shifts whose scheduled window has passed.
func RecalculateUnderWorking(engine *services.ShiftEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf := time.Now()
		updated, err := engine.RecalculateUnderWorkingFlags(r.Context(), &asOf)
		if err != nil {
			log.Printf("❌ Under-working recalculation failed: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Recalculation failed")
			return
		}

		log.Printf("✅ Under-working recalculation touched %d shifts", updated)
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]int{"updated": updated},
		})
	}
}

type CreateGeofenceRequest struct {
	Name         string  `json:"name"`
	ShiftType    string  `json:"shift_type"`
	ZoneID       *string `json:"zone_id,omitempty"`
	Kind         string  `json:"kind"`
	CenterLat    float64 `json:"center_lat"`
	CenterLng    float64 `json:"center_lng"`
	RadiusMeters int     `json:"radius_meters"`
}

// ListGeofences returns every provisioned staging boundary.
func ListGeofences(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fences, err := store.ListGeofences(r.Context())
		if err != nil {
			log.Printf("❌ Failed to list geofences: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to list geofences")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    fences,
		})
	}
}

// CreateGeofence provisions a staging boundary.
func CreateGeofence(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateGeofenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		shiftType := models.ShiftType(req.ShiftType)
		kind := models.GeofenceKind(req.Kind)
		if kind == "" {
			kind = models.GeofenceKindStart
		}
		if req.Name == "" || !shiftType.IsValid() || req.RadiusMeters <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "name, valid shift_type and positive radius_meters are required")
			return
		}
		if kind != models.GeofenceKindStart && kind != models.GeofenceKindEnd {
			utils.RespondError(w, http.StatusBadRequest, "kind must be start or end")
			return
		}

		fence := &models.Geofence{
			Name:         req.Name,
			ShiftType:    shiftType,
			ZoneID:       req.ZoneID,
			Kind:         kind,
			CenterLat:    req.CenterLat,
			CenterLng:    req.CenterLng,
			RadiusMeters: req.RadiusMeters,
		}
		if err := store.CreateGeofence(r.Context(), fence); err != nil {
			log.Printf("❌ Failed to create geofence: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create geofence")
			return
		}

		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    fence,
		})
	}
}
