package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fleetops-backend/internal/database"
	"fleetops-backend/internal/middleware"
	"fleetops-backend/internal/models"
	"fleetops-backend/internal/services"
	"fleetops-backend/pkg/utils"
)

type ClockInRequest struct {
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Accuracy  *float64          `json:"accuracy,omitempty"`
	Checklist *models.Checklist `json:"checklist,omitempty"`
}

type StartBreakRequest struct {
	Reason string `json:"reason"`
}

type EndShiftRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Notes     string   `json:"notes"`
}

// ownShift loads the shift and rejects callers that do not own it.
func ownShift(w http.ResponseWriter, r *http.Request, store *database.Store) (*models.Shift, bool) {
	claims, ok := middleware.GetUserFromContext(r)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	shiftID := chi.URLParam(r, "id")
	shift, err := store.Get(r.Context(), shiftID)
	if errors.Is(err, models.ErrShiftNotFound) {
		respondTransitionError(w, &services.TransitionError{
			Code:    services.CodeShiftNotFound,
			Message: "shift not found",
			Details: map[string]interface{}{"shift_id": shiftID},
		})
		return nil, false
	}
	if err != nil {
		log.Printf("❌ Failed to load shift %s: %v", shiftID, err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to load shift")
		return nil, false
	}

	if shift.DriverID != claims.UserID {
		utils.RespondError(w, http.StatusForbidden, "Forbidden")
		return nil, false
	}
	return shift, true
}

// ClockIn starts a scheduled shift after the geofence and bond guards pass.
func ClockIn(engine *services.ShiftEngine, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, ok := ownShift(w, r, store)
		if !ok {
			return
		}

		var req ClockInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		sample := models.GeoSample{Latitude: req.Latitude, Longitude: req.Longitude, Accuracy: req.Accuracy}
		updated, err := engine.ClockIn(r.Context(), shift.ID, sample, req.Checklist)
		if err != nil {
			respondTransitionError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    updated,
		})
	}
}

// StartBreak pauses an active shift.
func StartBreak(engine *services.ShiftEngine, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The body is optional, but a malformed one is still rejected.
		var req StartBreakRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		shift, ok := ownShift(w, r, store)
		if !ok {
			return
		}

		updated, err := engine.StartBreak(r.Context(), shift.ID, req.Reason)
		if err != nil {
			respondTransitionError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    updated,
		})
	}
}

// EndBreak resumes a paused shift.
func EndBreak(engine *services.ShiftEngine, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, ok := ownShift(w, r, store)
		if !ok {
			return
		}

		updated, err := engine.EndBreak(r.Context(), shift.ID)
		if err != nil {
			respondTransitionError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    updated,
		})
	}
}

// EndShift completes an active or paused shift and returns the summary.
func EndShift(engine *services.ShiftEngine, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, ok := ownShift(w, r, store)
		if !ok {
			return
		}

		var req EndShiftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		sample := models.GeoSample{Latitude: req.Latitude, Longitude: req.Longitude, Accuracy: req.Accuracy}
		updated, summary, err := engine.EndShift(r.Context(), shift.ID, sample, req.Notes)
		if err != nil {
			respondTransitionError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"shift":   updated,
				"summary": summary,
			},
		})
	}
}

// CurrentShift returns the caller's in-progress or next scheduled shift.
func CurrentShift(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		shift, err := store.CurrentShiftForDriver(r.Context(), claims.UserID)
		if errors.Is(err, models.ErrShiftNotFound) {
			utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    nil,
			})
			return
		}
		if err != nil {
			log.Printf("❌ Failed to load current shift for %s: %v", claims.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load current shift")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    shift,
		})
	}
}

// ShiftHistory returns the caller's most recent shifts.
func ShiftHistory(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				limit = parsed
			}
		}

		shifts, err := store.HistoryForDriver(r.Context(), claims.UserID, limit)
		if err != nil {
			log.Printf("❌ Failed to load shift history for %s: %v", claims.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load shift history")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    shifts,
		})
	}
}
