package handlers

import (
	"net/http"
	"strconv"
	"time"

	"fleetops-backend/internal/models"
	"fleetops-backend/internal/services"
	"fleetops-backend/pkg/utils"
)

// RollCall serves the attendance snapshot for a shift type and date.
// Query params: shift_type (required), date (defaults to today, UTC),
// geofence_id (optional zone filter).
func RollCall(agg *services.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shiftType := models.ShiftType(r.URL.Query().Get("shift_type"))

		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		var geofenceID *string
		if raw := r.URL.Query().Get("geofence_id"); raw != "" {
			geofenceID = &raw
		}

		report, err := agg.GetRollCall(r.Context(), shiftType, date, geofenceID)
		if err != nil {
			respondTransitionError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    report,
		})
	}
}

// Leaderboard serves the ranked completed shifts for a date.
// Query params: date (defaults to today, UTC), segment, shift_type,
// limit (defaults to 10).
func Leaderboard(agg *services.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		var segment *string
		if raw := r.URL.Query().Get("segment"); raw != "" {
			segment = &raw
		}

		var shiftType *models.ShiftType
		if raw := r.URL.Query().Get("shift_type"); raw != "" {
			st := models.ShiftType(raw)
			if !st.IsValid() {
				utils.RespondError(w, http.StatusBadRequest, "invalid shift_type")
				return
			}
			shiftType = &st
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				limit = parsed
			}
		}

		entries, err := agg.GetLeaderboard(r.Context(), date, segment, shiftType, limit)
		if err != nil {
			respondTransitionError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    entries,
		})
	}
}
