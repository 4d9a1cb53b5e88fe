package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"fleetops-backend/internal/database"
	"fleetops-backend/internal/middleware"
	"fleetops-backend/pkg/utils"
)

type RegisterFCMTokenRequest struct {
	Token      string  `json:"token"`
	DeviceInfo *string `json:"device_info,omitempty"`
}

// RegisterFCMToken stores a push token for the authenticated user.
func RegisterFCMToken(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req RegisterFCMTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}

		if err := store.RegisterToken(r.Context(), claims.UserID, req.Token, req.DeviceInfo); err != nil {
			log.Printf("❌ Failed to register FCM token for %s: %v", claims.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to register token")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
		})
	}
}
