package handlers

import (
	"errors"
	"net/http"

	"fleetops-backend/internal/services"
	"fleetops-backend/pkg/utils"
)

// statusForCode maps a lifecycle rejection to an HTTP status. The code
// string travels to the client unchanged so apps can branch on it.
func statusForCode(code services.ErrorCode) int {
	switch code {
	case services.CodeValidationFailed:
		return http.StatusBadRequest
	case services.CodeShiftNotFound:
		return http.StatusNotFound
	case services.CodeShiftNotActive:
		return http.StatusConflict
	case services.CodeOutsideGeofence, services.CodeBondInsufficient:
		return http.StatusUnprocessableEntity
	case services.CodeGuardTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondTransitionError writes a typed engine rejection, or a generic
// 500 for anything untyped.
func respondTransitionError(w http.ResponseWriter, err error) {
	var te *services.TransitionError
	if errors.As(err, &te) {
		utils.RespondJSON(w, statusForCode(te.Code), map[string]interface{}{
			"success": false,
			"error": map[string]interface{}{
				"code":    te.Code,
				"message": te.Message,
				"details": te.Details,
			},
		})
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, "internal server error")
}
