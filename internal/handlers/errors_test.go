package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetops-backend/internal/services"
)

func TestStatusForCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForCode(services.CodeValidationFailed))
	assert.Equal(t, http.StatusNotFound, statusForCode(services.CodeShiftNotFound))
	assert.Equal(t, http.StatusConflict, statusForCode(services.CodeShiftNotActive))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForCode(services.CodeOutsideGeofence))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForCode(services.CodeBondInsufficient))
	assert.Equal(t, http.StatusServiceUnavailable, statusForCode(services.CodeGuardTimeout))
	assert.Equal(t, http.StatusInternalServerError, statusForCode("SOMETHING_ELSE"))
}

func TestRespondTransitionErrorTyped(t *testing.T) {
	rec := httptest.NewRecorder()
	respondTransitionError(rec, &services.TransitionError{
		Code:    services.CodeOutsideGeofence,
		Message: "location is outside the staging geofence",
		Details: map[string]interface{}{"distance_meters": 412, "radius_meters": 150},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string                 `json:"code"`
			Message string                 `json:"message"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "OUTSIDE_GEOFENCE", body.Error.Code)
	assert.EqualValues(t, 412, body.Error.Details["distance_meters"])
}

func TestRespondTransitionErrorUntyped(t *testing.T) {
	rec := httptest.NewRecorder()
	respondTransitionError(rec, errors.New("connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}
