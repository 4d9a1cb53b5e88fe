package services

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable discriminant carried by every
// rejected transition. The HTTP layer maps codes to status codes; the
// message text is never inspected.
type ErrorCode string

const (
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeShiftNotFound    ErrorCode = "SHIFT_NOT_FOUND"
	CodeShiftNotActive   ErrorCode = "SHIFT_NOT_ACTIVE"
	CodeOutsideGeofence  ErrorCode = "OUTSIDE_GEOFENCE"
	CodeBondInsufficient ErrorCode = "BOND_INSUFFICIENT"
	CodeGuardTimeout     ErrorCode = "GUARD_TIMEOUT"
)

// TransitionError is a typed rejection from the lifecycle engine.
// Details carries enough context (measured distance, required balance,
// current status) for the caller to explain the rejection to the driver.
type TransitionError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	cause   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TransitionError) Unwrap() error {
	return e.cause
}

// CodeOf extracts the ErrorCode from err, or "" for untyped errors.
func CodeOf(err error) ErrorCode {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func errValidation(msg string) *TransitionError {
	return &TransitionError{Code: CodeValidationFailed, Message: msg}
}

func errShiftNotFound(shiftID string) *TransitionError {
	return &TransitionError{
		Code:    CodeShiftNotFound,
		Message: "shift not found",
		Details: map[string]interface{}{"shift_id": shiftID},
	}
}

func errShiftNotActive(shiftID string, current interface{}) *TransitionError {
	return &TransitionError{
		Code:    CodeShiftNotActive,
		Message: "shift is not in a state that allows this transition",
		Details: map[string]interface{}{"shift_id": shiftID, "current_status": current},
	}
}

func errOutsideGeofence(v GeofenceVerdict, geofenceName string) *TransitionError {
	return &TransitionError{
		Code:    CodeOutsideGeofence,
		Message: "location is outside the staging geofence",
		Details: map[string]interface{}{
			"geofence":        geofenceName,
			"distance_meters": v.DistanceMeters,
			"radius_meters":   v.RadiusMeters,
		},
	}
}

func errBondInsufficient(available, required float64) *TransitionError {
	return &TransitionError{
		Code:    CodeBondInsufficient,
		Message: "bond balance is below the required minimum",
		Details: map[string]interface{}{
			"available": available,
			"required":  required,
		},
	}
}

func errGuardTimeout(dependency string, cause error) *TransitionError {
	return &TransitionError{
		Code:    CodeGuardTimeout,
		Message: fmt.Sprintf("%s read did not complete in time", dependency),
		Details: map[string]interface{}{"dependency": dependency},
		cause:   cause,
	}
}
