package models

import "errors"

// Sentinel errors shared by the persistence layer and its in-memory
// test doubles. The lifecycle engine maps these to its typed taxonomy.
var (
	ErrShiftNotFound    = errors.New("shift not found")
	ErrStatusConflict   = errors.New("shift is not in the expected status")
	ErrGeofenceNotFound = errors.New("no geofence configured")
	ErrBondNotFound     = errors.New("no bond balance recorded for driver")
)
