package models

// BondBalance is a driver's financial buffer. The lifecycle engine only
// ever reads it; top-ups and deductions belong to the payments system.
type BondBalance struct {
	DriverID  string  `json:"driver_id" db:"driver_id"`
	Available float64 `json:"available" db:"available"`
	UpdatedAt int64   `json:"updated_at" db:"updated_at"`
}

// BondStatus is the read-only view the bond ledger exposes to the
// lifecycle engine: what the driver holds and what their service
// segment requires.
type BondStatus struct {
	Available       float64 `json:"available" db:"available"`
	MinimumRequired float64 `json:"minimum_required" db:"minimum_required"`
}

// ServiceSegment carries the per-segment operating thresholds: the
// minimum bond a driver must hold to start a shift, and the minimum
// active seconds below which a shift counts as under-working.
type ServiceSegment struct {
	Segment          string  `json:"segment" db:"segment"`
	MinBond          float64 `json:"min_bond" db:"min_bond"`
	MinActiveSeconds int64   `json:"min_active_seconds" db:"min_active_seconds"`
}
