package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ShiftStatus represents the current lifecycle state of a shift
type ShiftStatus string

const (
	ShiftStatusScheduled ShiftStatus = "scheduled" // Provisioned, driver not yet clocked in
	ShiftStatusActive    ShiftStatus = "active"    // Clocked in and working
	ShiftStatusOnBreak   ShiftStatus = "on_break"  // Break interval open
	ShiftStatusCompleted ShiftStatus = "completed" // Ended normally, summary computed
	ShiftStatusNoShow    ShiftStatus = "no_show"   // Never clocked in within the grace window
	ShiftStatusCancelled ShiftStatus = "cancelled" // Cancelled by a manager before completion
)

// IsTerminal reports whether the status is a permanent end state.
func (s ShiftStatus) IsTerminal() bool {
	return s == ShiftStatusCompleted || s == ShiftStatusNoShow || s == ShiftStatusCancelled
}

// ShiftType is the calendar slot a shift belongs to
type ShiftType string

const (
	ShiftTypeMorning ShiftType = "morning"
	ShiftTypeEvening ShiftType = "evening"
)

// IsValid reports whether t is a known shift type.
func (t ShiftType) IsValid() bool {
	return t == ShiftTypeMorning || t == ShiftTypeEvening
}

// BreakInterval is one break period inside a shift. End is nil while the
// break is still open; at most one interval per shift may be open.
type BreakInterval struct {
	Start  int64  `json:"start"`
	End    *int64 `json:"end,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// BreakList is the ordered list of break intervals, stored as JSONB.
type BreakList []BreakInterval

func (b BreakList) Value() (driver.Value, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b)
}

func (b *BreakList) Scan(src interface{}) error {
	if src == nil {
		*b = BreakList{}
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("breaks: expected []byte, got %T", src)
	}
	return json.Unmarshal(data, b)
}

// Open returns the currently open break interval, or nil.
func (b BreakList) Open() *BreakInterval {
	for i := range b {
		if b[i].End == nil {
			return &b[i]
		}
	}
	return nil
}

// TotalSecondsAsOf sums all break durations, counting an open break up
// to the given time.
func (b BreakList) TotalSecondsAsOf(now int64) int64 {
	var total int64
	for _, br := range b {
		end := now
		if br.End != nil {
			end = *br.End
		}
		if end > br.Start {
			total += end - br.Start
		}
	}
	return total
}

// Checklist is the pre-shift checklist captured at clock-in.
type Checklist struct {
	VehicleCondition string `json:"vehicle_condition,omitempty"`
	DeviceChecked    bool   `json:"device_checked"`
	Notes            string `json:"notes,omitempty"`
}

// NullChecklist wraps Checklist for a nullable JSONB column.
type NullChecklist struct {
	Checklist Checklist
	Valid     bool
}

func (n NullChecklist) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return json.Marshal(n.Checklist)
}

func (n *NullChecklist) Scan(src interface{}) error {
	if src == nil {
		*n = NullChecklist{}
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("checklist: expected []byte, got %T", src)
	}
	n.Valid = true
	return json.Unmarshal(data, &n.Checklist)
}

func (n NullChecklist) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Checklist)
}

func (n *NullChecklist) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullChecklist{}
		return nil
	}
	n.Valid = true
	return json.Unmarshal(data, &n.Checklist)
}

// ShiftSummary is computed once, when a shift reaches a terminal state.
type ShiftSummary struct {
	TotalActiveSeconds int64  `json:"total_active_seconds"`
	TotalBreakSeconds  int64  `json:"total_break_seconds"`
	UnderWorking       bool   `json:"under_working"`
	GeofenceCompliant  bool   `json:"geofence_compliant"`
	Note               string `json:"note,omitempty"`
}

// NullSummary wraps ShiftSummary for a nullable JSONB column. The column
// is NULL exactly while the shift is non-terminal.
type NullSummary struct {
	Summary ShiftSummary
	Valid   bool
}

func (n NullSummary) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return json.Marshal(n.Summary)
}

func (n *NullSummary) Scan(src interface{}) error {
	if src == nil {
		*n = NullSummary{}
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("summary: expected []byte, got %T", src)
	}
	n.Valid = true
	return json.Unmarshal(data, &n.Summary)
}

func (n NullSummary) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Summary)
}

func (n *NullSummary) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullSummary{}
		return nil
	}
	n.Valid = true
	return json.Unmarshal(data, &n.Summary)
}

// Shift represents one attendance cycle for one driver on one
// shift-type/day. Rows are never deleted; terminal states are history.
type Shift struct {
	ID             string      `json:"id" db:"id"`
	DriverID       string      `json:"driver_id" db:"driver_id"`
	ShiftType      ShiftType   `json:"shift_type" db:"shift_type"`
	ZoneID         *string     `json:"zone_id" db:"zone_id"`
	Status         ShiftStatus `json:"status" db:"status"`
	ScheduledStart int64       `json:"scheduled_start" db:"scheduled_start"`
	ScheduledEnd   int64       `json:"scheduled_end" db:"scheduled_end"`

	ClockInAt       *int64   `json:"clock_in_at" db:"clock_in_at"`
	ClockInLat      *float64 `json:"clock_in_lat" db:"clock_in_lat"`
	ClockInLng      *float64 `json:"clock_in_lng" db:"clock_in_lng"`
	ClockInAccuracy *float64 `json:"clock_in_accuracy" db:"clock_in_accuracy"`

	EndedAt     *int64   `json:"ended_at" db:"ended_at"`
	ClockOutLat *float64 `json:"clock_out_lat" db:"clock_out_lat"`
	ClockOutLng *float64 `json:"clock_out_lng" db:"clock_out_lng"`
	EndNotes    *string  `json:"end_notes" db:"end_notes"`

	Breaks    BreakList     `json:"breaks" db:"breaks"`
	Checklist NullChecklist `json:"checklist" db:"checklist"`

	LateArrival  bool `json:"late_arrival" db:"late_arrival"`
	UnderWorking bool `json:"under_working" db:"under_working"`
	HasIncident  bool `json:"has_incident" db:"has_incident"`

	Summary NullSummary `json:"summary" db:"summary"`

	CreatedAt int64 `json:"created_at" db:"created_at"`
	UpdatedAt int64 `json:"updated_at" db:"updated_at"`
}

// ActiveSecondsAsOf returns elapsed working seconds (clock-in to now,
// minus breaks) for a shift that has clocked in. Zero before clock-in.
func (s *Shift) ActiveSecondsAsOf(now int64) int64 {
	if s.ClockInAt == nil {
		return 0
	}
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	elapsed := end - *s.ClockInAt
	active := elapsed - s.Breaks.TotalSecondsAsOf(end)
	if active < 0 {
		active = 0
	}
	return active
}
