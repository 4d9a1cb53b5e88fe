package services

import (
	"context"
	"sort"
	"time"

	"fleetops-backend/internal/models"
)

// Penalty weights applied to the leaderboard score. Flat deductions
// keep the score monotonic in active seconds and flag absence.
const (
	underWorkingPenaltySeconds = 1800
	incidentPenaltySeconds     = 3600
)

// RollCallBucket classifies a scheduled shift's attendance.
type RollCallBucket string

const (
	BucketArrived    RollCallBucket = "arrived"
	BucketLate       RollCallBucket = "late"
	BucketNotArrived RollCallBucket = "not_arrived"
	BucketAbsent     RollCallBucket = "absent" // no_show or cancelled
)

// RollCallEntry is one scheduled shift's attendance line.
type RollCallEntry struct {
	ShiftID   string             `json:"shift_id"`
	DriverID  string             `json:"driver_id"`
	Status    models.ShiftStatus `json:"status"`
	ClockInAt *int64             `json:"clock_in_at"`
	Bucket    RollCallBucket     `json:"bucket"`
}

// RollCallCounts are the per-bucket totals.
type RollCallCounts struct {
	Arrived    int `json:"arrived"`
	Late       int `json:"late"`
	NotArrived int `json:"not_arrived"`
	Absent     int `json:"absent"`
	Total      int `json:"total"`
}

// RollCall is a point-in-time attendance report for one shift-type/day.
type RollCall struct {
	ShiftType models.ShiftType `json:"shift_type"`
	Date      string           `json:"date"`
	Entries   []RollCallEntry  `json:"entries"`
	Counts    RollCallCounts   `json:"counts"`
}

// LeaderboardEntry is one ranked completed shift.
type LeaderboardEntry struct {
	Rank          int              `json:"rank"`
	ShiftID       string           `json:"shift_id"`
	DriverID      string           `json:"driver_id"`
	ShiftType     models.ShiftType `json:"shift_type"`
	Score         int64            `json:"score"`
	ActiveSeconds int64            `json:"active_seconds"`
	BreakSeconds  int64            `json:"break_seconds"`
	ClockInAt     *int64           `json:"clock_in_at"`
	LateArrival   bool             `json:"late_arrival"`
	UnderWorking  bool             `json:"under_working"`
	HasIncident   bool             `json:"has_incident"`
}

// Aggregator serves the read-side projections over the shift store.
// Pure reads; no guards, no mutation.
type Aggregator struct {
	store  ShiftStore
	fences GeofenceConfig
}

// NewAggregator creates a roll-call/leaderboard aggregator.
func NewAggregator(store ShiftStore, fences GeofenceConfig) *Aggregator {
	return &Aggregator{store: store, fences: fences}
}

// DayBounds converts a YYYY-MM-DD date to its UTC epoch window.
func DayBounds(date string) (int64, int64, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, 0, errValidation("date must be YYYY-MM-DD")
	}
	start := day.UTC().Unix()
	return start, start + 24*3600, nil
}

// GetRollCall buckets every shift scheduled for the day/type into
// arrived / late / not-arrived / absent. When geofenceID is given only
// shifts in that geofence's zone are included.
func (a *Aggregator) GetRollCall(ctx context.Context, shiftType models.ShiftType, date string, geofenceID *string) (*RollCall, error) {
	if !shiftType.IsValid() {
		return nil, errValidation("unknown shift type")
	}
	dayStart, dayEnd, err := DayBounds(date)
	if err != nil {
		return nil, err
	}

	var zoneFilter *string
	if geofenceID != nil {
		fence, err := a.fences.GetGeofenceByID(ctx, *geofenceID)
		if err != nil {
			return nil, errValidation("unknown geofence")
		}
		zoneFilter = fence.ZoneID
	}

	shifts, err := a.store.ListForDay(ctx, shiftType, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	rc := &RollCall{ShiftType: shiftType, Date: date, Entries: []RollCallEntry{}}
	for i := range shifts {
		s := &shifts[i]
		if zoneFilter != nil && (s.ZoneID == nil || *s.ZoneID != *zoneFilter) {
			continue
		}

		entry := RollCallEntry{
			ShiftID:   s.ID,
			DriverID:  s.DriverID,
			Status:    s.Status,
			ClockInAt: s.ClockInAt,
			Bucket:    bucketFor(s),
		}
		rc.Entries = append(rc.Entries, entry)

		switch entry.Bucket {
		case BucketArrived:
			rc.Counts.Arrived++
		case BucketLate:
			rc.Counts.Late++
		case BucketNotArrived:
			rc.Counts.NotArrived++
		case BucketAbsent:
			rc.Counts.Absent++
		}
		rc.Counts.Total++
	}
	return rc, nil
}

func bucketFor(s *models.Shift) RollCallBucket {
	switch s.Status {
	case models.ShiftStatusScheduled:
		return BucketNotArrived
	case models.ShiftStatusNoShow, models.ShiftStatusCancelled:
		if s.ClockInAt != nil {
			// Cancelled after arriving still counts as arrived time.
			if s.LateArrival {
				return BucketLate
			}
			return BucketArrived
		}
		return BucketAbsent
	default:
		if s.LateArrival {
			return BucketLate
		}
		return BucketArrived
	}
}

// GetLeaderboard ranks the day's completed shifts by performance score:
// active seconds minus flat penalties for under-working and incidents,
// ties broken by earlier clock-in, then shift ID. Stable and
// deterministic for identical underlying data.
func (a *Aggregator) GetLeaderboard(ctx context.Context, date string, segment *string, shiftType *models.ShiftType, limit int) ([]LeaderboardEntry, error) {
	dayStart, dayEnd, err := DayBounds(date)
	if err != nil {
		return nil, err
	}
	if shiftType != nil && !shiftType.IsValid() {
		return nil, errValidation("unknown shift type")
	}
	if limit <= 0 {
		limit = 10
	}

	shifts, err := a.store.ListCompletedForDay(ctx, dayStart, dayEnd, segment, shiftType)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(shifts))
	for i := range shifts {
		s := &shifts[i]
		if !s.Summary.Valid {
			continue
		}
		sum := s.Summary.Summary

		score := sum.TotalActiveSeconds
		if sum.UnderWorking {
			score -= underWorkingPenaltySeconds
		}
		if s.HasIncident {
			score -= incidentPenaltySeconds
		}

		entries = append(entries, LeaderboardEntry{
			ShiftID:       s.ID,
			DriverID:      s.DriverID,
			ShiftType:     s.ShiftType,
			Score:         score,
			ActiveSeconds: sum.TotalActiveSeconds,
			BreakSeconds:  sum.TotalBreakSeconds,
			ClockInAt:     s.ClockInAt,
			LateArrival:   s.LateArrival,
			UnderWorking:  sum.UnderWorking,
			HasIncident:   s.HasIncident,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		ci, cj := clockInOrMax(entries[i].ClockInAt), clockInOrMax(entries[j].ClockInAt)
		if ci != cj {
			return ci < cj
		}
		return entries[i].ShiftID < entries[j].ShiftID
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func clockInOrMax(t *int64) int64 {
	if t == nil {
		return 1<<63 - 1
	}
	return *t
}
