package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fleetops-backend/internal/models"
)

// Store is the Postgres-backed persistence layer for shifts and the
// read-only ledgers the lifecycle engine consults.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func statusStrings(statuses []models.ShiftStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Get fetches a shift by id.
func (s *Store) Get(ctx context.Context, shiftID string) (*models.Shift, error) {
	var shift models.Shift
	err := s.db.GetContext(ctx, &shift, `SELECT * FROM shifts WHERE id = $1`, shiftID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrShiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shift: %w", err)
	}
	return &shift, nil
}

// CompareAndTransition locks the shift row, verifies it is still in one
// of the expected statuses, applies mutate, and writes the full row
// back. A status mismatch rolls back with models.ErrStatusConflict so a
// losing concurrent caller never clobbers the winner's write.
func (s *Store) CompareAndTransition(ctx context.Context, shiftID string, expected []models.ShiftStatus, mutate func(*models.Shift) error) (*models.Shift, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var shift models.Shift
	err = tx.GetContext(ctx, &shift, `SELECT * FROM shifts WHERE id = $1 FOR UPDATE`, shiftID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrShiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock shift: %w", err)
	}

	matched := false
	for _, status := range expected {
		if shift.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return nil, models.ErrStatusConflict
	}

	if err := mutate(&shift); err != nil {
		return nil, err
	}
	shift.UpdatedAt = time.Now().Unix()

	_, err = tx.NamedExecContext(ctx, `
		UPDATE shifts SET
			status = :status,
			clock_in_at = :clock_in_at,
			clock_in_lat = :clock_in_lat,
			clock_in_lng = :clock_in_lng,
			clock_in_accuracy = :clock_in_accuracy,
			ended_at = :ended_at,
			clock_out_lat = :clock_out_lat,
			clock_out_lng = :clock_out_lng,
			end_notes = :end_notes,
			breaks = :breaks,
			checklist = :checklist,
			late_arrival = :late_arrival,
			under_working = :under_working,
			has_incident = :has_incident,
			summary = :summary,
			updated_at = :updated_at
		WHERE id = :id`, &shift)
	if err != nil {
		return nil, fmt.Errorf("failed to update shift: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return &shift, nil
}

// SetUnderWorking flips the under_working flag iff the shift is still
// in one of the expected statuses. Returns whether a row was updated.
func (s *Store) SetUnderWorking(ctx context.Context, shiftID string, expected []models.ShiftStatus, flag bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE shifts SET under_working = $1, updated_at = $2
		WHERE id = $3 AND status = ANY($4) AND under_working <> $1`,
		flag, time.Now().Unix(), shiftID, pq.Array(statusStrings(expected)))
	if err != nil {
		return false, fmt.Errorf("failed to update under-working flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListByStatus returns shifts in any of the given statuses, oldest
// scheduled first.
func (s *Store) ListByStatus(ctx context.Context, statuses ...models.ShiftStatus) ([]models.Shift, error) {
	shifts := []models.Shift{}
	err := s.db.SelectContext(ctx, &shifts, `
		SELECT * FROM shifts WHERE status = ANY($1) ORDER BY scheduled_start ASC, id ASC`,
		pq.Array(statusStrings(statuses)))
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts by status: %w", err)
	}
	return shifts, nil
}

// ListForDay returns every shift of the given type scheduled to start
// within [dayStart, dayEnd).
func (s *Store) ListForDay(ctx context.Context, shiftType models.ShiftType, dayStart, dayEnd int64) ([]models.Shift, error) {
	shifts := []models.Shift{}
	err := s.db.SelectContext(ctx, &shifts, `
		SELECT * FROM shifts
		WHERE shift_type = $1 AND scheduled_start >= $2 AND scheduled_start < $3
		ORDER BY scheduled_start ASC, id ASC`,
		shiftType, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts for day: %w", err)
	}
	return shifts, nil
}

// ListCompletedForDay returns completed shifts scheduled within
// [dayStart, dayEnd), optionally filtered by the driver's service
// segment and by shift type.
func (s *Store) ListCompletedForDay(ctx context.Context, dayStart, dayEnd int64, segment *string, shiftType *models.ShiftType) ([]models.Shift, error) {
	shifts := []models.Shift{}
	err := s.db.SelectContext(ctx, &shifts, `
		SELECT s.* FROM shifts s
		JOIN users u ON u.id = s.driver_id
		WHERE s.status = 'completed'
		  AND s.scheduled_start >= $1 AND s.scheduled_start < $2
		  AND ($3::text IS NULL OR u.service_segment = $3)
		  AND ($4::text IS NULL OR s.shift_type = $4)
		ORDER BY s.scheduled_start ASC, s.id ASC`,
		dayStart, dayEnd, segment, (*string)(shiftType))
	if err != nil {
		return nil, fmt.Errorf("failed to list completed shifts: %w", err)
	}
	return shifts, nil
}

// CreateShift provisions a scheduled shift.
func (s *Store) CreateShift(ctx context.Context, driverID string, shiftType models.ShiftType, zoneID *string, scheduledStart, scheduledEnd int64) (*models.Shift, error) {
	now := time.Now().Unix()
	shift := models.Shift{
		ID:             uuid.New().String(),
		DriverID:       driverID,
		ShiftType:      shiftType,
		ZoneID:         zoneID,
		Status:         models.ShiftStatusScheduled,
		ScheduledStart: scheduledStart,
		ScheduledEnd:   scheduledEnd,
		Breaks:         models.BreakList{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO shifts (id, driver_id, shift_type, zone_id, status, scheduled_start, scheduled_end, breaks, created_at, updated_at)
		VALUES (:id, :driver_id, :shift_type, :zone_id, :status, :scheduled_start, :scheduled_end, :breaks, :created_at, :updated_at)`,
		&shift)
	if err != nil {
		return nil, fmt.Errorf("failed to create shift: %w", err)
	}
	return &shift, nil
}

// CurrentShiftForDriver returns the driver's shift that is either in
// progress or the next scheduled one, if any.
func (s *Store) CurrentShiftForDriver(ctx context.Context, driverID string) (*models.Shift, error) {
	var shift models.Shift
	err := s.db.GetContext(ctx, &shift, `
		SELECT * FROM shifts
		WHERE driver_id = $1 AND status IN ('active', 'on_break', 'scheduled')
		ORDER BY CASE status WHEN 'active' THEN 0 WHEN 'on_break' THEN 0 ELSE 1 END, scheduled_start ASC
		LIMIT 1`, driverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrShiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current shift: %w", err)
	}
	return &shift, nil
}

// HistoryForDriver returns the driver's most recent shifts.
func (s *Store) HistoryForDriver(ctx context.Context, driverID string, limit int) ([]models.Shift, error) {
	if limit <= 0 {
		limit = 30
	}
	shifts := []models.Shift{}
	err := s.db.SelectContext(ctx, &shifts, `
		SELECT * FROM shifts WHERE driver_id = $1
		ORDER BY scheduled_start DESC, id DESC LIMIT $2`, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shift history: %w", err)
	}
	return shifts, nil
}

// MarkIncident flags a shift as having an incident. Idempotent.
func (s *Store) MarkIncident(ctx context.Context, shiftID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE shifts SET has_incident = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now().Unix(), shiftID)
	if err != nil {
		return fmt.Errorf("failed to mark incident: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrShiftNotFound
	}
	return nil
}

// GetGeofence resolves the boundary for a shift type and kind. A fence
// bound to the shift's zone wins over a zone-agnostic one; an end
// boundary falls back to the start boundary when none is provisioned.
func (s *Store) GetGeofence(ctx context.Context, shiftType models.ShiftType, zoneID *string, kind models.GeofenceKind) (*models.Geofence, error) {
	var fence models.Geofence
	err := s.db.GetContext(ctx, &fence, `
		SELECT * FROM geofences
		WHERE shift_type = $1 AND kind = $2
		  AND (zone_id IS NULL OR zone_id IS NOT DISTINCT FROM $3)
		ORDER BY CASE WHEN zone_id IS NOT DISTINCT FROM $3 AND zone_id IS NOT NULL THEN 0 ELSE 1 END, created_at ASC
		LIMIT 1`, shiftType, kind, zoneID)
	if errors.Is(err, sql.ErrNoRows) && kind == models.GeofenceKindEnd {
		return s.GetGeofence(ctx, shiftType, zoneID, models.GeofenceKindStart)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGeofenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve geofence: %w", err)
	}
	return &fence, nil
}

func (s *Store) GetGeofenceByID(ctx context.Context, geofenceID string) (*models.Geofence, error) {
	var fence models.Geofence
	err := s.db.GetContext(ctx, &fence, `SELECT * FROM geofences WHERE id = $1`, geofenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGeofenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch geofence: %w", err)
	}
	return &fence, nil
}

func (s *Store) ListGeofences(ctx context.Context) ([]models.Geofence, error) {
	fences := []models.Geofence{}
	err := s.db.SelectContext(ctx, &fences, `SELECT * FROM geofences ORDER BY shift_type, kind, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list geofences: %w", err)
	}
	return fences, nil
}

func (s *Store) CreateGeofence(ctx context.Context, fence *models.Geofence) error {
	now := time.Now().Unix()
	if fence.ID == "" {
		fence.ID = uuid.New().String()
	}
	fence.CreatedAt = now
	fence.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO geofences (id, name, shift_type, zone_id, kind, center_lat, center_lng, radius_meters, created_at, updated_at)
		VALUES (:id, :name, :shift_type, :zone_id, :kind, :center_lat, :center_lng, :radius_meters, :created_at, :updated_at)`,
		fence)
	if err != nil {
		return fmt.Errorf("failed to create geofence: %w", err)
	}
	return nil
}

// GetAvailableBalance returns the driver's bond balance alongside the
// minimum its service segment requires.
func (s *Store) GetAvailableBalance(ctx context.Context, driverID string) (models.BondStatus, error) {
	var status models.BondStatus
	err := s.db.GetContext(ctx, &status, `
		SELECT b.available, COALESCE(seg.min_bond, 0) AS minimum_required
		FROM bond_balances b
		JOIN users u ON u.id = b.driver_id
		LEFT JOIN service_segments seg ON seg.segment = u.service_segment
		WHERE b.driver_id = $1`, driverID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BondStatus{}, models.ErrBondNotFound
	}
	if err != nil {
		return models.BondStatus{}, fmt.Errorf("failed to fetch bond balance: %w", err)
	}
	return status, nil
}

// SegmentFor returns the service segment thresholds for a driver.
// Drivers in an unprovisioned segment get zero thresholds.
func (s *Store) SegmentFor(ctx context.Context, driverID string) (models.ServiceSegment, error) {
	var segment models.ServiceSegment
	err := s.db.GetContext(ctx, &segment, `
		SELECT u.service_segment AS segment,
		       COALESCE(seg.min_bond, 0) AS min_bond,
		       COALESCE(seg.min_active_seconds, 0) AS min_active_seconds
		FROM users u
		LEFT JOIN service_segments seg ON seg.segment = u.service_segment
		WHERE u.id = $1`, driverID)
	if err != nil {
		return models.ServiceSegment{}, fmt.Errorf("failed to resolve service segment: %w", err)
	}
	return segment, nil
}

// TokensForUser returns the user's registered FCM push tokens.
func (s *Store) TokensForUser(ctx context.Context, userID string) ([]string, error) {
	tokens := []string{}
	err := s.db.SelectContext(ctx, &tokens, `SELECT token FROM fcm_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch FCM tokens: %w", err)
	}
	return tokens, nil
}

// RegisterToken upserts an FCM token for a user.
func (s *Store) RegisterToken(ctx context.Context, userID, token string, deviceInfo *string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fcm_tokens (id, user_id, token, device_info, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, token) DO UPDATE SET device_info = EXCLUDED.device_info, updated_at = EXCLUDED.updated_at`,
		uuid.New().String(), userID, token, deviceInfo, now)
	if err != nil {
		return fmt.Errorf("failed to register FCM token: %w", err)
	}
	return nil
}
