package services

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"fleetops-backend/internal/models"
)

// ShiftStore is the persistence contract the engine drives all shift
// mutation through. CompareAndTransition is the concurrency-safety
// primitive: it must atomically verify the shift is still in one of the
// expected statuses and apply the mutation, or fail with
// models.ErrStatusConflict without writing anything.
type ShiftStore interface {
	Get(ctx context.Context, shiftID string) (*models.Shift, error)
	CompareAndTransition(ctx context.Context, shiftID string, expected []models.ShiftStatus, mutate func(*models.Shift) error) (*models.Shift, error)
	SetUnderWorking(ctx context.Context, shiftID string, expected []models.ShiftStatus, flag bool) (bool, error)
	ListByStatus(ctx context.Context, statuses ...models.ShiftStatus) ([]models.Shift, error)
	ListForDay(ctx context.Context, shiftType models.ShiftType, dayStart, dayEnd int64) ([]models.Shift, error)
	ListCompletedForDay(ctx context.Context, dayStart, dayEnd int64, segment *string, shiftType *models.ShiftType) ([]models.Shift, error)
}

// BondLedger reads a driver's financial buffer. Owned by the payments
// system; the engine never writes to it.
type BondLedger interface {
	GetAvailableBalance(ctx context.Context, driverID string) (models.BondStatus, error)
}

// GeofenceConfig resolves staging boundaries. Provisioned externally.
type GeofenceConfig interface {
	GetGeofence(ctx context.Context, shiftType models.ShiftType, zoneID *string, kind models.GeofenceKind) (*models.Geofence, error)
	GetGeofenceByID(ctx context.Context, geofenceID string) (*models.Geofence, error)
}

// SegmentDirectory resolves a driver's service segment thresholds.
type SegmentDirectory interface {
	SegmentFor(ctx context.Context, driverID string) (models.ServiceSegment, error)
}

// StatusChange is the payload emitted after every committed transition.
type StatusChange struct {
	ShiftID   string             `json:"shift_id"`
	DriverID  string             `json:"driver_id"`
	OldStatus models.ShiftStatus `json:"old_status"`
	NewStatus models.ShiftStatus `json:"new_status"`
	At        int64              `json:"at"`
}

// Notifier fans a status change out to interested parties. Best-effort:
// implementations must never fail the transition that triggered them.
type Notifier interface {
	ShiftStatusChanged(change StatusChange)
}

// EngineConfig holds the lifecycle tunables.
type EngineConfig struct {
	AccuracyCeilingMeters float64       // samples above this are advisory-only
	LateGrace             time.Duration // clock-in later than start+grace flags late arrival
	NoShowGrace           time.Duration // scheduled shifts older than start+grace become no-shows
	GuardTimeout          time.Duration // bound on each guard dependency read
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AccuracyCeilingMeters: DefaultAccuracyCeilingMeters,
		LateGrace:             10 * time.Minute,
		NoShowGrace:           30 * time.Minute,
		GuardTimeout:          3 * time.Second,
	}
}

// EngineConfigFromEnv builds the lifecycle tunables from environment
// variables, falling back to the defaults for anything unset or
// unparseable:
//
//	GEOFENCE_ACCURACY_CEILING_M
//	LATE_GRACE_MINUTES
//	NO_SHOW_GRACE_MINUTES
//	GUARD_TIMEOUT_MS
func EngineConfigFromEnv() EngineConfig {
	cfg := DefaultEngineConfig()

	if v := os.Getenv("GEOFENCE_ACCURACY_CEILING_M"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.AccuracyCeilingMeters = f
		} else {
			log.Printf("⚠️  Invalid GEOFENCE_ACCURACY_CEILING_M %q, using default %.0f", v, cfg.AccuracyCeilingMeters)
		}
	}
	if v := os.Getenv("LATE_GRACE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.LateGrace = time.Duration(n) * time.Minute
		} else {
			log.Printf("⚠️  Invalid LATE_GRACE_MINUTES %q, using default %s", v, cfg.LateGrace)
		}
	}
	if v := os.Getenv("NO_SHOW_GRACE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.NoShowGrace = time.Duration(n) * time.Minute
		} else {
			log.Printf("⚠️  Invalid NO_SHOW_GRACE_MINUTES %q, using default %s", v, cfg.NoShowGrace)
		}
	}
	if v := os.Getenv("GUARD_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GuardTimeout = time.Duration(n) * time.Millisecond
		} else {
			log.Printf("⚠️  Invalid GUARD_TIMEOUT_MS %q, using default %s", v, cfg.GuardTimeout)
		}
	}
	return cfg
}

// ShiftEngine orchestrates shift state transitions. Guards run in a
// fixed order before any write; the only write per operation is the
// final compare-and-transition, so a rejected transition never leaves a
// partially mutated shift.
type ShiftEngine struct {
	store    ShiftStore
	ledger   BondLedger
	fences   GeofenceConfig
	segments SegmentDirectory
	notifier Notifier
	cfg      EngineConfig

	now func() time.Time
}

// NewShiftEngine creates a lifecycle engine. notifier may be nil.
func NewShiftEngine(store ShiftStore, ledger BondLedger, fences GeofenceConfig, segments SegmentDirectory, notifier Notifier, cfg EngineConfig) *ShiftEngine {
	return &ShiftEngine{
		store:    store,
		ledger:   ledger,
		fences:   fences,
		segments: segments,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ClockIn transitions a scheduled shift to active. Guards, in order:
// geofence proximity against the start boundary, then bond sufficiency.
// First failure wins and nothing is written.
func (e *ShiftEngine) ClockIn(ctx context.Context, shiftID string, sample models.GeoSample, checklist *models.Checklist) (*models.Shift, error) {
	if !sample.Valid() {
		return nil, errValidation("malformed geo sample")
	}

	shift, err := e.getShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != models.ShiftStatusScheduled {
		return nil, errShiftNotActive(shiftID, shift.Status)
	}

	fence, verdict, err := e.geofenceGuard(ctx, shift, sample, models.GeofenceKindStart)
	if err != nil {
		return nil, err
	}

	if err := e.bondGuard(ctx, shift.DriverID); err != nil {
		return nil, err
	}

	now := e.now().Unix()
	lateDeadline := shift.ScheduledStart + int64(e.cfg.LateGrace.Seconds())

	updated, err := e.store.CompareAndTransition(ctx, shiftID,
		[]models.ShiftStatus{models.ShiftStatusScheduled},
		func(s *models.Shift) error {
			s.Status = models.ShiftStatusActive
			s.ClockInAt = &now
			s.ClockInLat = &sample.Latitude
			s.ClockInLng = &sample.Longitude
			s.ClockInAccuracy = sample.Accuracy
			s.LateArrival = now > lateDeadline
			if checklist != nil {
				s.Checklist = models.NullChecklist{Checklist: *checklist, Valid: true}
			}
			return nil
		})
	if err != nil {
		return nil, e.mapStoreErr(err, shiftID)
	}

	log.Printf("🕘 Shift clocked in: %s (driver %s, %dm from %s, late=%v)",
		shiftID, updated.DriverID, verdict.DistanceMeters, fence.Name, updated.LateArrival)

	e.notify(updated, models.ShiftStatusScheduled, now)
	return updated, nil
}

// StartBreak opens a break interval on an active shift. Breaks do not
// require relocation proof, so no guards run.
func (e *ShiftEngine) StartBreak(ctx context.Context, shiftID, reason string) (*models.Shift, error) {
	now := e.now().Unix()

	updated, err := e.store.CompareAndTransition(ctx, shiftID,
		[]models.ShiftStatus{models.ShiftStatusActive},
		func(s *models.Shift) error {
			if s.Breaks.Open() != nil {
				return models.ErrStatusConflict
			}
			s.Breaks = append(s.Breaks, models.BreakInterval{Start: now, Reason: reason})
			s.Status = models.ShiftStatusOnBreak
			return nil
		})
	if err != nil {
		return nil, e.mapStoreErr(err, shiftID)
	}

	e.notify(updated, models.ShiftStatusActive, now)
	return updated, nil
}

// EndBreak closes the open break interval and returns the shift to
// active.
func (e *ShiftEngine) EndBreak(ctx context.Context, shiftID string) (*models.Shift, error) {
	now := e.now().Unix()

	updated, err := e.store.CompareAndTransition(ctx, shiftID,
		[]models.ShiftStatus{models.ShiftStatusOnBreak},
		func(s *models.Shift) error {
			open := s.Breaks.Open()
			if open == nil {
				return models.ErrStatusConflict
			}
			end := now
			if end < open.Start {
				end = open.Start
			}
			open.End = &end
			s.Status = models.ShiftStatusActive
			return nil
		})
	if err != nil {
		return nil, e.mapStoreErr(err, shiftID)
	}

	e.notify(updated, models.ShiftStatusOnBreak, now)
	return updated, nil
}

// EndShift completes an active or on-break shift: closes any open
// break, records the end geo-sample and notes, computes the final
// summary, and transitions to completed.
func (e *ShiftEngine) EndShift(ctx context.Context, shiftID string, sample models.GeoSample, notes string) (*models.Shift, *models.ShiftSummary, error) {
	if !sample.Valid() {
		return nil, nil, errValidation("malformed geo sample")
	}

	shift, err := e.getShift(ctx, shiftID)
	if err != nil {
		return nil, nil, err
	}
	if shift.Status != models.ShiftStatusActive && shift.Status != models.ShiftStatusOnBreak {
		return nil, nil, errShiftNotActive(shiftID, shift.Status)
	}

	_, _, err = e.geofenceGuard(ctx, shift, sample, models.GeofenceKindEnd)
	if err != nil {
		return nil, nil, err
	}

	segment, err := e.segmentFor(ctx, shift.DriverID)
	if err != nil {
		return nil, nil, err
	}

	now := e.now().Unix()
	oldStatus := shift.Status
	endAccurate := IsAccurate(sample, e.cfg.AccuracyCeilingMeters)

	updated, err := e.store.CompareAndTransition(ctx, shiftID,
		[]models.ShiftStatus{models.ShiftStatusActive, models.ShiftStatusOnBreak},
		func(s *models.Shift) error {
			if open := s.Breaks.Open(); open != nil {
				end := now
				if end < open.Start {
					end = open.Start
				}
				open.End = &end
			}
			s.EndedAt = &now
			s.ClockOutLat = &sample.Latitude
			s.ClockOutLng = &sample.Longitude
			if notes != "" {
				s.EndNotes = &notes
			}

			breakSeconds := s.Breaks.TotalSecondsAsOf(now)
			activeSeconds := s.ActiveSecondsAsOf(now)
			s.UnderWorking = activeSeconds < segment.MinActiveSeconds

			startAccurate := s.ClockInAccuracy == nil || *s.ClockInAccuracy <= e.cfg.AccuracyCeilingMeters
			s.Summary = models.NullSummary{
				Summary: models.ShiftSummary{
					TotalActiveSeconds: activeSeconds,
					TotalBreakSeconds:  breakSeconds,
					UnderWorking:       s.UnderWorking,
					GeofenceCompliant:  startAccurate && endAccurate,
				},
				Valid: true,
			}
			s.Status = models.ShiftStatusCompleted
			return nil
		})
	if err != nil {
		return nil, nil, e.mapStoreErr(err, shiftID)
	}

	log.Printf("🏁 Shift completed: %s (%ds active, %ds break, under_working=%v)",
		shiftID, updated.Summary.Summary.TotalActiveSeconds, updated.Summary.Summary.TotalBreakSeconds, updated.UnderWorking)

	e.notify(updated, oldStatus, now)
	summary := updated.Summary.Summary
	return updated, &summary, nil
}

// MarkNoShow transitions an overdue scheduled shift to no_show. A shift
// already in no_show is a no-op, not an error.
func (e *ShiftEngine) MarkNoShow(ctx context.Context, shiftID string) (*models.Shift, error) {
	shift, err := e.getShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status == models.ShiftStatusNoShow {
		return shift, nil
	}
	if shift.Status != models.ShiftStatusScheduled {
		return nil, errShiftNotActive(shiftID, shift.Status)
	}

	now := e.now().Unix()
	deadline := shift.ScheduledStart + int64(e.cfg.NoShowGrace.Seconds())
	if now <= deadline {
		return nil, errValidation("no-show grace period has not elapsed")
	}

	updated, err := e.store.CompareAndTransition(ctx, shiftID,
		[]models.ShiftStatus{models.ShiftStatusScheduled},
		func(s *models.Shift) error {
			s.Status = models.ShiftStatusNoShow
			s.EndedAt = &now
			s.Summary = models.NullSummary{
				Summary: models.ShiftSummary{Note: "no_show"},
				Valid:   true,
			}
			return nil
		})
	if err != nil {
		return nil, e.mapStoreErr(err, shiftID)
	}

	log.Printf("🚫 Shift marked no-show: %s (driver %s)", shiftID, updated.DriverID)
	e.notify(updated, models.ShiftStatusScheduled, now)
	return updated, nil
}

// MarkNoShowSweep applies MarkNoShow to every scheduled shift past its
// grace window. Safe to re-run; returns the number transitioned.
func (e *ShiftEngine) MarkNoShowSweep(ctx context.Context) (int, error) {
	shifts, err := e.store.ListByStatus(ctx, models.ShiftStatusScheduled)
	if err != nil {
		return 0, err
	}

	now := e.now().Unix()
	grace := int64(e.cfg.NoShowGrace.Seconds())
	count := 0
	for i := range shifts {
		if now <= shifts[i].ScheduledStart+grace {
			continue
		}
		if _, err := e.MarkNoShow(ctx, shifts[i].ID); err != nil {
			// A concurrent clock-in winning the race is expected; skip.
			if CodeOf(err) == CodeShiftNotActive {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// CancelShift is the manager side exit: any non-terminal shift moves to
// cancelled, with whatever active/break time it accrued recorded.
func (e *ShiftEngine) CancelShift(ctx context.Context, shiftID, reason string) (*models.Shift, error) {
	shift, err := e.getShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status.IsTerminal() {
		return nil, errShiftNotActive(shiftID, shift.Status)
	}

	now := e.now().Unix()
	oldStatus := shift.Status
	note := "cancelled"
	if reason != "" {
		note = "cancelled: " + reason
	}

	updated, err := e.store.CompareAndTransition(ctx, shiftID,
		[]models.ShiftStatus{models.ShiftStatusScheduled, models.ShiftStatusActive, models.ShiftStatusOnBreak},
		func(s *models.Shift) error {
			if open := s.Breaks.Open(); open != nil {
				end := now
				if end < open.Start {
					end = open.Start
				}
				open.End = &end
			}
			s.EndedAt = &now
			s.Summary = models.NullSummary{
				Summary: models.ShiftSummary{
					TotalActiveSeconds: s.ActiveSecondsAsOf(now),
					TotalBreakSeconds:  s.Breaks.TotalSecondsAsOf(now),
					Note:               note,
				},
				Valid: true,
			}
			s.Status = models.ShiftStatusCancelled
			return nil
		})
	if err != nil {
		return nil, e.mapStoreErr(err, shiftID)
	}

	log.Printf("🛑 Shift cancelled: %s (was %s)", shiftID, oldStatus)
	e.notify(updated, oldStatus, now)
	return updated, nil
}

// RecalculateUnderWorkingFlags recomputes the provisional under-working
// flag for every live shift as of the given time (defaults to now). The
// flag is only asserted once the scheduled window has closed; before
// that it is cleared. Writes are flag-only CAS updates, so the batch is
// safe to run concurrently with live traffic and is last-write-wins.
func (e *ShiftEngine) RecalculateUnderWorkingFlags(ctx context.Context, asOf *time.Time) (int, error) {
	at := e.now()
	if asOf != nil {
		at = *asOf
	}
	now := at.Unix()

	shifts, err := e.store.ListByStatus(ctx, models.ShiftStatusActive, models.ShiftStatusOnBreak)
	if err != nil {
		return 0, err
	}

	live := []models.ShiftStatus{models.ShiftStatusActive, models.ShiftStatusOnBreak}
	updated := 0
	for i := range shifts {
		s := &shifts[i]

		segment, err := e.segmentFor(ctx, s.DriverID)
		if err != nil {
			return updated, err
		}

		flag := now >= s.ScheduledEnd && s.ActiveSecondsAsOf(now) < segment.MinActiveSeconds
		if flag == s.UnderWorking {
			continue
		}

		applied, err := e.store.SetUnderWorking(ctx, s.ID, live, flag)
		if err != nil {
			return updated, err
		}
		if applied {
			updated++
		}
	}

	log.Printf("♻️  Under-working recalculation: %d live shifts scanned, %d flags updated", len(shifts), updated)
	return updated, nil
}

func (e *ShiftEngine) getShift(ctx context.Context, shiftID string) (*models.Shift, error) {
	shift, err := e.store.Get(ctx, shiftID)
	if err != nil {
		return nil, e.mapStoreErr(err, shiftID)
	}
	return shift, nil
}

func (e *ShiftEngine) mapStoreErr(err error, shiftID string) error {
	switch {
	case errors.Is(err, models.ErrShiftNotFound):
		return errShiftNotFound(shiftID)
	case errors.Is(err, models.ErrStatusConflict):
		return errShiftNotActive(shiftID, nil)
	default:
		return err
	}
}

// geofenceGuard resolves the boundary for the shift and checks the
// sample against it. The read is timeout-bound so a slow config lookup
// fails the operation instead of hanging it.
func (e *ShiftEngine) geofenceGuard(ctx context.Context, shift *models.Shift, sample models.GeoSample, kind models.GeofenceKind) (*models.Geofence, GeofenceVerdict, error) {
	gctx, cancel := context.WithTimeout(ctx, e.cfg.GuardTimeout)
	defer cancel()

	fence, err := e.fences.GetGeofence(gctx, shift.ShiftType, shift.ZoneID, kind)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, GeofenceVerdict{}, errGuardTimeout("geofence config", err)
		}
		if errors.Is(err, models.ErrGeofenceNotFound) {
			return nil, GeofenceVerdict{}, errValidation("no geofence configured for shift type " + string(shift.ShiftType))
		}
		return nil, GeofenceVerdict{}, err
	}

	verdict := IsWithin(
		Location{Latitude: sample.Latitude, Longitude: sample.Longitude},
		Location{Latitude: fence.CenterLat, Longitude: fence.CenterLng},
		fence.RadiusMeters,
	)
	if !verdict.Within {
		return nil, verdict, errOutsideGeofence(verdict, fence.Name)
	}
	return fence, verdict, nil
}

func (e *ShiftEngine) bondGuard(ctx context.Context, driverID string) error {
	bctx, cancel := context.WithTimeout(ctx, e.cfg.GuardTimeout)
	defer cancel()

	status, err := e.ledger.GetAvailableBalance(bctx, driverID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errGuardTimeout("bond ledger", err)
		}
		if errors.Is(err, models.ErrBondNotFound) {
			// No ledger row means no posted bond at all.
			segment, segErr := e.segmentFor(ctx, driverID)
			if segErr != nil {
				return segErr
			}
			return errBondInsufficient(0, segment.MinBond)
		}
		return err
	}
	if status.Available < status.MinimumRequired {
		return errBondInsufficient(status.Available, status.MinimumRequired)
	}
	return nil
}

func (e *ShiftEngine) segmentFor(ctx context.Context, driverID string) (models.ServiceSegment, error) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.GuardTimeout)
	defer cancel()

	segment, err := e.segments.SegmentFor(sctx, driverID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.ServiceSegment{}, errGuardTimeout("segment directory", err)
		}
		return models.ServiceSegment{}, err
	}
	return segment, nil
}

func (e *ShiftEngine) notify(shift *models.Shift, oldStatus models.ShiftStatus, at int64) {
	if e.notifier == nil {
		return
	}
	e.notifier.ShiftStatusChanged(StatusChange{
		ShiftID:   shift.ID,
		DriverID:  shift.DriverID,
		OldStatus: oldStatus,
		NewStatus: shift.Status,
		At:        at,
	})
}
