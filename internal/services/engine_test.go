package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetops-backend/internal/models"
)

// memStore is an in-memory ShiftStore with the same compare-and-set
// semantics as the Postgres store.
type memStore struct {
	mu     sync.Mutex
	shifts map[string]*models.Shift
}

func newMemStore(shifts ...*models.Shift) *memStore {
	m := &memStore{shifts: map[string]*models.Shift{}}
	for _, s := range shifts {
		cp := *s
		m.shifts[s.ID] = &cp
	}
	return m
}

func (m *memStore) Get(_ context.Context, shiftID string) (*models.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shifts[shiftID]
	if !ok {
		return nil, models.ErrShiftNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) CompareAndTransition(_ context.Context, shiftID string, expected []models.ShiftStatus, mutate func(*models.Shift) error) (*models.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shifts[shiftID]
	if !ok {
		return nil, models.ErrShiftNotFound
	}
	matched := false
	for _, status := range expected {
		if s.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return nil, models.ErrStatusConflict
	}
	cp := *s
	cp.Breaks = append(models.BreakList{}, s.Breaks...)
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	m.shifts[shiftID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) SetUnderWorking(_ context.Context, shiftID string, expected []models.ShiftStatus, flag bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shifts[shiftID]
	if !ok {
		return false, nil
	}
	for _, status := range expected {
		if s.Status == status && s.UnderWorking != flag {
			s.UnderWorking = flag
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListByStatus(_ context.Context, statuses ...models.ShiftStatus) ([]models.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Shift
	for _, s := range m.shifts {
		for _, status := range statuses {
			if s.Status == status {
				out = append(out, *s)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) ListForDay(_ context.Context, shiftType models.ShiftType, dayStart, dayEnd int64) ([]models.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Shift
	for _, s := range m.shifts {
		if s.ShiftType == shiftType && s.ScheduledStart >= dayStart && s.ScheduledStart < dayEnd {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) ListCompletedForDay(_ context.Context, dayStart, dayEnd int64, _ *string, shiftType *models.ShiftType) ([]models.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Shift
	for _, s := range m.shifts {
		if s.Status != models.ShiftStatusCompleted {
			continue
		}
		if s.ScheduledStart < dayStart || s.ScheduledStart >= dayEnd {
			continue
		}
		if shiftType != nil && s.ShiftType != *shiftType {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

type fakeLedger struct {
	status models.BondStatus
}

func (f fakeLedger) GetAvailableBalance(context.Context, string) (models.BondStatus, error) {
	return f.status, nil
}

type fakeFences struct {
	fence *models.Geofence
}

func (f fakeFences) GetGeofence(context.Context, models.ShiftType, *string, models.GeofenceKind) (*models.Geofence, error) {
	if f.fence == nil {
		return nil, models.ErrGeofenceNotFound
	}
	return f.fence, nil
}

func (f fakeFences) GetGeofenceByID(context.Context, string) (*models.Geofence, error) {
	if f.fence == nil {
		return nil, models.ErrGeofenceNotFound
	}
	return f.fence, nil
}

type fakeSegments struct {
	segment models.ServiceSegment
}

func (f fakeSegments) SegmentFor(context.Context, string) (models.ServiceSegment, error) {
	return f.segment, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []StatusChange
}

func (r *recordingNotifier) ShiftStatusChanged(change StatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *recordingNotifier) all() []StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatusChange{}, r.changes...)
}

// Fixed test clock: 2025-06-02 08:05:00 UTC, five minutes into a shift
// scheduled for 08:00.
var (
	testDay   = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	testStart = testDay.Add(8 * time.Hour).Unix()
	testEnd   = testDay.Add(16 * time.Hour).Unix()
)

func testShift() *models.Shift {
	return &models.Shift{
		ID:             "shift-1",
		DriverID:       "driver-1",
		ShiftType:      models.ShiftTypeMorning,
		Status:         models.ShiftStatusScheduled,
		ScheduledStart: testStart,
		ScheduledEnd:   testEnd,
		Breaks:         models.BreakList{},
	}
}

func testFence() *models.Geofence {
	return &models.Geofence{
		ID:           "fence-1",
		Name:         "Manila Depot",
		ShiftType:    models.ShiftTypeMorning,
		Kind:         models.GeofenceKindStart,
		CenterLat:    14.5995,
		CenterLng:    120.9842,
		RadiusMeters: 150,
	}
}

func newTestEngine(store ShiftStore, at time.Time, opts ...func(*ShiftEngine)) (*ShiftEngine, *recordingNotifier) {
	notifier := &recordingNotifier{}
	e := NewShiftEngine(store,
		fakeLedger{models.BondStatus{Available: 1500, MinimumRequired: 1000}},
		fakeFences{testFence()},
		fakeSegments{models.ServiceSegment{Segment: "ride_hail", MinBond: 1000, MinActiveSeconds: 6 * 3600}},
		notifier,
		DefaultEngineConfig(),
	)
	e.now = func() time.Time { return at }
	for _, opt := range opts {
		opt(e)
	}
	return e, notifier
}

func insideSample() models.GeoSample {
	return models.GeoSample{Latitude: 14.5995, Longitude: 120.9842}
}

func outsideSample() models.GeoSample {
	// ~1.1 km north of the depot.
	return models.GeoSample{Latitude: 14.6095, Longitude: 120.9842}
}

func TestEngineConfigFromEnv(t *testing.T) {
	t.Setenv("GEOFENCE_ACCURACY_CEILING_M", "75.5")
	t.Setenv("LATE_GRACE_MINUTES", "5")
	t.Setenv("NO_SHOW_GRACE_MINUTES", "45")
	t.Setenv("GUARD_TIMEOUT_MS", "1500")

	cfg := EngineConfigFromEnv()
	assert.Equal(t, 75.5, cfg.AccuracyCeilingMeters)
	assert.Equal(t, 5*time.Minute, cfg.LateGrace)
	assert.Equal(t, 45*time.Minute, cfg.NoShowGrace)
	assert.Equal(t, 1500*time.Millisecond, cfg.GuardTimeout)
}

func TestEngineConfigFromEnvFallsBackOnGarbage(t *testing.T) {
	t.Setenv("GEOFENCE_ACCURACY_CEILING_M", "-1")
	t.Setenv("LATE_GRACE_MINUTES", "soon")
	t.Setenv("NO_SHOW_GRACE_MINUTES", "")
	t.Setenv("GUARD_TIMEOUT_MS", "0")

	assert.Equal(t, DefaultEngineConfig(), EngineConfigFromEnv())
}

func TestClockInOnTime(t *testing.T) {
	store := newMemStore(testShift())
	at := time.Unix(testStart+5*60, 0)
	engine, notifier := newTestEngine(store, at)

	shift, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.ShiftStatusActive, shift.Status)
	require.NotNil(t, shift.ClockInAt)
	assert.Equal(t, at.Unix(), *shift.ClockInAt)
	assert.False(t, shift.LateArrival)
	assert.False(t, shift.Summary.Valid, "summary must stay unset until terminal")

	changes := notifier.all()
	require.Len(t, changes, 1)
	assert.Equal(t, models.ShiftStatusScheduled, changes[0].OldStatus)
	assert.Equal(t, models.ShiftStatusActive, changes[0].NewStatus)
}

func TestClockInAfterGraceFlagsLateArrival(t *testing.T) {
	store := newMemStore(testShift())
	// 25 minutes past scheduled start, grace is 10.
	engine, _ := newTestEngine(store, time.Unix(testStart+25*60, 0))

	shift, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)
	assert.True(t, shift.LateArrival)
}

func TestClockInExactlyAtGraceBoundaryIsNotLate(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart+10*60, 0))

	shift, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)
	assert.False(t, shift.LateArrival)
}

func TestClockInOutsideGeofence(t *testing.T) {
	store := newMemStore(testShift())
	engine, notifier := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "shift-1", outsideSample(), nil)
	require.Error(t, err)
	assert.Equal(t, CodeOutsideGeofence, CodeOf(err))

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Manila Depot", te.Details["geofence"])
	assert.Greater(t, te.Details["distance_meters"].(int), te.Details["radius_meters"].(int))

	// Nothing written, nothing notified.
	after, _ := store.Get(context.Background(), "shift-1")
	assert.Equal(t, models.ShiftStatusScheduled, after.Status)
	assert.Empty(t, notifier.all())
}

func TestClockInDepotSamplePoints(t *testing.T) {
	// Depot fence: center (14.5995, 120.9842), radius 150 m.
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	// ~11 m east of center passes.
	shift, err := engine.ClockIn(context.Background(), "shift-1",
		models.GeoSample{Latitude: 14.5995, Longitude: 120.9843}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ShiftStatusActive, shift.Status)

	// ~874 m northeast is rejected with the measured distance.
	store = newMemStore(testShift())
	engine, _ = newTestEngine(store, time.Unix(testStart, 0))
	_, err = engine.ClockIn(context.Background(), "shift-1",
		models.GeoSample{Latitude: 14.6050, Longitude: 120.9900}, nil)
	require.Error(t, err)
	assert.Equal(t, CodeOutsideGeofence, CodeOf(err))

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.InDelta(t, 874, te.Details["distance_meters"].(int), 1)
	assert.Equal(t, 150, te.Details["radius_meters"])
}

func TestClockInGeofenceGuardRunsBeforeBondGuard(t *testing.T) {
	// Both guards would fail; the geofence rejection must win.
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0), func(e *ShiftEngine) {
		e.ledger = fakeLedger{models.BondStatus{Available: 0, MinimumRequired: 1000}}
	})

	_, err := engine.ClockIn(context.Background(), "shift-1", outsideSample(), nil)
	assert.Equal(t, CodeOutsideGeofence, CodeOf(err))
}

func TestClockInBondInsufficient(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0), func(e *ShiftEngine) {
		e.ledger = fakeLedger{models.BondStatus{Available: 500, MinimumRequired: 1000}}
	})

	_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.Error(t, err)
	assert.Equal(t, CodeBondInsufficient, CodeOf(err))

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 500.0, te.Details["available"])
	assert.Equal(t, 1000.0, te.Details["required"])
}

func TestClockInTwiceFails(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)

	_, err = engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	assert.Equal(t, CodeShiftNotActive, CodeOf(err))
}

func TestClockInUnknownShift(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "missing", insideSample(), nil)
	assert.Equal(t, CodeShiftNotFound, CodeOf(err))
}

func TestClockInRejectsMalformedSample(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "shift-1", models.GeoSample{Latitude: 91, Longitude: 0}, nil)
	assert.Equal(t, CodeValidationFailed, CodeOf(err))
}

func TestConcurrentClockInExactlyOneWins(t *testing.T) {
	store := newMemStore(testShift())
	engine, notifier := newTestEngine(store, time.Unix(testStart, 0))

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case CodeOf(err) == CodeShiftNotActive:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
	assert.Len(t, notifier.all(), 1)
}

func TestBreakLifecycle(t *testing.T) {
	store := newMemStore(testShift())
	clock := time.Unix(testStart, 0)
	engine, _ := newTestEngine(store, clock)

	_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)

	// One hour in, take a 30 minute break.
	engine.now = func() time.Time { return time.Unix(testStart+3600, 0) }
	shift, err := engine.StartBreak(context.Background(), "shift-1", "lunch")
	require.NoError(t, err)
	assert.Equal(t, models.ShiftStatusOnBreak, shift.Status)
	require.Len(t, shift.Breaks, 1)
	assert.Nil(t, shift.Breaks[0].End)
	assert.Equal(t, "lunch", shift.Breaks[0].Reason)

	// Starting a second break while paused must conflict.
	_, err = engine.StartBreak(context.Background(), "shift-1", "again")
	assert.Equal(t, CodeShiftNotActive, CodeOf(err))

	engine.now = func() time.Time { return time.Unix(testStart+3600+1800, 0) }
	shift, err = engine.EndBreak(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, models.ShiftStatusActive, shift.Status)
	require.NotNil(t, shift.Breaks[0].End)
	assert.Equal(t, int64(1800), shift.Breaks.TotalSecondsAsOf(engine.now().Unix()))

	// Ending a break that is not open must conflict.
	_, err = engine.EndBreak(context.Background(), "shift-1")
	assert.Equal(t, CodeShiftNotActive, CodeOf(err))
}

func TestStartBreakRequiresActiveShift(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.StartBreak(context.Background(), "shift-1", "")
	assert.Equal(t, CodeShiftNotActive, CodeOf(err))
}

func TestEndShiftSummaryArithmetic(t *testing.T) {
	store := newMemStore(testShift())
	engine, notifier := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)

	engine.now = func() time.Time { return time.Unix(testStart+2*3600, 0) }
	_, err = engine.StartBreak(context.Background(), "shift-1", "")
	require.NoError(t, err)

	engine.now = func() time.Time { return time.Unix(testStart+2*3600+1800, 0) }
	_, err = engine.EndBreak(context.Background(), "shift-1")
	require.NoError(t, err)

	// End after 7 hours on the clock.
	endAt := testStart + 7*3600
	engine.now = func() time.Time { return time.Unix(endAt, 0) }
	shift, summary, err := engine.EndShift(context.Background(), "shift-1", insideSample(), "all good")
	require.NoError(t, err)

	assert.Equal(t, models.ShiftStatusCompleted, shift.Status)
	require.NotNil(t, shift.EndedAt)
	assert.Equal(t, endAt, *shift.EndedAt)
	require.NotNil(t, summary)

	// active + break must account for the full clocked interval.
	assert.Equal(t, int64(1800), summary.TotalBreakSeconds)
	assert.Equal(t, *shift.EndedAt-*shift.ClockInAt, summary.TotalActiveSeconds+summary.TotalBreakSeconds)

	// 6.5h active >= 6h segment minimum.
	assert.False(t, summary.UnderWorking)
	assert.True(t, summary.GeofenceCompliant)
	assert.True(t, shift.Summary.Valid)
	require.NotNil(t, shift.EndNotes)
	assert.Equal(t, "all good", *shift.EndNotes)

	changes := notifier.all()
	assert.Equal(t, models.ShiftStatusCompleted, changes[len(changes)-1].NewStatus)
}

func TestEndShiftWhileOnBreakClosesBreak(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)

	engine.now = func() time.Time { return time.Unix(testStart+3600, 0) }
	_, err = engine.StartBreak(context.Background(), "shift-1", "")
	require.NoError(t, err)

	engine.now = func() time.Time { return time.Unix(testStart+2*3600, 0) }
	shift, summary, err := engine.EndShift(context.Background(), "shift-1", insideSample(), "")
	require.NoError(t, err)

	assert.Nil(t, shift.Breaks.Open())
	assert.Equal(t, int64(3600), summary.TotalBreakSeconds)
	assert.Equal(t, int64(3600), summary.TotalActiveSeconds)
}

func TestEndShiftUnderWorking(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)

	// Only two hours worked against a six hour minimum.
	engine.now = func() time.Time { return time.Unix(testStart+2*3600, 0) }
	shift, summary, err := engine.EndShift(context.Background(), "shift-1", insideSample(), "")
	require.NoError(t, err)

	assert.True(t, summary.UnderWorking)
	assert.True(t, shift.UnderWorking)
}

func TestEndShiftOutsideGeofence(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)

	_, _, err = engine.EndShift(context.Background(), "shift-1", outsideSample(), "")
	assert.Equal(t, CodeOutsideGeofence, CodeOf(err))

	after, _ := store.Get(context.Background(), "shift-1")
	assert.Equal(t, models.ShiftStatusActive, after.Status)
}

func TestEndShiftRequiresLiveShift(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, _, err := engine.EndShift(context.Background(), "shift-1", insideSample(), "")
	assert.Equal(t, CodeShiftNotActive, CodeOf(err))
}

func TestMarkNoShow(t *testing.T) {
	store := newMemStore(testShift())
	// 31 minutes past start, grace is 30.
	engine, _ := newTestEngine(store, time.Unix(testStart+31*60, 0))

	shift, err := engine.MarkNoShow(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, models.ShiftStatusNoShow, shift.Status)
	assert.True(t, shift.Summary.Valid)
	assert.Equal(t, int64(0), shift.Summary.Summary.TotalActiveSeconds)

	// Idempotent: marking again is a no-op, not an error.
	again, err := engine.MarkNoShow(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, models.ShiftStatusNoShow, again.Status)
}

func TestMarkNoShowBeforeGraceRejected(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart+10*60, 0))

	_, err := engine.MarkNoShow(context.Background(), "shift-1")
	assert.Equal(t, CodeValidationFailed, CodeOf(err))
}

func TestMarkNoShowRejectsActiveShift(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)

	engine.now = func() time.Time { return time.Unix(testStart+40*60, 0) }
	_, err = engine.MarkNoShow(context.Background(), "shift-1")
	assert.Equal(t, CodeShiftNotActive, CodeOf(err))
}

func TestMarkNoShowSweep(t *testing.T) {
	overdue := testShift()
	fresh := testShift()
	fresh.ID = "shift-2"
	fresh.ScheduledStart = testStart + 3600
	active := testShift()
	active.ID = "shift-3"
	active.Status = models.ShiftStatusActive

	store := newMemStore(overdue, fresh, active)
	engine, _ := newTestEngine(store, time.Unix(testStart+45*60, 0))

	count, err := engine.MarkNoShowSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	s1, _ := store.Get(context.Background(), "shift-1")
	s2, _ := store.Get(context.Background(), "shift-2")
	assert.Equal(t, models.ShiftStatusNoShow, s1.Status)
	assert.Equal(t, models.ShiftStatusScheduled, s2.Status)
}

func TestCancelScheduledShift(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	shift, err := engine.CancelShift(context.Background(), "shift-1", "vehicle recalled")
	require.NoError(t, err)
	assert.Equal(t, models.ShiftStatusCancelled, shift.Status)
	assert.True(t, shift.Summary.Valid)
	assert.Equal(t, "cancelled: vehicle recalled", shift.Summary.Summary.Note)
	assert.Equal(t, int64(0), shift.Summary.Summary.TotalActiveSeconds)
}

func TestCancelActiveShiftRecordsAccruedTime(t *testing.T) {
	store := newMemStore(testShift())
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.ClockIn(context.Background(), "shift-1", insideSample(), nil)
	require.NoError(t, err)

	engine.now = func() time.Time { return time.Unix(testStart+3*3600, 0) }
	shift, err := engine.CancelShift(context.Background(), "shift-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.ShiftStatusCancelled, shift.Status)
	assert.Equal(t, int64(3*3600), shift.Summary.Summary.TotalActiveSeconds)
}

func TestCancelCompletedShiftRejected(t *testing.T) {
	done := testShift()
	done.Status = models.ShiftStatusCompleted
	done.Summary = models.NullSummary{Summary: models.ShiftSummary{}, Valid: true}
	store := newMemStore(done)
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	_, err := engine.CancelShift(context.Background(), "shift-1", "")
	assert.Equal(t, CodeShiftNotActive, CodeOf(err))
}

func TestRecalculateUnderWorkingFlags(t *testing.T) {
	clockIn := testStart
	short := testShift()
	short.Status = models.ShiftStatusActive
	short.ClockInAt = &clockIn
	short.ScheduledEnd = testStart + 2*3600

	running := testShift()
	running.ID = "shift-2"
	running.Status = models.ShiftStatusActive
	running.ClockInAt = &clockIn
	// Window still open at evaluation time.
	running.ScheduledEnd = testStart + 10*3600

	store := newMemStore(short, running)
	engine, _ := newTestEngine(store, time.Unix(testStart, 0))

	// At window close, shift-1 has only 3h active against a 6h minimum.
	asOf := time.Unix(testStart+3*3600, 0)
	updated, err := engine.RecalculateUnderWorkingFlags(context.Background(), &asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	s1, _ := store.Get(context.Background(), "shift-1")
	s2, _ := store.Get(context.Background(), "shift-2")
	assert.True(t, s1.UnderWorking, "past-window shift below minimum is under-working")
	assert.False(t, s2.UnderWorking, "flag is provisional only after the window closes")

	// Rerunning without change touches nothing.
	updated, err = engine.RecalculateUnderWorkingFlags(context.Background(), &asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}
