package dispatch

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shenikar/truck_dispatch_system/internal/config"
	"github.com/shenikar/truck_dispatch_system/internal/fleet"
	"github.com/shenikar/truck_dispatch_system/internal/metrics"
	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/shenikar/truck_dispatch_system/internal/queue"
	"github.com/shenikar/truck_dispatch_system/internal/webhook"
	"github.com/shenikar/truck_dispatch_system/internal/webhook/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore хранилище в памяти с управляемыми сбоями записи
type fakeStore struct {
	mu          sync.Mutex
	reports     map[uuid.UUID]*models.Report
	assignments []models.Assignment
	trucks      []models.Truck
	failUpdates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[uuid.UUID]*models.Report)}
}

func (f *fakeStore) put(r *models.Report) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[r.ID] = r.Clone()
}

func (f *fakeStore) remove(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reports, id)
}

func (f *fakeStore) setFailures(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdates = n
}

func (f *fakeStore) GetReport(_ context.Context, id uuid.UUID) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.reports[id]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	return r.Clone(), nil
}

func (f *fakeStore) UpdateReport(_ context.Context, id uuid.UUID, m models.ReportMutation) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failUpdates > 0 {
		f.failUpdates--
		return nil, errStoreDown
	}
	current, ok := f.reports[id]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	r := current.Clone()
	if m.Apply != nil {
		if err := m.Apply(r); err != nil {
			return nil, err
		}
	}
	f.reports[id] = r
	if m.Assignment != nil {
		f.assignments = append(f.assignments, *m.Assignment)
	}
	if len(m.Trucks) > 0 {
		f.trucks = m.Trucks
	}
	return r.Clone(), nil
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type schedulerFixture struct {
	scheduler *Scheduler
	store     *fakeStore
	fleet     *fleet.Registry
	engine    *Engine
	publisher *mocks.MockWebhookPublisher
	metrics   *metrics.Metrics
	clock     *testClock
}

func newSchedulerFixture(t *testing.T, trucks []models.Truck, tweak func(cfg *config.Config)) *schedulerFixture {
	t.Helper()

	cfg := &config.Config{
		QueueCapacity:     10,
		SchedulerInterval: 10 * time.Millisecond,
		RetryBaseDelay:    time.Second,
		RetryMaxDelay:     30 * time.Second,
		PersistMaxRetries: 2,
		PersistBaseDelay:  time.Millisecond,
		TruckSpeedKmh:     45,
		ETABuffer:         5 * time.Minute,
	}
	if tweak != nil {
		tweak(cfg)
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockWebhookPublisher(ctrl)

	clock := &testClock{t: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
	registry := fleet.NewRegistry(trucks)
	engine := NewEngine(registry)
	engine.now = clock.Now
	store := newFakeStore()
	m := metrics.NewNop()

	s := NewScheduler(queue.New(cfg.QueueCapacity), engine, registry, store, publisher, m, logger, cfg)
	s.now = clock.Now

	return &schedulerFixture{
		scheduler: s,
		store:     store,
		fleet:     registry,
		engine:    engine,
		publisher: publisher,
		metrics:   m,
		clock:     clock,
	}
}

func (f *schedulerFixture) submit(lat, lon float64, severity int) *models.Report {
	r := &models.Report{
		ID:         uuid.New(),
		ReporterID: "42",
		Location:   models.Location{Latitude: lat, Longitude: lon},
		Severity:   severity,
		Status:     models.StatusPending,
		CreatedAt:  f.clock.Now(),
	}
	f.store.put(r)
	f.scheduler.Enqueue(r)
	return r
}

func (f *schedulerFixture) stored(t *testing.T, id uuid.UUID) *models.Report {
	t.Helper()
	r, err := f.store.GetReport(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (f *schedulerFixture) expectAssignedEvents(n int) {
	f.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e webhook.WebhookEvent) error {
			if e.Type != webhook.EventReportAssigned {
				return errors.New("unexpected event type " + e.Type)
			}
			return nil
		}).
		Times(n)
}

func twoTrucks() []models.Truck {
	return []models.Truck{
		{ID: "T1", Location: models.Location{Latitude: 40.0, Longitude: -74.0}},
		{ID: "T2", Location: models.Location{Latitude: 34.0, Longitude: -118.0}},
	}
}

func TestTick_AssignsNearestTruckWithETA(t *testing.T) {
	f := newSchedulerFixture(t, twoTrucks(), nil)
	f.expectAssignedEvents(1)
	start := f.clock.Now()

	r := f.submit(40.0, -74.0, 9)
	f.scheduler.Tick(context.Background())

	got := f.stored(t, r.ID)
	assert.Equal(t, models.StatusAssigned, got.Status)
	require.NotNil(t, got.AssignedTruckID)
	assert.Equal(t, "T1", *got.AssignedTruckID)
	require.NotNil(t, got.ETA)
	assert.Equal(t, start.Add(5*time.Minute), *got.ETA)
	assert.False(t, got.Notified)

	require.Len(t, f.store.assignments, 1)
	assert.Equal(t, 0.0, f.store.assignments[0].DistanceKm)

	truck, err := f.fleet.Get("T1")
	require.NoError(t, err)
	assert.False(t, truck.Available)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Assignments))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AvailableTrucks))
}

// Флаг Notified выставляет только подтверждение клиента: чат-бот сообщает
// пользователю о машине, пока видит truck_assigned без processed.
func TestTick_AssignmentLeavesNotificationToClient(t *testing.T) {
	f := newSchedulerFixture(t, twoTrucks(), nil)
	f.expectAssignedEvents(1)

	r := f.submit(40.0, -74.0, 9)
	f.scheduler.Tick(context.Background())
	f.scheduler.Tick(context.Background())

	got := f.stored(t, r.ID)
	require.NotNil(t, got.AssignedTruckID)
	assert.Equal(t, "T1", *got.AssignedTruckID)
	assert.False(t, got.Notified)
}

func TestTick_ETAIncludesTravelTime(t *testing.T) {
	trucks := []models.Truck{{ID: "T1", Location: models.Location{Latitude: 0, Longitude: 0}}}
	f := newSchedulerFixture(t, trucks, nil)
	f.expectAssignedEvents(1)
	start := f.clock.Now()

	// один градус по экватору примерно 111.19 км, около 2ч28м на 45 км/ч
	r := f.submit(0, 1, 5)
	f.scheduler.Tick(context.Background())

	got := f.stored(t, r.ID)
	require.NotNil(t, got.ETA)
	travel := got.ETA.Sub(start) - 5*time.Minute
	assert.InDelta(t, (148 * time.Minute).Seconds(), travel.Seconds(), 60)
}

func TestTick_HigherSeverityFirstAndHeldRetry(t *testing.T) {
	trucks := []models.Truck{{ID: "T1", Location: models.Location{Latitude: 40, Longitude: -74}}}
	f := newSchedulerFixture(t, trucks, nil)
	f.expectAssignedEvents(2)

	low := f.submit(40, -74, 3)
	high := f.submit(40, -74, 8)
	f.scheduler.Tick(context.Background())

	assert.Equal(t, models.StatusAssigned, f.stored(t, high.ID).Status)
	assert.Equal(t, models.StatusPending, f.stored(t, low.ID).Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NoTruckRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HeldReports))
	assert.Equal(t, 0, f.scheduler.queue.Len())

	// задержка еще не истекла
	f.scheduler.Tick(context.Background())
	assert.Equal(t, models.StatusPending, f.stored(t, low.ID).Status)

	require.NoError(t, f.fleet.Release("T1"))
	f.scheduler.RetryHeldNow()
	f.scheduler.Tick(context.Background())

	got := f.stored(t, low.ID)
	assert.Equal(t, models.StatusAssigned, got.Status)
	require.NotNil(t, got.AssignedTruckID)
	assert.Equal(t, "T1", *got.AssignedTruckID)
	assert.Empty(t, f.scheduler.retries)
}

func TestTick_HeldReportBackoffDoubles(t *testing.T) {
	trucks := []models.Truck{{ID: "T1"}}
	f := newSchedulerFixture(t, trucks, nil)
	require.NoError(t, f.fleet.Reserve("T1"))

	r := f.submit(0, 0, 5)
	f.scheduler.Tick(context.Background())
	require.Contains(t, f.scheduler.retries, r.ID)
	assert.Equal(t, f.clock.Now().Add(time.Second), f.scheduler.retries[r.ID].notBefore)

	f.clock.Advance(time.Second)
	f.scheduler.Tick(context.Background())
	require.Contains(t, f.scheduler.retries, r.ID)
	assert.Equal(t, f.clock.Now().Add(2*time.Second), f.scheduler.retries[r.ID].notBefore)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.NoTruckRetries))

	f.clock.Advance(time.Second)
	f.scheduler.Tick(context.Background())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.NoTruckRetries))
	assert.Equal(t, 0, f.scheduler.queue.Len())
}

func TestTick_StopsDrainingWithoutTrucks(t *testing.T) {
	trucks := []models.Truck{{ID: "T1"}}
	f := newSchedulerFixture(t, trucks, nil)
	require.NoError(t, f.fleet.Reserve("T1"))

	f.submit(0, 0, 9)
	f.submit(0, 0, 2)
	f.scheduler.Tick(context.Background())

	assert.Equal(t, 1, f.scheduler.queue.Len())
	assert.Len(t, f.scheduler.retries, 1)
}

func TestTick_DropsReportThatIsNoLongerPending(t *testing.T) {
	f := newSchedulerFixture(t, twoTrucks(), nil)

	r := f.submit(40, -74, 5)
	resolved := f.stored(t, r.ID)
	resolved.Status = models.StatusResolved
	f.store.put(resolved)

	f.scheduler.Tick(context.Background())

	assert.Len(t, f.fleet.ListAvailable(), 2)
	assert.Empty(t, f.engine.History())
}

func TestTick_PersistFailureKeepsAssignmentUnsynced(t *testing.T) {
	f := newSchedulerFixture(t, twoTrucks(), nil)
	start := f.clock.Now()

	r := f.submit(40, -74, 7)
	f.store.setFailures(100)
	f.scheduler.Tick(context.Background())

	assert.Equal(t, models.StatusPending, f.stored(t, r.ID).Status)
	assert.Contains(t, f.scheduler.unsynced, r.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PersistFailures))
	truck, err := f.fleet.Get("T1")
	require.NoError(t, err)
	assert.False(t, truck.Available)

	// повторная неудача не увеличивает счетчик
	f.scheduler.Tick(context.Background())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PersistFailures))

	f.store.setFailures(0)
	f.expectAssignedEvents(1)
	f.clock.Advance(time.Minute)
	f.scheduler.Tick(context.Background())

	got := f.stored(t, r.ID)
	assert.Equal(t, models.StatusAssigned, got.Status)
	require.NotNil(t, got.ETA)
	assert.Equal(t, start.Add(5*time.Minute), *got.ETA)
	assert.Empty(t, f.scheduler.unsynced)
}

func TestTick_TransientPersistFailureRetried(t *testing.T) {
	f := newSchedulerFixture(t, twoTrucks(), nil)
	f.expectAssignedEvents(1)

	r := f.submit(40, -74, 7)
	f.store.setFailures(2)
	f.scheduler.Tick(context.Background())

	assert.Equal(t, models.StatusAssigned, f.stored(t, r.ID).Status)
	assert.Empty(t, f.scheduler.unsynced)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.PersistFailures))
}

func TestTick_HoldWindowDelaysCommit(t *testing.T) {
	f := newSchedulerFixture(t, twoTrucks(), func(cfg *config.Config) {
		cfg.HoldWindow = 30 * time.Second
	})
	start := f.clock.Now()

	r := f.submit(40, -74, 6)
	f.scheduler.Tick(context.Background())

	assert.Equal(t, models.StatusPending, f.stored(t, r.ID).Status)
	truck, err := f.fleet.Get("T1")
	require.NoError(t, err)
	assert.False(t, truck.Available)

	f.clock.Advance(10 * time.Second)
	f.scheduler.Tick(context.Background())
	assert.Equal(t, models.StatusPending, f.stored(t, r.ID).Status)

	f.expectAssignedEvents(1)
	f.clock.Advance(20 * time.Second)
	f.scheduler.Tick(context.Background())

	got := f.stored(t, r.ID)
	assert.Equal(t, models.StatusAssigned, got.Status)
	require.NotNil(t, got.ETA)
	assert.Equal(t, start.Add(30*time.Second+5*time.Minute), *got.ETA)
	require.NotNil(t, got.AssignedAt)
	assert.Equal(t, start, *got.AssignedAt)
}

func TestTick_RollsBackWhenReportDisappears(t *testing.T) {
	f := newSchedulerFixture(t, twoTrucks(), func(cfg *config.Config) {
		cfg.HoldWindow = 30 * time.Second
	})

	r := f.submit(40, -74, 6)
	f.scheduler.Tick(context.Background())
	require.Len(t, f.engine.History(), 1)

	f.store.remove(r.ID)
	f.clock.Advance(30 * time.Second)
	f.scheduler.Tick(context.Background())

	assert.Len(t, f.fleet.ListAvailable(), 2)
	assert.Empty(t, f.engine.History())
	assert.Empty(t, f.scheduler.holding)
}

func TestTick_RollbackFavoursHeldReport(t *testing.T) {
	trucks := []models.Truck{{ID: "T1", Location: models.Location{Latitude: 40, Longitude: -74}}}
	f := newSchedulerFixture(t, trucks, func(cfg *config.Config) {
		cfg.HoldWindow = 30 * time.Second
		cfg.RetryBaseDelay = 10 * time.Minute
		cfg.RetryMaxDelay = 10 * time.Minute
	})

	gone := f.submit(40, -74, 6)
	f.scheduler.Tick(context.Background())

	held := f.submit(40, -74, 9)
	f.scheduler.Tick(context.Background())
	require.Len(t, f.engine.History(), 1)

	f.store.remove(gone.ID)
	late := f.submit(40, -74, 2)
	f.clock.Advance(30 * time.Second)
	f.scheduler.Tick(context.Background())

	history := f.engine.History()
	require.Len(t, history, 1)
	assert.Equal(t, held.ID, history[0].ReportID)
	assert.Equal(t, "T1", history[0].TruckID)
	assert.Equal(t, models.StatusPending, f.stored(t, late.ID).Status)
	assert.Contains(t, f.scheduler.retries, late.ID)
}

func TestEnqueue_EvictsLowestSeverity(t *testing.T) {
	f := newSchedulerFixture(t, twoTrucks(), func(cfg *config.Config) {
		cfg.QueueCapacity = 1
	})

	f.submit(0, 0, 4)
	f.submit(0, 0, 9)

	assert.Equal(t, 1, f.scheduler.queue.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueueEvictions))
	top, ok := f.scheduler.queue.Pop()
	require.True(t, ok)
	assert.Equal(t, 9, top.Severity)
}

func TestReset_ClearsState(t *testing.T) {
	f := newSchedulerFixture(t, []models.Truck{{ID: "T1"}}, nil)
	f.expectAssignedEvents(1)

	f.submit(0, 0, 9)
	f.submit(0, 0, 3)
	f.submit(0, 0, 1)
	f.scheduler.Tick(context.Background())
	require.NotEmpty(t, f.scheduler.retries)

	wiped := false
	err := f.scheduler.Reset(context.Background(), func(context.Context) error {
		wiped = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, wiped)
	assert.Equal(t, 0, f.scheduler.queue.Len())
	assert.Empty(t, f.scheduler.retries)
	assert.Empty(t, f.engine.History())
	assert.Len(t, f.fleet.ListAvailable(), 1)
}

func TestReset_WipeFailureKeepsState(t *testing.T) {
	f := newSchedulerFixture(t, []models.Truck{{ID: "T1"}}, nil)
	f.submit(0, 0, 5)

	err := f.scheduler.Reset(context.Background(), func(context.Context) error {
		return errStoreDown
	})

	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 1, f.scheduler.queue.Len())
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newSchedulerFixture(t, twoTrucks(), nil)
	f.expectAssignedEvents(1)
	r := f.submit(40, -74, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.scheduler.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := f.store.GetReport(context.Background(), r.ID)
		return err == nil && got.Status == models.StatusAssigned
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
