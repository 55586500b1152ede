package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shenikar/truck_dispatch_system/internal/config"
	"github.com/shenikar/truck_dispatch_system/internal/fleet"
	"github.com/shenikar/truck_dispatch_system/internal/geo"
	"github.com/shenikar/truck_dispatch_system/internal/metrics"
	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/shenikar/truck_dispatch_system/internal/queue"
	"github.com/shenikar/truck_dispatch_system/internal/webhook"
	"github.com/sirupsen/logrus"
)

// persistTimeout ограничивает запись одного назначения, включая повторы
const persistTimeout = 15 * time.Second

var errAlreadyStored = errors.New("assignment already stored")

// ReportStore хранилище отчетов, которое читает и обновляет планировщик
type ReportStore interface {
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	UpdateReport(ctx context.Context, id uuid.UUID, mutation models.ReportMutation) (*models.Report, error)
}

// retryState отчет, для которого не нашлось машины, с собственной экспоненциальной задержкой
type retryState struct {
	report    *models.Report
	backoff   *backoff.ExponentialBackOff
	notBefore time.Time
	queued    bool
}

// pendingDispatch машина зарезервирована, но назначение еще не записано в хранилище
type pendingDispatch struct {
	report     *models.Report
	assignment models.Assignment
	readyAt    time.Time
	eta        *time.Time
}

// Scheduler единственный потребитель очереди инцидентов
type Scheduler struct {
	queue     *queue.Queue
	engine    *Engine
	fleet     *fleet.Registry
	store     ReportStore
	publisher webhook.WebhookPublisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	cfg       *config.Config
	now       func() time.Time

	mu       sync.Mutex
	retries  map[uuid.UUID]*retryState
	holding  []*pendingDispatch
	unsynced map[uuid.UUID]*pendingDispatch

	retryNow atomic.Bool
	wake     chan struct{}
}

func NewScheduler(
	q *queue.Queue,
	engine *Engine,
	registry *fleet.Registry,
	store ReportStore,
	publisher webhook.WebhookPublisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
	cfg *config.Config,
) *Scheduler {
	return &Scheduler{
		queue:     q,
		engine:    engine,
		fleet:     registry,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		retries:   make(map[uuid.UUID]*retryState),
		unsynced:  make(map[uuid.UUID]*pendingDispatch),
		wake:      make(chan struct{}, 1),
	}
}

// Enqueue ставит отчет в очередь и будит планировщик
func (s *Scheduler) Enqueue(report *models.Report) {
	if evicted := s.queue.Push(report); evicted != nil {
		s.onEvicted(evicted)
	}
	s.metrics.QueueDepth.Set(float64(s.queue.Len()))
	s.notify()
}

// RetryHeldNow снимает задержку со всех отложенных отчетов, например после освобождения машины
func (s *Scheduler) RetryHeldNow() {
	s.retryNow.Store(true)
	s.notify()
}

// Run крутит цикл диспетчеризации до отмены контекста.
// Начатая итерация всегда доводится до конца.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.cfg.SchedulerInterval
	if interval <= 0 {
		interval = time.Second
	}
	s.logger.WithField("interval", interval).Info("Starting dispatch scheduler...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping dispatch scheduler.")
			return nil
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

// Tick одна итерация: дозапись несохраненных назначений, завершение окна
// удержания, возврат отложенных отчетов в очередь и разбор очереди по приоритету.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Recovered from panic in scheduler tick")
		}
	}()
	defer s.updateGauges()

	now := s.now()
	s.flushUnsynced(ctx)
	s.releaseHolds(ctx, now)
	s.requeueDue(now)

	for ctx.Err() == nil {
		// машина могла освободиться откатом или завершением отчета посреди разбора
		if s.retryNow.Load() {
			s.requeueDue(now)
		}
		report, ok := s.queue.Pop()
		if !ok {
			return
		}
		if !s.dispatch(ctx, report) {
			return
		}
	}
}

// Reset под блокировкой планировщика очищает хранилище через wipe, затем
// очередь, отложенные отчеты, журнал назначений и автопарк.
func (s *Scheduler) Reset(ctx context.Context, wipe func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := wipe(ctx); err != nil {
		return err
	}
	s.queue.Clear()
	s.retries = make(map[uuid.UUID]*retryState)
	s.holding = nil
	s.unsynced = make(map[uuid.UUID]*pendingDispatch)
	s.retryNow.Store(false)
	s.engine.ClearHistory()
	s.fleet.ResetToDefaults()
	s.updateGauges()

	s.logger.Warn("Dispatch state reset to defaults")
	return nil
}

// dispatch возвращает false, если машину подобрать не удалось и разбор очереди нужно прервать
func (s *Scheduler) dispatch(ctx context.Context, queued *models.Report) bool {
	log := s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"report_id": queued.ID,
		"severity":  queued.Severity,
	})

	report, err := s.store.GetReport(ctx, queued.ID)
	switch {
	case errors.Is(err, models.ErrReportNotFound):
		log.Warn("Queued report no longer exists, dropping it")
		delete(s.retries, queued.ID)
		return true
	case err != nil:
		log.WithError(err).Warn("Failed to re-read report, dispatching the queued copy")
		report = queued
	}

	if report.Status != models.StatusPending {
		log.WithField("status", report.Status).Debug("Report is no longer pending, dropping it")
		delete(s.retries, report.ID)
		return true
	}

	assignment, err := s.engine.Assign(report)
	if err != nil {
		if errors.Is(err, ErrNoAvailableTruck) {
			log.Info("No available truck, report held for retry")
		} else {
			log.WithError(err).Error("Failed to assign truck, report held for retry")
		}
		s.hold(report)
		return false
	}

	delete(s.retries, report.ID)
	s.metrics.Assignments.Inc()
	s.metrics.AssignmentDistance.Observe(assignment.DistanceKm)
	log.WithFields(logrus.Fields{
		"truck_id":    assignment.TruckID,
		"distance_km": assignment.DistanceKm,
	}).Info("Truck reserved for report")

	d := &pendingDispatch{
		report:     report,
		assignment: assignment,
		readyAt:    assignment.AssignedAt.Add(s.cfg.HoldWindow),
	}
	if s.cfg.HoldWindow > 0 {
		s.holding = append(s.holding, d)
		return true
	}
	s.commit(ctx, d)
	return true
}

func (s *Scheduler) hold(report *models.Report) {
	st, ok := s.retries[report.ID]
	if !ok {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = s.cfg.RetryBaseDelay
		b.MaxInterval = s.cfg.RetryMaxDelay
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		b.Reset()
		st = &retryState{backoff: b}
		s.retries[report.ID] = st
	}
	st.report = report
	st.queued = false
	st.notBefore = s.now().Add(st.backoff.NextBackOff())
	s.metrics.NoTruckRetries.Inc()
}

func (s *Scheduler) requeueDue(now time.Time) {
	retryNow := s.retryNow.Swap(false)
	for id, st := range s.retries {
		if st.queued {
			// между итерациями отчет может пропасть из очереди только при вытеснении
			if !s.queue.Contains(id) {
				delete(s.retries, id)
			}
			continue
		}
		if retryNow || !now.Before(st.notBefore) {
			st.queued = true
			if evicted := s.queue.Push(st.report); evicted != nil {
				s.onEvicted(evicted)
			}
		}
	}
}

func (s *Scheduler) releaseHolds(ctx context.Context, now time.Time) {
	if len(s.holding) == 0 {
		return
	}
	remaining := s.holding[:0]
	for _, d := range s.holding {
		if now.Before(d.readyAt) {
			remaining = append(remaining, d)
			continue
		}
		s.commit(ctx, d)
	}
	s.holding = remaining
}

func (s *Scheduler) flushUnsynced(ctx context.Context) {
	for _, d := range s.unsynced {
		s.commit(ctx, d)
	}
}

// commit вычисляет ETA и записывает назначение. Если хранилище недоступно,
// назначение остается в памяти и дописывается на следующих итерациях.
func (s *Scheduler) commit(ctx context.Context, d *pendingDispatch) {
	log := s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"report_id": d.report.ID,
		"truck_id":  d.assignment.TruckID,
	})

	if d.eta == nil {
		travel := geo.TravelTime(d.assignment.DistanceKm, s.cfg.TruckSpeedKmh)
		eta := s.now().Add(travel).Add(s.cfg.ETABuffer)
		d.eta = &eta
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	updated, err := s.persist(persistCtx, d)
	switch {
	case err == nil:
		delete(s.unsynced, d.report.ID)
		log.WithField("eta", d.eta.Format(time.RFC3339)).Info("Report assigned")
		s.announce(persistCtx, updated)
	case errors.Is(err, models.ErrReportNotFound) || errors.Is(err, ErrInvalidTransition):
		log.WithError(err).Warn("Report changed before the assignment was stored, releasing truck")
		delete(s.unsynced, d.report.ID)
		s.rollback(d)
	default:
		if _, seen := s.unsynced[d.report.ID]; !seen {
			s.metrics.PersistFailures.Inc()
			log.WithError(err).Error("Failed to persist assignment, keeping it in memory until the store recovers")
		}
		s.unsynced[d.report.ID] = d
	}
}

func (s *Scheduler) persist(ctx context.Context, d *pendingDispatch) (*models.Report, error) {
	truckID := d.assignment.TruckID
	assignedAt := d.assignment.AssignedAt
	eta := *d.eta
	assignment := d.assignment

	mutation := models.ReportMutation{
		Apply: func(r *models.Report) error {
			if r.Status == models.StatusAssigned && r.AssignedTruckID != nil && *r.AssignedTruckID == truckID {
				return errAlreadyStored
			}
			if err := Transition(ctx, r, EventAssign); err != nil {
				return err
			}
			r.AssignedTruckID = &truckID
			r.ETA = &eta
			r.AssignedAt = &assignedAt
			return nil
		},
		Assignment: &assignment,
		Trucks:     s.fleet.List(),
	}

	var updated *models.Report
	op := func() error {
		var err error
		updated, err = s.store.UpdateReport(ctx, d.report.ID, mutation)
		switch {
		case errors.Is(err, errAlreadyStored):
			// предыдущая попытка записалась, но ответ потерялся
			updated, err = s.store.GetReport(ctx, d.report.ID)
			return err
		case errors.Is(err, models.ErrReportNotFound), errors.Is(err, ErrInvalidTransition):
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, s.persistBackOff(ctx)); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Scheduler) persistBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.PersistBaseDelay
	b.MaxElapsedTime = 0
	retries := s.cfg.PersistMaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func (s *Scheduler) rollback(d *pendingDispatch) {
	if err := s.fleet.Release(d.assignment.TruckID); err != nil {
		s.logger.WithError(err).WithField("truck_id", d.assignment.TruckID).Warn("Failed to release truck on rollback")
	}
	s.engine.Revoke(d.assignment)
	// освободившаяся машина сначала достается отложенным отчетам
	s.retryNow.Store(true)
}

// announce публикует событие о назначении. Флаг Notified не трогается:
// его выставляет только подтверждение от клиента (MarkNotified).
func (s *Scheduler) announce(ctx context.Context, report *models.Report) {
	event := webhook.NewReportEvent(webhook.EventReportAssigned, report, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("report_id", report.ID).Warn("Failed to publish assignment event")
	}
}

func (s *Scheduler) onEvicted(report *models.Report) {
	s.metrics.QueueEvictions.Inc()
	s.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"severity":  report.Severity,
	}).Warn("Incident queue is full, evicted lowest-priority report; it stays pending in the store")
}

func (s *Scheduler) updateGauges() {
	held := 0
	for _, st := range s.retries {
		if !st.queued {
			held++
		}
	}
	s.metrics.HeldReports.Set(float64(held))
	s.metrics.QueueDepth.Set(float64(s.queue.Len()))
	s.metrics.AvailableTrucks.Set(float64(len(s.fleet.ListAvailable())))
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
