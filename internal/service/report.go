package service

//go:generate mockgen -source=report.go -destination=mocks/mock_report.go -package=mocks

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/truck_dispatch_system/internal/config"
	"github.com/shenikar/truck_dispatch_system/internal/dispatch"
	"github.com/shenikar/truck_dispatch_system/internal/fleet"
	"github.com/shenikar/truck_dispatch_system/internal/metrics"
	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/shenikar/truck_dispatch_system/internal/webhook"
	"github.com/sirupsen/logrus"
)

var ErrUnauthorized = errors.New("unauthorized")

// ReportRepository определяет контракт для работы с хранилищем отчетов
type ReportRepository interface {
	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	UpdateReport(ctx context.Context, id uuid.UUID, mutation models.ReportMutation) (*models.Report, error)
	ListReports(ctx context.Context) ([]*models.Report, error)
	ListAssignments(ctx context.Context) ([]models.Assignment, error)
	SaveTrucks(ctx context.Context, trucks []models.Truck) error
	LoadTrucks(ctx context.Context) ([]models.Truck, error)
	Reset(ctx context.Context) error
	GetReportFromCache(ctx context.Context, id uuid.UUID) (*models.Report, error)
	FillReportCache(ctx context.Context, report *models.Report) error
}

// Dispatcher часть планировщика, которой пользуется сервис
type Dispatcher interface {
	Enqueue(report *models.Report)
	RetryHeldNow()
	Reset(ctx context.Context, wipe func(ctx context.Context) error) error
}

// ReportService определяет контракт бизнес-логики приема и обработки отчетов
type ReportService interface {
	CreateReport(ctx context.Context, report *models.Report) error
	ListReports(ctx context.Context) (map[uuid.UUID]*models.Report, error)
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	CompleteReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	MarkNotified(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListTrucks(ctx context.Context) ([]models.TruckState, error)
	ListAssignments(ctx context.Context) ([]models.Assignment, error)
	Reset(ctx context.Context, secret string) error
	Rebuild(ctx context.Context) error
}

type reportService struct {
	repo       ReportRepository
	dispatcher Dispatcher
	fleet      *fleet.Registry
	engine     *dispatch.Engine
	publisher  webhook.WebhookPublisher
	metrics    *metrics.Metrics
	logger     *logrus.Logger
	cfg        *config.Config
	now        func() time.Time
}

func NewReportService(
	repo ReportRepository,
	dispatcher Dispatcher,
	registry *fleet.Registry,
	engine *dispatch.Engine,
	publisher webhook.WebhookPublisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
	cfg *config.Config,
) ReportService {
	return &reportService{
		repo:       repo,
		dispatcher: dispatcher,
		fleet:      registry,
		engine:     engine,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// CreateReport проверяет отчет, сохраняет его и ставит в очередь диспетчеризации
func (s *reportService) CreateReport(ctx context.Context, report *models.Report) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "report",
		"method":      "CreateReport",
		"reporter_id": report.ReporterID,
		"severity":    report.Severity,
	})

	if err := models.ValidateSeverity(report.Severity); err != nil {
		log.WithError(err).Warn("Rejected report with invalid severity")
		return err
	}
	if err := report.Location.Validate(); err != nil {
		log.WithError(err).Warn("Rejected report with invalid coordinates")
		return err
	}

	now := s.now().UTC()
	report.ID = uuid.New()
	report.Status = models.StatusPending
	report.AssignedTruckID = nil
	report.ETA = nil
	report.CreatedAt = now
	report.UpdatedAt = now

	if err := s.repo.CreateReport(ctx, report); err != nil {
		log.WithError(err).Error("Failed to create report in repository")
		return fmt.Errorf("service: could not create report: %w", err)
	}

	s.dispatcher.Enqueue(report.Clone())
	s.metrics.ReportsCreated.Inc()
	log.WithField("report_id", report.ID).Info("Report accepted and queued for dispatch")
	return nil
}

// ListReports возвращает все отчеты по id
func (s *reportService) ListReports(ctx context.Context) (map[uuid.UUID]*models.Report, error) {
	reports, err := s.repo.ListReports(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list reports")
		return nil, fmt.Errorf("service: could not list reports: %w", err)
	}

	out := make(map[uuid.UUID]*models.Report, len(reports))
	for _, r := range reports {
		out[r.ID] = r
	}
	return out, nil
}

// GetReport возвращает отчет: сначала из кэша, затем из хранилища
func (s *reportService) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "report",
		"method":    "GetReport",
		"report_id": id,
	})

	cached, err := s.repo.GetReportFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read report from cache")
	}
	if cached != nil {
		log.Debug("Report served from cache")
		return cached, nil
	}

	report, err := s.repo.GetReport(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrReportNotFound) {
			log.WithError(err).Error("Failed to get report in repository")
		}
		return nil, fmt.Errorf("service: could not get report: %w", err)
	}

	// незавершенный отчет еще меняется планировщиком, его кэширует запись
	if report.Status == models.StatusResolved {
		if err := s.repo.FillReportCache(ctx, report); err != nil {
			log.WithError(err).Warn("Failed to cache report")
		}
	}
	return report, nil
}

// CompleteReport переводит отчет в resolved и освобождает машину
func (s *reportService) CompleteReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "report",
		"method":    "CompleteReport",
		"report_id": id,
	})

	var truckID string
	updated, err := s.repo.UpdateReport(ctx, id, models.ReportMutation{
		Apply: func(r *models.Report) error {
			if err := dispatch.Transition(ctx, r, dispatch.EventResolve); err != nil {
				return err
			}
			resolvedAt := s.now().UTC()
			r.ResolvedAt = &resolvedAt
			if r.AssignedTruckID != nil {
				truckID = *r.AssignedTruckID
			}
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, models.ErrReportNotFound) || errors.Is(err, dispatch.ErrInvalidTransition) {
			log.WithError(err).Warn("Report cannot be completed")
		} else {
			log.WithError(err).Error("Failed to complete report in repository")
		}
		return nil, fmt.Errorf("service: could not complete report: %w", err)
	}

	if truckID != "" {
		if err := s.fleet.Release(truckID); err != nil {
			log.WithError(err).WithField("truck_id", truckID).Warn("Failed to release truck")
		}
		if err := s.repo.SaveTrucks(ctx, s.fleet.List()); err != nil {
			log.WithError(err).Warn("Failed to persist truck snapshot")
		}
		s.dispatcher.RetryHeldNow()
	}

	event := webhook.NewReportEvent(webhook.EventReportResolved, updated, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish resolution event")
	}

	s.metrics.ReportsResolved.Inc()
	log.WithField("truck_id", truckID).Info("Report resolved, truck released")
	return updated, nil
}

// MarkNotified отмечает, что клиент получил уведомление о назначении
func (s *reportService) MarkNotified(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	updated, err := s.repo.UpdateReport(ctx, id, models.ReportMutation{
		Apply: func(r *models.Report) error {
			if r.Status == models.StatusPending {
				return fmt.Errorf("%w: report %s is not assigned yet", dispatch.ErrInvalidTransition, r.ID)
			}
			r.Notified = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("service: could not mark report as notified: %w", err)
	}
	return updated, nil
}

// ListTrucks возвращает все машины вместе с открытым назначением
func (s *reportService) ListTrucks(_ context.Context) ([]models.TruckState, error) {
	last := s.engine.LastByTruck()
	trucks := s.fleet.List()

	out := make([]models.TruckState, 0, len(trucks))
	for _, t := range trucks {
		state := models.TruckState{Truck: t}
		if !t.Available {
			if a, ok := last[t.ID]; ok {
				reportID := a.ReportID
				state.AssignedReportID = &reportID
			}
		}
		out = append(out, state)
	}
	return out, nil
}

// ListAssignments возвращает журнал назначений
func (s *reportService) ListAssignments(_ context.Context) ([]models.Assignment, error) {
	return s.engine.History(), nil
}

// Reset стирает все отчеты и возвращает автопарк в исходное состояние.
// Секрет сравнивается за постоянное время.
func (s *reportService) Reset(ctx context.Context, secret string) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "report",
		"method":  "Reset",
	})

	if s.cfg.AdminSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.AdminSecret)) != 1 {
		log.Warn("Rejected reset with invalid admin secret")
		return ErrUnauthorized
	}

	if err := s.dispatcher.Reset(ctx, s.repo.Reset); err != nil {
		log.WithError(err).Error("Failed to reset dispatch state")
		return fmt.Errorf("service: could not reset: %w", err)
	}
	if err := s.repo.SaveTrucks(ctx, s.fleet.List()); err != nil {
		log.WithError(err).Warn("Failed to persist default truck snapshot")
	}

	log.Warn("All reports wiped and fleet reset")
	return nil
}

// Rebuild восстанавливает состояние после рестарта: снимок автопарка,
// журнал назначений и очередь из отчетов в статусе pending.
func (s *reportService) Rebuild(ctx context.Context) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "report",
		"method":  "Rebuild",
	})

	snapshot, err := s.repo.LoadTrucks(ctx)
	if err != nil {
		return fmt.Errorf("service: could not load trucks: %w", err)
	}
	s.fleet.Restore(snapshot)

	reports, err := s.repo.ListReports(ctx)
	if err != nil {
		return fmt.Errorf("service: could not load reports: %w", err)
	}

	// машина занята тогда и только тогда, когда на нее ссылается назначенный отчет
	busy := make(map[string]bool)
	pending := 0
	for _, r := range reports {
		switch r.Status {
		case models.StatusAssigned:
			if r.AssignedTruckID != nil {
				busy[*r.AssignedTruckID] = true
			}
		case models.StatusPending:
			s.dispatcher.Enqueue(r)
			pending++
		}
	}

	trucks := s.fleet.List()
	for i := range trucks {
		trucks[i].Available = !busy[trucks[i].ID]
	}
	s.fleet.Restore(trucks)

	history, err := s.repo.ListAssignments(ctx)
	if err != nil {
		return fmt.Errorf("service: could not load assignments: %w", err)
	}
	s.engine.RestoreHistory(history)

	if err := s.repo.SaveTrucks(ctx, trucks); err != nil {
		log.WithError(err).Warn("Failed to persist reconciled truck snapshot")
	}

	log.WithFields(logrus.Fields{
		"pending":     pending,
		"busy_trucks": len(busy),
		"assignments": len(history),
	}).Info("Dispatch state rebuilt from store")
	return nil
}
