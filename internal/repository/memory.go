package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/shenikar/truck_dispatch_system/internal/service"
)

// MemoryReportRepository хранилище в памяти процесса для разработки и тестов.
// Кэш не нужен: чтение и так идет из памяти.
type MemoryReportRepository struct {
	mu          sync.Mutex
	reports     map[uuid.UUID]*models.Report
	assignments []models.Assignment
	trucks      map[string]models.Truck
}

func NewMemoryReportRepository() service.ReportRepository {
	return &MemoryReportRepository{
		reports: make(map[uuid.UUID]*models.Report),
		trucks:  make(map[string]models.Truck),
	}
}

func (r *MemoryReportRepository) CreateReport(_ context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[report.ID]; ok {
		return fmt.Errorf("failed to create report: duplicate id %s", report.ID)
	}
	r.reports[report.ID] = report.Clone()
	return nil
}

func (r *MemoryReportRepository) GetReport(_ context.Context, id uuid.UUID) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, fmt.Errorf("report with id %s: %w", id, ErrReportNotFound)
	}
	return report.Clone(), nil
}

// UpdateReport применяет изменение к копии и сохраняет ее только при успехе
func (r *MemoryReportRepository) UpdateReport(_ context.Context, id uuid.UUID, m models.ReportMutation) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.reports[id]
	if !ok {
		return nil, fmt.Errorf("report with id %s: %w", id, ErrReportNotFound)
	}

	report := current.Clone()
	if m.Apply != nil {
		if err := m.Apply(report); err != nil {
			return nil, err
		}
	}
	report.UpdatedAt = time.Now().UTC()
	r.reports[id] = report

	if m.Assignment != nil {
		r.assignments = append(r.assignments, *m.Assignment)
	}
	for _, t := range m.Trucks {
		r.trucks[t.ID] = t
	}
	return report.Clone(), nil
}

func (r *MemoryReportRepository) ListReports(_ context.Context) ([]*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reports := make([]*models.Report, 0, len(r.reports))
	for _, report := range r.reports {
		reports = append(reports, report.Clone())
	}
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].CreatedAt.Before(reports[j].CreatedAt)
		}
		return reports[i].ID.String() < reports[j].ID.String()
	})
	return reports, nil
}

func (r *MemoryReportRepository) ListAssignments(_ context.Context) ([]models.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Assignment, len(r.assignments))
	copy(out, r.assignments)
	return out, nil
}

func (r *MemoryReportRepository) SaveTrucks(_ context.Context, trucks []models.Truck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range trucks {
		r.trucks[t.ID] = t
	}
	return nil
}

func (r *MemoryReportRepository) LoadTrucks(_ context.Context) ([]models.Truck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	trucks := make([]models.Truck, 0, len(r.trucks))
	for _, t := range r.trucks {
		trucks = append(trucks, t)
	}
	sort.Slice(trucks, func(i, j int) bool { return trucks[i].ID < trucks[j].ID })
	return trucks, nil
}

func (r *MemoryReportRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports = make(map[uuid.UUID]*models.Report)
	r.assignments = nil
	r.trucks = make(map[string]models.Truck)
	return nil
}

func (r *MemoryReportRepository) GetReportFromCache(context.Context, uuid.UUID) (*models.Report, error) {
	return nil, nil
}

func (r *MemoryReportRepository) FillReportCache(context.Context, *models.Report) error {
	return nil
}
