package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReport(severity int, createdAt time.Time) *models.Report {
	return &models.Report{
		ID:         uuid.New(),
		ReporterID: "42",
		Location:   models.Location{Latitude: 34.05, Longitude: -118.24},
		Severity:   severity,
		Status:     models.StatusPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestMemory_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	report := newReport(5, time.Now())

	require.NoError(t, repo.CreateReport(ctx, report))
	assert.Error(t, repo.CreateReport(ctx, report))

	got, err := repo.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)

	// возвращается копия
	got.Severity = 10
	again, err := repo.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Severity)

	_, err = repo.GetReport(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestMemory_UpdateReportAppliesMutation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	report := newReport(5, time.Now())
	require.NoError(t, repo.CreateReport(ctx, report))

	truckID := "ABC123"
	eta := time.Now().Add(time.Hour)
	assignment := models.Assignment{TruckID: truckID, ReportID: report.ID, DistanceKm: 1.5}

	updated, err := repo.UpdateReport(ctx, report.ID, models.ReportMutation{
		Apply: func(r *models.Report) error {
			r.Status = models.StatusAssigned
			r.AssignedTruckID = &truckID
			r.ETA = &eta
			return nil
		},
		Assignment: &assignment,
		Trucks:     []models.Truck{{ID: truckID, Available: false}},
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, updated.Status)

	assignments, err := repo.ListAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Assignment{assignment}, assignments)

	trucks, err := repo.LoadTrucks(ctx)
	require.NoError(t, err)
	require.Len(t, trucks, 1)
	assert.False(t, trucks[0].Available)
}

func TestMemory_UpdateReportFailedMutationLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	report := newReport(5, time.Now())
	require.NoError(t, repo.CreateReport(ctx, report))

	boom := errors.New("boom")
	_, err := repo.UpdateReport(ctx, report.ID, models.ReportMutation{
		Apply: func(r *models.Report) error {
			r.Status = models.StatusResolved
			return boom
		},
		Assignment: &models.Assignment{TruckID: "T1", ReportID: report.ID},
	})

	assert.ErrorIs(t, err, boom)
	got, err := repo.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assignments, err := repo.ListAssignments(ctx)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	_, err = repo.UpdateReport(ctx, uuid.New(), models.ReportMutation{})
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestMemory_ConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	report := newReport(5, time.Now())
	require.NoError(t, repo.CreateReport(ctx, report))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.UpdateReport(ctx, report.ID, models.ReportMutation{
				Apply: func(r *models.Report) error {
					r.Severity++
					return nil
				},
			})
		}()
	}
	wg.Wait()

	got, err := repo.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, 55, got.Severity)
}

func TestMemory_ListReportsOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	later := newReport(9, base.Add(time.Minute))
	earlier := newReport(1, base)
	require.NoError(t, repo.CreateReport(ctx, later))
	require.NoError(t, repo.CreateReport(ctx, earlier))

	reports, err := repo.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, earlier.ID, reports[0].ID)
	assert.Equal(t, later.ID, reports[1].ID)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	require.NoError(t, repo.CreateReport(ctx, newReport(3, time.Now())))
	require.NoError(t, repo.SaveTrucks(ctx, []models.Truck{{ID: "T1"}}))

	require.NoError(t, repo.Reset(ctx))

	reports, err := repo.ListReports(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)
	trucks, err := repo.LoadTrucks(ctx)
	require.NoError(t, err)
	assert.Empty(t, trucks)
}

func TestMemory_CacheIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()
	report := newReport(3, time.Now())

	require.NoError(t, repo.FillReportCache(ctx, report))
	cached, err := repo.GetReportFromCache(ctx, report.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)
}
