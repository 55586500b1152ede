package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/shenikar/truck_dispatch_system/internal/service"
	redisclient "github.com/shenikar/truck_dispatch_system/pkg/redis"
)

// ErrReportNotFound отчет с таким id отсутствует в хранилище
var ErrReportNotFound = models.ErrReportNotFound

const reportCacheKeyPrefix = "report:"

const reportColumns = `
	id,
	reporter_id,
	latitude,
	longitude,
	severity,
	status,
	assigned_truck_id,
	eta,
	assigned_at,
	resolved_at,
	notified,
	created_at,
	updated_at`

type ReportRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	cacheTTL    time.Duration
}

// NewReportRepository создает хранилище поверх PostgreSQL.
// redisClient может быть nil, тогда кэш отключен.
func NewReportRepository(db *pgxpool.Pool, redisClient *redis.Client, cacheTTL time.Duration) service.ReportRepository {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ReportRepository{
		db:          db,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

// CreateReport создает новую запись об отчете в бд
func (r *ReportRepository) CreateReport(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, reporter_id, latitude, longitude, severity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.db.Exec(ctx, query,
		report.ID,
		report.ReporterID,
		report.Location.Latitude,
		report.Location.Longitude,
		report.Severity,
		string(report.Status),
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	r.writeThrough(ctx, report)
	return nil
}

// GetReport возвращает отчет по его UUID
func (r *ReportRepository) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1;`

	report, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report with id %s: %w", id, ErrReportNotFound)
		}
		return nil, fmt.Errorf("failed to get report by id: %w", err)
	}
	return report, nil
}

// UpdateReport выполняет чтение-изменение-запись отчета в одной транзакции.
// Строка блокируется через SELECT ... FOR UPDATE, так что конкурентные
// изменения одного отчета выполняются строго по очереди.
func (r *ReportRepository) UpdateReport(ctx context.Context, id uuid.UUID, m models.ReportMutation) (*models.Report, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1 FOR UPDATE;`
	report, err := scanReport(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report with id %s: %w", id, ErrReportNotFound)
		}
		return nil, fmt.Errorf("failed to lock report: %w", err)
	}

	if m.Apply != nil {
		if err := m.Apply(report); err != nil {
			return nil, err
		}
	}
	report.UpdatedAt = time.Now().UTC()

	update := `
		UPDATE reports SET
			status = $1,
			assigned_truck_id = $2,
			eta = $3,
			assigned_at = $4,
			resolved_at = $5,
			notified = $6,
			updated_at = $7
		WHERE id = $8;
	`
	_, err = tx.Exec(ctx, update,
		string(report.Status),
		report.AssignedTruckID,
		report.ETA,
		report.AssignedAt,
		report.ResolvedAt,
		report.Notified,
		report.UpdatedAt,
		report.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	if a := m.Assignment; a != nil {
		insert := `
			INSERT INTO assignments (truck_id, report_id, distance_km, assigned_at)
			VALUES ($1, $2, $3, $4);
		`
		if _, err := tx.Exec(ctx, insert, a.TruckID, a.ReportID, a.DistanceKm, a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to record assignment: %w", err)
		}
	}

	if len(m.Trucks) > 0 {
		if err := upsertTrucks(ctx, tx, m.Trucks); err != nil {
			return nil, err
		}
	}

	// кэш пишется под блокировкой строки: записи идут в порядке коммитов
	r.writeThrough(ctx, report)
	if err := tx.Commit(ctx); err != nil {
		_ = r.InvalidateReportCache(ctx, id)
		return nil, fmt.Errorf("failed to commit report update: %w", err)
	}
	return report, nil
}

// ListReports возвращает все отчеты в порядке поступления
func (r *ReportRepository) ListReports(ctx context.Context) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at, id;`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*models.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return reports, nil
}

// ListAssignments возвращает журнал назначений в порядке записи
func (r *ReportRepository) ListAssignments(ctx context.Context) ([]models.Assignment, error) {
	query := `
		SELECT truck_id, report_id, distance_km, assigned_at
		FROM assignments
		ORDER BY id;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]models.Assignment, 0)
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.TruckID, &a.ReportID, &a.DistanceKm, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment row: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error assignment iteration: %w", err)
	}
	return assignments, nil
}

// SaveTrucks сохраняет снимок автопарка
func (r *ReportRepository) SaveTrucks(ctx context.Context, trucks []models.Truck) error {
	return upsertTrucks(ctx, r.db, trucks)
}

// LoadTrucks возвращает последний сохраненный снимок автопарка
func (r *ReportRepository) LoadTrucks(ctx context.Context) ([]models.Truck, error) {
	rows, err := r.db.Query(ctx, `SELECT id, latitude, longitude, available FROM trucks ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to load trucks: %w", err)
	}
	defer rows.Close()

	trucks := make([]models.Truck, 0)
	for rows.Next() {
		var t models.Truck
		if err := rows.Scan(&t.ID, &t.Location.Latitude, &t.Location.Longitude, &t.Available); err != nil {
			return nil, fmt.Errorf("failed to scan truck row: %w", err)
		}
		trucks = append(trucks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error truck iteration: %w", err)
	}
	return trucks, nil
}

// Reset удаляет все отчеты, назначения и снимок автопарка, а также кэш отчетов
func (r *ReportRepository) Reset(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `TRUNCATE assignments, reports, trucks;`); err != nil {
		return fmt.Errorf("failed to wipe store: %w", err)
	}
	if r.redisClient == nil {
		return nil
	}

	if _, err := redisclient.DeleteByPrefix(ctx, r.redisClient, reportCacheKeyPrefix); err != nil {
		return fmt.Errorf("failed to flush report cache: %w", err)
	}
	return nil
}

// GetReportFromCache пытается получить отчет из Redis
func (r *ReportRepository) GetReportFromCache(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	if r.redisClient == nil {
		return nil, nil
	}
	val, err := r.redisClient.Get(ctx, reportCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report from cache: %w", err)
	}

	report := &models.Report{}
	if err := json.Unmarshal(val, report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report from cache: %w", err)
	}
	return report, nil
}

// FillReportCache кладет прочитанный отчет в Redis, только если ключа еще нет.
// Запись из UpdateReport новее любого чтения и не должна им перетираться.
func (r *ReportRepository) FillReportCache(ctx context.Context, report *models.Report) error {
	if r.redisClient == nil {
		return nil
	}
	val, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report for cache: %w", err)
	}
	if err := r.redisClient.SetNX(ctx, reportCacheKey(report.ID), val, r.cacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to fill report cache: %w", err)
	}
	return nil
}

// writeThrough сохраняет в Redis только что записанный отчет.
// При ошибке ключ удаляется, чтобы не оставить в кэше прежнюю версию.
func (r *ReportRepository) writeThrough(ctx context.Context, report *models.Report) {
	if r.redisClient == nil {
		return
	}
	val, err := json.Marshal(report)
	if err == nil {
		err = r.redisClient.Set(ctx, reportCacheKey(report.ID), val, r.cacheTTL).Err()
	}
	if err != nil {
		_ = r.InvalidateReportCache(ctx, report.ID)
	}
}

// InvalidateReportCache удаляет отчет из Redis кэша
func (r *ReportRepository) InvalidateReportCache(ctx context.Context, id uuid.UUID) error {
	if r.redisClient == nil {
		return nil
	}
	if err := r.redisClient.Del(ctx, reportCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate report cache: %w", err)
	}
	return nil
}

func reportCacheKey(id uuid.UUID) string {
	return reportCacheKeyPrefix + id.String()
}

// batchSender общая часть пула и транзакции
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func upsertTrucks(ctx context.Context, db batchSender, trucks []models.Truck) error {
	query := `
		INSERT INTO trucks (id, latitude, longitude, available, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			available = EXCLUDED.available,
			updated_at = NOW();
	`
	batch := &pgx.Batch{}
	for _, t := range trucks {
		batch.Queue(query, t.ID, t.Location.Latitude, t.Location.Longitude, t.Available)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save trucks: %w", err)
	}
	return nil
}

func scanReport(row pgx.Row) (*models.Report, error) {
	report := &models.Report{}
	var status string
	err := row.Scan(
		&report.ID,
		&report.ReporterID,
		&report.Location.Latitude,
		&report.Location.Longitude,
		&report.Severity,
		&status,
		&report.AssignedTruckID,
		&report.ETA,
		&report.AssignedAt,
		&report.ResolvedAt,
		&report.Notified,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	report.Status = models.ReportStatus(status)
	return report, nil
}
