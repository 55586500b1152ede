package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/truck_dispatch_system/internal/models"
)

const (
	webhookQueueKey = "webhook_events"
)

const (
	EventReportAssigned = "report.assigned"
	EventReportResolved = "report.resolved"
)

// WebhookEvent - событие об изменении статуса отчета для внешнего клиента (чат-бота)
type WebhookEvent struct {
	Type            string              `json:"type"`
	ReportID        uuid.UUID           `json:"report_id"`
	ReporterID      string              `json:"reporter_id"`
	Status          models.ReportStatus `json:"status"`
	AssignedTruckID *string             `json:"assigned_truck_id,omitempty"`
	ETA             *time.Time          `json:"eta,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

// NewReportEvent собирает событие по текущему состоянию отчета
func NewReportEvent(eventType string, report *models.Report, at time.Time) WebhookEvent {
	return WebhookEvent{
		Type:            eventType,
		ReportID:        report.ID,
		ReporterID:      report.ReporterID,
		Status:          report.Status,
		AssignedTruckID: report.AssignedTruckID,
		ETA:             report.ETA,
		Timestamp:       at,
	}
}

//go:generate mockgen -source=publisher.go -destination=mocks/mock_publisher.go -package=mocks

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event WebhookEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event WebhookEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH в левую часть списка, воркер забирает справа
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}

// NopPublisher отбрасывает события; используется, когда Redis не настроен
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, WebhookEvent) error { return nil }
