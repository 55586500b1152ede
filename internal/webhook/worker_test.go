package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/truck_dispatch_system/internal/config"
	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(cfg *config.Config) *WebhookWorker {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return NewWebhookWorker(nil, logger, cfg)
}

func testEvent() (WebhookEvent, string) {
	truckID := "ABC123"
	eta := time.Date(2024, 7, 1, 12, 30, 0, 0, time.UTC)
	report := &models.Report{
		ID:              uuid.New(),
		ReporterID:      "42",
		Status:          models.StatusAssigned,
		AssignedTruckID: &truckID,
		ETA:             &eta,
	}
	event := NewReportEvent(EventReportAssigned, report, eta)
	payload, _ := json.Marshal(event)
	return event, string(payload)
}

func TestProcessWebhookEvent_DeliversWithSignature(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		WebhookSecret:     "secret",
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  time.Millisecond,
	})
	event, payload := testEvent()

	ok := worker.processWebhookEvent(context.Background(), event, payload)

	require.True(t, ok)
	assert.Equal(t, payload, string(gotBody))
	assert.Equal(t, generateHMACSHA256(payload, "secret"), gotSignature)
}

func TestProcessWebhookEvent_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 5,
		WebhookBaseDelay:  time.Millisecond,
	})
	event, payload := testEvent()

	ok := worker.processWebhookEvent(context.Background(), event, payload)

	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProcessWebhookEvent_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        srv.URL,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 2,
		WebhookBaseDelay:  time.Millisecond,
	})
	event, payload := testEvent()

	assert.False(t, worker.processWebhookEvent(context.Background(), event, payload))
	assert.Equal(t, int32(2), calls.Load())
}

func TestProcessWebhookEvent_NoURL(t *testing.T) {
	worker := newTestWorker(&config.Config{WebhookMaxRetries: 3})
	event, payload := testEvent()

	assert.False(t, worker.processWebhookEvent(context.Background(), event, payload))
}

func TestNewReportEvent(t *testing.T) {
	event, _ := testEvent()

	assert.Equal(t, EventReportAssigned, event.Type)
	assert.Equal(t, models.StatusAssigned, event.Status)
	require.NotNil(t, event.AssignedTruckID)
	assert.Equal(t, "ABC123", *event.AssignedTruckID)
}
