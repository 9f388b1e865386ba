package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zona-pedidos/internal/apperr"
	domain "zona-pedidos/internal/domain/billing"
	billingsvc "zona-pedidos/internal/service/billing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	status string
}

func (s *stubService) SyncSubscriptions(context.Context) (*billingsvc.SyncReport, error) {
	return &billingsvc.SyncReport{
		Total:   3,
		Updated: 2,
		Errors:  []billingsvc.SyncError{{TenantID: "t3", Error: "upstream"}},
	}, nil
}

func (s *stubService) ListWebhookEvents(_ context.Context, status string) ([]domain.WebhookEvent, error) {
	s.status = status
	if status == "bogus" {
		return nil, apperr.Validation("invalid_status", "status must be received, processed, ignored or failed")
	}
	return []domain.WebhookEvent{{
		ID:         "evt-1",
		Provider:   "asaas",
		EventType:  "PAYMENT_RECEIVED",
		Payload:    `{"secret":"payload"}`,
		Status:     domain.EventStatusFailed,
		Attempts:   1,
		LastError:  "db down",
		ReceivedAt: time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
	}}, nil
}

func (s *stubService) ReplayWebhookEvent(_ context.Context, id string) (*billingsvc.IngestResult, error) {
	if id != "evt-1" {
		return nil, apperr.NotFound("webhook_event_not_found", "Webhook event not found")
	}
	return &billingsvc.IngestResult{EventID: id, Status: domain.EventStatusProcessed, Outcome: billingsvc.OutcomeApplied}, nil
}

func call(t *testing.T, svc *stubService, method, path string) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc)
	r := gin.New()
	r.POST("/admin/billing/sync", h.SyncSubscriptions)
	r.GET("/admin/webhook-events", h.ListWebhookEvents)
	r.POST("/admin/webhook-events/:id/replay", h.ReplayWebhookEvent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func TestSync(t *testing.T) {
	code, body := call(t, &stubService{}, http.MethodPost, "/admin/billing/sync")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["total"])
	assert.Len(t, body["errors"], 1)
}

func TestListWebhookEvents(t *testing.T) {
	svc := &stubService{}
	code, body := call(t, svc, http.MethodGet, "/admin/webhook-events?status=FAILED")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "failed", svc.status)

	events := body["events"].([]interface{})
	require.Len(t, events, 1)
	ev := events[0].(map[string]interface{})
	assert.Equal(t, "evt-1", ev["id"])
	assert.NotContains(t, ev, "payload")

	code, body = call(t, svc, http.MethodGet, "/admin/webhook-events?status=bogus")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_status", body["code"])
}

func TestReplay(t *testing.T) {
	code, body := call(t, &stubService{}, http.MethodPost, "/admin/webhook-events/evt-1/replay")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "applied", body["outcome"])

	code, body = call(t, &stubService{}, http.MethodPost, "/admin/webhook-events/missing/replay")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "webhook_event_not_found", body["code"])
}
