// Package admin holds the operator maintenance endpoints.
package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"zona-pedidos/internal/api/respond"
	domain "zona-pedidos/internal/domain/billing"
	billingsvc "zona-pedidos/internal/service/billing"

	"github.com/gin-gonic/gin"
)

type Service interface {
	SyncSubscriptions(ctx context.Context) (*billingsvc.SyncReport, error)
	ListWebhookEvents(ctx context.Context, status string) ([]domain.WebhookEvent, error)
	ReplayWebhookEvent(ctx context.Context, id string) (*billingsvc.IngestResult, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// AdminWebhookEvent is a queue entry without its raw payload.
type AdminWebhookEvent struct {
	ID              string     `json:"id"`
	Provider        string     `json:"provider"`
	ProviderEventID string     `json:"provider_event_id,omitempty"`
	EventType       string     `json:"event_type"`
	Status          string     `json:"status"`
	Outcome         string     `json:"outcome,omitempty"`
	Attempts        int        `json:"attempts"`
	LastError       string     `json:"last_error,omitempty"`
	ReceivedAt      time.Time  `json:"received_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

func (h *Handler) SyncSubscriptions(c *gin.Context) {
	report, err := h.svc.SyncSubscriptions(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) ListWebhookEvents(c *gin.Context) {
	events, err := h.svc.ListWebhookEvents(c.Request.Context(), strings.ToLower(strings.TrimSpace(c.Query("status"))))
	if err != nil {
		respond.Error(c, err)
		return
	}

	out := make([]AdminWebhookEvent, 0, len(events))
	for _, e := range events {
		out = append(out, AdminWebhookEvent{
			ID:              e.ID,
			Provider:        e.Provider,
			ProviderEventID: e.ProviderEventID,
			EventType:       e.EventType,
			Status:          e.Status,
			Outcome:         e.Outcome,
			Attempts:        e.Attempts,
			LastError:       e.LastError,
			ReceivedAt:      e.ReceivedAt,
			ProcessedAt:     e.ProcessedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (h *Handler) ReplayWebhookEvent(c *gin.Context) {
	res, err := h.svc.ReplayWebhookEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
