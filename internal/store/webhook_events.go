package store

import (
	"context"
	"time"

	"zona-pedidos/internal/domain/billing"

	"gorm.io/gorm"
)

func (s *Store) CreateWebhookEvent(ctx context.Context, ev *billing.WebhookEvent) error {
	return s.db.WithContext(ctx).Create(ev).Error
}

func (s *Store) GetWebhookEvent(ctx context.Context, id string) (*billing.WebhookEvent, error) {
	var ev billing.WebhookEvent
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, notFound(err)
	}
	return &ev, nil
}

// FinishWebhookEvent records the outcome of one processing attempt.
func (s *Store) FinishWebhookEvent(ctx context.Context, id, status, outcome, lastError string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&billing.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"outcome":      outcome,
			"last_error":   lastError,
			"attempts":     gorm.Expr("attempts + 1"),
			"processed_at": at,
		}).Error
}

// ListWebhookEvents returns newest first. An empty status lists every state.
func (s *Store) ListWebhookEvents(ctx context.Context, status string, limit int) ([]billing.WebhookEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("received_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []billing.WebhookEvent
	err := q.Find(&out).Error
	return out, err
}
