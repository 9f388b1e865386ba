package billing

import (
	"context"
	"errors"
	"net/http"

	"zona-pedidos/internal/apperr"
	domain "zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/metrics"
	"zona-pedidos/internal/store"

	"github.com/rs/zerolog"
)

// Outcomes recorded on ingestion-queue entries.
const (
	OutcomeApplied       = "applied"
	OutcomeNoCustomer    = "no_customer"
	OutcomeUnknownTenant = "unknown_tenant"
	OutcomeUnmapped      = "unmapped_event"
	OutcomeRejected      = "rejected"
	OutcomeFailed        = "failed"
)

type IngestResult struct {
	EventID string `json:"event_id"`
	Event   string `json:"event"`
	Status  string `json:"status"`
	Outcome string `json:"outcome"`
}

// IngestWebhook authenticates a gateway callback, persists it to the
// ingestion queue and applies it. Once persisted it reports success even if
// applying failed; the entry stays "failed" for replay.
func (s *Service) IngestWebhook(ctx context.Context, header http.Header, body []byte) (*IngestResult, error) {
	provider := s.parser.Provider()

	if err := s.parser.Verify(header, body); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(provider, "", OutcomeRejected).Inc()
		return nil, apperr.Wrap(apperr.KindAuth, "webhook_unauthorized", "Webhook authentication failed", err)
	}

	ev, err := s.parser.Decode(body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(provider, "", OutcomeRejected).Inc()
		return nil, apperr.Wrap(apperr.KindValidation, "webhook_malformed", "Malformed webhook payload", err)
	}

	rec := &domain.WebhookEvent{
		Provider:        provider,
		ProviderEventID: ev.ID(),
		EventType:       string(ev.Name()),
		Payload:         string(body),
		Status:          domain.EventStatusReceived,
		ReceivedAt:      s.now(),
	}
	if err := s.store.CreateWebhookEvent(ctx, rec); err != nil {
		return nil, apperr.Internal("Failed to persist webhook event", err)
	}

	return s.process(ctx, rec, ev), nil
}

// ReplayWebhookEvent re-applies a stored event. Authentication is not
// repeated; it was checked on receipt.
func (s *Service) ReplayWebhookEvent(ctx context.Context, id string) (*IngestResult, error) {
	rec, err := s.store.GetWebhookEvent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("webhook_event_not_found", "Webhook event not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load webhook event", err)
	}
	if rec.Provider != s.parser.Provider() {
		return nil, apperr.Validation("provider_mismatch", "Event was received from another billing provider")
	}

	ev, err := s.parser.Decode([]byte(rec.Payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "webhook_malformed", "Stored payload cannot be decoded", err)
	}
	return s.process(ctx, rec, ev), nil
}

// ReplayFailed replays every failed queue entry.
func (s *Service) ReplayFailed(ctx context.Context) ([]IngestResult, error) {
	failed, err := s.store.ListWebhookEvents(ctx, domain.EventStatusFailed, 500)
	if err != nil {
		return nil, apperr.Internal("Failed to list webhook events", err)
	}
	out := make([]IngestResult, 0, len(failed))
	for _, rec := range failed {
		res, err := s.ReplayWebhookEvent(ctx, rec.ID)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("webhook_event_id", rec.ID).Msg("replay skipped")
			continue
		}
		out = append(out, *res)
	}
	return out, nil
}

func (s *Service) ListWebhookEvents(ctx context.Context, status string) ([]domain.WebhookEvent, error) {
	switch status {
	case "", domain.EventStatusReceived, domain.EventStatusProcessed, domain.EventStatusIgnored, domain.EventStatusFailed:
	default:
		return nil, apperr.Validation("invalid_status", "status must be received, processed, ignored or failed")
	}
	events, err := s.store.ListWebhookEvents(ctx, status, 100)
	if err != nil {
		return nil, apperr.Internal("Failed to list webhook events", err)
	}
	return events, nil
}

func (s *Service) process(ctx context.Context, rec *domain.WebhookEvent, ev domain.Event) *IngestResult {
	logger := zerolog.Ctx(ctx).With().
		Str("webhook_event_id", rec.ID).
		Str("event", string(ev.Name())).
		Str("customer_id", ev.CustomerID()).
		Logger()

	status := domain.EventStatusProcessed
	outcome, applyErr := s.ApplyEvent(ctx, ev)
	lastError := ""
	switch {
	case applyErr != nil:
		status, outcome, lastError = domain.EventStatusFailed, OutcomeFailed, applyErr.Error()
		logger.Error().Err(applyErr).Msg("webhook event failed, queued for replay")
	case outcome != OutcomeApplied:
		status = domain.EventStatusIgnored
		logger.Info().Str("outcome", outcome).Msg("webhook event ignored")
	}
	metrics.WebhookEventsTotal.WithLabelValues(rec.Provider, string(ev.Name()), outcome).Inc()

	if err := s.store.FinishWebhookEvent(ctx, rec.ID, status, outcome, lastError, s.now()); err != nil {
		logger.Error().Err(err).Msg("failed to record webhook outcome")
	}
	return &IngestResult{EventID: rec.ID, Event: string(ev.Name()), Status: status, Outcome: outcome}
}

// ApplyEvent maps an event onto the tenant record and the mirror. Every write
// is an absolute overwrite, so applying the same event again converges.
func (s *Service) ApplyEvent(ctx context.Context, ev domain.Event) (string, error) {
	customerID := ev.CustomerID()
	if customerID == "" {
		return OutcomeNoCustomer, nil
	}
	t, err := s.store.FindTenantByCustomerID(ctx, customerID)
	if errors.Is(err, store.ErrNotFound) {
		return OutcomeUnknownTenant, nil
	}
	if err != nil {
		return "", err
	}

	tr, ok := domain.TransitionFor(ev)
	if !ok {
		return OutcomeUnmapped, nil
	}

	now := s.now()
	if err := s.store.UpdateTenant(ctx, t.ID, domain.TenantPatch(now, t, tr)); err != nil {
		return "", err
	}
	s.recordTransition(ctx, "webhook", t, tr.Status)

	if row, cols, ok := domain.MirrorPatch(now, ev, t.ID, tr); ok {
		if err := s.store.UpsertMirror(ctx, row, cols...); err != nil {
			return "", err
		}
	}
	return OutcomeApplied, nil
}
