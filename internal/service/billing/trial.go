package billing

import (
	"context"
	"time"

	"zona-pedidos/internal/apperr"
	domain "zona-pedidos/internal/domain/billing"
)

// Reasons a trial was not started.
const (
	TrialReasonAlreadyUsed     = "trial_already_used"
	TrialReasonAlreadyActive   = "already_active"
	TrialReasonHasSubscription = "has_subscription"
)

type TrialResult struct {
	Started     bool       `json:"started"`
	Reason      string     `json:"reason,omitempty"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
}

// StartTrial opens the one-shot trial window. Calls on a tenant that is not
// eligible report started=false and change nothing.
func (s *Service) StartTrial(ctx context.Context, tenantID string) (*TrialResult, error) {
	t, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	switch {
	case t.TrialStartedAt != nil || t.TrialEndsAt != nil:
		return &TrialResult{Reason: TrialReasonAlreadyUsed, TrialEndsAt: t.TrialEndsAt}, nil
	case t.SubscriptionStatus == domain.StatusActive:
		return &TrialResult{Reason: TrialReasonAlreadyActive}, nil
	case t.CurrentPeriodEnd != nil:
		return &TrialResult{Reason: TrialReasonHasSubscription}, nil
	}

	now := s.now()
	ends := now.AddDate(0, 0, s.cfg.TrialDays)
	started, err := s.store.StartTrial(ctx, t.ID, now, ends)
	if err != nil {
		return nil, apperr.Internal("Failed to start trial", err)
	}
	if !started {
		// lost a race with a concurrent start
		return &TrialResult{Reason: TrialReasonAlreadyUsed}, nil
	}

	s.recordTransition(ctx, "trial", t, domain.StatusTrial)
	return &TrialResult{Started: true, TrialEndsAt: &ends}, nil
}
