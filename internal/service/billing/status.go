package billing

import (
	"context"
	"math"
	"time"

	"zona-pedidos/internal/domain/access"
	domain "zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/domain/tenants"
)

type TenantSnapshot struct {
	Status                 string     `json:"status"`
	Plan                   string     `json:"plan"`
	TrialStartedAt         *time.Time `json:"trial_started_at"`
	TrialEndsAt            *time.Time `json:"trial_ends_at"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end"`
	PastDueSince           *time.Time `json:"past_due_since"`
	ExternalCustomerID     *string    `json:"external_customer_id"`
	ExternalSubscriptionID *string    `json:"external_subscription_id"`
}

type MirrorSnapshot struct {
	ExternalSubscriptionID string     `json:"external_subscription_id"`
	Status                 string     `json:"status"`
	BillingStatus          string     `json:"billing_status"`
	Cycle                  string     `json:"cycle"`
	NextDueDate            *time.Time `json:"next_due_date"`
	LastInvoiceURL         *string    `json:"last_invoice_url"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// StatusReport is the effective billing view plus the raw per-source values.
type StatusReport struct {
	Effective     domain.View     `json:"effective"`
	Access        access.Decision `json:"access"`
	Lifetime      bool            `json:"lifetime"`
	TrialDaysLeft *int            `json:"trial_days_left,omitempty"`
	Tenant        TenantSnapshot  `json:"tenant"`
	Mirror        *MirrorSnapshot `json:"mirror"`
}

// View resolves the effective billing state of a tenant.
func (s *Service) View(ctx context.Context, tenantID string) (domain.View, *tenants.Tenant, *domain.ExternalSubscription, error) {
	t, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return domain.View{}, nil, nil, err
	}
	m := s.mirrorFor(ctx, t)
	v := domain.Resolve(t, m)
	if v.GraceDays == nil {
		g := s.cfg.GraceDays
		v.GraceDays = &g
	}
	return v, t, m, nil
}

func (s *Service) Status(ctx context.Context, tenantID string) (*StatusReport, error) {
	v, t, m, err := s.View(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	rep := &StatusReport{
		Effective: v,
		Access:    access.Decide(now, v),
		Lifetime:  v.IsLifetime(),
		Tenant: TenantSnapshot{
			Status:                 t.SubscriptionStatus,
			Plan:                   t.Plan,
			TrialStartedAt:         t.TrialStartedAt,
			TrialEndsAt:            t.TrialEndsAt,
			CurrentPeriodEnd:       t.CurrentPeriodEnd,
			PastDueSince:           t.PastDueSince,
			ExternalCustomerID:     t.ExternalCustomerID,
			ExternalSubscriptionID: t.ExternalSubscriptionID,
		},
	}
	if v.Status == domain.StatusTrial && v.TrialEndsAt != nil {
		left := int(math.Ceil(v.TrialEndsAt.Sub(now).Hours() / 24))
		if left < 0 {
			left = 0
		}
		rep.TrialDaysLeft = &left
	}
	if m != nil {
		rep.Mirror = &MirrorSnapshot{
			ExternalSubscriptionID: m.ExternalSubscriptionID,
			Status:                 m.Status,
			BillingStatus:          m.BillingStatus,
			Cycle:                  m.Cycle,
			NextDueDate:            m.NextDueDate,
			LastInvoiceURL:         m.LastInvoiceURL,
			UpdatedAt:              m.UpdatedAt,
		}
	}
	return rep, nil
}

// Access evaluates the gate at the current instant.
func (s *Service) Access(ctx context.Context, tenantID string) (access.Decision, error) {
	v, _, _, err := s.View(ctx, tenantID)
	if err != nil {
		return access.Decision{}, err
	}
	return access.Decide(s.now(), v), nil
}
