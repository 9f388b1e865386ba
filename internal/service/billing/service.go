// Package billing implements the billing mutators, the status report and the
// webhook ingestion pipeline on top of the store and a payment gateway.
package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"zona-pedidos/config"
	"zona-pedidos/internal/apperr"
	domain "zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/domain/promos"
	"zona-pedidos/internal/domain/tenants"
	"zona-pedidos/internal/infra/gateway"
	"zona-pedidos/internal/metrics"
	"zona-pedidos/internal/store"

	"github.com/rs/zerolog"
)

// Store is the persistence the service needs; *store.Store implements it.
type Store interface {
	GetTenant(ctx context.Context, id string) (*tenants.Tenant, error)
	FindTenantByCustomerID(ctx context.Context, customerID string) (*tenants.Tenant, error)
	UpdateTenant(ctx context.Context, id string, patch map[string]interface{}) error
	StartTrial(ctx context.Context, id string, startedAt, endsAt time.Time) (bool, error)
	ListTenantsWithCustomer(ctx context.Context) ([]tenants.Tenant, error)

	LinkedMirror(ctx context.Context, tenantID, subscriptionID string) (*domain.ExternalSubscription, error)
	UpsertMirror(ctx context.Context, row *domain.ExternalSubscription, columns ...string) error

	FindPromoCode(ctx context.Context, code string) (*promos.PromoCode, error)
	RedeemPromoCode(ctx context.Context, codeID uint, tenantID string, now time.Time, patch map[string]interface{}) error

	CreateWebhookEvent(ctx context.Context, ev *domain.WebhookEvent) error
	GetWebhookEvent(ctx context.Context, id string) (*domain.WebhookEvent, error)
	FinishWebhookEvent(ctx context.Context, id, status, outcome, lastError string, at time.Time) error
	ListWebhookEvents(ctx context.Context, status string, limit int) ([]domain.WebhookEvent, error)
}

// Settings are the billing tunables taken from config at start.
type Settings struct {
	TrialDays           int
	GraceDays           int
	PriceMonthly        float64
	PriceYearly         float64
	Location            *time.Location
	FamilyCouponCode    string
	FamilyAllowedEmails []string
	InvoicePollAttempts int
	InvoicePollInterval time.Duration
	SyncConcurrency     int
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		TrialDays:           cfg.TrialDays,
		GraceDays:           cfg.GraceDays,
		PriceMonthly:        cfg.PriceMonthly,
		PriceYearly:         cfg.PriceYearly,
		Location:            cfg.Location,
		FamilyCouponCode:    cfg.FamilyCouponCode,
		FamilyAllowedEmails: cfg.FamilyAllowedEmails,
		InvoicePollAttempts: cfg.InvoicePollAttempts,
		InvoicePollInterval: cfg.InvoicePollInterval,
		SyncConcurrency:     cfg.SyncConcurrency,
	}
}

type Service struct {
	store  Store
	gw     gateway.Gateway
	parser gateway.WebhookParser
	cfg    Settings
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st Store, gw gateway.Gateway, parser gateway.WebhookParser, cfg Settings, opts ...Option) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TrialDays <= 0 {
		cfg.TrialDays = 7
	}
	if cfg.SyncConcurrency <= 0 {
		cfg.SyncConcurrency = 1
	}
	s := &Service{store: st, gw: gw, parser: parser, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) loadTenant(ctx context.Context, id string) (*tenants.Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("tenant_not_found", "Tenant not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load tenant", err)
	}
	return t, nil
}

// mirrorFor returns the mirror row of the tenant's linked subscription, or
// nil. Lookup failures degrade to nil.
func (s *Service) mirrorFor(ctx context.Context, t *tenants.Tenant) *domain.ExternalSubscription {
	subID := deref(t.ExternalSubscriptionID)
	if subID == "" {
		return nil
	}
	m, err := s.store.LinkedMirror(ctx, t.ID, subID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("tenant_id", t.ID).Msg("mirror lookup failed, using tenant record")
		}
		return nil
	}
	return m
}

func (s *Service) recordTransition(ctx context.Context, source string, t *tenants.Tenant, newStatus string) {
	metrics.BillingTransitionsTotal.WithLabelValues(source, newStatus).Inc()
	zerolog.Ctx(ctx).Info().
		Str("tenant_id", t.ID).
		Str("source", source).
		Str("old_status", t.SubscriptionStatus).
		Str("new_status", newStatus).
		Msg("billing transition")
}

func (s *Service) priceFor(cycle string) float64 {
	if cycle == domain.PlanYearly {
		return s.cfg.PriceYearly
	}
	return s.cfg.PriceMonthly
}

// today is midnight of the current day in the billing timezone.
func (s *Service) today() time.Time {
	n := s.now().In(s.cfg.Location)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.cfg.Location)
}

func normalizeCycle(c string) (string, error) {
	switch v := strings.ToUpper(strings.TrimSpace(c)); v {
	case domain.PlanMonthly, domain.PlanYearly:
		return v, nil
	default:
		return "", apperr.Validation("invalid_cycle", "Cycle must be MONTHLY or YEARLY")
	}
}

func upstream(message string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Internal(message, err)
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Upstream(message, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
