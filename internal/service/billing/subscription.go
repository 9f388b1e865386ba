package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"zona-pedidos/internal/apperr"
	domain "zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/domain/promos"
	"zona-pedidos/internal/domain/tenants"
	"zona-pedidos/internal/infra/gateway"
	"zona-pedidos/internal/store"

	"github.com/rs/zerolog"
)

// Subscription modes returned by CreateSubscription.
const (
	ModeLifetime = "LIFETIME"
	ModeTrial    = "TRIAL"
	ModePayment  = "PAYMENT"
)

type CreateSubscriptionRequest struct {
	Cycle     string
	PromoCode string
	TaxID     string
	Email     string // caller's verified email, checked against the family allow-list
}

type CreateSubscriptionResult struct {
	Mode           string     `json:"mode"`
	Plan           string     `json:"plan,omitempty"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Status         string     `json:"status,omitempty"`
	NextDueDate    *time.Time `json:"next_due_date,omitempty"`
	TrialEndsAt    *time.Time `json:"trial_ends_at,omitempty"`
	PaymentID      string     `json:"payment_id,omitempty"`
	InvoiceURL     string     `json:"invoice_url,omitempty"`
}

var mirrorCreateColumns = []string{
	"external_customer_id", "tenant_id", "cycle", "status", "next_due_date", "billing_status", "updated_at",
}

// CreateSubscription runs the lifetime coupon path, or redeems an optional
// trial promo code and opens a gateway subscription whose first charge falls
// on the trial end (or today).
func (s *Service) CreateSubscription(ctx context.Context, tenantID string, req CreateSubscriptionRequest) (*CreateSubscriptionResult, error) {
	t, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	code := promos.NormalizeCode(req.PromoCode)

	if code != "" && s.cfg.FamilyCouponCode != "" && code == s.cfg.FamilyCouponCode {
		if !s.familyAllowed(req.Email) {
			return nil, apperr.Validation("coupon_not_allowed", "This promo code is not available for your account")
		}
		return s.grantLifetime(ctx, t, domain.PlanFamily, nil)
	}

	var promo *promos.PromoCode
	if code != "" {
		promo, err = s.store.FindPromoCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Validation("coupon_invalid", "Invalid promo code")
		}
		if err != nil {
			return nil, apperr.Internal("Failed to load promo code", err)
		}
		if err := promos.CheckRedeemable(promo, now); err != nil {
			return nil, err
		}
		if promo.Kind == promos.KindLifetime {
			plan := promo.Plan
			if plan == "" {
				plan = domain.PlanFamily
			}
			return s.grantLifetime(ctx, t, plan, promo)
		}
	}

	cycle, err := normalizeCycle(req.Cycle)
	if err != nil {
		return nil, err
	}
	if deref(t.ExternalSubscriptionID) != "" {
		return nil, apperr.Validation("subscription_exists", "Tenant already has a subscription; change plan or cancel it first")
	}
	taxID := digits(req.TaxID)
	if taxID == "" {
		taxID = digits(deref(t.TaxID))
	}
	switch {
	case taxID == "":
		return nil, apperr.Validation("tax_id_required", "CPF or CNPJ is required to subscribe")
	case len(taxID) != 11 && len(taxID) != 14:
		return nil, apperr.Validation("tax_id_invalid", "CPF must have 11 digits and CNPJ 14")
	}

	res := &CreateSubscriptionResult{Mode: ModePayment, Plan: cycle}
	firstDue := s.today()

	if promo != nil {
		// extends a running trial rather than restarting it
		base := now
		if t.TrialEndsAt != nil && t.TrialEndsAt.After(now) {
			base = *t.TrialEndsAt
		}
		ends := base.AddDate(0, 0, promo.TrialDays)
		patch := map[string]interface{}{
			"subscription_status": domain.StatusTrial,
			"trial_ends_at":       ends,
		}
		if t.TrialStartedAt == nil {
			patch["trial_started_at"] = now
		}
		if err := s.redeem(ctx, promo, t.ID, patch); err != nil {
			return nil, err
		}
		s.recordTransition(ctx, "promo", t, domain.StatusTrial)
		t.SubscriptionStatus = domain.StatusTrial
		t.TrialEndsAt = &ends

		res.Mode = ModeTrial
		res.TrialEndsAt = &ends
		e := ends.In(s.cfg.Location)
		firstDue = time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, s.cfg.Location)
	}

	customerID, err := s.ensureCustomer(ctx, t, taxID, req.Email)
	if err != nil {
		return nil, err
	}
	res.CustomerID = customerID

	sub, err := s.gw.CreateSubscription(ctx, gateway.CreateSubscriptionParams{
		CustomerID:        customerID,
		BillingType:       gateway.BillingTypeUndefined,
		Cycle:             cycle,
		Value:             s.priceFor(cycle),
		NextDueDate:       firstDue,
		Description:       "Zona de Pedidos " + strings.ToLower(cycle),
		ExternalReference: t.ID,
	})
	if err != nil {
		return nil, upstream("Payment gateway rejected the subscription", err)
	}
	res.SubscriptionID = sub.ID
	res.Status = sub.Status
	res.NextDueDate = sub.NextDueDate
	if res.NextDueDate == nil {
		res.NextDueDate = &firstDue
	}

	// A running trial keeps access until the first charge; otherwise access
	// waits for the payment confirmation.
	shadow := domain.StatusPending
	if t.SubscriptionStatus == domain.StatusTrial && t.TrialEndsAt != nil && !now.After(*t.TrialEndsAt) {
		shadow = domain.StatusTrial
	}
	patch := map[string]interface{}{"external_subscription_id": sub.ID}
	if shadow == domain.StatusPending {
		patch["subscription_status"] = domain.StatusPending
	}
	if err := s.store.UpdateTenant(ctx, t.ID, patch); err != nil {
		return nil, apperr.Internal("Failed to link subscription", err)
	}
	if shadow == domain.StatusPending {
		s.recordTransition(ctx, "subscription", t, domain.StatusPending)
	}

	row := &domain.ExternalSubscription{
		ExternalSubscriptionID: sub.ID,
		ExternalCustomerID:     customerID,
		TenantID:               t.ID,
		Cycle:                  cycle,
		Status:                 sub.Status,
		NextDueDate:            res.NextDueDate,
		BillingStatus:          shadow,
		UpdatedAt:              now,
	}
	if err := s.store.UpsertMirror(ctx, row, mirrorCreateColumns...); err != nil {
		return nil, apperr.Internal("Failed to record subscription", err)
	}

	if pay := s.pollFirstPayment(ctx, sub.ID); pay != nil {
		res.PaymentID = pay.ID
		res.InvoiceURL = pay.InvoiceURL
		row := &domain.ExternalSubscription{
			ExternalSubscriptionID: sub.ID,
			ExternalCustomerID:     customerID,
			TenantID:               t.ID,
			LastPaymentID:          &pay.ID,
			LastInvoiceURL:         &pay.InvoiceURL,
			UpdatedAt:              s.now(),
		}
		if err := s.store.UpsertMirror(ctx, row, "last_payment_id", "last_invoice_url", "updated_at"); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("subscription_id", sub.ID).Msg("failed to record first invoice")
		}
	}

	return res, nil
}

// grantLifetime makes the tenant ACTIVE with no period end. A promo code, when
// given, is redeemed in the same transaction. A linked gateway subscription is
// unlinked and cancelled best-effort, so its mirror no longer shadows the grant
// and it stops charging.
func (s *Service) grantLifetime(ctx context.Context, t *tenants.Tenant, plan string, promo *promos.PromoCode) (*CreateSubscriptionResult, error) {
	subID := deref(t.ExternalSubscriptionID)
	patch := map[string]interface{}{
		"subscription_status": domain.StatusActive,
		"plan":                plan,
		"current_period_end":  nil,
		"trial_ends_at":       nil,
		"past_due_since":      nil,
	}
	if subID != "" {
		patch["external_subscription_id"] = nil
	}
	if promo != nil {
		if err := s.redeem(ctx, promo, t.ID, patch); err != nil {
			return nil, err
		}
	} else if err := s.store.UpdateTenant(ctx, t.ID, patch); err != nil {
		return nil, apperr.Internal("Failed to grant lifetime access", err)
	}
	s.recordTransition(ctx, "lifetime", t, domain.StatusActive)

	if subID != "" {
		s.cancelAtGateway(ctx, t, subID)
		s.markMirrorCanceled(ctx, t, subID)
	}
	return &CreateSubscriptionResult{Mode: ModeLifetime, Plan: plan, Status: domain.StatusActive}, nil
}

func (s *Service) redeem(ctx context.Context, p *promos.PromoCode, tenantID string, patch map[string]interface{}) error {
	err := s.store.RedeemPromoCode(ctx, p.ID, tenantID, s.now(), patch)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrAlreadyRedeemed):
		return apperr.Validation("coupon_already_used", "Promo code already used by this account")
	case errors.Is(err, store.ErrPromoExhausted):
		return apperr.Validation("coupon_exhausted", "Promo code has reached its usage limit")
	default:
		return apperr.Internal("Failed to redeem promo code", err)
	}
}

func (s *Service) familyAllowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, allowed := range s.cfg.FamilyAllowedEmails {
		if allowed == email {
			return true
		}
	}
	return false
}

// ensureCustomer reuses the tenant's gateway customer or creates one, and
// stores the link together with the tax id.
func (s *Service) ensureCustomer(ctx context.Context, t *tenants.Tenant, taxID, email string) (string, error) {
	if email == "" {
		email = t.Email
	}
	params := gateway.CustomerParams{Name: t.Name, Email: email, TaxID: taxID, ExternalReference: t.ID}

	if id := deref(t.ExternalCustomerID); id != "" {
		cus, err := s.gw.GetCustomer(ctx, id)
		switch {
		case err == nil:
			if cus.TaxID != taxID {
				if _, err := s.gw.UpdateCustomer(ctx, id, params); err != nil {
					return "", upstream("Payment gateway rejected the customer update", err)
				}
			}
			if deref(t.TaxID) != taxID {
				if err := s.store.UpdateTenant(ctx, t.ID, map[string]interface{}{"tax_id": taxID}); err != nil {
					return "", apperr.Internal("Failed to store tax id", err)
				}
			}
			return id, nil
		case errors.Is(err, gateway.ErrNotFound):
			zerolog.Ctx(ctx).Warn().Str("tenant_id", t.ID).Str("customer_id", id).Msg("gateway customer gone, creating a new one")
		default:
			return "", upstream("Payment gateway customer lookup failed", err)
		}
	}

	cus, err := s.gw.CreateCustomer(ctx, params)
	if err != nil {
		return "", upstream("Payment gateway rejected the customer", err)
	}
	if err := s.store.UpdateTenant(ctx, t.ID, map[string]interface{}{
		"external_customer_id": cus.ID,
		"tax_id":               taxID,
	}); err != nil {
		return "", apperr.Internal("Failed to link customer", err)
	}
	return cus.ID, nil
}

// pollFirstPayment waits a bounded number of rounds for the gateway to issue
// the first invoice. A nil result is normal; callers query status later.
func (s *Service) pollFirstPayment(ctx context.Context, subscriptionID string) *gateway.Payment {
	for attempt := 0; attempt < s.cfg.InvoicePollAttempts; attempt++ {
		if attempt > 0 && s.cfg.InvoicePollInterval > 0 {
			timer := time.NewTimer(s.cfg.InvoicePollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		payments, err := s.gw.ListPayments(ctx, subscriptionID)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("subscription_id", subscriptionID).Int("attempt", attempt+1).Msg("first invoice lookup failed")
			continue
		}
		if len(payments) > 0 && payments[0].InvoiceURL != "" {
			return &payments[0]
		}
	}
	return nil
}

type ChangePlanResult struct {
	Plan           string     `json:"plan"`
	SubscriptionID string     `json:"subscription_id"`
	NextDueDate    *time.Time `json:"next_due_date,omitempty"`
}

// ChangePlan switches the cycle of the existing gateway subscription in place.
func (s *Service) ChangePlan(ctx context.Context, tenantID, cycle string) (*ChangePlanResult, error) {
	cycle, err := normalizeCycle(cycle)
	if err != nil {
		return nil, err
	}
	t, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	current := strings.ToUpper(t.Plan)
	if m := s.mirrorFor(ctx, t); m != nil && m.Cycle != "" {
		current = m.Cycle
	}
	if current == cycle {
		return nil, apperr.Validation("plan_unchanged", "You are already on this plan")
	}
	subID := deref(t.ExternalSubscriptionID)
	if subID == "" {
		return nil, apperr.Validation("no_subscription", "No active subscription to change")
	}

	sub, err := s.gw.UpdateSubscription(ctx, subID, gateway.UpdateSubscriptionParams{
		Cycle: cycle,
		Value: s.priceFor(cycle),
	})
	if err != nil {
		return nil, upstream("Payment gateway rejected the plan change", err)
	}

	if err := s.store.UpdateTenant(ctx, t.ID, map[string]interface{}{"plan": cycle}); err != nil {
		return nil, apperr.Internal("Failed to update plan", err)
	}

	row := &domain.ExternalSubscription{
		ExternalSubscriptionID: subID,
		ExternalCustomerID:     deref(t.ExternalCustomerID),
		TenantID:               t.ID,
		Cycle:                  cycle,
		UpdatedAt:              s.now(),
	}
	cols := []string{"tenant_id", "cycle", "updated_at"}
	if sub.Status != "" {
		row.Status = sub.Status
		cols = append(cols, "status")
	}
	if sub.NextDueDate != nil {
		row.NextDueDate = sub.NextDueDate
		cols = append(cols, "next_due_date")
	}
	if err := s.store.UpsertMirror(ctx, row, cols...); err != nil {
		return nil, apperr.Internal("Failed to record plan change", err)
	}

	zerolog.Ctx(ctx).Info().Str("tenant_id", t.ID).Str("from", current).Str("to", cycle).Msg("plan changed")
	return &ChangePlanResult{Plan: cycle, SubscriptionID: subID, NextDueDate: sub.NextDueDate}, nil
}

type CancelResult struct {
	Status          string `json:"status"`
	SubscriptionID  string `json:"subscription_id,omitempty"`
	GatewayCanceled bool   `json:"gateway_canceled"`
}

// Cancel ends the subscription locally even when the gateway call fails.
func (s *Service) Cancel(ctx context.Context, tenantID string) (*CancelResult, error) {
	t, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	subID := deref(t.ExternalSubscriptionID)
	res := &CancelResult{Status: domain.StatusCanceled, SubscriptionID: subID}

	if subID != "" {
		res.GatewayCanceled = s.cancelAtGateway(ctx, t, subID)
	}

	if err := s.store.UpdateTenant(ctx, t.ID, map[string]interface{}{
		"subscription_status":      domain.StatusCanceled,
		"current_period_end":       nil,
		"past_due_since":           nil,
		"external_subscription_id": nil,
	}); err != nil {
		return nil, apperr.Internal("Failed to cancel subscription", err)
	}
	s.recordTransition(ctx, "cancel", t, domain.StatusCanceled)

	if subID != "" {
		s.markMirrorCanceled(ctx, t, subID)
	}
	return res, nil
}

// cancelAtGateway cancels subID upstream. Failures are logged only: local
// state is the source of truth for access once the tenant leaves the plan.
func (s *Service) cancelAtGateway(ctx context.Context, t *tenants.Tenant, subID string) bool {
	if err := s.gw.CancelSubscription(ctx, subID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("tenant_id", t.ID).Str("subscription_id", subID).
			Msg("gateway cancel failed, cancelling locally")
		return false
	}
	return true
}

func (s *Service) markMirrorCanceled(ctx context.Context, t *tenants.Tenant, subID string) {
	row := &domain.ExternalSubscription{
		ExternalSubscriptionID: subID,
		ExternalCustomerID:     deref(t.ExternalCustomerID),
		TenantID:               t.ID,
		BillingStatus:          domain.StatusCanceled,
		UpdatedAt:              s.now(),
	}
	if err := s.store.UpsertMirror(ctx, row, "billing_status", "updated_at"); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("subscription_id", subID).Msg("failed to mark mirror canceled")
	}
}

// ListPayments returns the latest payments of the linked subscription.
func (s *Service) ListPayments(ctx context.Context, tenantID string) ([]gateway.Payment, error) {
	t, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	subID := deref(t.ExternalSubscriptionID)
	if subID == "" {
		return []gateway.Payment{}, nil
	}
	payments, err := s.gw.ListPayments(ctx, subID)
	if err != nil {
		return nil, upstream("Payment gateway payment listing failed", err)
	}
	if payments == nil {
		payments = []gateway.Payment{}
	}
	return payments, nil
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
