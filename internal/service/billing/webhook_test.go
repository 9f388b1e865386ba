package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"zona-pedidos/internal/domain/access"
	domain "zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/domain/tenants"
	"zona-pedidos/internal/infra/asaas"
	"zona-pedidos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenHeader(token string) http.Header {
	h := http.Header{}
	h.Set(asaas.TokenHeader, token)
	return h
}

func paymentEvent(event, customer, sub, due string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_%s_%s",
		"event": %q,
		"payment": {
			"id": "pay_100",
			"customer": %q,
			"subscription": %q,
			"status": "RECEIVED",
			"invoiceUrl": "https://pay.example/i/pay_100",
			"dueDate": %q
		}
	}`, event, due, event, customer, sub, due))
}

func linkedTenant(h *harness) *tenants.Tenant {
	return h.tenant(func(t *tenants.Tenant) {
		t.SubscriptionStatus = domain.StatusPending
		t.ExternalCustomerID = strPtr("cus_7")
		t.ExternalSubscriptionID = strPtr("sub_7")
	})
}

type billingFields struct {
	Status, Plan                           string
	PeriodEnd, TrialEnds, PastDue          string
	ExternalCustomerID, ExternalSubscripID string
}

func snapshot(t *tenants.Tenant) billingFields {
	ts := func(v *time.Time) string {
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	}
	return billingFields{
		Status:             t.SubscriptionStatus,
		Plan:               t.Plan,
		PeriodEnd:          ts(t.CurrentPeriodEnd),
		TrialEnds:          ts(t.TrialEndsAt),
		PastDue:            ts(t.PastDueSince),
		ExternalCustomerID: deref(t.ExternalCustomerID),
		ExternalSubscripID: deref(t.ExternalSubscriptionID),
	}
}

func TestPaymentReceivedIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tn := linkedTenant(h)
	body := paymentEvent("PAYMENT_RECEIVED", "cus_7", "sub_7", "2025-04-10")

	res, err := h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), body)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusProcessed, res.Status)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	once := snapshot(h.reload(tn.ID))

	h.now = h.now.Add(time.Minute)
	_, err = h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), body)
	require.NoError(t, err)
	twice := snapshot(h.reload(tn.ID))

	assert.Equal(t, once, twice)
	assert.Equal(t, domain.StatusActive, twice.Status)
	assert.Equal(t, domain.PlanPaid, twice.Plan)
	assert.Equal(t, "2025-04-10T00:00:00Z", twice.PeriodEnd)

	var mirrors int64
	require.NoError(t, h.db.Model(&domain.ExternalSubscription{}).Count(&mirrors).Error)
	assert.EqualValues(t, 1, mirrors)

	rep, err := h.svc.Status(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, rep.Effective.Status)
	assert.False(t, rep.Lifetime, "recurring subscription has a period end")
	assert.Equal(t, access.ReasonActive, rep.Access.Reason)
}

func TestOverdueGraceWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tn := linkedTenant(h)
	since := h.now

	_, err := h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), paymentEvent("PAYMENT_OVERDUE", "cus_7", "sub_7", "2025-03-09"))
	require.NoError(t, err)

	got := h.reload(tn.ID)
	assert.Equal(t, domain.StatusPastDue, got.SubscriptionStatus)
	require.NotNil(t, got.PastDueSince)

	// A repeated overdue event keeps the original anchor.
	h.now = h.now.Add(24 * time.Hour)
	_, err = h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), paymentEvent("PAYMENT_OVERDUE", "cus_7", "sub_7", "2025-03-09"))
	require.NoError(t, err)
	assert.True(t, h.reload(tn.ID).PastDueSince.Equal(since))

	h.now = since.AddDate(0, 0, 3)
	dec, err := h.svc.Access(ctx, tn.ID)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, access.ReasonGrace, dec.Reason)

	h.now = since.AddDate(0, 0, 3).Add(time.Second)
	dec, err = h.svc.Access(ctx, tn.ID)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestRefundDeactivates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	end := h.now.AddDate(0, 1, 0)
	tn := h.tenant(func(t *tenants.Tenant) {
		t.SubscriptionStatus = domain.StatusActive
		t.Plan = domain.PlanMonthly
		t.CurrentPeriodEnd = &end
		t.ExternalCustomerID = strPtr("cus_7")
	})

	_, err := h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), paymentEvent("PAYMENT_REFUNDED", "cus_7", "", "2025-03-01"))
	require.NoError(t, err)

	got := h.reload(tn.ID)
	assert.Equal(t, domain.StatusInactive, got.SubscriptionStatus)
	assert.Equal(t, domain.PlanFree, got.Plan)
	assert.Nil(t, got.CurrentPeriodEnd)
}

func TestSubscriptionUpdatedPassesStatusThrough(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tn := linkedTenant(h)
	body := []byte(`{"id":"evt_s1","event":"SUBSCRIPTION_UPDATED","subscription":{"id":"sub_7","customer":"cus_7","status":"EXPIRED","cycle":"YEARLY","nextDueDate":"2026-03-10"}}`)

	res, err := h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)

	got := h.reload(tn.ID)
	assert.Equal(t, "EXPIRED", got.SubscriptionStatus)

	m, err := h.st.LinkedMirror(ctx, tn.ID, "sub_7")
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", m.Status)
	assert.Equal(t, domain.StatusInactive, m.BillingStatus)
	assert.Equal(t, domain.PlanYearly, m.Cycle)

	rep, err := h.svc.Status(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, rep.Effective.Status)
}

func TestWebhookSoftFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("unknown customer", func(t *testing.T) {
		res, err := h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), paymentEvent("PAYMENT_RECEIVED", "cus_nobody", "sub_x", "2025-04-10"))
		require.NoError(t, err)
		assert.Equal(t, domain.EventStatusIgnored, res.Status)
		assert.Equal(t, OutcomeUnknownTenant, res.Outcome)
	})

	t.Run("no customer", func(t *testing.T) {
		res, err := h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), []byte(`{"event":"PAYMENT_RECEIVED"}`))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoCustomer, res.Outcome)
	})

	t.Run("unmapped event", func(t *testing.T) {
		linkedTenant(h)
		res, err := h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), paymentEvent("PAYMENT_CREATED", "cus_7", "sub_7", "2025-04-10"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnmapped, res.Outcome)
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := h.svc.IngestWebhook(ctx, tokenHeader("nope"), paymentEvent("PAYMENT_RECEIVED", "cus_7", "sub_7", "2025-04-10"))
		assertCode(t, err, "webhook_unauthorized")
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), []byte(`{"event":`))
		assertCode(t, err, "webhook_malformed")
	})

	ignored, err := h.svc.ListWebhookEvents(ctx, domain.EventStatusIgnored)
	require.NoError(t, err)
	assert.Len(t, ignored, 3)

	_, err = h.svc.ListWebhookEvents(ctx, "weird")
	assertCode(t, err, "invalid_status")
}

type flakyStore struct {
	*store.Store
	failUpdates int
}

func (f *flakyStore) UpdateTenant(ctx context.Context, id string, patch map[string]interface{}) error {
	if f.failUpdates > 0 {
		f.failUpdates--
		return errors.New("connection reset")
	}
	return f.Store.UpdateTenant(ctx, id, patch)
}

func TestFailedEventIsQueuedAndReplayed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tn := linkedTenant(h)
	flaky := &flakyStore{Store: h.st, failUpdates: 1}
	svc := h.service(flaky)

	res, err := svc.IngestWebhook(ctx, tokenHeader(webhookToken), paymentEvent("PAYMENT_CONFIRMED", "cus_7", "sub_7", "2025-04-10"))
	require.NoError(t, err, "acknowledged even though applying failed")
	assert.Equal(t, domain.EventStatusFailed, res.Status)
	assert.Equal(t, domain.StatusPending, h.reload(tn.ID).SubscriptionStatus)

	failed, err := svc.ListWebhookEvents(ctx, domain.EventStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].LastError, "connection reset")

	replayed, err := svc.ReplayFailed(ctx)
	require.NoError(t, err)
	require.Len(t, replayed, 1)
	assert.Equal(t, domain.EventStatusProcessed, replayed[0].Status)
	assert.Equal(t, domain.StatusActive, h.reload(tn.ID).SubscriptionStatus)

	ev, err := h.st.GetWebhookEvent(ctx, res.EventID)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Attempts)

	_, err = svc.ReplayWebhookEvent(ctx, "00000000-0000-4000-8000-000000000000")
	assertCode(t, err, "webhook_event_not_found")
}

func TestCancelThenStaleEventLastWriteWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tn := linkedTenant(h)

	_, err := h.svc.Cancel(ctx, tn.ID)
	require.NoError(t, err)

	// No watermark: a late payment event still overwrites the cancellation.
	_, err = h.svc.IngestWebhook(ctx, tokenHeader(webhookToken), paymentEvent("PAYMENT_RECEIVED", "cus_7", "sub_7", "2025-04-10"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, h.reload(tn.ID).SubscriptionStatus)
}
