package billing

import (
	"testing"
	"time"

	"zona-pedidos/internal/domain/tenants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionFor(t *testing.T) {
	due := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		ev     Event
		ok     bool
		status string
		period PeriodAction
	}{
		{"received", PaymentEvent{Event: EventPaymentReceived, Payment: Payment{DueDate: &due}}, true, StatusActive, PeriodSet},
		{"confirmed without due", PaymentEvent{Event: EventPaymentConfirmed}, true, StatusActive, PeriodKeep},
		{"overdue", PaymentEvent{Event: EventPaymentOverdue, Payment: Payment{DueDate: &due}}, true, StatusPastDue, PeriodSet},
		{"deleted", PaymentEvent{Event: EventPaymentDeleted, Payment: Payment{DueDate: &due}}, true, StatusInactive, PeriodClear},
		{"refunded", PaymentEvent{Event: EventPaymentRefunded}, true, StatusInactive, PeriodClear},
		{"sub created active", SubscriptionEvent{Event: EventSubscriptionCreated, Subscription: Subscription{Status: "active", NextDueDate: &due}}, true, StatusActive, PeriodSet},
		{"sub updated passthrough", SubscriptionEvent{Event: EventSubscriptionUpdated, Subscription: Subscription{Status: "EXPIRED"}}, true, "EXPIRED", PeriodKeep},
		{"sub updated without status", SubscriptionEvent{Event: EventSubscriptionUpdated}, false, "", PeriodKeep},
		{"sub inactivated", SubscriptionEvent{Event: EventSubscriptionInactivated}, true, StatusInactive, PeriodClear},
		{"sub deleted", SubscriptionEvent{Event: EventSubscriptionDeleted}, true, StatusInactive, PeriodClear},
		{"unknown", UnknownEvent{Event: "PAYMENT_CREATED", Customer: "cus_1"}, false, "", PeriodKeep},
		{"payment name on subscription shape", SubscriptionEvent{Event: EventPaymentReceived}, false, "", PeriodKeep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ok := TransitionFor(tt.ev)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.status, tr.Status)
			assert.Equal(t, tt.period, tr.Period)
			if tr.Period == PeriodSet {
				assert.True(t, tr.PeriodEnd.Equal(due))
			}
		})
	}
}

func TestTenantPatch(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	due := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)

	t.Run("active clears trial and marks paid", func(t *testing.T) {
		tn := &tenants.Tenant{SubscriptionStatus: StatusTrial, Plan: PlanFree}
		p := TenantPatch(now, tn, Transition{Status: StatusActive, Period: PeriodSet, PeriodEnd: &due})
		assert.Equal(t, StatusActive, p["subscription_status"])
		assert.Equal(t, due, p["current_period_end"])
		assert.Contains(t, p, "trial_ends_at")
		assert.Nil(t, p["trial_ends_at"])
		assert.Equal(t, PlanPaid, p["plan"])
	})

	t.Run("active keeps specific plan", func(t *testing.T) {
		tn := &tenants.Tenant{Plan: PlanYearly}
		p := TenantPatch(now, tn, Transition{Status: StatusActive})
		assert.NotContains(t, p, "plan")
		assert.NotContains(t, p, "current_period_end")
	})

	t.Run("active with cycle", func(t *testing.T) {
		tn := &tenants.Tenant{Plan: PlanFree}
		p := TenantPatch(now, tn, Transition{Status: StatusActive, Cycle: PlanMonthly})
		assert.Equal(t, PlanMonthly, p["plan"])
	})

	t.Run("past due anchors once", func(t *testing.T) {
		tn := &tenants.Tenant{SubscriptionStatus: StatusActive}
		p := TenantPatch(now, tn, Transition{Status: StatusPastDue})
		assert.Equal(t, now, p["past_due_since"])

		earlier := now.Add(-48 * time.Hour)
		tn = &tenants.Tenant{SubscriptionStatus: StatusPastDue, PastDueSince: &earlier}
		p = TenantPatch(now, tn, Transition{Status: StatusPastDue})
		assert.Equal(t, earlier, p["past_due_since"])
	})

	t.Run("inactive resets plan", func(t *testing.T) {
		tn := &tenants.Tenant{Plan: PlanMonthly}
		p := TenantPatch(now, tn, Transition{Status: StatusInactive, Period: PeriodClear})
		assert.Equal(t, PlanFree, p["plan"])
		assert.Contains(t, p, "current_period_end")
		assert.Nil(t, p["current_period_end"])
	})
}

func TestMirrorPatch(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	due := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)

	ev := PaymentEvent{Event: EventPaymentReceived, Payment: Payment{
		ID: "pay_1", CustomerID: "cus_1", SubscriptionID: "sub_1", InvoiceURL: "https://i", DueDate: &due,
	}}
	tr, ok := TransitionFor(ev)
	require.True(t, ok)

	row, cols, ok := MirrorPatch(now, ev, "tenant-1", tr)
	require.True(t, ok)
	assert.Equal(t, "sub_1", row.ExternalSubscriptionID)
	assert.Equal(t, StatusActive, row.BillingStatus)
	assert.Equal(t, "pay_1", *row.LastPaymentID)
	assert.Equal(t, &due, row.NextDueDate)
	assert.ElementsMatch(t, []string{
		"external_customer_id", "tenant_id", "billing_status", "updated_at",
		"last_payment_id", "last_invoice_url", "next_due_date",
	}, cols)

	sub := SubscriptionEvent{Event: EventSubscriptionUpdated, Subscription: Subscription{ID: "sub_1", CustomerID: "cus_1", Status: "active", Cycle: "yearly"}}
	tr, _ = TransitionFor(sub)
	row, cols, ok = MirrorPatch(now, sub, "tenant-1", tr)
	require.True(t, ok)
	assert.Equal(t, "ACTIVE", row.Status)
	assert.Equal(t, PlanYearly, row.Cycle)
	assert.NotContains(t, cols, "next_due_date", "no due date in the event")
	assert.NotContains(t, cols, "last_payment_id")

	_, _, ok = MirrorPatch(now, PaymentEvent{Event: EventPaymentRefunded, Payment: Payment{CustomerID: "cus_1"}}, "tenant-1", Transition{Status: StatusInactive})
	assert.False(t, ok)
}
