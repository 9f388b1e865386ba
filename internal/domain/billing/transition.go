package billing

import (
	"strings"
	"time"

	"zona-pedidos/internal/domain/tenants"
)

// PeriodAction says what an event does to current_period_end.
type PeriodAction int

const (
	PeriodKeep PeriodAction = iota
	PeriodSet
	PeriodClear
)

// Transition is the target state an event maps to.
type Transition struct {
	Status    string
	Period    PeriodAction
	PeriodEnd *time.Time
	Cycle     string
}

// TransitionFor maps an event onto its transition. ok is false for events
// that must not change state.
func TransitionFor(ev Event) (tr Transition, ok bool) {
	switch e := ev.(type) {
	case PaymentEvent:
		switch e.Event {
		case EventPaymentReceived, EventPaymentConfirmed:
			return withDueDate(StatusActive, e.Payment.DueDate), true
		case EventPaymentOverdue:
			return withDueDate(StatusPastDue, e.Payment.DueDate), true
		case EventPaymentDeleted, EventPaymentRefunded:
			return Transition{Status: StatusInactive, Period: PeriodClear}, true
		}
	case SubscriptionEvent:
		switch e.Event {
		case EventSubscriptionCreated, EventSubscriptionUpdated:
			status := strings.ToUpper(strings.TrimSpace(e.Subscription.Status))
			if status == "" {
				return Transition{}, false
			}
			tr := withDueDate(status, e.Subscription.NextDueDate)
			tr.Cycle = strings.ToUpper(strings.TrimSpace(e.Subscription.Cycle))
			return tr, true
		case EventSubscriptionInactivated, EventSubscriptionDeleted:
			return Transition{Status: StatusInactive, Period: PeriodClear}, true
		}
	}
	return Transition{}, false
}

func withDueDate(status string, due *time.Time) Transition {
	if due == nil {
		return Transition{Status: status, Period: PeriodKeep}
	}
	return Transition{Status: status, Period: PeriodSet, PeriodEnd: due}
}

// TenantPatch builds the column overwrite for applying tr to t. Every value is
// an absolute set, so applying the same transition twice converges.
func TenantPatch(now time.Time, t *tenants.Tenant, tr Transition) map[string]interface{} {
	patch := map[string]interface{}{
		"subscription_status": tr.Status,
	}

	switch tr.Period {
	case PeriodSet:
		patch["current_period_end"] = *tr.PeriodEnd
	case PeriodClear:
		patch["current_period_end"] = nil
	}

	switch tr.Status {
	case StatusActive:
		patch["trial_ends_at"] = nil
		patch["past_due_since"] = nil
		switch {
		case tr.Cycle == PlanMonthly || tr.Cycle == PlanYearly:
			patch["plan"] = tr.Cycle
		case t.Plan == "" || t.Plan == PlanFree:
			patch["plan"] = PlanPaid
		}
	case StatusPastDue:
		anchor := now
		if t.SubscriptionStatus == StatusPastDue && t.PastDueSince != nil {
			anchor = *t.PastDueSince
		}
		patch["past_due_since"] = anchor
	case StatusInactive:
		patch["plan"] = PlanFree
		patch["past_due_since"] = nil
	}

	return patch
}

// MirrorPatch builds the mirror upsert for an event together with the
// columns it owns. ok is false when the event names no subscription.
func MirrorPatch(now time.Time, ev Event, tenantID string, tr Transition) (row *ExternalSubscription, columns []string, ok bool) {
	subID := ev.SubscriptionID()
	if subID == "" {
		return nil, nil, false
	}

	row = &ExternalSubscription{
		ExternalSubscriptionID: subID,
		ExternalCustomerID:     ev.CustomerID(),
		TenantID:               tenantID,
		BillingStatus:          NormalizeStatus(tr.Status),
		UpdatedAt:              now,
	}
	columns = []string{"external_customer_id", "tenant_id", "billing_status", "updated_at"}

	switch e := ev.(type) {
	case PaymentEvent:
		if e.Payment.ID != "" {
			id := e.Payment.ID
			row.LastPaymentID = &id
			columns = append(columns, "last_payment_id")
		}
		if e.Payment.InvoiceURL != "" {
			url := e.Payment.InvoiceURL
			row.LastInvoiceURL = &url
			columns = append(columns, "last_invoice_url")
		}
	case SubscriptionEvent:
		if s := strings.ToUpper(strings.TrimSpace(e.Subscription.Status)); s != "" {
			row.Status = s
			columns = append(columns, "status")
		}
		if c := strings.ToUpper(strings.TrimSpace(e.Subscription.Cycle)); c != "" {
			row.Cycle = c
			columns = append(columns, "cycle")
		}
	}

	// next_due_date follows the tenant's period end.
	switch tr.Period {
	case PeriodSet:
		row.NextDueDate = tr.PeriodEnd
		columns = append(columns, "next_due_date")
	case PeriodClear:
		row.NextDueDate = nil
		columns = append(columns, "next_due_date")
	}

	return row, columns, true
}
