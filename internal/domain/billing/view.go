package billing

import (
	"time"

	"zona-pedidos/internal/domain/tenants"
)

// Sources of the effective status.
const (
	SourceMirror  = "mirror"
	SourceTenant  = "tenant"
	SourceDefault = "default"
)

// View is the effective billing state of a tenant. It is computed on every
// read and never persisted.
type View struct {
	Status           string     `json:"status"`
	Plan             string     `json:"plan"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
	TrialEndsAt      *time.Time `json:"trial_ends_at"`
	PastDueSince     *time.Time `json:"past_due_since"`
	GraceDays        *int       `json:"grace_days"`
	Source           string     `json:"source"`
}

// IsLifetime reports a non-expiring grant: ACTIVE without a renewal boundary.
func (v View) IsLifetime() bool {
	return v.Status == StatusActive && v.CurrentPeriodEnd == nil
}

// Resolve merges the tenant row with its mirror row (which may be nil).
// A mirror with a status wins for status, plan and period end; trial and
// grace fields always come from the tenant since the gateway does not track them.
func Resolve(t *tenants.Tenant, m *ExternalSubscription) View {
	v := View{
		Status: StatusInactive,
		Source: SourceDefault,
	}
	if t == nil {
		return v
	}

	v.Plan = t.Plan
	v.TrialEndsAt = t.TrialEndsAt
	v.PastDueSince = t.PastDueSince
	v.GraceDays = t.GraceDays

	if m != nil {
		status := NormalizeStatus(m.BillingStatus)
		if status == "" {
			status = NormalizeStatus(m.Status)
		}
		if status != "" {
			v.Status = status
			v.Source = SourceMirror
			if m.Cycle != "" {
				v.Plan = m.Cycle
			}
			v.CurrentPeriodEnd = m.NextDueDate
			return v
		}
	}

	if t.SubscriptionStatus != "" {
		v.Status = NormalizeStatus(t.SubscriptionStatus)
		v.Source = SourceTenant
	}
	v.CurrentPeriodEnd = t.CurrentPeriodEnd
	return v
}
