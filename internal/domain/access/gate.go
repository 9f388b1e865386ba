package access

import (
	"time"

	"zona-pedidos/internal/domain/billing"
)

// DefaultGraceDays applies when a tenant has no (or an invalid) grace_days.
const DefaultGraceDays = 3

// Reasons reported alongside a decision.
const (
	ReasonActive       = "active"
	ReasonLifetime     = "lifetime"
	ReasonTrial        = "trial"
	ReasonTrialExpired = "trial_expired"
	ReasonGrace        = "past_due_grace"
	ReasonGraceExpired = "past_due_grace_expired"
	ReasonNoAccess     = "no_access"
)

type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  string     `json:"reason"`
	Until   *time.Time `json:"until,omitempty"` // trial end or grace end, when bounded
}

// IsAccessAllowed is the access gate. It depends on now, so callers must
// evaluate it on every protected entry rather than cache it.
func IsAccessAllowed(now time.Time, v billing.View) bool {
	return Decide(now, v).Allowed
}

// Decide evaluates the gate and explains the outcome.
func Decide(now time.Time, v billing.View) Decision {
	switch v.Status {
	case billing.StatusActive:
		if v.IsLifetime() {
			return Decision{Allowed: true, Reason: ReasonLifetime}
		}
		return Decision{Allowed: true, Reason: ReasonActive}

	case billing.StatusTrial:
		if v.TrialEndsAt == nil {
			return Decision{Reason: ReasonTrialExpired}
		}
		end := *v.TrialEndsAt
		if now.After(end) {
			return Decision{Reason: ReasonTrialExpired, Until: &end}
		}
		return Decision{Allowed: true, Reason: ReasonTrial, Until: &end}

	case billing.StatusPastDue:
		if v.PastDueSince == nil {
			return Decision{Reason: ReasonGraceExpired}
		}
		end := v.PastDueSince.AddDate(0, 0, GraceDays(v.GraceDays))
		if now.After(end) {
			return Decision{Reason: ReasonGraceExpired, Until: &end}
		}
		return Decision{Allowed: true, Reason: ReasonGrace, Until: &end}

	default:
		return Decision{Reason: ReasonNoAccess}
	}
}

// GraceDays resolves the configured grace period, falling back to the default.
func GraceDays(days *int) int {
	if days == nil || *days < 0 {
		return DefaultGraceDays
	}
	return *days
}
