package stripe

import (
	"strings"

	"zona-pedidos/internal/domain/billing"

	stripeapi "github.com/stripe/stripe-go/v75"
)

// normalizeStatus folds Stripe's subscription statuses onto the local vocabulary.
func normalizeStatus(s stripeapi.SubscriptionStatus) string {
	switch strings.TrimSpace(string(s)) {
	case "":
		return ""
	case "active":
		return billing.StatusActive
	case "trialing":
		return billing.StatusTrial
	case "past_due", "unpaid":
		return billing.StatusPastDue
	case "canceled", "incomplete_expired":
		return billing.StatusCanceled
	case "incomplete":
		return billing.StatusPending
	default:
		return billing.StatusInactive
	}
}

func cycleFromInterval(i stripeapi.PriceRecurringInterval) string {
	switch i {
	case "month":
		return billing.PlanMonthly
	case "year":
		return billing.PlanYearly
	default:
		return strings.ToUpper(string(i))
	}
}
