package billing

import "strings"

// Local billing statuses. Tenant rows may also carry a gateway status passed
// through verbatim by subscription events; the resolver folds those into INACTIVE.
const (
	StatusPending  = "PENDING"
	StatusTrial    = "TRIAL"
	StatusActive   = "ACTIVE"
	StatusPastDue  = "PAST_DUE"
	StatusInactive = "INACTIVE"
	StatusCanceled = "CANCELED"
)

// Plan codes.
const (
	PlanFree    = "free"
	PlanPaid    = "paid"
	PlanMonthly = "MONTHLY"
	PlanYearly  = "YEARLY"
	PlanFamily  = "FAMILY"
)

// NormalizeStatus maps any status string onto the closed set of local statuses.
// Empty input yields "" (no status); unknown values yield INACTIVE.
func NormalizeStatus(s string) string {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "":
		return ""
	case StatusPending, StatusTrial, StatusActive, StatusPastDue, StatusInactive, StatusCanceled:
		return v
	default:
		return StatusInactive
	}
}
