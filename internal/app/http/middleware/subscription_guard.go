package middleware

import (
	"context"
	"net/http"

	"zona-pedidos/internal/api/respond"
	"zona-pedidos/internal/domain/access"

	"github.com/gin-gonic/gin"
)

// AccessChecker evaluates the billing gate for a tenant.
type AccessChecker interface {
	Access(ctx context.Context, tenantID string) (access.Decision, error)
}

// RequireBillingAccess re-evaluates the gate on every request and answers 402
// when the tenant's billing state denies access.
func RequireBillingAccess(checker AccessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := checker.Access(c.Request.Context(), c.GetString(KeyTenantID))
		if err != nil {
			respond.Error(c, err)
			return
		}

		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":  "Billing access required",
				"code":   "billing_required",
				"reason": decision.Reason,
			})
			return
		}

		c.Set("access", decision)
		c.Next()
	}
}
