package routes

import (
	"net/http"

	adminapi "zona-pedidos/internal/api/admin"
	"zona-pedidos/internal/api/billing"
	"zona-pedidos/internal/api/gatewaywebhook"
	"zona-pedidos/internal/app/http/middleware"
	"zona-pedidos/internal/infra/identity"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the HTTP surface needs, built once in main.
type Deps struct {
	Billing *billing.Handler
	Webhook *gatewaywebhook.Handler
	Admin   *adminapi.Handler

	Verifier          identity.Verifier
	Tenants           middleware.TenantLookup
	Access            middleware.AccessChecker
	OperatorTokenHash string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Raw body is needed for signature checks, so the webhook skips sanitization.
	r.POST("/webhooks/billing", d.Webhook.Receive)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(d.Verifier, d.Tenants), middleware.SanitizeAndCleanInputMiddleware())
	auth.GET("/billing/status", d.Billing.GetStatus)
	auth.GET("/billing/access", d.Billing.GetAccess)
	auth.POST("/billing/trial", d.Billing.StartTrial)
	auth.POST("/billing/subscription", d.Billing.CreateSubscription)
	auth.POST("/billing/change-plan", d.Billing.ChangePlan)
	auth.POST("/billing/cancel", d.Billing.Cancel)
	auth.GET("/billing/payments", d.Billing.GetPaymentHistory)

	// Tenants with billing access
	gated := auth.Group("/app")
	gated.Use(middleware.RequireBillingAccess(d.Access))
	gated.GET("/session", d.Billing.GetSession)

	// Operator routes
	admin := r.Group("/admin")
	admin.Use(middleware.RequireOperator(d.OperatorTokenHash))
	admin.POST("/billing/sync", d.Admin.SyncSubscriptions)
	admin.GET("/webhook-events", d.Admin.ListWebhookEvents)
	admin.POST("/webhook-events/:id/replay", d.Admin.ReplayWebhookEvent)
}
