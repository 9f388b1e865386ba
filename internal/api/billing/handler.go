// Package billing exposes the tenant-facing billing endpoints.
package billing

import (
	"context"

	"zona-pedidos/internal/domain/access"
	"zona-pedidos/internal/infra/gateway"
	billingsvc "zona-pedidos/internal/service/billing"
)

// Service is the part of the billing service the handlers call.
type Service interface {
	Status(ctx context.Context, tenantID string) (*billingsvc.StatusReport, error)
	Access(ctx context.Context, tenantID string) (access.Decision, error)
	StartTrial(ctx context.Context, tenantID string) (*billingsvc.TrialResult, error)
	CreateSubscription(ctx context.Context, tenantID string, req billingsvc.CreateSubscriptionRequest) (*billingsvc.CreateSubscriptionResult, error)
	ChangePlan(ctx context.Context, tenantID, cycle string) (*billingsvc.ChangePlanResult, error)
	Cancel(ctx context.Context, tenantID string) (*billingsvc.CancelResult, error)
	ListPayments(ctx context.Context, tenantID string) ([]gateway.Payment, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}
