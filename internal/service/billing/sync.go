package billing

import (
	"context"
	"sync"

	"zona-pedidos/internal/apperr"
	domain "zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/domain/tenants"
	"zona-pedidos/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type SyncError struct {
	TenantID string `json:"tenant_id"`
	Error    string `json:"error"`
}

type SyncReport struct {
	Total    int         `json:"total"`
	Updated  int         `json:"updated"`
	Relinked int         `json:"relinked"`
	Errors   []SyncError `json:"errors"`
}

// SyncSubscriptions reconciles the mirror with the gateway for every tenant
// that has a gateway customer. A failing tenant is reported and skipped.
func (s *Service) SyncSubscriptions(ctx context.Context) (*SyncReport, error) {
	list, err := s.store.ListTenantsWithCustomer(ctx)
	if err != nil {
		return nil, apperr.Internal("Failed to list tenants", err)
	}

	rep := &SyncReport{Total: len(list), Errors: []SyncError{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SyncConcurrency)
	for i := range list {
		t := &list[i]
		g.Go(func() error {
			updated, relinked, err := s.syncTenant(gctx, t)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.SyncErrorsTotal.Inc()
				rep.Errors = append(rep.Errors, SyncError{TenantID: t.ID, Error: err.Error()})
				return nil
			}
			if updated {
				rep.Updated++
			}
			if relinked {
				rep.Relinked++
			}
			return nil
		})
	}
	_ = g.Wait()

	zerolog.Ctx(ctx).Info().
		Int("total", rep.Total).
		Int("updated", rep.Updated).
		Int("relinked", rep.Relinked).
		Int("errors", len(rep.Errors)).
		Msg("subscription sync finished")
	return rep, nil
}

func (s *Service) syncTenant(ctx context.Context, t *tenants.Tenant) (updated, relinked bool, err error) {
	subs, err := s.gw.ListSubscriptions(ctx, deref(t.ExternalCustomerID))
	if err != nil {
		return false, false, err
	}

	now := s.now()
	var newestActive string
	var newestDue int64
	for _, sub := range subs {
		shadow := domain.NormalizeStatus(sub.Status)
		row := &domain.ExternalSubscription{
			ExternalSubscriptionID: sub.ID,
			ExternalCustomerID:     sub.CustomerID,
			TenantID:               t.ID,
			Cycle:                  sub.Cycle,
			Status:                 sub.Status,
			NextDueDate:            sub.NextDueDate,
			BillingStatus:          shadow,
			UpdatedAt:              now,
		}
		if row.ExternalCustomerID == "" {
			row.ExternalCustomerID = deref(t.ExternalCustomerID)
		}
		cols := []string{"external_customer_id", "tenant_id", "cycle", "status", "next_due_date", "updated_at"}
		// A live gateway subscription says nothing about whether its last
		// invoice was paid; only terminal states overwrite the shadow.
		if shadow != "" && shadow != domain.StatusActive {
			cols = append(cols, "billing_status")
		}
		if err := s.store.UpsertMirror(ctx, row, cols...); err != nil {
			return updated, relinked, err
		}
		updated = true

		if shadow == domain.StatusActive {
			var due int64
			if sub.NextDueDate != nil {
				due = sub.NextDueDate.Unix()
			}
			if newestActive == "" || due > newestDue {
				newestActive, newestDue = sub.ID, due
			}
		}
	}

	if deref(t.ExternalSubscriptionID) == "" && newestActive != "" {
		if err := s.store.UpdateTenant(ctx, t.ID, map[string]interface{}{"external_subscription_id": newestActive}); err != nil {
			return updated, relinked, err
		}
		zerolog.Ctx(ctx).Info().Str("tenant_id", t.ID).Str("subscription_id", newestActive).Msg("relinked subscription")
		relinked = true
	}
	return updated, relinked, nil
}
