// Package store persists tenants, the subscription mirror, promo codes and
// the webhook ingestion queue.
package store

import (
	"context"
	"errors"
	"time"

	"zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/domain/promos"
	"zona-pedidos/internal/domain/tenants"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyRedeemed = errors.New("promo code already redeemed by tenant")
	ErrPromoExhausted  = errors.New("promo code usage limit reached")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenants.Tenant, error) {
	var t tenants.Tenant
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) FindTenantByCustomerID(ctx context.Context, customerID string) (*tenants.Tenant, error) {
	var t tenants.Tenant
	if err := s.db.WithContext(ctx).Where("external_customer_id = ?", customerID).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// UpdateTenant overwrites the given columns. Nil values clear the column.
func (s *Store) UpdateTenant(ctx context.Context, id string, patch map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&tenants.Tenant{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// StartTrial opens the trial window only for a tenant that never had one,
// is not ACTIVE and has no period end. Reports whether the row changed.
func (s *Store) StartTrial(ctx context.Context, id string, startedAt, endsAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&tenants.Tenant{}).
		Where("id = ?", id).
		Where("trial_started_at IS NULL AND trial_ends_at IS NULL AND current_period_end IS NULL").
		Where("subscription_status <> ?", billing.StatusActive).
		Updates(map[string]interface{}{
			"subscription_status": billing.StatusTrial,
			"trial_started_at":    startedAt,
			"trial_ends_at":       endsAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ListTenantsWithCustomer(ctx context.Context) ([]tenants.Tenant, error) {
	var out []tenants.Tenant
	err := s.db.WithContext(ctx).
		Where("external_customer_id IS NOT NULL AND external_customer_id <> ''").
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// TenantIDForUser resolves the tenant an identity-provider user works in.
func (s *Store) TenantIDForUser(ctx context.Context, userID string) (string, error) {
	var p tenants.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return "", notFound(err)
	}
	return p.TenantID, nil
}

// LinkedMirror returns the mirror row of the subscription the tenant links
// to. external_subscription_id is unique, so there is at most one.
func (s *Store) LinkedMirror(ctx context.Context, tenantID, subscriptionID string) (*billing.ExternalSubscription, error) {
	var m billing.ExternalSubscription
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND external_subscription_id = ?", tenantID, subscriptionID).
		Take(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// UpsertMirror inserts row or, on an existing external_subscription_id,
// overwrites only the given columns.
func (s *Store) UpsertMirror(ctx context.Context, row *billing.ExternalSubscription, columns ...string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_subscription_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error
}

func (s *Store) FindPromoCode(ctx context.Context, code string) (*promos.PromoCode, error) {
	var p promos.PromoCode
	if err := s.db.WithContext(ctx).Where("code = ?", promos.NormalizeCode(code)).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// RedeemPromoCode records the redemption, bumps the usage counter and applies
// the tenant patch in one transaction. The (code, tenant) unique index rejects
// a second redemption; the conditional increment rejects one past the cap.
func (s *Store) RedeemPromoCode(ctx context.Context, codeID uint, tenantID string, now time.Time, patch map[string]interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		red := promos.Redemption{PromoCodeID: codeID, TenantID: tenantID, RedeemedAt: now}
		if err := tx.Create(&red).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyRedeemed
			}
			return err
		}

		res := tx.Model(&promos.PromoCode{}).
			Where("id = ? AND active = ?", codeID, true).
			Where("max_uses IS NULL OR used_count < max_uses").
			UpdateColumn("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPromoExhausted
		}

		if len(patch) == 0 {
			return nil
		}
		res = tx.Model(&tenants.Tenant{}).Where("id = ?", tenantID).Updates(patch)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// modernc sqlite: SQLITE_CONSTRAINT_UNIQUE, SQLITE_CONSTRAINT_PRIMARYKEY
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code() == 2067 || coded.Code() == 1555
	}
	return false
}
