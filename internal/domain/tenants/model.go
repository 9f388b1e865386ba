package tenants

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant is one business account and the row of truth for its billing state.
type Tenant struct {
	ID    string `gorm:"type:uuid;primaryKey"`
	Name  string
	Email string
	TaxID *string `gorm:"column:tax_id"` // CPF/CNPJ, digits only

	SubscriptionStatus string     `gorm:"column:subscription_status;type:varchar(20);not null;default:'INACTIVE'"`
	Plan               string     `gorm:"column:plan;type:varchar(20);not null;default:'free'"`
	TrialStartedAt     *time.Time `gorm:"column:trial_started_at"`
	TrialEndsAt        *time.Time `gorm:"column:trial_ends_at"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end"` // nil while ACTIVE = lifetime grant
	PastDueSince       *time.Time `gorm:"column:past_due_since"`
	GraceDays          *int       `gorm:"column:grace_days"`

	ExternalCustomerID     *string `gorm:"column:external_customer_id;uniqueIndex:idx_tenants_external_customer_id"`
	ExternalSubscriptionID *string `gorm:"column:external_subscription_id;index:idx_tenants_external_subscription_id"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Profile links an identity-provider user to the tenant they work in.
type Profile struct {
	UserID    string `gorm:"primaryKey"`
	TenantID  string `gorm:"type:uuid;not null;index"`
	Email     string
	CreatedAt time.Time
}
