package promos

import "time"

const (
	KindTrialDays = "trial_days"
	KindLifetime  = "lifetime"
)

type PromoCode struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"not null;uniqueIndex:idx_promo_codes_code"` // stored upper-cased
	Kind      string `gorm:"type:varchar(20);not null;default:'trial_days'"`
	TrialDays int
	Plan      string // plan granted by lifetime codes
	StartsAt  *time.Time
	ExpiresAt *time.Time
	MaxUses   *int
	UsedCount int  `gorm:"not null;default:0"`
	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
}

// Redemption is unique per (code, tenant); the index is what enforces single use.
type Redemption struct {
	ID          uint      `gorm:"primaryKey"`
	PromoCodeID uint      `gorm:"not null;uniqueIndex:idx_promo_redemptions_code_tenant,priority:1"`
	TenantID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_promo_redemptions_code_tenant,priority:2"`
	RedeemedAt  time.Time `gorm:"not null"`
}

func (Redemption) TableName() string {
	return "promo_redemptions"
}
