package billing

import "time"

// ExternalSubscription mirrors the gateway's subscription object. Written only
// through upserts keyed on ExternalSubscriptionID.
type ExternalSubscription struct {
	ID                     uint   `gorm:"primaryKey"`
	ExternalSubscriptionID string `gorm:"column:external_subscription_id;not null;uniqueIndex:idx_billing_subscriptions_external_id"`
	ExternalCustomerID     string `gorm:"column:external_customer_id;index"`
	TenantID               string `gorm:"column:tenant_id;type:uuid;index"`
	Cycle                  string `gorm:"type:varchar(20)"`
	Status                 string `gorm:"type:varchar(30)"` // gateway vocabulary, upper-cased
	NextDueDate            *time.Time
	BillingStatus          string `gorm:"column:billing_status;type:varchar(20)"` // local shadow
	LastPaymentID          *string
	LastInvoiceURL         *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (ExternalSubscription) TableName() string {
	return "billing_subscriptions"
}
