package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ingestion queue states.
const (
	EventStatusReceived  = "received"
	EventStatusProcessed = "processed"
	EventStatusIgnored   = "ignored"
	EventStatusFailed    = "failed"
)

// WebhookEvent is a gateway callback persisted before it is applied, so that a
// failed application can be replayed by an operator.
type WebhookEvent struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);index" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload         string     `gorm:"type:text;not null" json:"payload"`
	Status          string     `gorm:"type:varchar(20);not null;index" json:"status"`
	Outcome         string     `gorm:"type:varchar(100)" json:"outcome,omitempty"`
	Attempts        int        `gorm:"not null;default:0" json:"attempts"`
	LastError       string     `gorm:"type:text" json:"last_error,omitempty"`
	ReceivedAt      time.Time  `gorm:"not null;index" json:"received_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "billing_webhook_events"
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
