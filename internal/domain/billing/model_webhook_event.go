package billing

import (
	"errors"
	"time"
)

var ErrEventNotFound = errors.New("webhook event not found")

// WebhookEvent is the audit ledger of verified Stripe deliveries.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ProviderEventID string     `gorm:"column:provider_event_id;type:varchar(191);not null;uniqueIndex:idx_billing_webhook_events_event_id" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload         string     `gorm:"type:text;not null" json:"-"`
	Outcome         string     `gorm:"type:varchar(32)" json:"outcome"`
	ProcessingError string     `gorm:"type:text" json:"processing_error,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	Attempts        int        `gorm:"not null;default:0" json:"attempts"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "billing_webhook_events"
}
