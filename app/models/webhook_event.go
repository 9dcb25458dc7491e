package models

import "time"

const (
	WebhookStatusProcessing = "processing"
	WebhookStatusCompleted  = "completed"
	WebhookStatusFailed     = "failed"
)

// WebhookEvent is the idempotency ledger for inbound processor events. The
// unique index on stripe_event_id is the dedup gate for at-least-once
// delivery; a completed row means the event's side effects were fully
// applied exactly once.
type WebhookEvent struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	StripeEventID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_stripe_event" json:"stripe_event_id"`
	EventType     string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Status        string     `gorm:"type:varchar(20);not null;default:'processing';index" json:"status"`
	PayloadJSON   string     `gorm:"type:longtext;not null" json:"payload_json"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message"`
	RetryCount    int        `gorm:"not null;default:0" json:"retry_count"`
	ProcessedAt   *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCompleted reports whether the event's side effects have been fully
// applied. Failed rows are retried on redelivery.
func (e *WebhookEvent) IsCompleted() bool {
	return e.Status == WebhookStatusCompleted
}
