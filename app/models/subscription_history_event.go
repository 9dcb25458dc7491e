package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	HistoryEventStatusChange = "status_change"
	HistoryEventPlanChange   = "plan_change"
	HistoryEventCanceled     = "canceled"
)

const HistoryActorWebhook = "stripe_webhook"

// SubscriptionHistoryEvent is the append-only audit trail for subscription
// changes. Rows are written in the same transaction as the subscription
// upsert and are never updated or deleted. The MRR/ARR deltas are computed
// from the plan price at write time and kept immutable for later rollups.
type SubscriptionHistoryEvent struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	SubscriptionID string    `gorm:"type:char(36);not null;index" json:"subscription_id"`
	CustomerID     string    `gorm:"type:char(36);not null;index" json:"customer_id"`
	EventType      string    `gorm:"type:varchar(32);not null;index" json:"event_type"`
	FromStatus     string    `gorm:"type:varchar(32);default:''" json:"from_status"`
	ToStatus       string    `gorm:"type:varchar(32);not null" json:"to_status"`
	FromPlanID     string    `gorm:"type:char(36);default:''" json:"from_plan_id"`
	ToPlanID       string    `gorm:"type:char(36);default:''" json:"to_plan_id"`
	MRRDeltaCents  int64     `gorm:"not null;default:0" json:"mrr_delta_cents"`
	ARRDeltaCents  int64     `gorm:"not null;default:0" json:"arr_delta_cents"`
	EffectiveDate  time.Time `gorm:"not null" json:"effective_date"`
	Reason         string    `gorm:"type:text" json:"reason"`
	Actor          string    `gorm:"type:varchar(64);not null;default:'stripe_webhook'" json:"actor"`
	Metadata       JSON      `gorm:"type:longtext" json:"metadata,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (e *SubscriptionHistoryEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
