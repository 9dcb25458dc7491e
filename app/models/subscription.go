package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription mirrors the processor's subscription state. The local row is
// a last-observed-state mirror: transitions are recorded as delivered, not
// validated against a state machine, because the processor is authoritative.
type Subscription struct {
	ID                   string     `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID           string     `gorm:"type:char(36);not null;index" json:"customer_id"`
	PlanID               string     `gorm:"type:char(36);default:null;index" json:"plan_id,omitempty"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_stripe_sub" json:"stripe_subscription_id"`
	Status               string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	BillingInterval      string     `gorm:"type:varchar(16);not null;default:'month'" json:"billing_interval"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt           *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// IsKnownSubscriptionStatus reports whether the processor status maps onto a
// local status constant. Unknown statuses are stored verbatim anyway.
func IsKnownSubscriptionStatus(status string) bool {
	switch status {
	case SubscriptionStatusTrialing, SubscriptionStatusActive,
		SubscriptionStatusPastDue, SubscriptionStatusCanceled:
		return true
	default:
		return false
	}
}
