package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Refund is always linked to exactly one Charge. A single charge.refunded
// event can fan out into several refund rows.
type Refund struct {
	ID               string    `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID       string    `gorm:"type:char(36);not null;index" json:"customer_id"`
	ChargeID         string    `gorm:"type:char(36);not null;index" json:"charge_id"`
	PaymentAttemptID string    `gorm:"type:char(36);default:null;index" json:"payment_attempt_id,omitempty"`
	StripeRefundID   string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_refunds_stripe_refund" json:"stripe_refund_id"`
	Amount           int64     `gorm:"not null;default:0" json:"amount"`
	Currency         string    `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status           string    `gorm:"type:varchar(32);not null;default:'succeeded'" json:"status"`
	Reason           string    `gorm:"type:varchar(64);default:''" json:"reason"`
	Description      string    `gorm:"type:text" json:"description"`
	Metadata         JSON      `gorm:"type:longtext" json:"metadata,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
