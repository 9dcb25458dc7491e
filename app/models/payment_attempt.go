package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentAttempt mirrors a processor payment intent. Error columns are
// populated on failure and explicitly nulled on success so a recovered
// attempt does not keep a stale error around.
type PaymentAttempt struct {
	ID                     string     `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID             string     `gorm:"type:char(36);not null;index" json:"customer_id"`
	InvoiceID              string     `gorm:"type:char(36);default:null;index" json:"invoice_id,omitempty"`
	SubscriptionID         string     `gorm:"type:char(36);default:null;index" json:"subscription_id,omitempty"`
	StripePaymentIntentID  string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_payment_attempts_stripe_pi" json:"stripe_payment_intent_id"`
	Amount                 int64      `gorm:"not null;default:0" json:"amount"`
	AmountCapturable       *int64     `gorm:"default:null" json:"amount_capturable,omitempty"`
	AmountReceived         *int64     `gorm:"default:null" json:"amount_received,omitempty"`
	Currency               string     `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status                 string     `gorm:"type:varchar(32);not null;index" json:"status"`
	CaptureMethod          string     `gorm:"type:varchar(32);default:''" json:"capture_method"`
	ConfirmationMethod     string     `gorm:"type:varchar(32);default:''" json:"confirmation_method"`
	PaymentMethodID        string     `gorm:"type:varchar(191);default:''" json:"payment_method_id"`
	LastPaymentErrorCode   *string    `gorm:"type:varchar(100);default:null" json:"last_payment_error_code,omitempty"`
	LastPaymentErrorMsg    *string    `gorm:"type:text;default:null" json:"last_payment_error_message,omitempty"`
	Description            string     `gorm:"type:text" json:"description"`
	Metadata               JSON       `gorm:"type:longtext" json:"metadata,omitempty"`
	CanceledAt             *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PaymentAttempt) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// HasError reports whether the attempt carries a populated payment error.
func (p *PaymentAttempt) HasError() bool {
	return p.LastPaymentErrorCode != nil || p.LastPaymentErrorMsg != nil
}
