package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Charge mirrors realized monetary movement on the processor side. Fee and
// net amounts come from the settlement sub-object when the payload carries
// one; otherwise they stay null.
type Charge struct {
	ID                string    `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID        string    `gorm:"type:char(36);not null;index" json:"customer_id"`
	InvoiceID         string    `gorm:"type:char(36);default:null;index" json:"invoice_id,omitempty"`
	PaymentAttemptID  string    `gorm:"type:char(36);default:null;index" json:"payment_attempt_id,omitempty"`
	StripeChargeID    string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_charges_stripe_charge" json:"stripe_charge_id"`
	Amount            int64     `gorm:"not null;default:0" json:"amount"`
	AmountCaptured    int64     `gorm:"not null;default:0" json:"amount_captured"`
	AmountRefunded    int64     `gorm:"not null;default:0" json:"amount_refunded"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status            string    `gorm:"type:varchar(32);not null;index" json:"status"`
	Paid              bool      `gorm:"default:false" json:"paid"`
	Refunded          bool      `gorm:"default:false;index" json:"refunded"`
	Captured          bool      `gorm:"default:false" json:"captured"`
	PaymentMethodType string    `gorm:"type:varchar(32);default:''" json:"payment_method_type"`
	CardBrand         string    `gorm:"type:varchar(32);default:''" json:"card_brand"`
	CardLast4         string    `gorm:"type:varchar(4);default:''" json:"card_last4"`
	BillingEmail      string    `gorm:"type:varchar(200);default:''" json:"billing_email"`
	FeeAmount         *int64    `gorm:"default:null" json:"fee_amount,omitempty"`
	NetAmount         *int64    `gorm:"default:null" json:"net_amount,omitempty"`
	ReceiptURL        string    `gorm:"type:text" json:"receipt_url"`
	Description       string    `gorm:"type:text" json:"description"`
	Metadata          JSON      `gorm:"type:longtext" json:"metadata,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Charge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
