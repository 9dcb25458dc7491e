package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusOpen          = "open"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusUncollectible = "uncollectible"
	InvoiceStatusVoid          = "void"
)

// Invoice mirrors a processor invoice. All monetary fields are integer cents
// in the invoice currency; AmountRemaining is derived, never taken from the
// payload directly.
type Invoice struct {
	ID                 string     `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID         string     `gorm:"type:char(36);not null;index" json:"customer_id"`
	SubscriptionID     string     `gorm:"type:char(36);default:null;index" json:"subscription_id,omitempty"`
	StripeInvoiceID    string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_invoices_stripe_invoice" json:"stripe_invoice_id"`
	StripePaymentRef   string     `gorm:"type:varchar(191);default:''" json:"stripe_payment_ref"`
	AmountDue          int64      `gorm:"not null;default:0" json:"amount_due"`
	AmountPaid         int64      `gorm:"not null;default:0" json:"amount_paid"`
	AmountRemaining    int64      `gorm:"not null;default:0" json:"amount_remaining"`
	Subtotal           int64      `gorm:"not null;default:0" json:"subtotal"`
	Total              int64      `gorm:"not null;default:0" json:"total"`
	Tax                *int64     `gorm:"default:null" json:"tax,omitempty"`
	DiscountAmount     *int64     `gorm:"default:null" json:"discount_amount,omitempty"`
	Currency           string     `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status             string     `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	CollectionMethod   string     `gorm:"type:varchar(32);default:''" json:"collection_method"`
	InvoiceNumber      string     `gorm:"type:varchar(64);default:''" json:"invoice_number"`
	HostedInvoiceURL   string     `gorm:"type:text" json:"hosted_invoice_url"`
	InvoicePDFURL      string     `gorm:"type:text" json:"invoice_pdf_url"`
	PeriodStart        *time.Time `gorm:"type:timestamp;default:null" json:"period_start,omitempty"`
	PeriodEnd          *time.Time `gorm:"type:timestamp;default:null" json:"period_end,omitempty"`
	AttemptCount       int        `gorm:"not null;default:0" json:"attempt_count"`
	NextPaymentAttempt *time.Time `gorm:"type:timestamp;default:null" json:"next_payment_attempt,omitempty"`
	Description        string     `gorm:"type:text" json:"description"`
	Metadata           JSON       `gorm:"type:longtext" json:"metadata,omitempty"`
	DueDate            *time.Time `gorm:"type:timestamp;default:null" json:"due_date,omitempty"`
	PaidAt             *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
