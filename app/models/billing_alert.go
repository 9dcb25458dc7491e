package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AlertTypePaymentFailed   = "payment_failed"
	AlertTypeRefundProcessed = "refund_processed"
	AlertTypeHighChurn       = "high_churn"
	AlertTypeWebhookFailure  = "webhook_failure"
)

const (
	AlertSeverityLow      = "low"
	AlertSeverityMedium   = "medium"
	AlertSeverityHigh     = "high"
	AlertSeverityCritical = "critical"
)

// BillingAlert is an operator-facing alert raised by the reconciliation
// engine. The engine only creates alerts; resolution happens through the
// admin dashboard.
type BillingAlert struct {
	ID               string     `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID       string     `gorm:"type:char(36);default:null;index" json:"customer_id,omitempty"`
	SubscriptionID   string     `gorm:"type:char(36);default:null;index" json:"subscription_id,omitempty"`
	InvoiceID        string     `gorm:"type:char(36);default:null;index" json:"invoice_id,omitempty"`
	PaymentAttemptID string     `gorm:"type:char(36);default:null" json:"payment_attempt_id,omitempty"`
	AlertType        string     `gorm:"type:varchar(32);not null;index" json:"alert_type"`
	Severity         string     `gorm:"type:varchar(16);not null;default:'low';index" json:"severity"`
	Title            string     `gorm:"type:varchar(200);not null" json:"title"`
	Message          string     `gorm:"type:text;not null" json:"message"`
	Metadata         JSON       `gorm:"type:longtext" json:"metadata,omitempty"`
	IsResolved       bool       `gorm:"default:false;index" json:"is_resolved"`
	ResolvedAt       *time.Time `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
	ResolvedBy       string     `gorm:"type:char(36);default:''" json:"resolved_by"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *BillingAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
