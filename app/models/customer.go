package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CustomerRoleClient = "client"
	CustomerRoleAdmin  = "admin"
)

// Customer is the local account a processor customer reference resolves to.
// Rows are created by onboarding/checkout, never by the reconciliation
// engine; an unknown stripe_customer_id is a soft resolution failure.
type Customer struct {
	ID               string     `gorm:"type:char(36);primaryKey" json:"id"`
	StripeCustomerID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_customers_stripe_customer" json:"stripe_customer_id"`
	ContactEmail     string     `gorm:"type:varchar(200);not null;index" json:"contact_email"`
	ContactName      string     `gorm:"type:varchar(200);default:''" json:"contact_name"`
	CompanyName      string     `gorm:"type:varchar(200);default:''" json:"company_name"`
	Role             string     `gorm:"type:varchar(20);not null;default:'client';index" json:"role"`
	DeletedAt        *time.Time `gorm:"type:timestamp;default:null" json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
