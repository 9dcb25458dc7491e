package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PlanIntervalMonth = "month"
	PlanIntervalYear  = "year"
)

// Plan mirrors a sellable product with its recurring prices. Price columns
// are kept in sync by the price reconciler so dashboards never need a live
// processor call.
type Plan struct {
	ID                   string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name                 string    `gorm:"type:varchar(100);not null" json:"name"`
	StripeProductID      string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_plans_stripe_product" json:"stripe_product_id"`
	StripePriceIDMonthly string    `gorm:"type:varchar(191);default:''" json:"stripe_price_id_monthly"`
	StripePriceIDYearly  string    `gorm:"type:varchar(191);default:''" json:"stripe_price_id_yearly"`
	PriceMonthlyCents    int64     `gorm:"not null;default:0" json:"price_monthly_cents"`
	PriceYearlyCents     int64     `gorm:"not null;default:0" json:"price_yearly_cents"`
	IsActive             bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// MonthlyEquivalentCents normalizes the plan price for a billing interval to
// a monthly rate. Yearly prices are divided by twelve and rounded down.
func (p *Plan) MonthlyEquivalentCents(interval string) int64 {
	if interval == PlanIntervalYear && p.PriceYearlyCents > 0 {
		return p.PriceYearlyCents / 12
	}
	return p.PriceMonthlyCents
}
