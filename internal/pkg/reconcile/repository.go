package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/zenithsites/zenithportal/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the canonical-store operations the reconciliation
// engine needs. All entity writes are upserts keyed by the processor's
// external identifier; history, alerts and ledger rows are insert-only.
type Repository interface {
	FindCustomerByStripeID(stripeCustomerID string) (*models.Customer, bool, error)
	FindSubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, bool, error)
	FindInvoiceByStripeID(stripeInvoiceID string) (*models.Invoice, bool, error)
	FindPaymentAttemptByStripeID(stripePaymentIntentID string) (*models.PaymentAttempt, bool, error)
	FindChargeByStripeID(stripeChargeID string) (*models.Charge, bool, error)
	FindPlanByID(id string) (*models.Plan, bool, error)
	FindPlanByStripeProductID(stripeProductID string) (*models.Plan, bool, error)

	UpsertInvoice(inv *models.Invoice) error
	UpsertPaymentAttempt(pa *models.PaymentAttempt) error
	UpsertCharge(ch *models.Charge) error
	UpsertRefund(r *models.Refund) error
	SavePlan(p *models.Plan) error

	// UpsertSubscriptionWithHistory applies the subscription upsert and the
	// history append in one transaction. A nil history skips the append
	// (no observed status or plan change).
	UpsertSubscriptionWithHistory(sub *models.Subscription, hist *models.SubscriptionHistoryEvent) error

	CreateAlert(a *models.BillingAlert) error

	CreateEventIfNotExists(evt *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkEventCompleted(id uint) error
	MarkEventFailed(id uint, errorMessage string) error
	IncrementEventRetry(id uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) findOne(dest interface{}, query string, args ...interface{}) (bool, error) {
	err := r.db.Where(query, args...).First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *gormRepository) FindCustomerByStripeID(stripeCustomerID string) (*models.Customer, bool, error) {
	var c models.Customer
	ok, err := r.findOne(&c, "stripe_customer_id = ?", stripeCustomerID)
	if !ok {
		return nil, false, err
	}
	return &c, true, nil
}

func (r *gormRepository) FindSubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, bool, error) {
	var s models.Subscription
	ok, err := r.findOne(&s, "stripe_subscription_id = ?", stripeSubscriptionID)
	if !ok {
		return nil, false, err
	}
	return &s, true, nil
}

func (r *gormRepository) FindInvoiceByStripeID(stripeInvoiceID string) (*models.Invoice, bool, error) {
	var inv models.Invoice
	ok, err := r.findOne(&inv, "stripe_invoice_id = ?", stripeInvoiceID)
	if !ok {
		return nil, false, err
	}
	return &inv, true, nil
}

func (r *gormRepository) FindPaymentAttemptByStripeID(stripePaymentIntentID string) (*models.PaymentAttempt, bool, error) {
	var pa models.PaymentAttempt
	ok, err := r.findOne(&pa, "stripe_payment_intent_id = ?", stripePaymentIntentID)
	if !ok {
		return nil, false, err
	}
	return &pa, true, nil
}

func (r *gormRepository) FindChargeByStripeID(stripeChargeID string) (*models.Charge, bool, error) {
	var ch models.Charge
	ok, err := r.findOne(&ch, "stripe_charge_id = ?", stripeChargeID)
	if !ok {
		return nil, false, err
	}
	return &ch, true, nil
}

func (r *gormRepository) FindPlanByID(id string) (*models.Plan, bool, error) {
	var p models.Plan
	ok, err := r.findOne(&p, "id = ?", id)
	if !ok {
		return nil, false, err
	}
	return &p, true, nil
}

func (r *gormRepository) FindPlanByStripeProductID(stripeProductID string) (*models.Plan, bool, error) {
	var p models.Plan
	ok, err := r.findOne(&p, "stripe_product_id = ?", stripeProductID)
	if !ok {
		return nil, false, err
	}
	return &p, true, nil
}

func (r *gormRepository) UpsertInvoice(inv *models.Invoice) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stripe_invoice_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"subscription_id",
			"stripe_payment_ref",
			"amount_due",
			"amount_paid",
			"amount_remaining",
			"subtotal",
			"total",
			"tax",
			"discount_amount",
			"currency",
			"status",
			"collection_method",
			"invoice_number",
			"hosted_invoice_url",
			"invoice_pdf_url",
			"period_start",
			"period_end",
			"attempt_count",
			"next_payment_attempt",
			"description",
			"metadata",
			"due_date",
			"paid_at",
			"updated_at",
		}),
	}).Create(inv).Error; err != nil {
		return fmt.Errorf("upsert invoice %s: %w", inv.StripeInvoiceID, err)
	}

	// Re-read so the caller sees the stored row, ID included. The read goes
	// into a fresh struct: BeforeCreate stamped a new UUID on inv, and on
	// the update path the stored row keeps its original one, so querying
	// with inv as destination would add the wrong primary key to the
	// conditions.
	var stored models.Invoice
	if err := r.db.Where("stripe_invoice_id = ?", inv.StripeInvoiceID).First(&stored).Error; err != nil {
		return fmt.Errorf("reload invoice %s: %w", inv.StripeInvoiceID, err)
	}
	*inv = stored
	return nil
}

func (r *gormRepository) UpsertPaymentAttempt(pa *models.PaymentAttempt) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stripe_payment_intent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"invoice_id",
			"subscription_id",
			"amount",
			"amount_capturable",
			"amount_received",
			"currency",
			"status",
			"capture_method",
			"confirmation_method",
			"payment_method_id",
			"last_payment_error_code",
			"last_payment_error_msg",
			"description",
			"metadata",
			"canceled_at",
			"updated_at",
		}),
	}).Create(pa).Error; err != nil {
		return fmt.Errorf("upsert payment attempt %s: %w", pa.StripePaymentIntentID, err)
	}

	var stored models.PaymentAttempt
	if err := r.db.Where("stripe_payment_intent_id = ?", pa.StripePaymentIntentID).First(&stored).Error; err != nil {
		return fmt.Errorf("reload payment attempt %s: %w", pa.StripePaymentIntentID, err)
	}
	*pa = stored
	return nil
}

func (r *gormRepository) UpsertCharge(ch *models.Charge) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stripe_charge_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"invoice_id",
			"payment_attempt_id",
			"amount",
			"amount_captured",
			"amount_refunded",
			"currency",
			"status",
			"paid",
			"refunded",
			"captured",
			"payment_method_type",
			"card_brand",
			"card_last4",
			"billing_email",
			"fee_amount",
			"net_amount",
			"receipt_url",
			"description",
			"metadata",
			"updated_at",
		}),
	}).Create(ch).Error; err != nil {
		return fmt.Errorf("upsert charge %s: %w", ch.StripeChargeID, err)
	}

	var stored models.Charge
	if err := r.db.Where("stripe_charge_id = ?", ch.StripeChargeID).First(&stored).Error; err != nil {
		return fmt.Errorf("reload charge %s: %w", ch.StripeChargeID, err)
	}
	*ch = stored
	return nil
}

func (r *gormRepository) UpsertRefund(ref *models.Refund) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stripe_refund_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"charge_id",
			"payment_attempt_id",
			"amount",
			"currency",
			"status",
			"reason",
			"description",
			"metadata",
			"updated_at",
		}),
	}).Create(ref).Error; err != nil {
		return fmt.Errorf("upsert refund %s: %w", ref.StripeRefundID, err)
	}

	var stored models.Refund
	if err := r.db.Where("stripe_refund_id = ?", ref.StripeRefundID).First(&stored).Error; err != nil {
		return fmt.Errorf("reload refund %s: %w", ref.StripeRefundID, err)
	}
	*ref = stored
	return nil
}

func (r *gormRepository) SavePlan(p *models.Plan) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) UpsertSubscriptionWithHistory(sub *models.Subscription, hist *models.SubscriptionHistoryEvent) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"customer_id",
				"plan_id",
				"status",
				"billing_interval",
				"current_period_start",
				"current_period_end",
				"cancel_at_period_end",
				"canceled_at",
				"updated_at",
			}),
		}).Create(sub).Error; err != nil {
			return fmt.Errorf("upsert subscription %s: %w", sub.StripeSubscriptionID, err)
		}

		var stored models.Subscription
		if err := tx.Where("stripe_subscription_id = ?", sub.StripeSubscriptionID).First(&stored).Error; err != nil {
			return fmt.Errorf("reload subscription %s: %w", sub.StripeSubscriptionID, err)
		}
		*sub = stored

		if hist == nil {
			return nil
		}
		hist.SubscriptionID = sub.ID
		if err := tx.Create(hist).Error; err != nil {
			return fmt.Errorf("append subscription history for %s: %w", sub.StripeSubscriptionID, err)
		}
		return nil
	})
}

func (r *gormRepository) CreateAlert(a *models.BillingAlert) error {
	return r.db.Create(a).Error
}

func (r *gormRepository) CreateEventIfNotExists(evt *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(evt)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("stripe_event_id = ?", evt.StripeEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkEventCompleted(id uint) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        models.WebhookStatusCompleted,
		"error_message": "",
		"processed_at":  &now,
	}).Error
}

func (r *gormRepository) MarkEventFailed(id uint, errorMessage string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        models.WebhookStatusFailed,
		"error_message": errorMessage,
		"processed_at":  &now,
	}).Error
}

func (r *gormRepository) IncrementEventRetry(id uint) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + ?", 1)).Error
}
