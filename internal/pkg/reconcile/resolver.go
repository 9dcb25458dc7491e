package reconcile

import (
	"github.com/gofiber/fiber/v2/log"
	"github.com/zenithsites/zenithportal/app/models"
)

// Resolver maps processor external references onto canonical local records.
// A miss is a routine, non-fatal outcome (e.g. a test-mode event for a
// deleted customer): it is reported as ok=false and logged with the ids
// needed for manual reconciliation, never as an error.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver over the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Customer resolves an external customer reference.
func (r *Resolver) Customer(stripeCustomerID string) (*models.Customer, bool, error) {
	if stripeCustomerID == "" {
		return nil, false, nil
	}
	c, ok, err := r.repo.FindCustomerByStripeID(stripeCustomerID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		log.Warnf("[Reconcile] no local customer for stripe_customer_id=%s", stripeCustomerID)
	}
	return c, ok, nil
}

// Subscription resolves an external subscription reference. An empty
// reference resolves to nothing without logging; invoices and payments are
// allowed to be subscription-less.
func (r *Resolver) Subscription(stripeSubscriptionID string) (*models.Subscription, bool, error) {
	if stripeSubscriptionID == "" {
		return nil, false, nil
	}
	s, ok, err := r.repo.FindSubscriptionByStripeID(stripeSubscriptionID)
	if err != nil {
		return nil, false, err
	}
	return s, ok, nil
}

// Invoice resolves an external invoice reference.
func (r *Resolver) Invoice(stripeInvoiceID string) (*models.Invoice, bool, error) {
	if stripeInvoiceID == "" {
		return nil, false, nil
	}
	inv, ok, err := r.repo.FindInvoiceByStripeID(stripeInvoiceID)
	if err != nil {
		return nil, false, err
	}
	return inv, ok, nil
}

// PaymentAttempt resolves an external payment intent reference.
func (r *Resolver) PaymentAttempt(stripePaymentIntentID string) (*models.PaymentAttempt, bool, error) {
	if stripePaymentIntentID == "" {
		return nil, false, nil
	}
	pa, ok, err := r.repo.FindPaymentAttemptByStripeID(stripePaymentIntentID)
	if err != nil {
		return nil, false, err
	}
	return pa, ok, nil
}

// Charge resolves an external charge reference.
func (r *Resolver) Charge(stripeChargeID string) (*models.Charge, bool, error) {
	if stripeChargeID == "" {
		return nil, false, nil
	}
	ch, ok, err := r.repo.FindChargeByStripeID(stripeChargeID)
	if err != nil {
		return nil, false, err
	}
	return ch, ok, nil
}

// PlanByProduct resolves a processor product reference to a local plan.
func (r *Resolver) PlanByProduct(stripeProductID string) (*models.Plan, bool, error) {
	if stripeProductID == "" {
		return nil, false, nil
	}
	p, ok, err := r.repo.FindPlanByStripeProductID(stripeProductID)
	if err != nil {
		return nil, false, err
	}
	return p, ok, nil
}
