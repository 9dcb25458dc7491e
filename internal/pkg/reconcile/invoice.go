package reconcile

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/zenithsites/zenithportal/app/models"
)

// InvoiceReconciler applies invoice lifecycle events. All writes are
// upserts on stripe_invoice_id; AmountRemaining is always recomputed from
// the payload's due and paid amounts.
type InvoiceReconciler struct {
	repo     Repository
	resolver *Resolver
	alerts   *AlertEngine
	signals  Signaler

	now func() time.Time
}

// NewInvoiceReconciler wires an invoice reconciler.
func NewInvoiceReconciler(repo Repository, resolver *Resolver, alerts *AlertEngine, signals Signaler) *InvoiceReconciler {
	return &InvoiceReconciler{
		repo:     repo,
		resolver: resolver,
		alerts:   alerts,
		signals:  signals,
		now:      time.Now,
	}
}

// ReconcileCreated handles invoice.created.
func (r *InvoiceReconciler) ReconcileCreated(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload InvoicePayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}

	inv, outcome, err := r.buildInvoice(env, &payload)
	if outcome != OutcomeApplied {
		return outcome, err
	}

	if err := r.repo.UpsertInvoice(inv); err != nil {
		return OutcomeFailed, err
	}

	r.signalInvoice(ctx, inv)
	return OutcomeApplied, nil
}

// ReconcilePaid handles invoice.paid and invoice.payment_succeeded: the
// invoice is marked paid with nothing remaining.
func (r *InvoiceReconciler) ReconcilePaid(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload InvoicePayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}

	inv, outcome, err := r.buildInvoice(env, &payload)
	if outcome != OutcomeApplied {
		return outcome, err
	}

	now := r.now().UTC()
	inv.Status = models.InvoiceStatusPaid
	inv.AmountPaid = payload.AmountPaid
	if inv.AmountPaid == 0 {
		inv.AmountPaid = payload.AmountDue
	}
	inv.AmountRemaining = 0
	inv.PaidAt = &now

	if err := r.repo.UpsertInvoice(inv); err != nil {
		return OutcomeFailed, err
	}

	r.signalInvoice(ctx, inv)
	return OutcomeApplied, nil
}

// ReconcilePaymentFailed handles invoice.payment_failed: the invoice is
// re-upserted with its attempt bookkeeping and a payment_failed alert is
// raised.
func (r *InvoiceReconciler) ReconcilePaymentFailed(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload InvoicePayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}

	inv, outcome, err := r.buildInvoice(env, &payload)
	if outcome != OutcomeApplied {
		return outcome, err
	}
	if inv.Status == "" || inv.Status == models.InvoiceStatusDraft {
		inv.Status = models.InvoiceStatusOpen
	}

	if err := r.repo.UpsertInvoice(inv); err != nil {
		return OutcomeFailed, err
	}

	r.alerts.InvoicePaymentFailed(inv, &payload)

	r.signalInvoice(ctx, inv)
	r.signals.Signal(ctx,
		ScopeGlobal("billing-alerts"),
		ScopeCustomer("billing-alerts", inv.CustomerID),
	)
	return OutcomeApplied, nil
}

// buildInvoice maps the payload onto an Invoice model with all derived
// fields computed. Returns a non-applied outcome when the customer
// reference does not resolve.
func (r *InvoiceReconciler) buildInvoice(env *Envelope, payload *InvoicePayload) (*models.Invoice, Outcome, error) {
	customer, ok, err := r.resolver.Customer(payload.CustomerRef)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	if !ok {
		log.Warnf("[Reconcile] event %s: invoice %s references unknown customer %s, skipping",
			env.ID, payload.InvoiceRef, payload.CustomerRef)
		return nil, OutcomeSkippedMissingReference, nil
	}

	subscriptionID := ""
	if sub, ok, err := r.resolver.Subscription(payload.SubscriptionRef); err != nil {
		return nil, OutcomeFailed, err
	} else if ok {
		subscriptionID = sub.ID
	}

	status := payload.Status
	if status == "" {
		status = models.InvoiceStatusDraft
	}

	inv := &models.Invoice{
		CustomerID:         customer.ID,
		SubscriptionID:     subscriptionID,
		StripeInvoiceID:    payload.InvoiceRef,
		StripePaymentRef:   payload.PaymentIntentRef,
		AmountDue:          payload.AmountDue,
		AmountPaid:         payload.AmountPaid,
		AmountRemaining:    payload.AmountDue - payload.AmountPaid,
		Subtotal:           payload.Subtotal,
		Total:              payload.Total,
		Tax:                payload.Tax,
		DiscountAmount:     payload.DiscountTotal(),
		Currency:           payload.Currency,
		Status:             status,
		CollectionMethod:   payload.CollectionMethod,
		InvoiceNumber:      payload.Number,
		HostedInvoiceURL:   payload.HostedInvoiceURL,
		InvoicePDFURL:      payload.InvoicePDF,
		PeriodStart:        unixTimePtr(payload.PeriodStart),
		PeriodEnd:          unixTimePtr(payload.PeriodEnd),
		AttemptCount:       payload.AttemptCount,
		NextPaymentAttempt: unixTimePtr(payload.NextPaymentAttempt),
		Description:        payload.Description,
		Metadata:           metadataJSON(stringMapToMeta(payload.Metadata)),
		DueDate:            unixTimePtr(payload.DueDate),
	}
	return inv, OutcomeApplied, nil
}

func (r *InvoiceReconciler) signalInvoice(ctx context.Context, inv *models.Invoice) {
	scopes := []string{
		ScopeGlobal("invoices"),
		ScopeCustomer("invoices", inv.CustomerID),
	}
	if inv.SubscriptionID != "" {
		scopes = append(scopes, ScopeParent("invoices", "subscription", inv.SubscriptionID))
	}
	r.signals.Signal(ctx, scopes...)
}

func stringMapToMeta(m map[string]string) map[string]interface{} {
	if len(m) == 0 {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
