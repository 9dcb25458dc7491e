package reconcile

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/zenithsites/zenithportal/app/models"
)

// PaymentAttemptReconciler applies payment intent events. A succeeded
// attempt explicitly clears any earlier error so recovery after a failed
// attempt leaves no stale error behind.
type PaymentAttemptReconciler struct {
	repo     Repository
	resolver *Resolver
	alerts   *AlertEngine
	signals  Signaler
}

// NewPaymentAttemptReconciler wires a payment attempt reconciler.
func NewPaymentAttemptReconciler(repo Repository, resolver *Resolver, alerts *AlertEngine, signals Signaler) *PaymentAttemptReconciler {
	return &PaymentAttemptReconciler{repo: repo, resolver: resolver, alerts: alerts, signals: signals}
}

// ReconcileSucceeded handles payment_intent.succeeded.
func (r *PaymentAttemptReconciler) ReconcileSucceeded(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload PaymentAttemptPayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}

	attempt, outcome, err := r.buildAttempt(env, &payload)
	if outcome != OutcomeApplied {
		return outcome, err
	}

	// Success clears error state from any earlier failed attempt.
	attempt.LastPaymentErrorCode = nil
	attempt.LastPaymentErrorMsg = nil

	if err := r.repo.UpsertPaymentAttempt(attempt); err != nil {
		return OutcomeFailed, err
	}

	r.signalAttempt(ctx, attempt)
	return OutcomeApplied, nil
}

// ReconcileFailed handles payment_intent.payment_failed: the attempt is
// upserted with its error detail and a payment_failed alert is raised.
func (r *PaymentAttemptReconciler) ReconcileFailed(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload PaymentAttemptPayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}

	attempt, outcome, err := r.buildAttempt(env, &payload)
	if outcome != OutcomeApplied {
		return outcome, err
	}

	if payload.LastPaymentError != nil {
		if payload.LastPaymentError.Code != "" {
			code := payload.LastPaymentError.Code
			attempt.LastPaymentErrorCode = &code
		}
		if payload.LastPaymentError.Message != "" {
			msg := payload.LastPaymentError.Message
			attempt.LastPaymentErrorMsg = &msg
		}
	}

	if err := r.repo.UpsertPaymentAttempt(attempt); err != nil {
		return OutcomeFailed, err
	}

	r.alerts.PaymentAttemptFailed(attempt, payload.LastPaymentError)

	r.signalAttempt(ctx, attempt)
	r.signals.Signal(ctx,
		ScopeGlobal("billing-alerts"),
		ScopeCustomer("billing-alerts", attempt.CustomerID),
	)
	return OutcomeApplied, nil
}

// ReconcileInvoicePaymentSucceeded books the attempt side of
// invoice.payment_succeeded: when the invoice payload references a known
// payment intent, that attempt is marked succeeded and its error state
// cleared. An invoice without a resolvable intent reference has no attempt
// to book and still counts as applied.
func (r *PaymentAttemptReconciler) ReconcileInvoicePaymentSucceeded(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload InvoicePayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}

	attempt, ok, err := r.resolver.PaymentAttempt(payload.PaymentIntentRef)
	if err != nil {
		return OutcomeFailed, err
	}
	if !ok {
		return OutcomeApplied, nil
	}

	// Write through a copy with the primary key reset so the update takes
	// the upsert path on the external id, like every other delivery.
	update := *attempt
	update.ID = ""
	update.Status = "succeeded"
	if payload.AmountPaid > 0 {
		paid := payload.AmountPaid
		update.AmountReceived = &paid
	}
	update.LastPaymentErrorCode = nil
	update.LastPaymentErrorMsg = nil

	if err := r.repo.UpsertPaymentAttempt(&update); err != nil {
		return OutcomeFailed, err
	}

	r.signalAttempt(ctx, &update)
	return OutcomeApplied, nil
}

func (r *PaymentAttemptReconciler) buildAttempt(env *Envelope, payload *PaymentAttemptPayload) (*models.PaymentAttempt, Outcome, error) {
	customer, ok, err := r.resolver.Customer(payload.CustomerRef)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	if !ok {
		log.Warnf("[Reconcile] event %s: payment intent %s references unknown customer %s, skipping",
			env.ID, payload.PaymentIntentRef, payload.CustomerRef)
		return nil, OutcomeSkippedMissingReference, nil
	}

	invoiceID := ""
	if inv, ok, err := r.resolver.Invoice(payload.InvoiceRef); err != nil {
		return nil, OutcomeFailed, err
	} else if ok {
		invoiceID = inv.ID
	}

	subscriptionRef := payload.SubscriptionRef
	if subscriptionRef == "" {
		subscriptionRef = payload.Metadata["subscription_id"]
	}
	subscriptionID := ""
	if sub, ok, err := r.resolver.Subscription(subscriptionRef); err != nil {
		return nil, OutcomeFailed, err
	} else if ok {
		subscriptionID = sub.ID
	}

	attempt := &models.PaymentAttempt{
		CustomerID:            customer.ID,
		InvoiceID:             invoiceID,
		SubscriptionID:        subscriptionID,
		StripePaymentIntentID: payload.PaymentIntentRef,
		Amount:                payload.Amount,
		AmountCapturable:      payload.AmountCapturable,
		AmountReceived:        payload.AmountReceived,
		Currency:              payload.Currency,
		Status:                payload.Status,
		CaptureMethod:         payload.CaptureMethod,
		ConfirmationMethod:    payload.ConfirmationMethod,
		PaymentMethodID:       payload.PaymentMethodRef,
		Description:           payload.Description,
		Metadata:              metadataJSON(stringMapToMeta(payload.Metadata)),
		CanceledAt:            unixTimePtr(payload.CanceledAt),
	}
	return attempt, OutcomeApplied, nil
}

func (r *PaymentAttemptReconciler) signalAttempt(ctx context.Context, attempt *models.PaymentAttempt) {
	scopes := []string{
		ScopeGlobal("payment-attempts"),
		ScopeCustomer("payment-attempts", attempt.CustomerID),
	}
	if attempt.InvoiceID != "" {
		scopes = append(scopes, ScopeParent("payment-attempts", "invoice", attempt.InvoiceID))
	}
	r.signals.Signal(ctx, scopes...)
}
