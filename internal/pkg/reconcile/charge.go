package reconcile

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/zenithsites/zenithportal/app/models"
)

// ChargeReconciler applies charge events. charge.refunded fans out into one
// Refund upsert per discrete refund object nested in the payload.
type ChargeReconciler struct {
	repo     Repository
	resolver *Resolver
	alerts   *AlertEngine
	signals  Signaler
}

// NewChargeReconciler wires a charge reconciler.
func NewChargeReconciler(repo Repository, resolver *Resolver, alerts *AlertEngine, signals Signaler) *ChargeReconciler {
	return &ChargeReconciler{repo: repo, resolver: resolver, alerts: alerts, signals: signals}
}

// ReconcileSucceeded handles charge.succeeded.
func (r *ChargeReconciler) ReconcileSucceeded(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload ChargePayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}

	ch, outcome, err := r.buildCharge(env, &payload)
	if outcome != OutcomeApplied {
		return outcome, err
	}

	if err := r.repo.UpsertCharge(ch); err != nil {
		return OutcomeFailed, err
	}

	r.signalCharge(ctx, ch, false)
	return OutcomeApplied, nil
}

// ReconcileRefunded handles charge.refunded: the charge is re-upserted
// with its refund totals, each nested refund object becomes a Refund row,
// and a refund_processed alert is raised.
func (r *ChargeReconciler) ReconcileRefunded(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload ChargePayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}

	ch, outcome, err := r.buildCharge(env, &payload)
	if outcome != OutcomeApplied {
		return outcome, err
	}
	ch.Refunded = true

	if err := r.repo.UpsertCharge(ch); err != nil {
		return OutcomeFailed, err
	}

	for _, rp := range payload.Refunds {
		currency := rp.Currency
		if currency == "" {
			currency = ch.Currency
		}
		status := rp.Status
		if status == "" {
			status = "succeeded"
		}
		refund := &models.Refund{
			CustomerID:       ch.CustomerID,
			ChargeID:         ch.ID,
			PaymentAttemptID: ch.PaymentAttemptID,
			StripeRefundID:   rp.RefundRef,
			Amount:           rp.Amount,
			Currency:         currency,
			Status:           status,
			Reason:           rp.Reason,
			Description:      rp.Description,
			Metadata:         metadataJSON(stringMapToMeta(rp.Metadata)),
		}
		if err := r.repo.UpsertRefund(refund); err != nil {
			return OutcomeFailed, err
		}
	}

	r.alerts.RefundProcessed(ch, len(payload.Refunds))

	r.signalCharge(ctx, ch, true)
	return OutcomeApplied, nil
}

func (r *ChargeReconciler) buildCharge(env *Envelope, payload *ChargePayload) (*models.Charge, Outcome, error) {
	customer, ok, err := r.resolver.Customer(payload.CustomerRef)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	if !ok {
		log.Warnf("[Reconcile] event %s: charge %s references unknown customer %s, skipping",
			env.ID, payload.ChargeRef, payload.CustomerRef)
		return nil, OutcomeSkippedMissingReference, nil
	}

	invoiceID := ""
	if inv, ok, err := r.resolver.Invoice(payload.InvoiceRef); err != nil {
		return nil, OutcomeFailed, err
	} else if ok {
		invoiceID = inv.ID
	}

	attemptID := ""
	if pa, ok, err := r.resolver.PaymentAttempt(payload.PaymentIntentRef); err != nil {
		return nil, OutcomeFailed, err
	} else if ok {
		attemptID = pa.ID
	}

	ch := &models.Charge{
		CustomerID:       customer.ID,
		InvoiceID:        invoiceID,
		PaymentAttemptID: attemptID,
		StripeChargeID:   payload.ChargeRef,
		Amount:           payload.Amount,
		AmountCaptured:   payload.AmountCaptured,
		AmountRefunded:   payload.AmountRefunded,
		Currency:         payload.Currency,
		Status:           payload.Status,
		Paid:             payload.Paid,
		Refunded:         payload.Refunded,
		Captured:         payload.Captured,
		BillingEmail:     payload.BillingEmail,
		ReceiptURL:       payload.ReceiptURL,
		Description:      payload.Description,
		Metadata:         metadataJSON(stringMapToMeta(payload.Metadata)),
	}
	if pmd := payload.PaymentMethodDetails; pmd != nil {
		ch.PaymentMethodType = pmd.Type
		if pmd.Card != nil {
			ch.CardBrand = pmd.Card.Brand
			ch.CardLast4 = pmd.Card.Last4
		}
	}
	// Fee and net come from the settlement sub-object when present; absent
	// settlement leaves them null.
	if bt := payload.BalanceTransaction; bt != nil {
		fee, net := bt.Fee, bt.Net
		ch.FeeAmount = &fee
		ch.NetAmount = &net
	}
	return ch, OutcomeApplied, nil
}

func (r *ChargeReconciler) signalCharge(ctx context.Context, ch *models.Charge, refunded bool) {
	scopes := []string{
		ScopeGlobal("charges"),
		ScopeCustomer("charges", ch.CustomerID),
	}
	if ch.InvoiceID != "" {
		scopes = append(scopes, ScopeParent("charges", "invoice", ch.InvoiceID))
	}
	if refunded {
		scopes = append(scopes,
			ScopeGlobal("refunds"),
			ScopeCustomer("refunds", ch.CustomerID),
			ScopeGlobal("billing-alerts"),
			ScopeCustomer("billing-alerts", ch.CustomerID),
		)
	}
	r.signals.Signal(ctx, scopes...)
}
