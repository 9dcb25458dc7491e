package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/zenithsites/zenithportal/app/models"
)

// AlertEngine evaluates reconciliation outcomes against a fixed rule set
// and creates operator-facing alerts. At most one alert is created per
// outcome. Alert writes are best-effort: a failed insert is logged and
// never fails the reconciliation.
//
// No dedup window is applied: repeated failures on the same invoice each
// raise a fresh alert and the dashboard groups them.
type AlertEngine struct {
	repo Repository
}

// NewAlertEngine creates an alert engine over the given repository.
func NewAlertEngine(repo Repository) *AlertEngine {
	return &AlertEngine{repo: repo}
}

func metadataJSON(meta map[string]interface{}) models.JSON {
	b, err := json.Marshal(meta)
	if err != nil {
		return models.JSON("{}")
	}
	return models.JSON(b)
}

func (e *AlertEngine) create(a *models.BillingAlert) {
	if err := e.repo.CreateAlert(a); err != nil {
		log.Errorf("[Reconcile] failed to create %s alert: %v", a.AlertType, err)
	}
}

// PaymentAttemptFailed raises a high severity alert for a payment attempt
// that carries a populated error.
func (e *AlertEngine) PaymentAttemptFailed(attempt *models.PaymentAttempt, payErr *PaymentError) {
	message := "Payment attempt failed. Please update your payment method."
	if payErr != nil && payErr.Message != "" {
		message = "Payment failed: " + payErr.Message
	}

	meta := map[string]interface{}{
		"payment_intent_id": attempt.StripePaymentIntentID,
		"amount":            attempt.Amount,
		"currency":          attempt.Currency,
	}
	if payErr != nil {
		meta["error_code"] = payErr.Code
		meta["error_message"] = payErr.Message
	}

	e.create(&models.BillingAlert{
		CustomerID:       attempt.CustomerID,
		SubscriptionID:   attempt.SubscriptionID,
		InvoiceID:        attempt.InvoiceID,
		PaymentAttemptID: attempt.ID,
		AlertType:        models.AlertTypePaymentFailed,
		Severity:         models.AlertSeverityHigh,
		Title:            "Payment Attempt Failed",
		Message:          message,
		Metadata:         metadataJSON(meta),
	})
}

// InvoicePaymentFailed raises a high severity alert with invoice amount and
// attempt-count metadata.
func (e *AlertEngine) InvoicePaymentFailed(inv *models.Invoice, payload *InvoicePayload) {
	number := inv.InvoiceNumber
	if number == "" {
		number = inv.StripeInvoiceID
	}
	message := fmt.Sprintf(
		"Payment failed for invoice %s. Amount due: %.2f %s",
		number, float64(inv.AmountDue)/100, strings.ToUpper(inv.Currency),
	)

	e.create(&models.BillingAlert{
		CustomerID:     inv.CustomerID,
		SubscriptionID: inv.SubscriptionID,
		InvoiceID:      inv.ID,
		AlertType:      models.AlertTypePaymentFailed,
		Severity:       models.AlertSeverityHigh,
		Title:          "Payment Failed",
		Message:        message,
		Metadata: metadataJSON(map[string]interface{}{
			"invoice_id":           inv.StripeInvoiceID,
			"amount_due":           inv.AmountDue,
			"currency":             inv.Currency,
			"attempt_count":        payload.AttemptCount,
			"next_payment_attempt": payload.NextPaymentAttempt,
		}),
	})
}

// RefundProcessed raises a medium severity alert for a refunded charge.
func (e *AlertEngine) RefundProcessed(ch *models.Charge, refundCount int) {
	message := fmt.Sprintf(
		"A refund of %.2f %s has been processed for charge %s",
		float64(ch.AmountRefunded)/100, strings.ToUpper(ch.Currency), ch.StripeChargeID,
	)

	e.create(&models.BillingAlert{
		CustomerID: ch.CustomerID,
		InvoiceID:  ch.InvoiceID,
		AlertType:  models.AlertTypeRefundProcessed,
		Severity:   models.AlertSeverityMedium,
		Title:      "Refund Processed",
		Message:    message,
		Metadata: metadataJSON(map[string]interface{}{
			"charge_id":       ch.StripeChargeID,
			"amount_refunded": ch.AmountRefunded,
			"currency":        ch.Currency,
			"refund_count":    refundCount,
		}),
	})
}
