package reconcile

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Event type tags routed by the dispatcher. Anything else is acknowledged
// and ignored.
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventSubscriptionCreated    = "customer.subscription.created"
	EventSubscriptionUpdated    = "customer.subscription.updated"
	EventSubscriptionDeleted    = "customer.subscription.deleted"
	EventInvoiceCreated         = "invoice.created"
	EventInvoicePaid            = "invoice.paid"
	EventInvoicePaymentSuccess  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed   = "invoice.payment_failed"
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventChargeSucceeded        = "charge.succeeded"
	EventChargeRefunded         = "charge.refunded"
	EventPriceCreated           = "price.created"
	EventPriceUpdated           = "price.updated"
)

var validate = validator.New()

// Envelope is the outer shape of an inbound processor event. The signature
// travels in a request header, not in the body.
type Envelope struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required"`
	Data struct {
		Object json.RawMessage `json:"object" validate:"required"`
	} `json:"data"`
}

// ParseEnvelope decodes and validates the outer event envelope.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed event envelope: %w", err)
	}
	if err := validate.Struct(&env); err != nil {
		return nil, fmt.Errorf("invalid event envelope: %w", err)
	}
	if len(env.Data.Object) == 0 {
		return nil, fmt.Errorf("event %s has no payload object", env.ID)
	}
	return &env, nil
}

// decodeObject unmarshals the envelope's payload object into a typed
// payload struct and validates it. Payloads are a closed set; reconcilers
// never poke at raw JSON.
func decodeObject(env *Envelope, out interface{}) error {
	if err := json.Unmarshal(env.Data.Object, out); err != nil {
		return fmt.Errorf("event %s: malformed %s payload: %w", env.ID, env.Type, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("event %s: invalid %s payload: %w", env.ID, env.Type, err)
	}
	return nil
}

// unixTimePtr converts a unix seconds value to *time.Time, treating zero as
// absent.
func unixTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// SubscriptionPayload carries subscription lifecycle events.
type SubscriptionPayload struct {
	SubscriptionRef    string `json:"id" validate:"required"`
	CustomerRef        string `json:"customer"`
	Status             string `json:"status" validate:"required"`
	ProductRef         string `json:"product"`
	Interval           string `json:"interval" validate:"omitempty,oneof=month year"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         int64  `json:"canceled_at"`
}

// CheckoutSessionPayload links a customer to a freshly created subscription
// after a completed checkout.
type CheckoutSessionPayload struct {
	SessionRef      string `json:"id" validate:"required"`
	CustomerRef     string `json:"customer" validate:"required"`
	SubscriptionRef string `json:"subscription"`
	Mode            string `json:"mode"`
	Status          string `json:"status"`
}

// DiscountAmount is one itemized discount on an invoice.
type DiscountAmount struct {
	Amount int64 `json:"amount"`
}

// InvoicePayload carries invoice lifecycle events.
type InvoicePayload struct {
	InvoiceRef         string            `json:"id" validate:"required"`
	CustomerRef        string            `json:"customer" validate:"required"`
	SubscriptionRef    string            `json:"subscription"`
	PaymentIntentRef   string            `json:"payment_intent"`
	AmountDue          int64             `json:"amount_due" validate:"gte=0"`
	AmountPaid         int64             `json:"amount_paid" validate:"gte=0"`
	Subtotal           int64             `json:"subtotal"`
	Total              int64             `json:"total"`
	Tax                *int64            `json:"tax"`
	Currency           string            `json:"currency" validate:"required,len=3"`
	Status             string            `json:"status"`
	CollectionMethod   string            `json:"collection_method"`
	Number             string            `json:"number"`
	HostedInvoiceURL   string            `json:"hosted_invoice_url"`
	InvoicePDF         string            `json:"invoice_pdf"`
	PeriodStart        int64             `json:"period_start"`
	PeriodEnd          int64             `json:"period_end"`
	AttemptCount       int               `json:"attempt_count" validate:"gte=0"`
	NextPaymentAttempt int64             `json:"next_payment_attempt"`
	DiscountAmounts    []DiscountAmount  `json:"total_discount_amounts"`
	Description        string            `json:"description"`
	Metadata           map[string]string `json:"metadata"`
	DueDate            int64             `json:"due_date"`
}

// DiscountTotal sums the itemized discounts; nil when there are none.
func (p *InvoicePayload) DiscountTotal() *int64 {
	if len(p.DiscountAmounts) == 0 {
		return nil
	}
	var sum int64
	for _, d := range p.DiscountAmounts {
		sum += d.Amount
	}
	return &sum
}

// PaymentError is the error detail attached to a failed payment attempt.
type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PaymentAttemptPayload carries payment intent events.
type PaymentAttemptPayload struct {
	PaymentIntentRef   string            `json:"id" validate:"required"`
	CustomerRef        string            `json:"customer" validate:"required"`
	InvoiceRef         string            `json:"invoice"`
	SubscriptionRef    string            `json:"subscription"`
	Amount             int64             `json:"amount" validate:"gte=0"`
	AmountCapturable   *int64            `json:"amount_capturable"`
	AmountReceived     *int64            `json:"amount_received"`
	Currency           string            `json:"currency" validate:"required,len=3"`
	Status             string            `json:"status" validate:"required"`
	CaptureMethod      string            `json:"capture_method"`
	ConfirmationMethod string            `json:"confirmation_method"`
	PaymentMethodRef   string            `json:"payment_method"`
	LastPaymentError   *PaymentError     `json:"last_payment_error"`
	Description        string            `json:"description"`
	Metadata           map[string]string `json:"metadata"`
	CanceledAt         int64             `json:"canceled_at"`
}

// SettlementPayload is the balance settlement sub-object embedded in charge
// events once the processor has netted out its fee.
type SettlementPayload struct {
	Fee int64 `json:"fee"`
	Net int64 `json:"net"`
}

// RefundPayload is one discrete refund nested inside a charge.refunded
// event.
type RefundPayload struct {
	RefundRef   string            `json:"id" validate:"required"`
	Amount      int64             `json:"amount" validate:"gte=0"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	Reason      string            `json:"reason"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

// CardDetails is the payment method fingerprint on a charge.
type CardDetails struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// PaymentMethodDetails describes how a charge was paid.
type PaymentMethodDetails struct {
	Type string       `json:"type"`
	Card *CardDetails `json:"card"`
}

// ChargePayload carries charge events, including the nested refund list on
// charge.refunded.
type ChargePayload struct {
	ChargeRef            string                `json:"id" validate:"required"`
	CustomerRef          string                `json:"customer" validate:"required"`
	InvoiceRef           string                `json:"invoice"`
	PaymentIntentRef     string                `json:"payment_intent"`
	Amount               int64                 `json:"amount" validate:"gte=0"`
	AmountCaptured       int64                 `json:"amount_captured" validate:"gte=0"`
	AmountRefunded       int64                 `json:"amount_refunded" validate:"gte=0"`
	Currency             string                `json:"currency" validate:"required,len=3"`
	Status               string                `json:"status"`
	Paid                 bool                  `json:"paid"`
	Refunded             bool                  `json:"refunded"`
	Captured             bool                  `json:"captured"`
	PaymentMethodDetails *PaymentMethodDetails `json:"payment_method_details"`
	BillingEmail         string                `json:"billing_email"`
	BalanceTransaction   *SettlementPayload    `json:"balance_transaction"`
	ReceiptURL           string                `json:"receipt_url"`
	Description          string                `json:"description"`
	Metadata             map[string]string     `json:"metadata"`
	Refunds              []RefundPayload       `json:"refunds" validate:"dive"`
}

// PriceRecurring describes a recurring price's billing interval.
type PriceRecurring struct {
	Interval string `json:"interval" validate:"required,oneof=month year week day"`
}

// PricePayload carries price.created / price.updated events used to keep
// local plan pricing in sync.
type PricePayload struct {
	PriceRef   string          `json:"id" validate:"required"`
	ProductRef string          `json:"product" validate:"required"`
	UnitAmount int64           `json:"unit_amount" validate:"gte=0"`
	Currency   string          `json:"currency"`
	Type       string          `json:"type"`
	Recurring  *PriceRecurring `json:"recurring"`
}
