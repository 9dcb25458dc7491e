package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithsites/zenithportal/app/models"
)

func newFanOutFixture() (*fakeRepository, HandlerFunc) {
	repo := newFakeRepository()
	resolver := NewResolver(repo)
	alerts := NewAlertEngine(repo)
	signals := &recordingSignaler{}
	invoices := NewInvoiceReconciler(repo, resolver, alerts, signals)
	attempts := NewPaymentAttemptReconciler(repo, resolver, alerts, signals)
	return repo, fanOut(invoices.ReconcilePaid, attempts.ReconcileInvoicePaymentSucceeded)
}

func TestInvoicePaymentSucceededBooksInvoiceAndAttempt(t *testing.T) {
	repo, handler := newFanOutFixture()
	customer := repo.addCustomer("cus_1", "jamie@example.com", "Jamie")

	code, msg := "card_declined", "Your card was declined."
	require.NoError(t, repo.UpsertPaymentAttempt(&models.PaymentAttempt{
		CustomerID:            customer.ID,
		StripePaymentIntentID: "pi_1",
		Amount:                2999,
		Currency:              "usd",
		Status:                "requires_payment_method",
		LastPaymentErrorCode:  &code,
		LastPaymentErrorMsg:   &msg,
	}))

	env := testEnvelope("evt_1", EventInvoicePaymentSuccess,
		`{"id":"in_1","customer":"cus_1","payment_intent":"pi_1","amount_due":2999,"amount_paid":2999,"currency":"usd"}`)

	outcome, err := handler(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	inv := repo.invoices["in_1"]
	require.NotNil(t, inv)
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, int64(0), inv.AmountRemaining)

	attempt := repo.attempts["pi_1"]
	require.NotNil(t, attempt)
	assert.Equal(t, "succeeded", attempt.Status)
	assert.False(t, attempt.HasError())
	require.NotNil(t, attempt.AmountReceived)
	assert.Equal(t, int64(2999), *attempt.AmountReceived)
}

func TestInvoicePaymentSucceededWithoutIntentStillApplies(t *testing.T) {
	repo, handler := newFanOutFixture()
	repo.addCustomer("cus_1", "jamie@example.com", "Jamie")

	env := testEnvelope("evt_1", EventInvoicePaymentSuccess,
		`{"id":"in_1","customer":"cus_1","amount_due":2999,"amount_paid":2999,"currency":"usd"}`)

	outcome, err := handler(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Empty(t, repo.attempts)
}

func TestInvoicePaymentSucceededMissingCustomerStopsChain(t *testing.T) {
	repo, handler := newFanOutFixture()

	env := testEnvelope("evt_1", EventInvoicePaymentSuccess,
		`{"id":"in_1","customer":"cus_unknown","payment_intent":"pi_1","amount_due":2999,"currency":"usd"}`)

	outcome, err := handler(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedMissingReference, outcome)
	assert.Empty(t, repo.invoices)
	assert.Empty(t, repo.attempts)
}
