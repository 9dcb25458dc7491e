package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithsites/zenithportal/app/models"
)

func newAttemptFixture() (*fakeRepository, *recordingSignaler, *PaymentAttemptReconciler) {
	repo := newFakeRepository()
	signals := &recordingSignaler{}
	r := NewPaymentAttemptReconciler(repo, NewResolver(repo), NewAlertEngine(repo), signals)
	return repo, signals, r
}

func TestPaymentAttemptReconcileFailed(t *testing.T) {
	repo, signals, r := newAttemptFixture()
	customer := repo.addCustomer("cus_1", "jamie@example.com", "Jamie")

	env := testEnvelope("evt_1", EventPaymentIntentFailed,
		`{"id":"pi_1","customer":"cus_1","amount":2999,"currency":"usd","status":"requires_payment_method","last_payment_error":{"code":"card_declined","message":"Your card was declined."}}`)

	outcome, err := r.ReconcileFailed(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	attempt := repo.attempts["pi_1"]
	require.NotNil(t, attempt)
	assert.Equal(t, customer.ID, attempt.CustomerID)
	require.NotNil(t, attempt.LastPaymentErrorCode)
	assert.Equal(t, "card_declined", *attempt.LastPaymentErrorCode)
	require.NotNil(t, attempt.LastPaymentErrorMsg)
	assert.Equal(t, "Your card was declined.", *attempt.LastPaymentErrorMsg)

	require.Len(t, repo.alerts, 1)
	alert := repo.alerts[0]
	assert.Equal(t, models.AlertTypePaymentFailed, alert.AlertType)
	assert.Equal(t, models.AlertSeverityHigh, alert.Severity)
	assert.Equal(t, "Payment failed: Your card was declined.", alert.Message)

	assert.True(t, signals.contains("payment-attempts:global"))
	assert.True(t, signals.contains("billing-alerts:"+customer.ID))
}

func TestPaymentAttemptSuccessClearsError(t *testing.T) {
	repo, _, r := newAttemptFixture()
	repo.addCustomer("cus_1", "jamie@example.com", "Jamie")

	failed := testEnvelope("evt_1", EventPaymentIntentFailed,
		`{"id":"pi_1","customer":"cus_1","amount":2999,"currency":"usd","status":"requires_payment_method","last_payment_error":{"code":"card_declined","message":"Your card was declined."}}`)
	_, err := r.ReconcileFailed(context.Background(), failed)
	require.NoError(t, err)
	require.True(t, repo.attempts["pi_1"].HasError())

	succeeded := testEnvelope("evt_2", EventPaymentIntentSucceeded,
		`{"id":"pi_1","customer":"cus_1","amount":2999,"amount_received":2999,"currency":"usd","status":"succeeded"}`)
	outcome, err := r.ReconcileSucceeded(context.Background(), succeeded)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	attempt := repo.attempts["pi_1"]
	assert.Equal(t, "succeeded", attempt.Status)
	assert.False(t, attempt.HasError())
	require.NotNil(t, attempt.AmountReceived)
	assert.Equal(t, int64(2999), *attempt.AmountReceived)
}

func TestPaymentAttemptSubscriptionRefFromMetadata(t *testing.T) {
	repo, _, r := newAttemptFixture()
	customer := repo.addCustomer("cus_1", "jamie@example.com", "Jamie")
	repo.subscriptions["sub_1"] = &models.Subscription{
		ID:                   "sub-local-1",
		CustomerID:           customer.ID,
		StripeSubscriptionID: "sub_1",
		Status:               models.SubscriptionStatusActive,
	}

	env := testEnvelope("evt_1", EventPaymentIntentSucceeded,
		`{"id":"pi_1","customer":"cus_1","amount":2999,"currency":"usd","status":"succeeded","metadata":{"subscription_id":"sub_1"}}`)
	_, err := r.ReconcileSucceeded(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, "sub-local-1", repo.attempts["pi_1"].SubscriptionID)
}

func TestPaymentAttemptMissingCustomerIsSkipped(t *testing.T) {
	repo, _, r := newAttemptFixture()

	env := testEnvelope("evt_1", EventPaymentIntentFailed,
		`{"id":"pi_1","customer":"cus_unknown","amount":2999,"currency":"usd","status":"requires_payment_method"}`)
	outcome, err := r.ReconcileFailed(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedMissingReference, outcome)
	assert.Empty(t, repo.attempts)
	assert.Empty(t, repo.alerts)
}
