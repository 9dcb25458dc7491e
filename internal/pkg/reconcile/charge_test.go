package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithsites/zenithportal/app/models"
)

func newChargeFixture() (*fakeRepository, *recordingSignaler, *ChargeReconciler) {
	repo := newFakeRepository()
	signals := &recordingSignaler{}
	r := NewChargeReconciler(repo, NewResolver(repo), NewAlertEngine(repo), signals)
	return repo, signals, r
}

func TestChargeReconcileSucceeded(t *testing.T) {
	repo, signals, r := newChargeFixture()
	customer := repo.addCustomer("cus_1", "jamie@example.com", "Jamie")

	env := testEnvelope("evt_1", EventChargeSucceeded,
		`{"id":"ch_1","customer":"cus_1","amount":2999,"amount_captured":2999,"currency":"usd","status":"succeeded","paid":true,"captured":true,"payment_method_details":{"type":"card","card":{"brand":"visa","last4":"4242"}},"balance_transaction":{"fee":117,"net":2882}}`)

	outcome, err := r.ReconcileSucceeded(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	ch := repo.charges["ch_1"]
	require.NotNil(t, ch)
	assert.Equal(t, customer.ID, ch.CustomerID)
	assert.True(t, ch.Paid)
	assert.Equal(t, "visa", ch.CardBrand)
	assert.Equal(t, "4242", ch.CardLast4)
	require.NotNil(t, ch.FeeAmount)
	assert.Equal(t, int64(117), *ch.FeeAmount)
	require.NotNil(t, ch.NetAmount)
	assert.Equal(t, int64(2882), *ch.NetAmount)

	assert.True(t, signals.contains("charges:global"))
	assert.True(t, signals.contains("charges:"+customer.ID))
}

func TestChargeWithoutSettlementLeavesFeeNull(t *testing.T) {
	repo, _, r := newChargeFixture()
	repo.addCustomer("cus_1", "jamie@example.com", "Jamie")

	env := testEnvelope("evt_1", EventChargeSucceeded,
		`{"id":"ch_1","customer":"cus_1","amount":2999,"currency":"usd","status":"succeeded","paid":true}`)
	_, err := r.ReconcileSucceeded(context.Background(), env)
	require.NoError(t, err)

	ch := repo.charges["ch_1"]
	assert.Nil(t, ch.FeeAmount)
	assert.Nil(t, ch.NetAmount)
}

func TestChargeReconcileRefundedFansOutRefunds(t *testing.T) {
	repo, signals, r := newChargeFixture()
	customer := repo.addCustomer("cus_1", "jamie@example.com", "Jamie")

	env := testEnvelope("evt_1", EventChargeRefunded,
		`{"id":"ch_1","customer":"cus_1","amount":2999,"amount_captured":2999,"amount_refunded":2999,"currency":"usd","status":"succeeded","paid":true,"refunded":true,"refunds":[{"id":"re_1","amount":1000,"reason":"requested_by_customer"},{"id":"re_2","amount":1999,"status":"succeeded"}]}`)

	outcome, err := r.ReconcileRefunded(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	ch := repo.charges["ch_1"]
	require.NotNil(t, ch)
	assert.True(t, ch.Refunded)

	require.Len(t, repo.refunds, 2)
	first := repo.refunds["re_1"]
	require.NotNil(t, first)
	assert.Equal(t, ch.ID, first.ChargeID)
	assert.Equal(t, int64(1000), first.Amount)
	// Refund currency defaults to the charge currency, status to succeeded.
	assert.Equal(t, "usd", first.Currency)
	assert.Equal(t, "succeeded", first.Status)
	assert.Equal(t, "requested_by_customer", first.Reason)

	require.Len(t, repo.alerts, 1)
	alert := repo.alerts[0]
	assert.Equal(t, models.AlertTypeRefundProcessed, alert.AlertType)
	assert.Equal(t, models.AlertSeverityMedium, alert.Severity)
	assert.Equal(t, "A refund of 29.99 USD has been processed for charge ch_1", alert.Message)

	assert.True(t, signals.contains("refunds:global"))
	assert.True(t, signals.contains("refunds:"+customer.ID))
	assert.True(t, signals.contains("billing-alerts:global"))
}

func TestChargeRefundedRedeliveryIsIdempotent(t *testing.T) {
	repo, _, r := newChargeFixture()
	repo.addCustomer("cus_1", "jamie@example.com", "Jamie")

	env := testEnvelope("evt_1", EventChargeRefunded,
		`{"id":"ch_1","customer":"cus_1","amount":2999,"amount_refunded":2999,"currency":"usd","status":"succeeded","refunded":true,"refunds":[{"id":"re_1","amount":2999}]}`)
	_, err := r.ReconcileRefunded(context.Background(), env)
	require.NoError(t, err)
	_, err = r.ReconcileRefunded(context.Background(), env)
	require.NoError(t, err)

	assert.Len(t, repo.charges, 1)
	assert.Len(t, repo.refunds, 1)
}

func TestChargeMissingCustomerIsSkipped(t *testing.T) {
	repo, _, r := newChargeFixture()

	env := testEnvelope("evt_1", EventChargeSucceeded,
		`{"id":"ch_1","customer":"cus_unknown","amount":2999,"currency":"usd","status":"succeeded"}`)
	outcome, err := r.ReconcileSucceeded(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedMissingReference, outcome)
	assert.Empty(t, repo.charges)
}
