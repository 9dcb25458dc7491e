package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPriceFixture() (*fakeRepository, *recordingSignaler, *PriceReconciler) {
	repo := newFakeRepository()
	signals := &recordingSignaler{}
	r := NewPriceReconciler(repo, NewResolver(repo), signals)
	return repo, signals, r
}

func TestPriceReconcileUpdatesMonthlyPrice(t *testing.T) {
	repo, signals, r := newPriceFixture()
	plan := repo.addPlan("prod_pro", "Pro", 2500, 25000)

	env := testEnvelope("evt_1", EventPriceUpdated,
		`{"id":"price_new","product":"prod_pro","unit_amount":2900,"currency":"usd","type":"recurring","recurring":{"interval":"month"}}`)

	outcome, err := r.Reconcile(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	assert.Equal(t, int64(2900), plan.PriceMonthlyCents)
	assert.Equal(t, "price_new", plan.StripePriceIDMonthly)
	assert.Equal(t, int64(25000), plan.PriceYearlyCents)
	assert.True(t, signals.contains("plans:global"))
}

func TestPriceReconcileUpdatesYearlyPrice(t *testing.T) {
	repo, _, r := newPriceFixture()
	plan := repo.addPlan("prod_pro", "Pro", 2500, 25000)

	env := testEnvelope("evt_1", EventPriceCreated,
		`{"id":"price_yr","product":"prod_pro","unit_amount":27900,"currency":"usd","type":"recurring","recurring":{"interval":"year"}}`)

	_, err := r.Reconcile(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, int64(27900), plan.PriceYearlyCents)
	assert.Equal(t, "price_yr", plan.StripePriceIDYearly)
	assert.Equal(t, int64(2500), plan.PriceMonthlyCents)
}

func TestPriceReconcileIgnoresOneTimePrices(t *testing.T) {
	repo, _, r := newPriceFixture()
	plan := repo.addPlan("prod_pro", "Pro", 2500, 25000)

	env := testEnvelope("evt_1", EventPriceCreated,
		`{"id":"price_setup","product":"prod_pro","unit_amount":9900,"currency":"usd","type":"one_time"}`)

	outcome, err := r.Reconcile(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, int64(2500), plan.PriceMonthlyCents)
}

func TestPriceReconcileIgnoresUnsupportedInterval(t *testing.T) {
	_, _, r := newPriceFixture()

	env := testEnvelope("evt_1", EventPriceCreated,
		`{"id":"price_wk","product":"prod_pro","unit_amount":900,"currency":"usd","type":"recurring","recurring":{"interval":"week"}}`)

	outcome, err := r.Reconcile(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestPriceReconcileUnknownProductIsSkipped(t *testing.T) {
	_, _, r := newPriceFixture()

	env := testEnvelope("evt_1", EventPriceUpdated,
		`{"id":"price_new","product":"prod_unknown","unit_amount":2900,"currency":"usd","type":"recurring","recurring":{"interval":"month"}}`)

	outcome, err := r.Reconcile(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedMissingReference, outcome)
}
