package reconcile

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/zenithsites/zenithportal/app/models"
)

// PriceReconciler keeps local plan pricing in sync with price.created and
// price.updated events so dashboards never need a live processor call.
type PriceReconciler struct {
	repo     Repository
	resolver *Resolver
	signals  Signaler
}

// NewPriceReconciler wires a price reconciler.
func NewPriceReconciler(repo Repository, resolver *Resolver, signals Signaler) *PriceReconciler {
	return &PriceReconciler{repo: repo, resolver: resolver, signals: signals}
}

// Reconcile handles price.created and price.updated. Non-recurring prices
// and intervals other than month/year are ignored.
func (r *PriceReconciler) Reconcile(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload PricePayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}

	if payload.Recurring == nil || payload.Type != "recurring" {
		log.Infof("[Reconcile] skipping non-recurring price %s", payload.PriceRef)
		return OutcomeIgnored, nil
	}

	interval := payload.Recurring.Interval
	if interval != models.PlanIntervalMonth && interval != models.PlanIntervalYear {
		log.Infof("[Reconcile] skipping price %s with unsupported interval %s", payload.PriceRef, interval)
		return OutcomeIgnored, nil
	}

	plan, ok, err := r.resolver.PlanByProduct(payload.ProductRef)
	if err != nil {
		return OutcomeFailed, err
	}
	if !ok {
		log.Warnf("[Reconcile] event %s: no plan for product %s, skipping price sync", env.ID, payload.ProductRef)
		return OutcomeSkippedMissingReference, nil
	}

	if interval == models.PlanIntervalMonth {
		plan.PriceMonthlyCents = payload.UnitAmount
		plan.StripePriceIDMonthly = payload.PriceRef
	} else {
		plan.PriceYearlyCents = payload.UnitAmount
		plan.StripePriceIDYearly = payload.PriceRef
	}

	if err := r.repo.SavePlan(plan); err != nil {
		return OutcomeFailed, err
	}

	r.signals.Signal(ctx, ScopeGlobal("plans"))
	return OutcomeApplied, nil
}
