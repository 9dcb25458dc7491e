package reconcile

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/zenithsites/zenithportal/app/models"
)

// SubscriptionReconciler applies subscription lifecycle events onto the
// canonical Subscription row and its append-only history. The local row
// mirrors whatever state the processor reports; transitions are recorded,
// not gatekept, because out-of-order delivery is expected.
type SubscriptionReconciler struct {
	repo     Repository
	resolver *Resolver
	signals  Signaler
	notifier Notifier

	now func() time.Time
}

// NewSubscriptionReconciler wires a subscription reconciler.
func NewSubscriptionReconciler(repo Repository, resolver *Resolver, signals Signaler, notifier Notifier) *SubscriptionReconciler {
	return &SubscriptionReconciler{
		repo:     repo,
		resolver: resolver,
		signals:  signals,
		notifier: notifier,
		now:      time.Now,
	}
}

// ReconcileUpdate handles customer.subscription.created and
// customer.subscription.updated.
func (r *SubscriptionReconciler) ReconcileUpdate(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload SubscriptionPayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}
	return r.apply(ctx, env, &payload, false)
}

// ReconcileDelete handles customer.subscription.deleted. The subscription
// is marked canceled and the customer gets a cancellation email; a failed
// email never rolls back the write.
func (r *SubscriptionReconciler) ReconcileDelete(ctx context.Context, env *Envelope) (Outcome, error) {
	var payload SubscriptionPayload
	if err := decodeObject(env, &payload); err != nil {
		return OutcomeFailed, err
	}
	payload.Status = models.SubscriptionStatusCanceled
	if payload.CanceledAt == 0 {
		payload.CanceledAt = r.now().Unix()
	}
	return r.apply(ctx, env, &payload, true)
}

// ReconcileCheckout handles checkout.session.completed by activating the
// subscription the session created for the customer.
func (r *SubscriptionReconciler) ReconcileCheckout(ctx context.Context, env *Envelope) (Outcome, error) {
	var session CheckoutSessionPayload
	if err := decodeObject(env, &session); err != nil {
		return OutcomeFailed, err
	}
	if session.SubscriptionRef == "" {
		log.Infof("[Reconcile] checkout session %s has no subscription, ignoring", session.SessionRef)
		return OutcomeIgnored, nil
	}

	payload := SubscriptionPayload{
		SubscriptionRef: session.SubscriptionRef,
		CustomerRef:     session.CustomerRef,
		Status:          models.SubscriptionStatusActive,
	}
	return r.apply(ctx, env, &payload, false)
}

func (r *SubscriptionReconciler) apply(ctx context.Context, env *Envelope, payload *SubscriptionPayload, canceled bool) (Outcome, error) {
	existing, _, err := r.repo.FindSubscriptionByStripeID(payload.SubscriptionRef)
	if err != nil {
		return OutcomeFailed, err
	}

	customer, customerOK, err := r.resolver.Customer(payload.CustomerRef)
	if err != nil {
		return OutcomeFailed, err
	}

	// Updates may omit the customer reference; fall back to the stored row.
	customerID := ""
	switch {
	case customerOK:
		customerID = customer.ID
	case existing != nil:
		customerID = existing.CustomerID
	default:
		log.Warnf("[Reconcile] event %s: subscription %s has no resolvable customer (customer_ref=%s), skipping",
			env.ID, payload.SubscriptionRef, payload.CustomerRef)
		return OutcomeSkippedMissingReference, nil
	}

	plan, planOK, err := r.resolver.PlanByProduct(payload.ProductRef)
	if err != nil {
		return OutcomeFailed, err
	}
	planID := ""
	if planOK {
		planID = plan.ID
	} else if existing != nil {
		planID = existing.PlanID
	}

	interval := payload.Interval
	if interval == "" {
		if existing != nil {
			interval = existing.BillingInterval
		} else {
			interval = models.PlanIntervalMonth
		}
	}

	sub := &models.Subscription{
		CustomerID:           customerID,
		PlanID:               planID,
		StripeSubscriptionID: payload.SubscriptionRef,
		Status:               payload.Status,
		BillingInterval:      interval,
		CurrentPeriodStart:   unixTimePtr(payload.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTimePtr(payload.CurrentPeriodEnd),
		CancelAtPeriodEnd:    payload.CancelAtPeriodEnd,
		CanceledAt:           unixTimePtr(payload.CanceledAt),
	}
	if existing != nil {
		if sub.CurrentPeriodStart == nil {
			sub.CurrentPeriodStart = existing.CurrentPeriodStart
		}
		if sub.CurrentPeriodEnd == nil {
			sub.CurrentPeriodEnd = existing.CurrentPeriodEnd
		}
	}

	hist, err := r.buildHistory(existing, sub, canceled)
	if err != nil {
		return OutcomeFailed, err
	}

	if err := r.repo.UpsertSubscriptionWithHistory(sub, hist); err != nil {
		return OutcomeFailed, err
	}

	if canceled && customerOK && customer.ContactEmail != "" {
		planName := "subscription"
		if planOK {
			planName = plan.Name
		} else if planID != "" {
			if p, ok, perr := r.repo.FindPlanByID(planID); perr == nil && ok {
				planName = p.Name
			}
		}
		if err := r.notifier.SubscriptionCanceled(ctx, customer.ContactEmail, customer.ContactName, planName); err != nil {
			log.Errorf("[Reconcile] cancellation email for %s failed: %v", sub.StripeSubscriptionID, err)
		}
	}

	r.signals.Signal(ctx,
		ScopeGlobal("subscriptions"),
		ScopeCustomer("subscriptions", customerID),
		ScopeGlobal("subscription-history"),
		ScopeCustomer("subscription-history", customerID),
		ScopeCustomer("customers", customerID),
	)
	return OutcomeApplied, nil
}

// buildHistory returns the audit row for an observed status or plan change,
// or nil when nothing changed. The MRR delta is derived from the plan's
// monthly-equivalent rate at write time and never recomputed.
func (r *SubscriptionReconciler) buildHistory(existing, next *models.Subscription, canceled bool) (*models.SubscriptionHistoryEvent, error) {
	statusChanged := existing == nil || existing.Status != next.Status
	planChanged := existing != nil && existing.PlanID != next.PlanID && next.PlanID != ""
	if !statusChanged && !planChanged {
		return nil, nil
	}

	eventType := models.HistoryEventStatusChange
	switch {
	case canceled || next.Status == models.SubscriptionStatusCanceled:
		eventType = models.HistoryEventCanceled
	case !statusChanged && planChanged:
		eventType = models.HistoryEventPlanChange
	}

	oldRate, err := r.monthlyRate(existing)
	if err != nil {
		return nil, err
	}
	newRate, err := r.monthlyRate(next)
	if err != nil {
		return nil, err
	}
	mrrDelta := newRate - oldRate

	hist := &models.SubscriptionHistoryEvent{
		CustomerID:    next.CustomerID,
		EventType:     eventType,
		ToStatus:      next.Status,
		ToPlanID:      next.PlanID,
		MRRDeltaCents: mrrDelta,
		ARRDeltaCents: mrrDelta * 12,
		EffectiveDate: r.now().UTC(),
		Actor:         models.HistoryActorWebhook,
	}
	if existing != nil {
		hist.FromStatus = existing.Status
		hist.FromPlanID = existing.PlanID
	}
	return hist, nil
}

// monthlyRate returns the subscription's contribution to MRR in cents.
// Non-entitling statuses and unknown plans contribute zero.
func (r *SubscriptionReconciler) monthlyRate(sub *models.Subscription) (int64, error) {
	if sub == nil || sub.PlanID == "" || !isEntitlingStatus(sub.Status) {
		return 0, nil
	}
	plan, ok, err := r.repo.FindPlanByID(sub.PlanID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return plan.MonthlyEquivalentCents(sub.BillingInterval), nil
}

func isEntitlingStatus(status string) bool {
	switch status {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}
