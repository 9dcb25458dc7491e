package reconcile

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Config carries the external dependencies the engine needs.
type Config struct {
	WebhookSecret string
	DB            *gorm.DB
	// Redis is optional; without it cache invalidation becomes a no-op.
	Redis *redis.Client
	// Notifier is optional; without it lifecycle emails are skipped.
	Notifier Notifier
}

// NewEngine builds a fully wired dispatcher: GORM-backed repository and
// resolver, alert engine, cache invalidation signaler and all entity
// reconcilers registered under their event type tags.
func NewEngine(cfg Config) *Dispatcher {
	repo := NewRepository(cfg.DB)
	resolver := NewResolver(repo)
	alerts := NewAlertEngine(repo)

	var signals Signaler = NoopSignaler{}
	if cfg.Redis != nil {
		signals = NewRedisSignaler(cfg.Redis)
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NoopNotifier{}
	}

	subs := NewSubscriptionReconciler(repo, resolver, signals, notifier)
	invoices := NewInvoiceReconciler(repo, resolver, alerts, signals)
	attempts := NewPaymentAttemptReconciler(repo, resolver, alerts, signals)
	charges := NewChargeReconciler(repo, resolver, alerts, signals)
	prices := NewPriceReconciler(repo, resolver, signals)

	d := NewDispatcher(cfg.WebhookSecret, repo, notifier)
	d.Register(EventCheckoutCompleted, subs.ReconcileCheckout)
	d.Register(EventSubscriptionCreated, subs.ReconcileUpdate)
	d.Register(EventSubscriptionUpdated, subs.ReconcileUpdate)
	d.Register(EventSubscriptionDeleted, subs.ReconcileDelete)
	d.Register(EventInvoiceCreated, invoices.ReconcileCreated)
	d.Register(EventInvoicePaid, invoices.ReconcilePaid)
	d.Register(EventInvoicePaymentSuccess, fanOut(invoices.ReconcilePaid, attempts.ReconcileInvoicePaymentSucceeded))
	d.Register(EventInvoicePaymentFailed, invoices.ReconcilePaymentFailed)
	d.Register(EventPaymentIntentSucceeded, attempts.ReconcileSucceeded)
	d.Register(EventPaymentIntentFailed, attempts.ReconcileFailed)
	d.Register(EventChargeSucceeded, charges.ReconcileSucceeded)
	d.Register(EventChargeRefunded, charges.ReconcileRefunded)
	d.Register(EventPriceCreated, prices.Reconcile)
	d.Register(EventPriceUpdated, prices.Reconcile)
	return d
}

// fanOut runs handlers in order and reports the first handler's outcome.
// A non-applied first outcome stops the chain; any later failure still
// propagates so the delivery is retried as a whole.
func fanOut(handlers ...HandlerFunc) HandlerFunc {
	return func(ctx context.Context, env *Envelope) (Outcome, error) {
		outcome, err := handlers[0](ctx, env)
		if err != nil || outcome != OutcomeApplied {
			return outcome, err
		}
		for _, h := range handlers[1:] {
			if _, err := h(ctx, env); err != nil {
				return OutcomeFailed, err
			}
		}
		return outcome, nil
	}
}
