package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/zenithsites/zenithportal/app/models"
)

var (
	// ErrInvalidSignature means the event envelope could not be
	// authenticated. Nothing is persisted for such deliveries.
	ErrInvalidSignature = errors.New("invalid event signature")
	// ErrBadEnvelope means the body passed authentication but is not a
	// parseable event envelope.
	ErrBadEnvelope = errors.New("malformed event envelope")
)

// staleProcessingAge is how long an in-flight ledger row shields the event
// from reprocessing. A crashed invocation leaves a processing row behind;
// once it is stale the redelivered event is processed again, which is safe
// because reconcilers are idempotent upserts.
const staleProcessingAge = 5 * time.Minute

// HandlerFunc reconciles one decoded event envelope.
type HandlerFunc func(ctx context.Context, env *Envelope) (Outcome, error)

// Result describes what the dispatcher did with a delivery.
type Result struct {
	EventID   string
	EventType string
	Outcome   Outcome
	Duplicate bool
	Unknown   bool
}

// Dispatcher verifies event authenticity, deduplicates via the idempotency
// ledger, routes to the registered reconciler and sequences the ledger
// bookkeeping. The completed ledger mark is written last: a crash after the
// reconciler but before the mark costs at most one extra replay, never data
// loss, and a reconciler failure leaves a failed row so redelivery retries.
type Dispatcher struct {
	secret   string
	repo     Repository
	notifier Notifier
	handlers map[string]HandlerFunc

	now func() time.Time
}

// NewDispatcher creates a dispatcher with an empty handler registry.
func NewDispatcher(webhookSecret string, repo Repository, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		secret:   webhookSecret,
		repo:     repo,
		notifier: notifier,
		handlers: make(map[string]HandlerFunc),
		now:      time.Now,
	}
}

// Register binds a handler to an event type tag. Later registrations for
// the same tag win.
func (d *Dispatcher) Register(eventType string, h HandlerFunc) {
	d.handlers[eventType] = h
}

// Handle processes one raw inbound delivery.
func (d *Dispatcher) Handle(ctx context.Context, body []byte, signatureHeader string) (*Result, error) {
	if !VerifyEventSignature(body, signatureHeader, d.secret) {
		return nil, ErrInvalidSignature
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}

	created, stored, err := d.repo.CreateEventIfNotExists(&models.WebhookEvent{
		StripeEventID: env.ID,
		EventType:     env.Type,
		Status:        models.WebhookStatusProcessing,
		PayloadJSON:   string(body),
	})
	if err != nil {
		return nil, fmt.Errorf("idempotency ledger write for %s: %w", env.ID, err)
	}

	result := &Result{EventID: env.ID, EventType: env.Type}

	if !created {
		switch {
		case stored.IsCompleted():
			log.Infof("[Reconcile] event %s already processed, skipping", env.ID)
			result.Duplicate = true
			return result, nil
		case stored.Status == models.WebhookStatusProcessing && d.now().Sub(stored.CreatedAt) < staleProcessingAge:
			// A concurrent delivery of the same event id won the ledger
			// insert; let it finish.
			log.Infof("[Reconcile] event %s is being processed concurrently, skipping", env.ID)
			result.Duplicate = true
			return result, nil
		default:
			// Failed or stale-processing row: redelivery retries it.
			if err := d.repo.IncrementEventRetry(stored.ID); err != nil {
				log.Warnf("[Reconcile] retry count update for %s failed: %v", env.ID, err)
			}
			log.Infof("[Reconcile] reprocessing event %s (previous status %s)", env.ID, stored.Status)
		}
	}

	handler, ok := d.handlers[env.Type]
	if !ok {
		log.Infof("[Reconcile] unhandled event type %s (event %s)", env.Type, env.ID)
		if err := d.repo.MarkEventCompleted(stored.ID); err != nil {
			return nil, fmt.Errorf("ledger completion for %s: %w", env.ID, err)
		}
		result.Unknown = true
		result.Outcome = OutcomeIgnored
		return result, nil
	}

	outcome, err := handler(ctx, env)
	if err != nil {
		if markErr := d.repo.MarkEventFailed(stored.ID, err.Error()); markErr != nil {
			log.Errorf("[Reconcile] ledger failure mark for %s failed: %v", env.ID, markErr)
		}
		if notifyErr := d.notifier.WebhookFailure(ctx, env.ID, env.Type, err.Error(), stored.RetryCount); notifyErr != nil {
			log.Errorf("[Reconcile] failure notification for %s failed: %v", env.ID, notifyErr)
		}
		result.Outcome = OutcomeFailed
		return result, fmt.Errorf("reconcile %s (%s): %w", env.ID, env.Type, err)
	}

	// Ledger completion is the final step so the record only ever asserts
	// fully-applied side effects.
	if err := d.repo.MarkEventCompleted(stored.ID); err != nil {
		return nil, fmt.Errorf("ledger completion for %s: %w", env.ID, err)
	}

	result.Outcome = outcome
	return result, nil
}
