package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zenithsites/zenithportal/app/models"
)

// testEnvelope builds an event envelope around a raw payload object.
func testEnvelope(id, eventType, object string) *Envelope {
	env := &Envelope{ID: id, Type: eventType}
	env.Data.Object = json.RawMessage(object)
	return env
}

// fakeRepository is an in-memory Repository used by the reconciler tests.
// Upserts follow the same external-id semantics as the GORM implementation:
// the stored row keeps its primary key across re-deliveries.
type fakeRepository struct {
	customers     map[string]*models.Customer
	subscriptions map[string]*models.Subscription
	invoices      map[string]*models.Invoice
	attempts      map[string]*models.PaymentAttempt
	charges       map[string]*models.Charge
	refunds       map[string]*models.Refund
	plansByID     map[string]*models.Plan
	plansByProd   map[string]*models.Plan

	history []*models.SubscriptionHistoryEvent
	alerts  []*models.BillingAlert

	events      map[string]*models.WebhookEvent
	eventsByID  map[uint]*models.WebhookEvent
	nextEventID uint

	seq int

	// failWrites makes every entity write fail, simulating a storage
	// outage mid-reconciliation.
	failWrites bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		customers:     make(map[string]*models.Customer),
		subscriptions: make(map[string]*models.Subscription),
		invoices:      make(map[string]*models.Invoice),
		attempts:      make(map[string]*models.PaymentAttempt),
		charges:       make(map[string]*models.Charge),
		refunds:       make(map[string]*models.Refund),
		plansByID:     make(map[string]*models.Plan),
		plansByProd:   make(map[string]*models.Plan),
		events:        make(map[string]*models.WebhookEvent),
		eventsByID:    make(map[uint]*models.WebhookEvent),
	}
}

var errStorageDown = errors.New("storage unavailable")

func (f *fakeRepository) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

func (f *fakeRepository) addCustomer(stripeID, email, name string) *models.Customer {
	c := &models.Customer{
		ID:               f.nextID("cus"),
		StripeCustomerID: stripeID,
		ContactEmail:     email,
		ContactName:      name,
		Role:             models.CustomerRoleClient,
	}
	f.customers[stripeID] = c
	return c
}

func (f *fakeRepository) addPlan(productID, name string, monthlyCents, yearlyCents int64) *models.Plan {
	p := &models.Plan{
		ID:                f.nextID("plan"),
		Name:              name,
		StripeProductID:   productID,
		PriceMonthlyCents: monthlyCents,
		PriceYearlyCents:  yearlyCents,
		IsActive:          true,
	}
	f.plansByID[p.ID] = p
	f.plansByProd[productID] = p
	return p
}

func (f *fakeRepository) FindCustomerByStripeID(id string) (*models.Customer, bool, error) {
	c, ok := f.customers[id]
	return c, ok, nil
}

func (f *fakeRepository) FindSubscriptionByStripeID(id string) (*models.Subscription, bool, error) {
	s, ok := f.subscriptions[id]
	if !ok {
		return nil, false, nil
	}
	cp := *s
	return &cp, true, nil
}

func (f *fakeRepository) FindInvoiceByStripeID(id string) (*models.Invoice, bool, error) {
	inv, ok := f.invoices[id]
	return inv, ok, nil
}

func (f *fakeRepository) FindPaymentAttemptByStripeID(id string) (*models.PaymentAttempt, bool, error) {
	pa, ok := f.attempts[id]
	return pa, ok, nil
}

func (f *fakeRepository) FindChargeByStripeID(id string) (*models.Charge, bool, error) {
	ch, ok := f.charges[id]
	return ch, ok, nil
}

func (f *fakeRepository) FindPlanByID(id string) (*models.Plan, bool, error) {
	p, ok := f.plansByID[id]
	return p, ok, nil
}

func (f *fakeRepository) FindPlanByStripeProductID(id string) (*models.Plan, bool, error) {
	p, ok := f.plansByProd[id]
	return p, ok, nil
}

func (f *fakeRepository) UpsertInvoice(inv *models.Invoice) error {
	if f.failWrites {
		return errStorageDown
	}
	if existing, ok := f.invoices[inv.StripeInvoiceID]; ok {
		inv.ID = existing.ID
	} else if inv.ID == "" {
		inv.ID = f.nextID("inv")
	}
	cp := *inv
	f.invoices[inv.StripeInvoiceID] = &cp
	return nil
}

func (f *fakeRepository) UpsertPaymentAttempt(pa *models.PaymentAttempt) error {
	if f.failWrites {
		return errStorageDown
	}
	if existing, ok := f.attempts[pa.StripePaymentIntentID]; ok {
		pa.ID = existing.ID
	} else if pa.ID == "" {
		pa.ID = f.nextID("pa")
	}
	cp := *pa
	f.attempts[pa.StripePaymentIntentID] = &cp
	return nil
}

func (f *fakeRepository) UpsertCharge(ch *models.Charge) error {
	if f.failWrites {
		return errStorageDown
	}
	if existing, ok := f.charges[ch.StripeChargeID]; ok {
		ch.ID = existing.ID
	} else if ch.ID == "" {
		ch.ID = f.nextID("ch")
	}
	cp := *ch
	f.charges[ch.StripeChargeID] = &cp
	return nil
}

func (f *fakeRepository) UpsertRefund(ref *models.Refund) error {
	if f.failWrites {
		return errStorageDown
	}
	if existing, ok := f.refunds[ref.StripeRefundID]; ok {
		ref.ID = existing.ID
	} else if ref.ID == "" {
		ref.ID = f.nextID("re")
	}
	cp := *ref
	f.refunds[ref.StripeRefundID] = &cp
	return nil
}

func (f *fakeRepository) SavePlan(p *models.Plan) error {
	if f.failWrites {
		return errStorageDown
	}
	f.plansByID[p.ID] = p
	f.plansByProd[p.StripeProductID] = p
	return nil
}

func (f *fakeRepository) UpsertSubscriptionWithHistory(sub *models.Subscription, hist *models.SubscriptionHistoryEvent) error {
	if f.failWrites {
		return errStorageDown
	}
	if existing, ok := f.subscriptions[sub.StripeSubscriptionID]; ok {
		sub.ID = existing.ID
	} else if sub.ID == "" {
		sub.ID = f.nextID("sub")
	}
	cp := *sub
	f.subscriptions[sub.StripeSubscriptionID] = &cp

	if hist != nil {
		hist.ID = f.nextID("hist")
		hist.SubscriptionID = sub.ID
		f.history = append(f.history, hist)
	}
	return nil
}

func (f *fakeRepository) CreateAlert(a *models.BillingAlert) error {
	if f.failWrites {
		return errStorageDown
	}
	a.ID = f.nextID("alert")
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeRepository) CreateEventIfNotExists(evt *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if stored, ok := f.events[evt.StripeEventID]; ok {
		cp := *stored
		return false, &cp, nil
	}
	f.nextEventID++
	evt.ID = f.nextEventID
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now()
	}
	cp := *evt
	f.events[evt.StripeEventID] = &cp
	f.eventsByID[evt.ID] = &cp
	out := cp
	return true, &out, nil
}

func (f *fakeRepository) MarkEventCompleted(id uint) error {
	evt, ok := f.eventsByID[id]
	if !ok {
		return fmt.Errorf("no webhook event with id %d", id)
	}
	now := time.Now()
	evt.Status = models.WebhookStatusCompleted
	evt.ErrorMessage = ""
	evt.ProcessedAt = &now
	return nil
}

func (f *fakeRepository) MarkEventFailed(id uint, errorMessage string) error {
	evt, ok := f.eventsByID[id]
	if !ok {
		return fmt.Errorf("no webhook event with id %d", id)
	}
	now := time.Now()
	evt.Status = models.WebhookStatusFailed
	evt.ErrorMessage = errorMessage
	evt.ProcessedAt = &now
	return nil
}

func (f *fakeRepository) IncrementEventRetry(id uint) error {
	evt, ok := f.eventsByID[id]
	if !ok {
		return fmt.Errorf("no webhook event with id %d", id)
	}
	evt.RetryCount++
	return nil
}

// recordingSignaler captures emitted invalidation scopes.
type recordingSignaler struct {
	scopes []string
}

func (s *recordingSignaler) Signal(ctx context.Context, scopes ...string) {
	s.scopes = append(s.scopes, scopes...)
}

func (s *recordingSignaler) contains(scope string) bool {
	for _, got := range s.scopes {
		if got == scope {
			return true
		}
	}
	return false
}

// recordingNotifier captures sent notifications.
type recordingNotifier struct {
	canceled []string
	failures []string
	sendErr  error
}

func (n *recordingNotifier) SubscriptionCanceled(ctx context.Context, email, name, planName string) error {
	n.canceled = append(n.canceled, email+"|"+planName)
	return n.sendErr
}

func (n *recordingNotifier) WebhookFailure(ctx context.Context, eventID, eventType, errorMessage string, retryCount int) error {
	n.failures = append(n.failures, eventID+"|"+eventType)
	return n.sendErr
}
