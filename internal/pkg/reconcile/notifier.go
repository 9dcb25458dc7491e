package reconcile

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/zenithsites/zenithportal/internal/pkg/mail"
)

// Notifier sends the human-facing emails certain reconciliations trigger.
// Delivery failures are never allowed to roll back a reconciliation write;
// callers log and continue.
type Notifier interface {
	SubscriptionCanceled(ctx context.Context, email, name, planName string) error
	WebhookFailure(ctx context.Context, eventID, eventType, errorMessage string, retryCount int) error
}

type smtpNotifier struct {
	adminEmail string
}

// NewSMTPNotifier creates a notifier that delivers via the shared SMTP
// mailer. Operator alerts go to adminEmail.
func NewSMTPNotifier(adminEmail string) Notifier {
	return &smtpNotifier{adminEmail: adminEmail}
}

func (n *smtpNotifier) SubscriptionCanceled(ctx context.Context, email, name, planName string) error {
	_ = ctx
	subject := "Your subscription has been canceled"
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your <strong>%s</strong> subscription has been canceled. "+
			"You keep access until the end of the current billing period.</p>"+
			"<p>If this was a mistake you can resubscribe from your billing settings.</p>",
		name, planName,
	)
	return mail.SendMail(email, subject, body)
}

func (n *smtpNotifier) WebhookFailure(ctx context.Context, eventID, eventType, errorMessage string, retryCount int) error {
	_ = ctx
	if n.adminEmail == "" {
		return nil
	}
	errorMessage = truncateMessage(errorMessage, 200)
	subject := "Webhook processing failed"
	body := fmt.Sprintf(
		"<p>Webhook event <code>%s</code> (%s) failed after %d deliveries.</p><p>Error: %s</p>",
		eventID, eventType, retryCount+1, errorMessage,
	)
	return mail.SendMail(n.adminEmail, subject, body)
}

// truncateMessage caps s at max bytes, backing up so a multi-byte rune is
// never split.
func truncateMessage(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// NoopNotifier discards all notifications. Used in tests.
type NoopNotifier struct{}

func (NoopNotifier) SubscriptionCanceled(ctx context.Context, email, name, planName string) error {
	return nil
}

func (NoopNotifier) WebhookFailure(ctx context.Context, eventID, eventType, errorMessage string, retryCount int) error {
	return nil
}
