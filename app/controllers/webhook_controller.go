package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/zenithsites/zenithportal/internal/pkg/metrics/counter"
	"github.com/zenithsites/zenithportal/internal/pkg/reconcile"
)

// WebhookController exposes the billing event endpoint. All processing
// decisions live in the reconcile engine; the controller only translates
// outcomes into HTTP responses the event sender understands: 2xx stops
// redelivery, anything else triggers a retry.
type WebhookController struct {
	engine *reconcile.Dispatcher
}

func NewWebhookController(engine *reconcile.Dispatcher) *WebhookController {
	return &WebhookController{engine: engine}
}

// HandleBillingWebhook processes POST /api/stripe/webhook.
func (wc *WebhookController) HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := wc.engine.Handle(ctx, rawBody, signature)
	switch {
	case errors.Is(err, reconcile.ErrInvalidSignature):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	case errors.Is(err, reconcile.ErrBadEnvelope):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case err != nil:
		// Non-2xx means the delivery will be retried; the ledger row is
		// already marked failed where applicable.
		if result != nil {
			_ = counter.AddFailed(result.EventType)
		}
		log.Errorf("[Webhook] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	if result.Duplicate {
		_ = counter.AddDuplicate(result.EventType)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if result.Unknown {
		_ = counter.AddProcessed(result.EventType)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	_ = counter.AddProcessed(result.EventType)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "outcome": string(result.Outcome)})
}
