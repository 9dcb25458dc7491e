package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zenithsites/zenithportal/app/controllers"
	"github.com/zenithsites/zenithportal/internal/pkg/reconcile"
)

type ApiRouter struct {
	engine *reconcile.Dispatcher
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")

	// Event deliveries must never be rate limited: a 429 would trigger
	// redelivery storms. Idempotency is handled downstream instead.
	wc := controllers.NewWebhookController(h.engine)
	api.Post("/stripe/webhook", wc.HandleBillingWebhook)
}

func NewApiRouter(engine *reconcile.Dispatcher) *ApiRouter {
	return &ApiRouter{engine: engine}
}
