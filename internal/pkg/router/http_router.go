package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/zenithsites/zenithportal/app/controllers"
	"github.com/zenithsites/zenithportal/internal/pkg/env"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	// webhook processing counters, basic auth protected
	app.Get("/metrics/webhooks", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), controllers.HandleMetrics)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
