package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zenithsites/zenithportal/internal/pkg/reconcile"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, engine *reconcile.Dispatcher) {
	setup(app, NewHttpRouter(), NewApiRouter(engine))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
