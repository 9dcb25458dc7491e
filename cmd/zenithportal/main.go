package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/zenithsites/zenithportal/internal/pkg/cache"
	"github.com/zenithsites/zenithportal/internal/pkg/database"
	"github.com/zenithsites/zenithportal/internal/pkg/env"
	"github.com/zenithsites/zenithportal/internal/pkg/reconcile"
	"github.com/zenithsites/zenithportal/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1048576, // 1 MiB, event payloads are small
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// reconciliation engine
	engine := reconcile.NewEngine(reconcile.Config{
		WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		DB:            database.GetDB(),
		Redis:         cache.GetClient(),
		Notifier:      reconcile.NewSMTPNotifier(env.GetEnv("ADMIN_ALERT_EMAIL", "")),
	})

	// ROUTER
	router.InstallRouter(app, engine)

	return app
}
