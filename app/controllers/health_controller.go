package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zenithsites/zenithportal/internal/pkg/database"
	"github.com/zenithsites/zenithportal/internal/pkg/metrics/counter"
)

// HandleHealth reports process and database health for load balancers.
func HandleHealth(c *fiber.Ctx) error {
	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "not configured"})
	}
	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleMetrics returns the webhook processing counters. The route is
// protected by basic auth in the router.
func HandleMetrics(c *fiber.Ctx) error {
	snapshot, err := counter.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "counters_unavailable"})
	}
	return c.JSON(snapshot)
}
