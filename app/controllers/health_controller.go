package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/auto-analyst/billing/internal/pkg/cache"
	"github.com/auto-analyst/billing/internal/pkg/database"
)

// HandleHealth reports liveness of the ledger and audit stores.
func HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	status := fiber.StatusOK
	redisOK := cache.GetClient().Ping(ctx).Err() == nil
	dbOK := false
	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err == nil {
			dbOK = sqlDB.PingContext(ctx) == nil
		}
	}
	overall := "ok"
	if !redisOK || !dbOK {
		status = fiber.StatusServiceUnavailable
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"redis":  redisOK,
		"db":     dbOK,
	})
}
