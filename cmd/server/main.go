package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/auto-analyst/billing/internal/pkg/cache"
	"github.com/auto-analyst/billing/internal/pkg/database"
	"github.com/auto-analyst/billing/internal/pkg/env"
	"github.com/auto-analyst/billing/internal/pkg/router"
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

	app := fiber.New(fiber.Config{
		AppName: "auto-analyst-billing",
	})
	app.Use(recover.New(), logger.New())

	// Metrics stay behind basic auth outside of local development.
	metricsUser := env.GetEnv("METRICS_USER", "")
	metricsPassword := env.GetEnv("METRICS_PASSWORD", "")
	if metricsUser != "" && metricsPassword != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{metricsUser: metricsPassword},
		}), monitor.New())
	} else if env.IsDev() {
		app.Get("/metrics", monitor.New())
	}

	// ROUTER
	router.InstallRouter(app)

	return app
}
