package router

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/auto-analyst/billing/app/controllers"
	"github.com/auto-analyst/billing/internal/pkg/cache"
	"github.com/auto-analyst/billing/internal/pkg/credits"
	"github.com/auto-analyst/billing/internal/pkg/database"
	"github.com/auto-analyst/billing/internal/pkg/ledger"
	"github.com/auto-analyst/billing/internal/pkg/middleware"
	"github.com/auto-analyst/billing/internal/pkg/payments"
	"github.com/auto-analyst/billing/internal/pkg/plans"
	"github.com/auto-analyst/billing/internal/pkg/session"
	"github.com/auto-analyst/billing/internal/pkg/subscription"
	"github.com/auto-analyst/billing/internal/pkg/webhookevents"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	store := ledger.NewStore(cache.GetClient())
	table := plans.NewTableFromEnv()
	events := webhookevents.NewServiceFromDB(database.GetDB())
	creditService := credits.NewService(store, table, events)

	var processor payments.Processor
	var subscriptionService *subscription.Service
	if stripeProcessor, err := payments.NewStripeProcessorFromEnv(); err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			log.Print("payment processor not configured, subscription endpoints disabled")
		} else {
			log.Printf("payment processor setup failed: %v", err)
		}
	} else {
		processor = stripeProcessor
		subscriptionService = subscription.NewService(processor, store, creditService, table)
	}

	controllers.InitializeBillingController(subscriptionService)
	controllers.InitializeCreditsController(creditService)
	controllers.InitializeWebhookController(events, processor)

	api := app.Group("/api", limiter.New())

	api.Get("/health", controllers.HandleHealth)

	// Webhooks carry their own signature check, no session auth.
	api.Post("/webhooks/stripe", controllers.HandleStripeWebhook)

	api.Post("/checkout-sessions", middleware.RequireAPISessionAuth, controllers.HandleCreateCheckoutSession)
	api.Post("/create-subscription", middleware.RequireAPISessionAuth, controllers.HandleCreateSubscription)

	user := api.Group("/user", middleware.RequireAPISessionAuth)
	user.Post("/change-subscription", controllers.HandleChangeSubscription)
	user.Post("/cancel-subscription", controllers.HandleCancelSubscription)
	user.Get("/credits", controllers.HandleGetUserCredits)
	user.Post("/credits", middleware.RequireAdminKey, controllers.HandleAdminCredits)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
