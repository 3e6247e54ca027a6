package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/auto-analyst/billing/app/models"
	"github.com/auto-analyst/billing/internal/pkg/env"
	"github.com/auto-analyst/billing/internal/pkg/payments"
	"github.com/auto-analyst/billing/internal/pkg/webhookevents"
)

var (
	webhookEventService *webhookevents.Service
	webhookProcessor    payments.Processor
)

// InitializeWebhookController wires webhook persistence and the processor
// used for payload enrichment. processor may be nil when unconfigured.
func InitializeWebhookController(events *webhookevents.Service, processor payments.Processor) {
	webhookEventService = events
	webhookProcessor = processor
}

// HandleStripeWebhook ingests processor events. This is the period-end
// process: it owns the canceling → canceled transition and the credit
// revocation the request handlers are forbidden to perform.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	secret := strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
	if secret == "" {
		log.Print("stripe webhook secret missing")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_not_configured"})
	}

	event, sigErr := webhook.ConstructEventWithOptions(
		rawBody,
		c.Get("Stripe-Signature"),
		secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	signatureValid := sigErr == nil

	ctx, cancel := requestContext()
	defer cancel()

	created, stored, err := webhookEventService.RecordEvent(ctx, webhookevents.EventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		log.Printf("stripe webhook persist failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = webhookEventService.MarkProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	processErr := processStripeEvent(event)
	_ = webhookEventService.MarkProcessed(ctx, stored.ID, processErr)
	if processErr != nil {
		log.Printf("stripe webhook %s processing failed: %v", event.Type, processErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

func processStripeEvent(event stripe.Event) error {
	if subscriptionService == nil {
		// Processor unconfigured; nothing to reconcile against.
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	switch event.Type {
	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		userID := sub.Metadata["userId"]
		if userID == "" {
			return nil
		}
		return subscriptionService.SyncFromProcessor(ctx, userID, payments.NormalizeSubscription(&sub))

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		userID := sub.Metadata["userId"]
		if userID == "" {
			return nil
		}
		return subscriptionService.HandleDeleted(ctx, userID)

	case "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return err
		}
		if inv.Subscription == nil || inv.Subscription.ID == "" || webhookProcessor == nil {
			return nil
		}
		// The invoice payload carries only the subscription id; fetch the
		// full object for its metadata and period boundaries.
		remote, err := webhookProcessor.GetSubscription(ctx, inv.Subscription.ID)
		if err != nil {
			return err
		}
		userID := remote.Metadata["userId"]
		if userID == "" {
			return nil
		}
		return subscriptionService.HandleRenewal(ctx, userID, remote)

	default:
		// Intentionally ignore unhandled events.
		return nil
	}
}
