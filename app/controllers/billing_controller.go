package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/auto-analyst/billing/internal/pkg/subscription"
	"github.com/auto-analyst/billing/internal/pkg/usercontext"
)

// subscriptionService is nil when the payment processor is unconfigured;
// every billing handler checks for that distinct state up front.
var subscriptionService *subscription.Service

// InitializeBillingController wires the lifecycle service. A nil service
// marks the processor as unconfigured.
func InitializeBillingController(svc *subscription.Service) {
	subscriptionService = svc
}

type createCheckoutSessionRequest struct {
	PriceID       string `json:"priceId" validate:"required"`
	PromotionCode string `json:"promotionCode"`
}

type createSubscriptionRequest struct {
	SetupIntentID string                      `json:"setupIntentId" validate:"required"`
	PriceID       string                      `json:"priceId" validate:"required"`
	PromoCodeInfo *subscription.PromoCodeInfo `json:"promoCodeInfo"`
}

type changeSubscriptionRequest struct {
	NewPriceID string `json:"newPriceId" validate:"required"`
}

// HandleCreateCheckoutSession opens a setup intent for the selected price,
// applying an optional promo code.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondUnauthorized(c)
	}
	if subscriptionService == nil {
		return respondProcessorUnavailable(c)
	}

	var req createCheckoutSessionRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := subscriptionService.CreateCheckoutSession(ctx, userCtx.UserID, userCtx.Email, req.PriceID, req.PromotionCode)
	if err != nil {
		return respondServiceError(c, "checkout session", err)
	}
	return c.JSON(result)
}

// HandleCreateSubscription activates a subscription from a succeeded setup
// intent. The promoCodeInfo from checkout is echoed back verbatim; only the
// code's continued existence is re-checked here.
func HandleCreateSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondUnauthorized(c)
	}
	if subscriptionService == nil {
		return respondProcessorUnavailable(c)
	}

	var req createSubscriptionRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := subscriptionService.CreateSubscription(ctx, userCtx.UserID, req.SetupIntentID, req.PriceID, req.PromoCodeInfo)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidSetupIntent) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid_setup_intent",
				"message": "Payment setup has not completed; please retry the payment step",
			})
		}
		return respondServiceError(c, "create subscription", err)
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"subscriptionId": result.SubscriptionID,
		"status":         result.Status,
	})
}

// HandleChangeSubscription swaps the user's plan. The processor computes the
// prorated invoice; locally this is a hard credit reset to the new allotment.
func HandleChangeSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondUnauthorized(c)
	}
	if subscriptionService == nil {
		return respondProcessorUnavailable(c)
	}

	var req changeSubscriptionRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := subscriptionService.ChangeSubscription(ctx, userCtx.UserID, req.NewPriceID)
	if err != nil {
		if errors.Is(err, subscription.ErrNoSubscription) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "no_subscription",
				"message": "No subscription to change",
			})
		}
		return respondServiceError(c, "change subscription", err)
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"subscriptionId": result.SubscriptionID,
		"status":         result.Status,
	})
}

// HandleCancelSubscription requests cancellation. Credits stay in place; the
// period-end webhook revokes them once the paid period elapses.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondUnauthorized(c)
	}
	if subscriptionService == nil {
		return respondProcessorUnavailable(c)
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := subscriptionService.CancelSubscription(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, subscription.ErrNoSubscription) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "no_subscription",
				"message": "No subscription to cancel",
			})
		}
		return respondServiceError(c, "cancel subscription", err)
	}
	return c.JSON(fiber.Map{
		"success":               true,
		"message":               result.Message,
		"periodEndDate":         result.PeriodEndDate,
		"immediateCancellation": result.ImmediateCancellation,
	})
}
