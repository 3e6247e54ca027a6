package controllers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/auto-analyst/billing/internal/pkg/payments"
)

// requestTimeout bounds every processor/ledger round trip from a handler.
const requestTimeout = 20 * time.Second

var validate = validator.New()

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// parseAndValidate decodes the JSON body into out and runs struct validation.
// A false return means the response has already been written.
func parseAndValidate(c *fiber.Ctx, out interface{}) bool {
	if err := c.BodyParser(out); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Invalid request body",
		})
		return false
	}
	if err := validate.Struct(out); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return false
	}
	return true
}

// respondServiceError translates service failures into the error taxonomy:
// promo rejections and business-rule violations surface with their specific
// message, everything else collapses to a generic 500 with details logged
// server-side only.
func respondServiceError(c *fiber.Ctx, op string, err error) error {
	if payments.IsPromotionError(err) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "promotion_invalid",
			"message": err.Error(),
		})
	}
	log.Printf("%s failed: %v", op, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_server_error",
		"message": "Something went wrong, please try again later",
	})
}

func respondUnauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": "login required",
	})
}

func respondProcessorUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "payment_processor_unavailable",
		"message": "Payments are not configured",
	})
}
