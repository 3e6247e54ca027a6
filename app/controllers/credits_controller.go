package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/auto-analyst/billing/internal/pkg/credits"
	"github.com/auto-analyst/billing/internal/pkg/plans"
	"github.com/auto-analyst/billing/internal/pkg/usercontext"
)

var creditService *credits.Service

// InitializeCreditsController wires the credit policy engine.
func InitializeCreditsController(svc *credits.Service) {
	creditService = svc
}

type adminCreditsRequest struct {
	Action      string `json:"action" validate:"required,oneof=reset add deduct"`
	UserID      string `json:"userId" validate:"required"`
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

// HandleGetUserCredits returns the caller's current credit state. The
// unlimited sentinel is substituted here, at the presentation boundary only.
func HandleGetUserCredits(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondUnauthorized(c)
	}

	ctx, cancel := requestContext()
	defer cancel()

	rec, err := creditService.ResolveCredits(ctx, userCtx.UserID)
	if err != nil {
		return respondServiceError(c, "resolve credits", err)
	}

	var total interface{} = rec.Total
	if plans.IsUnlimited(rec.Total) {
		total = "unlimited"
	}
	return c.JSON(fiber.Map{
		"used":       rec.Used,
		"total":      total,
		"resetDate":  formatTime(rec.ResetDate),
		"lastUpdate": formatTime(rec.LastUpdate),
	})
}

// HandleAdminCredits applies a manual credit mutation (admin key required).
func HandleAdminCredits(c *fiber.Ctx) error {
	var req adminCreditsRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	actor := usercontext.GetUserID(c)
	if actor == "" {
		actor = "admin"
	}

	switch req.Action {
	case "reset":
		total, err := creditService.ResetCredits(ctx, req.UserID, actor)
		if err != nil {
			if errors.Is(err, credits.ErrCanceledUser) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error":   "cannot_reset_canceled_user",
					"message": "Canceled subscriptions cannot be reset; the user must resubscribe",
				})
			}
			return respondServiceError(c, "reset credits", err)
		}
		return c.JSON(fiber.Map{"success": true, "total": total})

	case "add":
		rec, err := creditService.AddCredits(ctx, req.UserID, req.Amount, req.Description, actor)
		if err != nil {
			if errors.Is(err, credits.ErrInvalidAmount) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error":   "validation_error",
					"message": "amount must be positive",
				})
			}
			return respondServiceError(c, "add credits", err)
		}
		return c.JSON(fiber.Map{"success": true, "total": rec.Total, "used": rec.Used})

	default: // deduct
		ok, err := creditService.DeductCredits(ctx, req.UserID, req.Amount)
		if err != nil {
			if errors.Is(err, credits.ErrInvalidAmount) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error":   "validation_error",
					"message": "amount must be positive",
				})
			}
			return respondServiceError(c, "deduct credits", err)
		}
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "insufficient_credits",
				"message": "Not enough credits remaining",
			})
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
