package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/auto-analyst/billing/internal/pkg/env"
	"github.com/auto-analyst/billing/internal/pkg/usercontext"
)

// RequireAPISessionAuth ensures a logged-in session for API routes, returning
// JSON 401 when missing.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	v := c.Locals(usercontext.KeyFromProtected)
	loggedIn := false
	if b, ok := v.(bool); ok {
		loggedIn = b
	}
	if !loggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireAdminKey authenticates admin credit operations carrying the
// configured admin key header.
func RequireAdminKey(c *fiber.Ctx) error {
	configured := strings.TrimSpace(env.GetEnv("ADMIN_API_KEY", ""))
	if configured == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Admin access not configured",
		})
	}
	provided := strings.TrimSpace(c.Get("X-Admin-Key"))
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "Invalid admin key",
		})
	}
	return c.Next()
}
