package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// WebhookAuthMiddleware validates the shared key the payment gateway sends
// with reconciliation callbacks.
func WebhookAuthMiddleware(webhookKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if webhookKey == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "webhook key not configured")
		}

		authHeader := c.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return writeWebhookAuthError(c)
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(webhookKey)) != 1 {
			return writeWebhookAuthError(c)
		}

		return c.Next()
	}
}

func writeWebhookAuthError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   "invalid webhook credentials",
	})
}
