package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/syncforge/stripemirror/internal/pkg/env"
)

// APIKeyAuth protects the admin sync API. The expected key comes from the
// SYNC_API_KEY environment variable; when it is unset the middleware is a
// no-op so local development works without extra setup.
func APIKeyAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := env.GetEnv("SYNC_API_KEY", "")
		if expected == "" {
			return c.Next()
		}

		apiKey := extractAPIKey(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing API key",
			})
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expected)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "invalid API key",
			})
		}

		return c.Next()
	}
}

func extractAPIKey(c *fiber.Ctx) string {
	if key := c.Get("X-API-Key"); key != "" {
		return key
	}

	auth := c.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return ""
}
