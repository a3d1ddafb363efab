package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/env"
)

// InternalAPIKeyMiddleware authenticates service-to-service requests
// on the internal usage API against a shared key.
func InternalAPIKeyMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		configured := strings.TrimSpace(env.GetEnv("INTERNAL_API_KEY", ""))
		if configured == "" {
			log.Print("internal api middleware: INTERNAL_API_KEY is not configured")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Internal API is not configured"})
		}

		provided := strings.TrimSpace(c.Get("X-Internal-API-Key"))
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid API key"})
		}

		return c.Next()
	}
}
