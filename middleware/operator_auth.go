// middleware/operator_auth.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// OperatorAuthMiddleware validates the shared Bearer token that the operator
// console sends. Device submission routes must NOT sit behind this — station
// clients carry no credentials.
func OperatorAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("OPERATOR_TOKEN")
	if expectedToken == "" {
		log.Fatal("❌ OPERATOR_TOKEN is not set — round control cannot be secured")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Printf("🚫 [OPERATOR_AUTH] Missing Authorization header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "operator token missing",
			})
		}

		// Parse "Bearer <token>"; accept a raw token too for curl-driven ops.
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != expectedToken {
			log.Printf("❌ [OPERATOR_AUTH] Invalid token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid operator token",
			})
		}

		return c.Next()
	}
}
