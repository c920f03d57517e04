package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"metafields-backend/internal/engine"
)

// Middleware returns a Fiber middleware that validates JWT tokens and sets
// the operator's user id on the request.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return engine.UnauthorizedError("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return engine.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}

		c.Locals("user_id", claims.Subject)
		return c.Next()
	}
}

// UserID extracts the authenticated operator id from a Fiber context.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
