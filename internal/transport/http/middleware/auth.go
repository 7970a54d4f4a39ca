package middleware

import (
	"crypto/subtle"

	"github.com/agentdock/backend/internal/config"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// APIKeyQueryParam carries the key on websocket upgrades, where browsers
// cannot set headers.
const APIKeyQueryParam = "api_key"

// APIKey guards a route group when auth.api_key is set.
func APIKey(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := cfg.Auth.APIKey
		if apiKey == "" {
			return c.Next()
		}

		headerToken := c.Get("X-API-Key")
		if headerToken == "" {
			auth := c.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
				headerToken = auth[len(prefix):]
			}
		}
		if headerToken == "" && websocket.IsWebSocketUpgrade(c) {
			headerToken = c.Query(APIKeyQueryParam)
		}

		if subtle.ConstantTimeCompare([]byte(headerToken), []byte(apiKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		return c.Next()
	}
}
