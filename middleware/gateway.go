package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware admits only requests carrying the shared service
// token, either bare or as "Bearer <token>".
func GatewayAuthMiddleware(serviceToken string) fiber.Handler {
	if serviceToken == "" {
		log.Fatal("❌ GAME_SERVICE_TOKEN is not set, gateway requests cannot be verified")
	}
	expected := []byte(serviceToken)

	return func(c *fiber.Ctx) error {
		token, ok := gatewayToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			log.Printf("🚫 [GATEWAY_AUTH] Missing token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			log.Printf("❌ [GATEWAY_AUTH] Invalid token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}

// gatewayToken extracts the token from an Authorization header value.
func gatewayToken(header string) (string, bool) {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Bearer "))
	return token, token != ""
}
