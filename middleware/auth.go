package middleware

import (
	"context"
	"log"
	"strings"

	"prediction-contest/models"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts user identity and roles set by Gateway.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			r = strings.TrimSpace(r)
			if r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)
		return c.Next()
	}
}

// RoleLookup resolves the locally granted role of a user.
type RoleLookup interface {
	UserRole(ctx context.Context, id string) (models.Role, error)
}

// RequireRole lets the request through when the gateway roles or the local
// role contain one of the allowed roles. Admin always passes.
func RequireRole(lookup RoleLookup, allowed ...models.Role) fiber.Handler {
	permitted := map[models.Role]bool{models.RoleAdmin: true}
	for _, r := range allowed {
		permitted[r] = true
	}

	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, r := range roles {
			if permitted[models.Role(r)] {
				return c.Next()
			}
		}

		userID, _ := c.Locals("user_id").(string)
		if userID != "" && lookup != nil {
			role, err := lookup.UserRole(c.UserContext(), userID)
			if err == nil && permitted[role] {
				return c.Next()
			}
		}

		log.Printf("🚫 [ROLE] user=%q roles=%v denied on %s", userID, roles, c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role",
		})
	}
}
