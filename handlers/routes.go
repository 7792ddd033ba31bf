package handlers

import (
	"prediction-contest/middleware"

	"github.com/gofiber/fiber/v2"
)

// SecuredGroups registers the /s (user context) and /s/admin (admin role)
// groups once; every route setup shares them.
func SecuredGroups(app *fiber.App, roles middleware.RoleLookup) (secured, admin fiber.Router) {
	secured = app.Group("/s", middleware.UserContextMiddleware())
	admin = secured.Group("/admin", middleware.RequireRole(roles))
	return secured, admin
}
