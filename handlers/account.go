package handlers

import (
	"prediction-contest/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAccountRoutes(secured, admin fiber.Router, userService *services.UserService, ledgerService *services.LedgerService) {
	secured.Get("/users/me", userService.GetMe)
	secured.Get("/users/me/balance-history", ledgerService.GetBalanceHistory)
	secured.Get("/users/search", userService.SearchUsers)

	admin.Patch("/users/:id/role", userService.SetUserRole)
	admin.Post("/users/:id/balance", ledgerService.AdjustUserBalance)
}
