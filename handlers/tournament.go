package handlers

import (
	"prediction-contest/middleware"
	"prediction-contest/models"
	"prediction-contest/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, secured, admin fiber.Router, tournamentService *services.TournamentService, catalogService *services.CatalogService, roles middleware.RoleLookup) {
	// 🔓 Public read-only routes
	app.Get("/tournaments", tournamentService.ListTournaments)
	app.Get("/tournaments/:id", tournamentService.GetTournament)
	app.Get("/tournaments/:id/leaderboard", tournamentService.GetLeaderboard)

	// 🔐 Authenticated routes
	secured.Post("/tournaments/:id/join", tournamentService.JoinTournament)
	secured.Post("/tournaments/:id/leave", tournamentService.LeaveTournament)
	secured.Post("/tournaments/:id/predictions", tournamentService.SubmitPrediction)
	secured.Get("/tournaments/:id/predictions/me", tournamentService.MyPredictions)

	// Organizer routes
	organizer := middleware.RequireRole(roles, models.RoleOrganizer)
	secured.Get("/catalog/leagues", organizer, catalogService.ListLeagues)
	secured.Get("/catalog/fixtures", organizer, catalogService.ListFixtures)
	secured.Post("/tournaments", organizer, tournamentService.CreateTournament)
	secured.Put("/tournaments/:id/fixtures", organizer, tournamentService.SelectTournamentFixtures)
	secured.Patch("/tournaments/:id/status", organizer, tournamentService.UpdateTournamentStatus)
	secured.Put("/tournaments/:id/results", organizer, tournamentService.PutManualResults)

	// 🔒 Admin-only routes
	admin.Post("/tournaments/:id/payout", tournamentService.ApplyTournamentPayout)
	admin.Post("/tournaments/:id/redistribute", tournamentService.RedistributeTournament)
	admin.Post("/tournaments/:id/rescore", tournamentService.RescoreTournament)
	admin.Post("/scoring/run", tournamentService.RunScoring)
}
