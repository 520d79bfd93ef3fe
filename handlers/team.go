package handlers

import (
	"workshop-scoring-system/middleware"
	"workshop-scoring-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTeamRoutes(app *fiber.App, teamService *services.TeamService) {
	// 🔓 Public: standings + team lookup (station displays poll these)
	app.Get("/teams", teamService.GetTeams)
	app.Get("/teams/:code", teamService.GetTeamByCode)

	// 🔐 Operator: registration happens at the check-in desk
	secured := app.Group("/teams", middleware.OperatorAuthMiddleware())
	secured.Post("/", teamService.RegisterTeam)

	// 🔒 Admin override paths — distinct from the device write path
	admin := app.Group("/admin", middleware.OperatorAuthMiddleware())
	admin.Put("/teams/:id/scores", teamService.UpdateTeamScores)
	admin.Post("/teams/:id/reset", teamService.ResetTeam)
	admin.Post("/reset-scores", teamService.ResetAllScores)
	admin.Post("/export", teamService.ExportStandings)
}
