package handlers

import (
	"workshop-scoring-system/middleware"
	"workshop-scoring-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRoundRoutes(app *fiber.App, roundService *services.RoundService) {
	// 🔓 Public: dashboards poll the state read model, timer displays stream it
	app.Get("/rounds", roundService.GetState)
	app.Get("/rounds/stream", roundService.StreamState)

	// 🔐 Operator-only round control
	secured := app.Group("/rounds", middleware.OperatorAuthMiddleware())

	secured.Post("/all/start", roundService.StartAll)
	secured.Post("/all/pause", roundService.PauseAll)
	secured.Post("/all/resume", roundService.ResumeAll)
	secured.Post("/all/stop", roundService.StopAll)

	secured.Post("/:station/start", roundService.StartStation)
	secured.Post("/:station/pause", roundService.PauseStation)
	secured.Post("/:station/resume", roundService.ResumeStation)
	secured.Post("/:station/stop", roundService.StopStation)
}
