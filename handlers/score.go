package handlers

import (
	"workshop-scoring-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// SetupScoreRoutes wires the device submission endpoint. Its CORS policy is
// wide open (`*`, POST+OPTIONS) because the submitting clients are station
// hardware, not browsers; the OPTIONS preflight is answered by the cors
// middleware itself.
func SetupScoreRoutes(app *fiber.App, scoreService *services.ScoreService) {
	app.Use("/score", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "Content-Type, Accept, User-Agent",
	}))
	app.Post("/score", scoreService.SubmitScore)
}
