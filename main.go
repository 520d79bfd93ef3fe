package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"workshop-scoring-system/handlers"
	"workshop-scoring-system/models"
	"workshop-scoring-system/services"
	"workshop-scoring-system/utils"
	"workshop-scoring-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "workshop-scoring-system",
	})

	// Operator-console CORS. The device submission route gets its own
	// wide-open policy in SetupScoreRoutes, so it is skipped here.
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/score")
		},
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 init failed, standings export disabled: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Team{},
		&models.RoundState{},
		&models.StationRound{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	clock := clockwork.NewRealClock()

	roundStore := services.NewRoundStore(db)
	if err := roundStore.EnsureSeeded(); err != nil {
		log.Fatal("failed to seed round state:", err)
	}

	roundService := services.NewRoundService(roundStore, clock)
	scoreService := services.NewScoreService(db, roundStore, clock)
	scoreService.CountFailedAttempts = strings.ToLower(os.Getenv("COUNT_FAILED_ATTEMPTS")) == "true"
	teamService := services.NewTeamService(db, clock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditor := workers.NewTotalsAuditor(db)
	go workers.PollTotals(ctx, auditor, 30*time.Second)

	roundService.StartExpiryWatcher()

	handlers.SetupScoreRoutes(app, scoreService)
	handlers.SetupRoundRoutes(app, roundService)
	handlers.SetupTeamRoutes(app, teamService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5100"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Round expiry watcher running (every 5s)")
	log.Println("✅ Totals auditor running (every 30s)")
	if scoreService.CountFailedAttempts {
		log.Println("ℹ️  Fail submissions count as attempts (COUNT_FAILED_ATTEMPTS=true)")
	}
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
