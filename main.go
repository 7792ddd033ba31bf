package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"prediction-contest/bootstrap"
	"prediction-contest/config"
	"prediction-contest/handlers"
	"prediction-contest/middleware"
	"prediction-contest/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.OpenDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}

	engine, err := bootstrap.New(ctx, cfg, db, clockwork.NewRealClock())
	if err != nil {
		log.Fatal("failed to initialise services:", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	handlers.SetupOpsRoutes(app, db, engine.Registry)

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	secured, admin := handlers.SecuredGroups(app, engine.Users)
	handlers.SetupTournamentRoutes(app, secured, admin, engine.Tournaments, engine.Catalog, engine.Users)
	handlers.SetupAccountRoutes(secured, admin, engine.Users, engine.Ledger)

	scheduler, err := engine.Scoring.StartScoringScheduler(cfg.ScoringInterval)
	if err != nil {
		log.Fatal("failed to start scoring scheduler:", err)
	}

	catalogWorker := workers.NewCatalogSyncWorker(db, engine.Fixtures, cfg.CatalogLeagues, cfg.CatalogSyncInterval, engine.Clock)
	catalogWorker.Start(ctx)

	if cfg.SyncServiceURL != "" {
		workers.NewUserSyncWorker(db, cfg.SyncServiceURL, "/api/v1/public/profiles", cfg.ServiceToken).Start(ctx)
	} else {
		log.Println("⚠️  SYNC_SERVICE_URL not set, user sync disabled")
	}

	go func() {
		if err := app.Listen(cfg.ListenAddress); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on %s", cfg.ListenAddress)
	log.Printf("✅ Scoring every %s, catalogue sync every %s", cfg.ScoringInterval, cfg.CatalogSyncInterval)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := scheduler.Shutdown(); err != nil {
		log.Printf("⚠️ Scheduler shutdown: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("⚠️ Server shutdown: %v", err)
	}
}
