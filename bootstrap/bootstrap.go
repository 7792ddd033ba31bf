// Package bootstrap wires configuration, storage and services together for
// the HTTP server and the contestadmin CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"prediction-contest/config"
	"prediction-contest/models"
	"prediction-contest/services"
	"prediction-contest/utils"
	"prediction-contest/workers"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Engine is the assembled service graph.
type Engine struct {
	Config   *config.Config
	DB       *gorm.DB
	Clock    clockwork.Clock
	Registry *prometheus.Registry
	Fixtures *workers.FixtureClient

	Store       *services.GormStore
	Scoring     *services.ScoringService
	Payouts     *services.PayoutService
	Tournaments *services.TournamentService
	Ledger      *services.LedgerService
	Users       *services.UserService
	Catalog     *services.CatalogService
}

// OpenDatabase connects to Postgres and migrates the schema.
func OpenDatabase(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Tournament{},
		&models.TournamentFixture{},
		&models.TournamentAttendee{},
		&models.Prediction{},
		&models.BalanceHistory{},
		&models.PayoutBatch{},
		&models.CatalogFixture{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// New builds every service on top of db.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, clock clockwork.Clock) (*Engine, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	fixtures := workers.NewFixtureClient(cfg.FixtureAPIHost, cfg.FixtureAPIKey, cfg.FixtureAPIRatePerMinute)
	store := services.NewGormStore(db)

	resolver := services.NewResultsResolver(fixtures, services.LookupStrategy(cfg.ResultsLookup))
	scoring := services.NewScoringService(store, resolver, clock)
	scoring.Metrics = metrics

	payouts := services.NewPayoutService(store, services.NewPrizeCalculator(cfg.PlatformCut), clock)
	payouts.Metrics = metrics
	if cfg.ArchiveEnabled() {
		archive, err := utils.NewR2Archive(ctx, utils.R2Options{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			return nil, err
		}
		payouts.Archive = archive
	} else {
		log.Println("⚠️  R2 not configured, payout reports will not be archived")
	}

	return &Engine{
		Config:      cfg,
		DB:          db,
		Clock:       clock,
		Registry:    registry,
		Fixtures:    fixtures,
		Store:       store,
		Scoring:     scoring,
		Payouts:     payouts,
		Tournaments: services.NewTournamentService(db, scoring, payouts, clock),
		Ledger:      services.NewLedgerService(db, clock),
		Users:       services.NewUserService(db),
		Catalog:     services.NewCatalogService(db, clock, cfg.CatalogLeagues),
	}, nil
}
