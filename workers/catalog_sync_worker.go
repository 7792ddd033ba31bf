package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"prediction-contest/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogSource lists upcoming fixtures of a league season.
type CatalogSource interface {
	UpcomingFixtures(ctx context.Context, leagueID int64, season int) ([]models.CatalogFixture, error)
}

// CatalogSyncWorker keeps catalog_fixtures filled with upcoming matches of
// the configured leagues.
type CatalogSyncWorker struct {
	db       *gorm.DB
	source   CatalogSource
	leagues  []int64
	interval time.Duration
	clock    clockwork.Clock
}

func NewCatalogSyncWorker(db *gorm.DB, source CatalogSource, leagues []int64, interval time.Duration, clock clockwork.Clock) *CatalogSyncWorker {
	return &CatalogSyncWorker{
		db:       db,
		source:   source,
		leagues:  leagues,
		interval: interval,
		clock:    clock,
	}
}

// Start polls in the background until ctx is cancelled.
func (w *CatalogSyncWorker) Start(ctx context.Context) {
	log.Printf("🔁 Starting Catalog Sync Worker (%d leagues, every %s)…", len(w.leagues), w.interval)
	go w.run(ctx)
}

func (w *CatalogSyncWorker) run(ctx context.Context) {
	w.SyncAll(ctx)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			w.SyncAll(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Catalog Sync Worker stopped")
			return
		}
	}
}

// SyncAll refreshes every configured league. One failing league does not
// stop the others. It returns the number of fixtures stored.
func (w *CatalogSyncWorker) SyncAll(ctx context.Context) int {
	total := 0
	for _, league := range w.leagues {
		if ctx.Err() != nil {
			return total
		}
		n, err := w.SyncLeague(ctx, league)
		if err != nil {
			log.Printf("[CATALOG] ❌ League %d sync failed: %v", league, err)
			continue
		}
		total += n
	}
	log.Printf("[CATALOG] ✅ Catalogue refreshed: %d fixture(s) across %d league(s)", total, len(w.leagues))
	return total
}

// SyncLeague fetches and upserts the upcoming fixtures of one league.
func (w *CatalogSyncWorker) SyncLeague(ctx context.Context, leagueID int64) (int, error) {
	fixtures, err := upcomingForLeague(ctx, w.source, leagueID, w.clock.Now())
	if err != nil {
		return 0, err
	}
	if len(fixtures) == 0 {
		log.Printf("[CATALOG] ℹ️ No upcoming fixtures for league %d", leagueID)
		return 0, nil
	}

	now := w.clock.Now().UTC()
	for i := range fixtures {
		fixtures[i].SyncedAt = now
	}

	err = w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fixture_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"league_id", "season", "round", "home_team", "home_logo",
			"away_team", "away_logo", "kickoff", "status", "synced_at",
		}),
	}).CreateInBatches(&fixtures, 100).Error
	if err != nil {
		return 0, fmt.Errorf("failed to upsert catalogue fixtures: %w", err)
	}
	return len(fixtures), nil
}

// upcomingForLeague asks for the season of the current year first. Leagues
// whose season started last year report nothing there, so it falls back
// to the previous year.
func upcomingForLeague(ctx context.Context, source CatalogSource, leagueID int64, now time.Time) ([]models.CatalogFixture, error) {
	season := now.UTC().Year()
	fixtures, err := source.UpcomingFixtures(ctx, leagueID, season)
	if err != nil {
		return nil, err
	}
	if len(fixtures) > 0 {
		return fixtures, nil
	}
	return source.UpcomingFixtures(ctx, leagueID, season-1)
}
