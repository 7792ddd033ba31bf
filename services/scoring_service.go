package services

import (
	"context"
	"fmt"
	"log"

	"prediction-contest/models"

	"github.com/jonboulle/clockwork"
)

// TournamentScoring is the outcome of scoring one tournament.
type TournamentScoring struct {
	TournamentID string         `json:"tournament_id"`
	Name         string         `json:"name"`
	Pending      int            `json:"pending"`
	Scored       int            `json:"scored"`
	Failures     []BatchFailure `json:"failures,omitempty"`
	Err          error          `json:"-"`
}

// RunReport summarises one scoring run over all scorable tournaments.
type RunReport struct {
	Tournaments    []TournamentScoring `json:"tournaments"`
	Scored         int                 `json:"scored"`
	LookupFailures int                 `json:"lookup_failures"`
	StoreFailures  int                 `json:"store_failures"`
}

// Failed reports whether any tournament could not be persisted. Lookup
// failures are not fatal; those predictions are retried next run.
func (r *RunReport) Failed() bool {
	return r.StoreFailures > 0
}

// ScoringService resolves results for pending predictions and awards points.
type ScoringService struct {
	Store    ContestStore
	Resolver *ResultsResolver
	Clock    clockwork.Clock
	Metrics  *Metrics
}

func NewScoringService(store ContestStore, resolver *ResultsResolver, clock clockwork.Clock) *ScoringService {
	return &ScoringService{Store: store, Resolver: resolver, Clock: clock}
}

// Run scores every active or finished tournament. Failures are isolated per
// tournament; the returned error is set only when the run could not start.
func (s *ScoringService) Run(ctx context.Context) (*RunReport, error) {
	started := s.Clock.Now()
	log.Printf("[SCORING] Starting score calculation...")

	tournaments, err := s.Store.ListScorableTournaments(ctx)
	if err != nil {
		return nil, err
	}

	report := &RunReport{}
	for i := range tournaments {
		ts := s.ScoreTournament(ctx, &tournaments[i])
		report.Tournaments = append(report.Tournaments, ts)
		report.Scored += ts.Scored
		report.LookupFailures += len(ts.Failures)
		if ts.Err != nil {
			report.StoreFailures++
		}
	}

	elapsed := s.Clock.Since(started)
	s.Metrics.observeScoring(elapsed.Seconds(), report.Scored, report.LookupFailures, report.StoreFailures)
	log.Printf("[SCORING] Score calculation finished: %d tournament(s), %d prediction(s) scored, %d lookup failure(s), %d store failure(s) in %s",
		len(tournaments), report.Scored, report.LookupFailures, report.StoreFailures, elapsed)
	return report, nil
}

// ScoreTournament resolves and scores the pending predictions of one
// tournament. All of its writes commit together.
func (s *ScoringService) ScoreTournament(ctx context.Context, t *models.Tournament) TournamentScoring {
	ts := TournamentScoring{TournamentID: t.ID, Name: t.Name}

	pending, err := s.Store.ListPendingPredictions(ctx, t.ID)
	if err != nil {
		ts.Err = err
		log.Printf("❌ [SCORING] %q: %v", t.Name, err)
		return ts
	}
	ts.Pending = len(pending)
	if len(pending) == 0 {
		return ts
	}

	res := s.Resolver.Resolve(ctx, t, pending)
	ts.Failures = res.Failures
	if len(res.Results) == 0 {
		log.Printf("[SCORING] %q: %d pending, no new results", t.Name, len(pending))
		return ts
	}

	now := s.Clock.Now()
	scored := 0
	err = s.Store.Transaction(ctx, func(store ContestStore) error {
		for id, score := range res.Results {
			if err := store.UpdateFixtureResult(ctx, t.ID, id, score); err != nil {
				return err
			}
		}
		for _, p := range pending {
			actual, ok := res.Results[p.FixtureID]
			if !ok {
				continue
			}
			points := ScorePrediction(p.PredictedHome, p.PredictedAway, actual)
			if err := store.UpdatePredictionResult(ctx, p.ID, actual, points, now); err != nil {
				return err
			}
			scored++
		}
		return nil
	})
	if err != nil {
		ts.Err = fmt.Errorf("persist scores for %q: %w", t.Name, err)
		log.Printf("❌ [SCORING] %v", ts.Err)
		return ts
	}

	ts.Scored = scored
	log.Printf("✅ [SCORING] %q: scored %d of %d pending (manual %d, stored %d, api %d)",
		t.Name, scored, len(pending), res.FromManual, res.FromStored, res.FromSource)
	return ts
}

// RescoreTournament re-derives points for every prediction that has an
// actual score, letting manual results override stored scores. It returns
// the number of predictions whose result or points changed.
func (s *ScoringService) RescoreTournament(ctx context.Context, tournamentID string) (int, error) {
	changed := 0
	err := s.Store.Transaction(ctx, func(store ContestStore) error {
		t, err := store.GetTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		manual, err := ParseManualResults(t.ManualResults)
		if err != nil {
			log.Printf("⚠️ [SCORING] Ignoring manual results for %q: %v", t.Name, err)
		}
		for id, score := range manual {
			if err := store.UpdateFixtureResult(ctx, t.ID, id, score); err != nil {
				return err
			}
		}

		predictions, err := store.ListPredictions(ctx, t.ID)
		if err != nil {
			return err
		}
		now := s.Clock.Now()
		for _, p := range predictions {
			actual, ok := manual[p.FixtureID]
			if !ok {
				if p.ActualHome == nil || p.ActualAway == nil {
					continue
				}
				actual = Score{Home: *p.ActualHome, Away: *p.ActualAway}
			}
			points := ScorePrediction(p.PredictedHome, p.PredictedAway, actual)
			if !p.Pending() && points == p.PointsAwarded && sameScore(p, actual) {
				continue
			}
			if err := store.UpdatePredictionResult(ctx, p.ID, actual, points, now); err != nil {
				return err
			}
			changed++
		}
		log.Printf("🔁 [SCORING] Rescored %q: %d prediction(s) changed", t.Name, changed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func sameScore(p models.Prediction, actual Score) bool {
	return p.ActualHome != nil && p.ActualAway != nil &&
		*p.ActualHome == actual.Home && *p.ActualAway == actual.Away
}
