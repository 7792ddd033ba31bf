package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"prediction-contest/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scoringTime = time.Date(2025, 3, 17, 6, 0, 0, 0, time.UTC)

func scoringPrediction(id, tournamentID string, fixtureID int64, kickoff time.Time, home, away int) models.Prediction {
	return models.Prediction{
		ID:            id,
		UserID:        "u-" + id,
		TournamentID:  tournamentID,
		FixtureID:     fixtureID,
		Kickoff:       kickoff,
		PredictedHome: intPtr(home),
		PredictedAway: intPtr(away),
	}
}

func newScoringFixture(source ResultsSource) (*fakeStore, *ScoringService) {
	store := newFakeStore()
	store.addTournament(models.Tournament{
		ID:     "t1",
		Name:   "Matchday 27",
		Status: models.TournamentStatusActive,
		Fixtures: []models.TournamentFixture{
			{TournamentID: "t1", FixtureID: 101, Kickoff: saturday},
			{TournamentID: "t1", FixtureID: 201, Kickoff: sunday},
		},
	})
	store.addPrediction(scoringPrediction("a", "t1", 101, saturday, 2, 1))
	store.addPrediction(scoringPrediction("b", "t1", 201, sunday, 1, 1))

	svc := NewScoringService(store, NewResultsResolver(source, LookupByDate), clockwork.NewFakeClockAt(scoringTime))
	return store, svc
}

func TestRunScoresPendingPredictions(t *testing.T) {
	source := &fakeResultsSource{byDate: map[string]map[int64]Score{
		"2025-03-15": {101: {Home: 2, Away: 1}},
		"2025-03-16": {201: {Home: 0, Away: 0}},
	}}
	store, svc := newScoringFixture(source)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed())
	assert.Equal(t, 2, report.Scored)

	a := store.prediction("a")
	assert.Equal(t, 5, a.PointsAwarded)
	require.NotNil(t, a.ScoredAt)
	assert.Equal(t, scoringTime, *a.ScoredAt)
	assert.Equal(t, 3, store.prediction("b").PointsAwarded)

	tour := store.tournaments["t1"]
	assert.True(t, tour.Fixtures[0].Finished())
	assert.Equal(t, 2, *tour.Fixtures[0].HomeGoals)
}

func TestRunIsolatesDateFailures(t *testing.T) {
	source := &fakeResultsSource{
		byDate:    map[string]map[int64]Score{"2025-03-16": {201: {Home: 1, Away: 1}}},
		failDates: map[string]error{"2025-03-15": errors.New("rate limited")},
	}
	store, svc := newScoringFixture(source)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Failed(), "lookup failures are not fatal")
	assert.Equal(t, 1, report.LookupFailures)
	assert.Equal(t, 1, report.Scored)
	assert.True(t, store.prediction("a").Pending())
	assert.Equal(t, 5, store.prediction("b").PointsAwarded)

	// Next run retries only what is still pending.
	source.failDates = nil
	source.byDate["2025-03-15"] = map[int64]Score{101: {Home: 0, Away: 3}}
	source.dateCalls = nil

	report, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-15"}, source.dateCalls)
	assert.Equal(t, 1, report.Scored)
	assert.Equal(t, 0, store.prediction("a").PointsAwarded)
	assert.False(t, store.prediction("a").Pending())
}

func TestRunIsolatesStoreFailures(t *testing.T) {
	source := &fakeResultsSource{byDate: map[string]map[int64]Score{
		"2025-03-15": {101: {Home: 2, Away: 1}, 301: {Home: 1, Away: 0}},
		"2025-03-16": {201: {Home: 0, Away: 0}},
	}}
	store, svc := newScoringFixture(source)
	store.addTournament(models.Tournament{ID: "t2", Name: "Cup Round", Status: models.TournamentStatusFinished})
	store.addPrediction(scoringPrediction("c", "t2", 301, saturday, 1, 0))
	store.UpdatePredictionResultFn = func(id string) error {
		if id == "b" {
			return errInjected
		}
		return nil
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Failed())
	assert.Equal(t, 1, report.StoreFailures)
	assert.True(t, store.prediction("a").Pending(), "t1 rolled back as a unit")
	assert.True(t, store.prediction("b").Pending())
	assert.Equal(t, 5, store.prediction("c").PointsAwarded)
	assert.False(t, store.tournaments["t1"].Fixtures[0].Finished())
}

func TestRunSkipsOtherStatuses(t *testing.T) {
	source := &fakeResultsSource{}
	store, svc := newScoringFixture(source)
	tour := store.tournaments["t1"]
	tour.Status = models.TournamentStatusOpen
	store.addTournament(tour)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Tournaments)
	assert.Empty(t, source.dateCalls)
}

func TestRunIsIdempotent(t *testing.T) {
	source := &fakeResultsSource{byDate: map[string]map[int64]Score{
		"2025-03-15": {101: {Home: 2, Away: 1}},
		"2025-03-16": {201: {Home: 0, Away: 0}},
	}}
	store, svc := newScoringFixture(source)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	source.dateCalls = nil

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scored)
	assert.Empty(t, source.dateCalls)
	assert.Equal(t, 5, store.prediction("a").PointsAwarded)
}

func TestRescoreTournamentAppliesCorrections(t *testing.T) {
	source := &fakeResultsSource{byDate: map[string]map[int64]Score{
		"2025-03-15": {101: {Home: 2, Away: 1}},
		"2025-03-16": {201: {Home: 0, Away: 0}},
	}}
	store, svc := newScoringFixture(source)
	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	tour := store.tournaments["t1"]
	tour.ManualResults = []byte(`{"101": {"home": 0, "away": 0}}`)
	store.addTournament(tour)

	changed, err := svc.RescoreTournament(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, 0, store.prediction("a").PointsAwarded)
	assert.Equal(t, 0, *store.prediction("a").ActualHome)
	assert.Equal(t, 3, store.prediction("b").PointsAwarded)
	assert.Equal(t, 0, *store.tournaments["t1"].Fixtures[0].HomeGoals)

	changed, err = svc.RescoreTournament(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, changed, "rescoring unchanged data is a no-op")
}

func TestRescoreUnknownTournament(t *testing.T) {
	_, svc := newScoringFixture(&fakeResultsSource{})
	_, err := svc.RescoreTournament(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
