package services

import (
	"fmt"
	"testing"
	"time"

	"prediction-contest/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kickoff = time.Date(2025, 8, 16, 14, 0, 0, 0, time.UTC)

func openTournament() *models.Tournament {
	return &models.Tournament{
		ID:          "t1",
		Name:        "Opening Weekend",
		Status:      models.TournamentStatusOpen,
		EntryFee:    dec("25"),
		PrizePlaces: 3,
		Fixtures: []models.TournamentFixture{
			{TournamentID: "t1", FixtureID: 11, Kickoff: kickoff},
			{TournamentID: "t1", FixtureID: 12, Kickoff: kickoff.Add(26 * time.Hour)},
		},
	}
}

func TestCreateTournamentInputValidate(t *testing.T) {
	in := CreateTournamentInput{Name: "  Serie A Round 1 ", EntryFee: dec("10.129"), PrizePlaces: 2}
	require.NoError(t, in.Validate())
	assert.Equal(t, "Serie A Round 1", in.Name)
	assert.Equal(t, "10.12", in.EntryFee.StringFixed(2))

	bad := []CreateTournamentInput{
		{Name: "", PrizePlaces: 1},
		{Name: "x", EntryFee: dec("-1"), PrizePlaces: 1},
		{Name: "x", PrizePlaces: 0},
		{Name: "x", PrizePlaces: 1, MaxParticipants: -2},
	}
	for i, in := range bad {
		assert.Error(t, in.Validate(), "case %d", i)
	}
}

func TestCheckJoin(t *testing.T) {
	tour := openTournament()
	assert.NoError(t, checkJoin(tour, 3, false, dec("25")))
	assert.ErrorIs(t, checkJoin(tour, 3, true, dec("100")), ErrAlreadyJoined)
	assert.ErrorIs(t, checkJoin(tour, 3, false, dec("24.99")), ErrInsufficientFunds)

	tour.MaxParticipants = 3
	assert.ErrorIs(t, checkJoin(tour, 3, false, dec("100")), ErrTournamentFull)

	tour.Status = models.TournamentStatusActive
	assert.ErrorIs(t, checkJoin(tour, 0, false, dec("100")), ErrInvalidStatus)
}

func TestCheckLeave(t *testing.T) {
	tour := openTournament()
	assert.NoError(t, checkLeave(tour, true))
	assert.ErrorIs(t, checkLeave(tour, false), ErrNotAttendee)

	tour.Status = models.TournamentStatusActive
	assert.ErrorIs(t, checkLeave(tour, true), ErrInvalidStatus)
}

func TestCheckPrediction(t *testing.T) {
	tour := openTournament()
	fixture := findFixture(tour, 11)
	require.NotNil(t, fixture)
	before := kickoff.Add(-time.Minute)

	assert.NoError(t, checkPrediction(tour, fixture, true, 2, 0, before))
	assert.ErrorIs(t, checkPrediction(tour, fixture, true, -1, 0, before), ErrInvalidScore)
	assert.ErrorIs(t, checkPrediction(tour, fixture, false, 1, 0, before), ErrNotAttendee)
	assert.ErrorIs(t, checkPrediction(tour, nil, true, 1, 0, before), ErrUnknownFixture)
	assert.ErrorIs(t, checkPrediction(tour, fixture, true, 1, 0, kickoff), ErrPredictionClosed)

	tour.Status = models.TournamentStatusActive
	assert.NoError(t, checkPrediction(tour, findFixture(tour, 12), true, 1, 1, kickoff))

	tour.Status = models.TournamentStatusFinished
	assert.ErrorIs(t, checkPrediction(tour, fixture, true, 1, 0, before), ErrInvalidStatus)
}

func TestFixtureWindow(t *testing.T) {
	start, end := fixtureWindow([]models.TournamentFixture{
		{Kickoff: kickoff.Add(48 * time.Hour)},
		{Kickoff: kickoff},
		{Kickoff: kickoff.Add(2 * time.Hour)},
	})
	assert.Equal(t, kickoff, start)
	assert.Equal(t, kickoff.Add(48*time.Hour), end)
}

func TestMergeManualResults(t *testing.T) {
	tour := openTournament()
	tour.ManualResults = []byte(`{"11": {"home": 1, "away": 0}}`)

	merged, err := mergeManualResults(tour, map[int64]Score{12: {Home: 2, Away: 2}})
	require.NoError(t, err)
	assert.Equal(t, map[int64]Score{11: {Home: 1, Away: 0}, 12: {Home: 2, Away: 2}}, merged)

	_, err = mergeManualResults(tour, map[int64]Score{99: {Home: 0, Away: 0}})
	assert.ErrorIs(t, err, ErrUnknownFixture)
}

func TestRankRows(t *testing.T) {
	ranked := RankRows([]LeaderboardRow{
		{UserID: "a", TotalPoints: 9},
		{UserID: "b", TotalPoints: 9},
		{UserID: "c", TotalPoints: 4},
	})
	assert.Equal(t, []int{1, 1, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrTournamentNotFound, fiber.StatusNotFound},
		{fmt.Errorf("wrapped: %w", ErrAlreadyPaid), fiber.StatusConflict},
		{ErrInsufficientFunds, fiber.StatusPaymentRequired},
		{ErrNotAttendee, fiber.StatusForbidden},
		{ErrInvalidScore, fiber.StatusBadRequest},
		{ErrPredictionClosed, fiber.StatusConflict},
		{errInjected, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorStatus(tt.err), tt.err.Error())
	}
}
