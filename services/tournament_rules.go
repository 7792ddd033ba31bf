package services

import (
	"fmt"
	"strings"
	"time"

	"prediction-contest/models"

	"github.com/shopspring/decimal"
)

// CreateTournamentInput is what an organizer submits for a new tournament.
type CreateTournamentInput struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	EntryFee        decimal.Decimal `json:"entry_fee"`
	PrizePlaces     int             `json:"prize_places"`
	MaxParticipants int             `json:"max_participants"`
}

func (in *CreateTournamentInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return fmt.Errorf("name is required")
	case len(in.Name) > 120:
		return fmt.Errorf("name must be at most 120 characters")
	case in.EntryFee.IsNegative():
		return fmt.Errorf("entry_fee must be a non-negative number")
	case in.PrizePlaces < 1:
		return fmt.Errorf("prize_places must be at least 1")
	case in.MaxParticipants < 0:
		return fmt.Errorf("max_participants must be a non-negative integer")
	}
	in.EntryFee = in.EntryFee.Truncate(2)
	return nil
}

// checkJoin validates a join against the locked tournament and user state.
func checkJoin(t *models.Tournament, attendees int64, alreadyJoined bool, balance decimal.Decimal) error {
	switch {
	case t.Status != models.TournamentStatusOpen:
		return fmt.Errorf("join %q in status %s: %w", t.Name, t.Status, ErrInvalidStatus)
	case alreadyJoined:
		return ErrAlreadyJoined
	case t.MaxParticipants > 0 && attendees >= int64(t.MaxParticipants):
		return ErrTournamentFull
	case balance.LessThan(t.EntryFee):
		return ErrInsufficientFunds
	}
	return nil
}

func checkLeave(t *models.Tournament, joined bool) error {
	if t.Status != models.TournamentStatusOpen {
		return fmt.Errorf("cannot leave a tournament that has already started: %w", ErrInvalidStatus)
	}
	if !joined {
		return ErrNotAttendee
	}
	return nil
}

// checkPrediction validates a forecast before it is stored.
func checkPrediction(t *models.Tournament, fixture *models.TournamentFixture, joined bool, home, away int, now time.Time) error {
	switch {
	case home < 0 || away < 0:
		return ErrInvalidScore
	case t.Status != models.TournamentStatusOpen && t.Status != models.TournamentStatusActive:
		return fmt.Errorf("predict in status %s: %w", t.Status, ErrInvalidStatus)
	case !joined:
		return ErrNotAttendee
	case fixture == nil:
		return ErrUnknownFixture
	case !now.Before(fixture.Kickoff):
		return ErrPredictionClosed
	}
	return nil
}

// fixtureWindow returns the first and last kickoff of a fixture set.
func fixtureWindow(fixtures []models.TournamentFixture) (start, end time.Time) {
	for i, f := range fixtures {
		if i == 0 || f.Kickoff.Before(start) {
			start = f.Kickoff
		}
		if i == 0 || f.Kickoff.After(end) {
			end = f.Kickoff
		}
	}
	return start, end
}

func findFixture(t *models.Tournament, fixtureID int64) *models.TournamentFixture {
	for i := range t.Fixtures {
		if t.Fixtures[i].FixtureID == fixtureID {
			return &t.Fixtures[i]
		}
	}
	return nil
}

// mergeManualResults overlays new operator results on the stored ones. Every
// fixture must belong to the tournament.
func mergeManualResults(t *models.Tournament, updates map[int64]Score) (map[int64]Score, error) {
	merged, err := ParseManualResults(t.ManualResults)
	if err != nil {
		merged = make(map[int64]Score)
	}
	for id, score := range updates {
		if findFixture(t, id) == nil {
			return nil, fmt.Errorf("fixture %d: %w", id, ErrUnknownFixture)
		}
		if score.Home < 0 || score.Away < 0 {
			return nil, fmt.Errorf("fixture %d: %w", id, ErrInvalidScore)
		}
		merged[id] = score
	}
	return merged, nil
}
