package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TournamentStatus is the lifecycle state of a tournament.
type TournamentStatus string

const (
	TournamentStatusDraft     TournamentStatus = "draft"
	TournamentStatusOpen      TournamentStatus = "open"
	TournamentStatusActive    TournamentStatus = "active"
	TournamentStatusFinished  TournamentStatus = "finished"
	TournamentStatusCancelled TournamentStatus = "cancelled"
)

var tournamentTransitions = map[TournamentStatus][]TournamentStatus{
	TournamentStatusDraft:  {TournamentStatusOpen},
	TournamentStatusOpen:   {TournamentStatusActive, TournamentStatusCancelled},
	TournamentStatusActive: {TournamentStatusFinished, TournamentStatusCancelled},
}

// Valid reports whether s is one of the known statuses.
func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentStatusDraft, TournamentStatusOpen, TournamentStatusActive,
		TournamentStatusFinished, TournamentStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	for _, allowed := range tournamentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Tournament is a paid prediction contest over a fixed set of fixtures.
type Tournament struct {
	ID              string           `json:"id" gorm:"primaryKey;type:uuid"`
	Name            string           `json:"name" gorm:"not null"`
	Slug            string           `json:"slug" gorm:"index"`
	Description     string           `json:"description" gorm:"type:text"`
	EntryFee        decimal.Decimal  `json:"entry_fee" gorm:"type:numeric(14,2);not null;default:0"`
	PrizePlaces     int              `json:"prize_places" gorm:"not null;default:1"`
	MaxParticipants int              `json:"max_participants" gorm:"default:0"` // 0 = unlimited
	Status          TournamentStatus `json:"status" gorm:"type:varchar(16);not null;default:'draft';index"`
	StartTime       *time.Time       `json:"start_time,omitempty"`
	EndTime         *time.Time       `json:"end_time,omitempty"`
	OrganizerID     string           `json:"organizer_id" gorm:"index"`

	// Operator-entered results keyed by fixture id, e.g. {"1035037": {"home": 2, "away": 1}}.
	ManualResults datatypes.JSON `json:"manual_results,omitempty" gorm:"type:jsonb"`

	Fixtures  []TournamentFixture  `json:"fixtures,omitempty" gorm:"foreignKey:TournamentID"`
	Attendees []TournamentAttendee `json:"-" gorm:"foreignKey:TournamentID"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated fields (not stored in DB)
	AttendeesCount int64 `json:"attendees_count,omitempty" gorm:"-"`
}

// TournamentFixture is one real-world match selected into a tournament.
type TournamentFixture struct {
	TournamentID string    `json:"tournament_id" gorm:"primaryKey;type:uuid"`
	FixtureID    int64     `json:"fixture_id" gorm:"primaryKey;autoIncrement:false"`
	LeagueID     int64     `json:"league_id" gorm:"index"`
	Round        string    `json:"round"`
	HomeTeam     string    `json:"home_team" gorm:"not null"`
	HomeLogo     string    `json:"home_logo,omitempty"`
	AwayTeam     string    `json:"away_team" gorm:"not null"`
	AwayLogo     string    `json:"away_logo,omitempty"`
	Kickoff      time.Time `json:"kickoff" gorm:"not null;index"`
	HomeGoals    *int      `json:"home_goals,omitempty"`
	AwayGoals    *int      `json:"away_goals,omitempty"`
}

// Finished reports whether a final score has been recorded.
func (f TournamentFixture) Finished() bool {
	return f.HomeGoals != nil && f.AwayGoals != nil
}

// TournamentAttendee records that a user paid the entry fee.
type TournamentAttendee struct {
	TournamentID string    `json:"tournament_id" gorm:"primaryKey;type:uuid"`
	UserID       string    `json:"user_id" gorm:"primaryKey;type:uuid;index"`
	JoinedAt     time.Time `json:"joined_at" gorm:"autoCreateTime"`
}
