package models

import "time"

// Prediction is one user's forecast for one fixture inside one tournament.
// (user_id, tournament_id, fixture_id) is unique.
type Prediction struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       string `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_prediction_user_tournament_fixture"`
	TournamentID string `json:"tournament_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_prediction_user_tournament_fixture"`
	FixtureID    int64  `json:"fixture_id" gorm:"not null;uniqueIndex:idx_prediction_user_tournament_fixture"`

	// Denormalized from the fixture at creation time
	Kickoff  time.Time `json:"kickoff" gorm:"not null"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`

	PredictedHome *int `json:"predicted_home"`
	PredictedAway *int `json:"predicted_away"`

	ActualHome    *int       `json:"actual_home,omitempty"`
	ActualAway    *int       `json:"actual_away,omitempty"`
	PointsAwarded int        `json:"points_awarded" gorm:"not null;default:0"`
	ScoredAt      *time.Time `json:"scored_at,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Pending reports whether the prediction still waits for a final score.
func (p Prediction) Pending() bool {
	return p.ScoredAt == nil
}
