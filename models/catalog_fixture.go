// models/catalog_fixture.go
package models

import "time"

// CatalogFixture mirrors upcoming fixtures from the fixture API so organizers
// can pick matches without a live API call per page view.
// Table name: catalog_fixtures
type CatalogFixture struct {
	FixtureID int64     `json:"fixture_id" gorm:"primaryKey;autoIncrement:false"`
	LeagueID  int64     `json:"league_id" gorm:"not null;index"`
	Season    int       `json:"season"`
	Round     string    `json:"round" gorm:"index"`
	HomeTeam  string    `json:"home_team" gorm:"not null"`
	HomeLogo  string    `json:"home_logo"`
	AwayTeam  string    `json:"away_team" gorm:"not null"`
	AwayLogo  string    `json:"away_logo"`
	Kickoff   time.Time `json:"kickoff" gorm:"not null;index"`
	Status    string    `json:"status" gorm:"type:varchar(8)"`
	SyncedAt  time.Time `json:"synced_at" gorm:"not null"`
}
