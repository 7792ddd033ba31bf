package services

import (
	"sort"

	"prediction-contest/models"
)

// LeaderboardRow is one user's standing in a tournament.
type LeaderboardRow struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	TotalPoints int    `json:"total_points"`
	Predictions int    `json:"predictions"`
}

// RankBand is a group of users tied on points. Rank is the first place the
// band occupies; the band covers Rank..Rank+len(UserIDs)-1.
type RankBand struct {
	Rank    int      `json:"rank"`
	Points  int      `json:"points"`
	UserIDs []string `json:"user_ids"`
}

// LastRank is the lowest place covered by the band.
func (b RankBand) LastRank() int {
	return b.Rank + len(b.UserIDs) - 1
}

// BuildLeaderboard sums awarded points per user, highest first. Only users
// with at least one prediction appear. Users on equal points are ordered by
// id so output is stable; callers that care about ties use GroupRankBands.
func BuildLeaderboard(predictions []models.Prediction) []LeaderboardRow {
	byUser := make(map[string]*LeaderboardRow)
	for _, p := range predictions {
		row, ok := byUser[p.UserID]
		if !ok {
			row = &LeaderboardRow{UserID: p.UserID}
			byUser[p.UserID] = row
		}
		row.TotalPoints += p.PointsAwarded
		row.Predictions++
	}

	rows := make([]LeaderboardRow, 0, len(byUser))
	for _, row := range byUser {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows
}

// GroupRankBands groups a sorted leaderboard into bands of equal points.
func GroupRankBands(rows []LeaderboardRow) []RankBand {
	var bands []RankBand
	rank := 1
	for i, row := range rows {
		if i > 0 && row.TotalPoints == rows[i-1].TotalPoints {
			last := &bands[len(bands)-1]
			last.UserIDs = append(last.UserIDs, row.UserID)
		} else {
			bands = append(bands, RankBand{Rank: rank, Points: row.TotalPoints, UserIDs: []string{row.UserID}})
		}
		rank++
	}
	return bands
}
