package services

// Score is a final (or predicted) full-time result.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

const (
	PointsExact    = 5
	PointsGoalDiff = 3
	PointsOutcome  = 2
	PointsOneTeam  = 1
	PointsNoMatch  = 0
)

const (
	outcomeAwayWin = iota - 1
	outcomeDraw
	outcomeHomeWin
)

func outcome(home, away int) int {
	switch {
	case home > away:
		return outcomeHomeWin
	case home < away:
		return outcomeAwayWin
	default:
		return outcomeDraw
	}
}

// ScorePrediction awards points for a forecast against the actual result.
// The first matching rule wins: exact score 5, same outcome and goal
// difference 3, same outcome 2, one team's goals right 1, otherwise 0.
// A forecast with a missing side scores 0.
func ScorePrediction(predictedHome, predictedAway *int, actual Score) int {
	if predictedHome == nil || predictedAway == nil {
		return PointsNoMatch
	}
	ph, pa := *predictedHome, *predictedAway

	if ph == actual.Home && pa == actual.Away {
		return PointsExact
	}
	if outcome(ph, pa) == outcome(actual.Home, actual.Away) {
		if ph-pa == actual.Home-actual.Away {
			return PointsGoalDiff
		}
		return PointsOutcome
	}
	if ph == actual.Home || pa == actual.Away {
		return PointsOneTeam
	}
	return PointsNoMatch
}
