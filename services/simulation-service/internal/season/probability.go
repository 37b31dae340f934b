package season

import (
	"math"

	"github.com/stitts-dev/season-sim/shared/types"
)

const (
	// MinGameProbability and MaxGameProbability bound every single-game
	// estimate; no game is modeled as a certainty.
	MinGameProbability = 0.05
	MaxGameProbability = 0.95

	opponentWeight      = 0.30
	scheduleWeight      = 0.10
	formDecay           = 1.5
	formFloor           = 0.90
	formRange           = 0.20
	neutralFormFactor   = 1.0
	averageScheduleRank = 0.5
)

// PythagoreanExpectation estimates win percentage (0-1) from points scored and
// allowed. Two zero totals carry no information and return 0.5. The ratio form
// keeps very large or very small totals from overflowing the power.
func PythagoreanExpectation(pointsFor, pointsAgainst, exponent float64) float64 {
	switch {
	case pointsFor == 0 && pointsAgainst == 0:
		return 0.5
	case pointsAgainst == 0:
		return 1
	case pointsFor == 0:
		return 0
	}
	return 1 / (1 + math.Pow(pointsAgainst/pointsFor, exponent))
}

// FormFactor turns recent 0/1 results (oldest first) into a multiplier in
// [0.90, 1.10]. Result i carries weight 1.5^i so the latest game dominates.
// No results is neutral.
func FormFactor(recentForm []int) float64 {
	if len(recentForm) == 0 {
		return neutralFormFactor
	}

	weight := 1.0
	weightSum := 0.0
	weighted := 0.0
	for _, result := range recentForm {
		weighted += float64(result) * weight
		weightSum += weight
		weight *= formDecay
	}

	return formFloor + (weighted/weightSum)*formRange
}

// GameWinProbability estimates the chance team wins one scheduled game. The
// result is always within [MinGameProbability, MaxGameProbability].
func GameWinProbability(team types.TeamStats, game types.ScheduledGame, cfg SportConfig) float64 {
	p := PythagoreanExpectation(team.PointsFor, team.PointsAgainst, cfg.Exponent)

	// Weaker opponents raise the estimate
	p += (1 - game.OpponentStrength) * opponentWeight

	switch game.Location {
	case types.LocationHome:
		p += cfg.HomeAdvantage
	case types.LocationAway:
		p -= cfg.HomeAdvantage
	}

	p *= FormFactor(team.RecentForm)

	if team.InjuryImpact != nil {
		p *= *team.InjuryImpact
	}
	if team.StrengthOfSchedule != nil {
		p += (averageScheduleRank - *team.StrengthOfSchedule) * scheduleWeight
	}

	return clampProbability(p)
}

// gameProbabilities evaluates every uncompleted game once, in schedule order
func gameProbabilities(team types.TeamStats, schedule []types.ScheduledGame, cfg SportConfig) []float64 {
	probs := make([]float64, 0, len(schedule))
	for _, game := range schedule {
		if game.Completed {
			continue
		}
		probs = append(probs, GameWinProbability(team, game, cfg))
	}
	return probs
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return MinGameProbability
	}
	return math.Max(MinGameProbability, math.Min(MaxGameProbability, p))
}
