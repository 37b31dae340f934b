package season

import (
	"github.com/stitts-dev/season-sim/shared/types"
)

// RandomSource yields uniform draws in [0, 1). *math/rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// SimulateOneSeason plays every uncompleted game once and returns the team's
// final win total. Completed games are already counted in team.Wins and are
// skipped. Neither argument is modified.
func SimulateOneSeason(team types.TeamStats, schedule []types.ScheduledGame, cfg SportConfig, rng RandomSource) int {
	return playSeason(team.Wins, gameProbabilities(team, schedule, cfg), rng)
}

// playSeason is the inner trial loop over precomputed game probabilities
func playSeason(startWins int, probs []float64, rng RandomSource) int {
	wins := startWins
	for _, p := range probs {
		if rng.Float64() < p {
			wins++
		}
	}
	return wins
}
