package season

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/season-sim/shared/types"
)

func collegeConfig(t *testing.T) SportConfig {
	t.Helper()
	cfg, err := DefaultSportTable().Lookup(types.SportCollegeFootball)
	require.NoError(t, err)
	return cfg
}

func evenTeam() types.TeamStats {
	return types.TeamStats{
		ID:            "even",
		Name:          "Even State",
		Sport:         types.SportCollegeFootball,
		Wins:          2,
		Losses:        2,
		PointsFor:     100,
		PointsAgainst: 100,
	}
}

func TestFormFactor(t *testing.T) {
	assert.Equal(t, 1.0, FormFactor(nil), "no results is neutral")
	assert.Equal(t, 1.0, FormFactor([]int{}), "empty results is neutral")

	allWins := FormFactor([]int{1, 1, 1, 1, 1})
	allLosses := FormFactor([]int{0, 0, 0, 0, 0})
	assert.Greater(t, allWins, allLosses)
	assert.InDelta(t, 1.10, allWins, 1e-12)
	assert.InDelta(t, 0.90, allLosses, 1e-12)

	// The latest result outweighs the oldest
	assert.Greater(t, FormFactor([]int{0, 0, 0, 0, 1}), FormFactor([]int{1, 0, 0, 0, 0}))

	// Weights 1, 1.5 -> weighted mean 1.5/2.5 = 0.6
	assert.InDelta(t, 0.90+0.6*0.20, FormFactor([]int{0, 1}), 1e-12)
}

func TestPythagoreanExpectation(t *testing.T) {
	assert.Equal(t, 0.5, PythagoreanExpectation(0, 0, 2.37))
	assert.Equal(t, 0.5, PythagoreanExpectation(100, 100, 2.37))
	assert.Equal(t, 0.0, PythagoreanExpectation(0, 50, 1.83))
	assert.Equal(t, 1.0, PythagoreanExpectation(50, 0, 1.83))

	// 2^2 / (2^2 + 1^2)
	assert.InDelta(t, 0.8, PythagoreanExpectation(2, 1, 2), 1e-12)
	assert.InDelta(t, 0.9503, PythagoreanExpectation(125, 36, 2.37), 1e-3)
}

func TestPythagoreanExpectation_ExtremeMagnitudes(t *testing.T) {
	tests := []struct {
		name          string
		pointsFor     float64
		pointsAgainst float64
		exponent      float64
		want          float64
	}{
		{"huge for", 1e200, 1, 1.83, 1},
		{"huge against", 1, 1e200, 2.37, 0},
		{"huge and equal", 1e200, 1e200, 1.83, 0.5},
		{"huge ratio 2", 2e300, 1e300, 2, 0.8},
		{"tiny for, none against", 1e-200, 0, 2.37, 1},
		{"tiny against, none for", 0, 1e-200, 2.37, 0},
		{"tiny and equal", 1e-200, 1e-200, 13.91, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PythagoreanExpectation(tt.pointsFor, tt.pointsAgainst, tt.exponent)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestGameWinProbability_HugePointTotals(t *testing.T) {
	cfg := collegeConfig(t)
	team := evenTeam()
	team.PointsFor = 1e200
	game := types.ScheduledGame{Opponent: "Rival", Location: types.LocationNeutral, OpponentStrength: 0.5}

	require.NoError(t, ValidateTeam(team, []types.ScheduledGame{game}, cfg))
	assert.Equal(t, MaxGameProbability, GameWinProbability(team, game, cfg))

	team.PointsFor, team.PointsAgainst = 1, 1e200
	assert.Equal(t, MinGameProbability, GameWinProbability(team, game, cfg), "a dominated team is the underdog")
}

func TestGameWinProbability_Adjustments(t *testing.T) {
	cfg := collegeConfig(t)
	team := evenTeam()
	game := types.ScheduledGame{Opponent: "Average U", Location: types.LocationNeutral, OpponentStrength: 0.5}

	// 0.5 baseline + 0.15 opponent adjustment
	assert.InDelta(t, 0.65, GameWinProbability(team, game, cfg), 1e-12)

	game.Location = types.LocationHome
	assert.InDelta(t, 0.65+cfg.HomeAdvantage, GameWinProbability(team, game, cfg), 1e-12)

	game.Location = types.LocationAway
	assert.InDelta(t, 0.65-cfg.HomeAdvantage, GameWinProbability(team, game, cfg), 1e-12)

	game.Location = types.LocationNeutral
	game.OpponentStrength = 1.0
	assert.InDelta(t, 0.5, GameWinProbability(team, game, cfg), 1e-12, "elite opponent adds nothing")

	team.InjuryImpact = types.Float64(0.8)
	assert.InDelta(t, 0.4, GameWinProbability(team, game, cfg), 1e-12)

	team.InjuryImpact = nil
	team.StrengthOfSchedule = types.Float64(0.0)
	assert.InDelta(t, 0.55, GameWinProbability(team, game, cfg), 1e-12, "soft schedule adds 0.05")
}

func TestGameWinProbability_MissingOptionalFieldsAreNeutral(t *testing.T) {
	cfg := collegeConfig(t)
	game := types.ScheduledGame{Opponent: "Rival", Location: types.LocationHome, OpponentStrength: 0.62}

	bare := evenTeam()
	explicit := evenTeam()
	explicit.InjuryImpact = types.Float64(1.0)
	explicit.StrengthOfSchedule = types.Float64(0.5)
	explicit.RecentForm = []int{}

	assert.InDelta(t, GameWinProbability(bare, game, cfg), GameWinProbability(explicit, game, cfg), 1e-12)
}

func TestGameWinProbability_Clamped(t *testing.T) {
	cfg := collegeConfig(t)

	weak := types.TeamStats{
		ID: "weak", Sport: types.SportCollegeFootball,
		PointsFor: 1, PointsAgainst: 1000000,
		RecentForm:         []int{0, 0, 0, 0, 0},
		InjuryImpact:       types.Float64(0),
		StrengthOfSchedule: types.Float64(1),
	}
	strong := types.TeamStats{
		ID: "strong", Sport: types.SportCollegeFootball,
		PointsFor: 1000000, PointsAgainst: 1,
		RecentForm:         []int{1, 1, 1, 1, 1},
		StrengthOfSchedule: types.Float64(0),
	}

	for _, location := range []types.Location{types.LocationHome, types.LocationAway, types.LocationNeutral} {
		for _, strength := range []float64{0, 0.5, 1} {
			game := types.ScheduledGame{Location: location, OpponentStrength: strength}

			low := GameWinProbability(weak, game, cfg)
			high := GameWinProbability(strong, game, cfg)
			assert.GreaterOrEqual(t, low, MinGameProbability)
			assert.LessOrEqual(t, low, MaxGameProbability)
			assert.GreaterOrEqual(t, high, MinGameProbability)
			assert.LessOrEqual(t, high, MaxGameProbability)
		}
	}

	game := types.ScheduledGame{Location: types.LocationAway, OpponentStrength: 1}
	assert.Equal(t, MinGameProbability, GameWinProbability(weak, game, cfg))
	game = types.ScheduledGame{Location: types.LocationHome, OpponentStrength: 0}
	assert.Equal(t, MaxGameProbability, GameWinProbability(strong, game, cfg))
}
