package season

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/stitts-dev/season-sim/shared/types"
)

func TestAggregate_DistributionSumsToOne(t *testing.T) {
	cfg := collegeConfig(t)
	team := evenTeam()

	dist, err := Aggregate(team, neutralGames(8), cfg, 5000, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Len(t, dist.WinDistribution, 2+2+8+1)
	assert.InDelta(t, 1.0, floats.Sum(dist.WinDistribution), 1e-9)
	assert.Equal(t, 12, dist.TotalGames)
	assert.Equal(t, 8, dist.RemainingGames)
	assert.InDelta(t, float64(dist.TotalGames), dist.ProjectedWins+dist.ProjectedLosses, 1e-9)
}

func TestAggregate_NoImpossibleWinCounts(t *testing.T) {
	cfg := collegeConfig(t)
	team := evenTeam()
	schedule := neutralGames(6)
	schedule[0].Completed = true

	dist, err := Aggregate(team, schedule, cfg, 5000, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	for wins, p := range dist.WinDistribution {
		if wins < team.Wins || wins > team.Wins+5 {
			assert.Zero(t, p, "impossible win total %d has mass", wins)
		}
	}
	assert.GreaterOrEqual(t, dist.ConfidenceInterval.Lower, team.Wins)
	assert.LessOrEqual(t, dist.ConfidenceInterval.Upper, team.Wins+5)
	assert.LessOrEqual(t, dist.ConfidenceInterval.Lower, dist.ConfidenceInterval.Median)
	assert.LessOrEqual(t, dist.ConfidenceInterval.Median, dist.ConfidenceInterval.Upper)
}

func TestAggregate_EmptyScheduleIsDegenerate(t *testing.T) {
	cfg := collegeConfig(t)
	team := types.TeamStats{
		ID: "undefeated", Name: "Undefeated Tech", Sport: types.SportCollegeFootball,
		Wins: 4, Losses: 0, PointsFor: 125, PointsAgainst: 36,
	}

	dist, err := Aggregate(team, nil, cfg, 1000, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0, 0, 1}, dist.WinDistribution)
	assert.Equal(t, 4.0, dist.ProjectedWins)
	assert.Equal(t, 0.0, dist.ProjectedLosses)
	assert.Equal(t, types.ConfidenceInterval{Lower: 4, Median: 4, Upper: 4}, dist.ConfidenceInterval)
	assert.Equal(t, 0.0, dist.StandardDeviation)
}

func TestAggregate_SameSeedSameDistribution(t *testing.T) {
	cfg := collegeConfig(t)
	team := evenTeam()
	team.RecentForm = []int{1, 1, 0}

	first, err := Aggregate(team, neutralGames(8), cfg, 2000, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	second, err := Aggregate(team, neutralGames(8), cfg, 2000, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAggregate_RejectsBadArguments(t *testing.T) {
	cfg := collegeConfig(t)
	team := evenTeam()

	_, err := Aggregate(team, nil, cfg, 0, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrInvalidSimulationCount)

	_, err = Aggregate(team, nil, cfg, 100, nil)
	assert.ErrorIs(t, err, ErrNilRandomSource)

	empty := types.TeamStats{ID: "new", Sport: types.SportCollegeFootball}
	_, err = Aggregate(empty, nil, cfg, 100, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrEmptySeason)
}

func TestSummarize_PercentilesAndPopulationStdDev(t *testing.T) {
	cfg := collegeConfig(t)
	cfg.MaxGames = 0
	team := types.TeamStats{ID: "wide", Sport: types.SportCollegeFootball}

	// 100 outcomes 0..99 in scrambled order over a 99 game season
	outcomes := rand.New(rand.NewSource(5)).Perm(100)
	probs := make([]float64, 99)
	for i := range probs {
		probs[i] = 0.5
	}

	dist := summarize(team, probs, cfg, outcomes)

	assert.Equal(t, types.ConfidenceInterval{Lower: 5, Median: 50, Upper: 95}, dist.ConfidenceInterval)
	assert.InDelta(t, 49.5, dist.ProjectedWins, 1e-9)
	// Population formula: sqrt((n^2-1)/12), not the n-1 sample estimate
	assert.InDelta(t, math.Sqrt((100*100-1)/12.0), dist.StandardDeviation, 1e-9)
	assert.InDelta(t, 0.5, dist.MeanWinProbability, 1e-12)
}

func TestAggregateParallel_Reproducible(t *testing.T) {
	cfg := collegeConfig(t)
	team := evenTeam()
	ctx := context.Background()

	first, err := AggregateParallel(ctx, team, neutralGames(8), cfg, 10001, 4, 42)
	require.NoError(t, err)
	second, err := AggregateParallel(ctx, team, neutralGames(8), cfg, 10001, 4, 42)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 10001, first.Simulations)
	assert.InDelta(t, 1.0, floats.Sum(first.WinDistribution), 1e-9)

	// Expected wins: 2 + 8*0.65
	assert.InDelta(t, 7.2, first.ProjectedWins, 0.1)
}

func TestAggregateParallel_MoreWorkersThanTrials(t *testing.T) {
	cfg := collegeConfig(t)

	dist, err := AggregateParallel(context.Background(), evenTeam(), neutralGames(3), cfg, 3, 16, 9)
	require.NoError(t, err)
	assert.Equal(t, 3, dist.Simulations)
	assert.InDelta(t, 1.0, floats.Sum(dist.WinDistribution), 1e-9)
}

func TestAggregateParallel_Cancelled(t *testing.T) {
	cfg := collegeConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AggregateParallel(ctx, evenTeam(), neutralGames(8), cfg, 10000, 4, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
