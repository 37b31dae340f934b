package season

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/season-sim/shared/types"
)

// DefaultSimulations is the trial count used when the caller passes zero
const DefaultSimulations = 10000

// seedStride spaces derived seeds so neighbouring workers do not share a stream
const seedStride = 7919

// cancelCheckInterval is how many trials a parallel worker runs between
// context checks
const cancelCheckInterval = 1024

// Distribution is the reduced outcome of N simulated seasons for one team
type Distribution struct {
	TotalGames         int
	RemainingGames     int
	Simulations        int
	WinDistribution    []float64 // index = final win total
	ProjectedWins      float64
	ProjectedLosses    float64
	ConfidenceInterval types.ConfidenceInterval
	StandardDeviation  float64
	MeanWinProbability float64
}

// Aggregate runs SimulateOneSeason simulations times on a single random
// stream and reduces the outcomes. The same seeded rng yields the same
// Distribution.
func Aggregate(team types.TeamStats, schedule []types.ScheduledGame, cfg SportConfig, simulations int, rng RandomSource) (*Distribution, error) {
	probs, err := prepare(team, schedule, cfg, simulations)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, ErrNilRandomSource
	}

	outcomes := make([]int, simulations)
	for i := range outcomes {
		outcomes[i] = playSeason(team.Wins, probs, rng)
	}

	return summarize(team, probs, cfg, outcomes), nil
}

// AggregateParallel splits the trials across workers goroutines. Worker w
// draws from its own stream seeded with seed+(w+1)*seedStride, so the result
// is reproducible for a fixed (seed, workers) pair.
func AggregateParallel(ctx context.Context, team types.TeamStats, schedule []types.ScheduledGame, cfg SportConfig, simulations, workers int, seed int64) (*Distribution, error) {
	probs, err := prepare(team, schedule, cfg, simulations)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	if workers > simulations {
		workers = simulations
	}

	outcomes := make([]int, simulations)
	chunk := simulations / workers
	extra := simulations % workers

	g, gctx := errgroup.WithContext(ctx)
	offset := 0
	for w := 0; w < workers; w++ {
		size := chunk
		if w < extra {
			size++
		}
		part := outcomes[offset : offset+size]
		offset += size
		rng := rand.New(rand.NewSource(seed + int64(w+1)*seedStride))

		g.Go(func() error {
			for i := range part {
				if i%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				part[i] = playSeason(team.Wins, probs, rng)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summarize(team, probs, cfg, outcomes), nil
}

func prepare(team types.TeamStats, schedule []types.ScheduledGame, cfg SportConfig, simulations int) ([]float64, error) {
	if simulations <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSimulationCount, simulations)
	}
	if err := ValidateTeam(team, schedule, cfg); err != nil {
		return nil, err
	}
	return gameProbabilities(team, schedule, cfg), nil
}

func summarize(team types.TeamStats, probs []float64, cfg SportConfig, outcomes []int) *Distribution {
	n := len(outcomes)
	totalGames := team.Wins + team.Losses + len(probs)

	histogram := make([]float64, totalGames+1)
	values := make([]float64, n)
	for i, wins := range outcomes {
		histogram[wins]++
		values[i] = float64(wins)
	}
	for w := range histogram {
		histogram[w] /= float64(n)
	}

	// Population statistics: divide by n, not n-1
	mean, stdDev := stat.PopMeanStdDev(values, nil)

	sorted := make([]int, n)
	copy(sorted, outcomes)
	sort.Ints(sorted)

	return &Distribution{
		TotalGames:      totalGames,
		RemainingGames:  len(probs),
		Simulations:     n,
		WinDistribution: histogram,
		ProjectedWins:   mean,
		ProjectedLosses: float64(totalGames) - mean,
		ConfidenceInterval: types.ConfidenceInterval{
			Lower:  percentile(sorted, 0.05),
			Median: percentile(sorted, 0.50),
			Upper:  percentile(sorted, 0.95),
		},
		StandardDeviation:  stdDev,
		MeanWinProbability: meanWinProbability(team, probs, cfg),
	}
}

// percentile indexes a sorted slice at floor(n*p)
func percentile(sorted []int, p float64) int {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// meanWinProbability averages the per-game estimates. With nothing left to
// play it falls back to the clamped Pythagorean baseline.
func meanWinProbability(team types.TeamStats, probs []float64, cfg SportConfig) float64 {
	if len(probs) == 0 {
		return clampProbability(PythagoreanExpectation(team.PointsFor, team.PointsAgainst, cfg.Exponent))
	}
	return stat.Mean(probs, nil)
}
