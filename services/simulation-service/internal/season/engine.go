package season

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stitts-dev/season-sim/shared/types"
)

// EngineConfig controls batch parallelism and seeding
type EngineConfig struct {
	Workers      int   // teams simulated concurrently; <= 0 uses runtime.NumCPU()
	TrialWorkers int   // goroutines per team; <= 1 runs trials on one stream
	Seed         int64 // 0 derives a base seed from the clock per batch
	Logger       *logrus.Logger
	Clock        func() time.Time
}

// Engine runs the full projection pipeline over a batch of teams
type Engine struct {
	sports *SportTable
	config EngineConfig
	logger *logrus.Logger
	clock  func() time.Time
}

// NewEngine creates a new batch engine. A nil table uses the built-in sports.
func NewEngine(sports *SportTable, config EngineConfig) *Engine {
	if sports == nil {
		sports = DefaultSportTable()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		sports: sports,
		config: config,
		logger: config.Logger,
		clock:  clock,
	}
}

// Sports returns the table the engine resolves sports against
func (e *Engine) Sports() *SportTable {
	return e.sports
}

// BatchSimulate projects every team in input order. A team missing from
// schedules has no remaining games. simulations == 0 means DefaultSimulations.
func (e *Engine) BatchSimulate(
	ctx context.Context,
	teams []types.TeamStats,
	schedules map[string][]types.ScheduledGame,
	simulations int,
) ([]types.SimulationResult, error) {
	return e.BatchSimulateWithProgress(ctx, teams, schedules, simulations, nil)
}

// BatchSimulateWithProgress is BatchSimulate with a non-blocking progress
// update sent after each team completes
func (e *Engine) BatchSimulateWithProgress(
	ctx context.Context,
	teams []types.TeamStats,
	schedules map[string][]types.ScheduledGame,
	simulations int,
	progressChan chan<- types.ProgressUpdate,
) ([]types.SimulationResult, error) {
	if simulations == 0 {
		simulations = DefaultSimulations
	}
	if simulations < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSimulationCount, simulations)
	}

	// Validate everything before any trial runs
	configs := make([]SportConfig, len(teams))
	for i, team := range teams {
		cfg, err := e.sports.Lookup(team.Sport)
		if err != nil {
			return nil, &ValidationError{TeamID: team.ID, Field: "sport", Reason: "no constants configured", Err: err}
		}
		if err := ValidateTeam(team, schedules[team.ID], cfg); err != nil {
			return nil, err
		}
		configs[i] = cfg
	}

	startTime := e.clock()
	baseSeed := e.baseSeed()

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"teams":         len(teams),
			"simulations":   simulations,
			"workers":       e.config.Workers,
			"trial_workers": e.config.TrialWorkers,
			"seed":          baseSeed,
		}).Info("Starting season simulation batch")
	}

	results := make([]types.SimulationResult, len(teams))
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for i := range teams {
		i := i
		if err := gctx.Err(); err != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			team := teams[i]
			result, err := e.project(gctx, team, schedules[team.ID], configs[i], simulations, baseSeed+int64(i)*seedStride)
			if err != nil {
				return fmt.Errorf("team %q: %w", team.ID, err)
			}
			results[i] = *result

			if e.logger != nil {
				e.logger.WithFields(logrus.Fields{
					"team_id":        team.ID,
					"sport":          team.Sport,
					"projected_wins": result.ProjectedWins,
					"playoff_pct":    result.PlayoffProbability,
				}).Debug("Team projection complete")
			}

			done := completed.Add(1)
			sendProgress(progressChan, types.ProgressUpdate{
				Type:        "simulation",
				Progress:    float64(done) / float64(len(teams)),
				Message:     fmt.Sprintf("Simulated %s (%d/%d)", team.Name, done, len(teams)),
				CurrentStep: team.ID,
				TotalSteps:  len(teams),
				Timestamp:   e.clock(),
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"teams":          len(teams),
			"simulations":    simulations,
			"execution_time": e.clock().Sub(startTime),
		}).Info("Season simulation batch completed")
	}

	return results, nil
}

// SimulateTeam projects a single team
func (e *Engine) SimulateTeam(
	ctx context.Context,
	team types.TeamStats,
	schedule []types.ScheduledGame,
	simulations int,
) (*types.SimulationResult, error) {
	results, err := e.BatchSimulate(ctx, []types.TeamStats{team}, map[string][]types.ScheduledGame{team.ID: schedule}, simulations)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (e *Engine) project(
	ctx context.Context,
	team types.TeamStats,
	schedule []types.ScheduledGame,
	cfg SportConfig,
	simulations int,
	seed int64,
) (*types.SimulationResult, error) {
	if e.config.TrialWorkers <= 1 {
		return Project(team, schedule, cfg, simulations, rand.New(rand.NewSource(seed)), e.clock())
	}

	dist, err := AggregateParallel(ctx, team, schedule, cfg, simulations, e.config.TrialWorkers, seed)
	if err != nil {
		return nil, err
	}
	return BuildResult(team, cfg, dist, e.clock()), nil
}

func (e *Engine) baseSeed() int64 {
	if e.config.Seed != 0 {
		return e.config.Seed
	}
	return e.clock().UnixNano()
}

// Project is the single-team pipeline on a caller-supplied random source:
// aggregate, then derive thresholds and metadata
func Project(
	team types.TeamStats,
	schedule []types.ScheduledGame,
	cfg SportConfig,
	simulations int,
	rng RandomSource,
	now time.Time,
) (*types.SimulationResult, error) {
	dist, err := Aggregate(team, schedule, cfg, simulations, rng)
	if err != nil {
		return nil, err
	}
	return BuildResult(team, cfg, dist, now), nil
}

// BuildResult assembles the public result from a reduced distribution
func BuildResult(team types.TeamStats, cfg SportConfig, dist *Distribution, now time.Time) *types.SimulationResult {
	return &types.SimulationResult{
		TeamID:                  team.ID,
		TeamName:                team.Name,
		Sport:                   team.Sport,
		CurrentWins:             team.Wins,
		CurrentLosses:           team.Losses,
		TotalGames:              dist.TotalGames,
		RemainingGames:          dist.RemainingGames,
		ProjectedWins:           dist.ProjectedWins,
		ProjectedLosses:         dist.ProjectedLosses,
		WinDistribution:         dist.WinDistribution,
		PlayoffProbability:      ThresholdProbability(dist.WinDistribution, dist.TotalGames, cfg.PlayoffFraction),
		DivisionWinProbability:  ThresholdProbability(dist.WinDistribution, dist.TotalGames, cfg.DivisionFraction),
		ChampionshipProbability: ThresholdProbability(dist.WinDistribution, dist.TotalGames, cfg.ChampionshipFraction),
		ConfidenceInterval:      dist.ConfidenceInterval,
		Metadata: types.SimulationMetadata{
			PythagoreanExpectation: roundPercent(PythagoreanExpectation(team.PointsFor, team.PointsAgainst, cfg.Exponent)),
			MeanWinProbability:     dist.MeanWinProbability,
			StandardDeviation:      dist.StandardDeviation,
			Timestamp:              now.UTC(),
			SimulationCount:        dist.Simulations,
		},
	}
}

func sendProgress(progressChan chan<- types.ProgressUpdate, update types.ProgressUpdate) {
	if progressChan == nil {
		return
	}
	select {
	case progressChan <- update:
	default:
		// Don't block the batch on a slow consumer
	}
}
