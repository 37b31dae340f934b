// Command simulate projects season outcomes from the command line, either for
// the built-in sample leagues or for teams read from a JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/season-sim/services/simulation-service/internal/fixtures"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/season"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/store"
	"github.com/stitts-dev/season-sim/shared/pkg/database"
	"github.com/stitts-dev/season-sim/shared/pkg/logger"
	"github.com/stitts-dev/season-sim/shared/types"
)

// League is the JSON input accepted by -input
type League struct {
	Teams     []types.TeamStats                `json:"teams"`
	Schedules map[string][]types.ScheduledGame `json:"schedules"`
}

type options struct {
	sport       string
	input       string
	simulations int
	seed        int64
	workers     int
	sportsPath  string
	databaseURL string
	asJSON      bool
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.sport, "sport", "", "Sample league to project (default: all sample leagues)")
	fs.StringVar(&opts.input, "input", "", "JSON file with teams and schedules; overrides -sport")
	fs.IntVar(&opts.simulations, "n", season.DefaultSimulations, "Simulations per team")
	fs.Int64Var(&opts.seed, "seed", 0, "Random seed (0 uses the clock)")
	fs.IntVar(&opts.workers, "workers", 0, "Teams simulated concurrently (0 uses every CPU)")
	fs.StringVar(&opts.sportsPath, "sports", "", "YAML file overriding sport constants")
	fs.StringVar(&opts.databaseURL, "db", "", "Database URL to store the run in (sqlite://path or postgres URL)")
	fs.BoolVar(&opts.asJSON, "json", false, "Print results as JSON")
	fs.BoolVar(&opts.verbose, "v", false, "Log batch progress to stderr")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.simulations <= 0 {
		return opts, fmt.Errorf("-n must be positive, got %d", opts.simulations)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = "info"
	}
	log := logger.InitLogger(level, false)
	log.SetOutput(stderr)

	sports, err := season.LoadSportTable(opts.sportsPath)
	if err != nil {
		return err
	}

	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	leagues, err := loadLeagues(opts, sports, seed)
	if err != nil {
		return err
	}

	var results []types.SimulationResult
	for i, league := range leagues {
		engine := season.NewEngine(sports, season.EngineConfig{
			Workers: opts.workers,
			Seed:    fixtures.LeagueSeed(seed, i),
			Logger:  log,
		})
		batch, err := engine.BatchSimulate(ctx, league.Teams, league.Schedules, opts.simulations)
		if err != nil {
			return err
		}
		results = append(results, batch...)
	}

	if opts.databaseURL != "" {
		if err := saveRun(ctx, opts.databaseURL, results, opts.simulations, seed, log); err != nil {
			return err
		}
	}

	if opts.asJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(types.SimulationBatch{
			Results:     results,
			Simulations: opts.simulations,
			Seed:        seed,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return printTable(stdout, results, opts.simulations, seed)
}

func loadLeagues(opts options, sports *season.SportTable, seed int64) ([]League, error) {
	if opts.input != "" {
		data, err := os.ReadFile(opts.input)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", opts.input, err)
		}
		var league League
		if err := json.Unmarshal(data, &league); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", opts.input, err)
		}
		if len(league.Teams) == 0 {
			return nil, fmt.Errorf("%s has no teams", opts.input)
		}
		return []League{league}, nil
	}

	selected := fixtures.Sports()
	if opts.sport != "" {
		selected = []types.Sport{types.Sport(opts.sport)}
	}

	leagues := make([]League, 0, len(selected))
	for i, sport := range selected {
		rng := rand.New(rand.NewSource(fixtures.ScheduleSeed(fixtures.LeagueSeed(seed, i))))
		teams, schedules, err := fixtures.League(sports, sport, rng)
		if err != nil {
			return nil, err
		}
		leagues = append(leagues, League{Teams: teams, Schedules: schedules})
	}
	return leagues, nil
}

func saveRun(ctx context.Context, databaseURL string, results []types.SimulationResult, simulations int, seed int64, log *logrus.Logger) error {
	db, err := database.NewConnection(databaseURL, false)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := store.NewRunRepository(db, log)
	if err := repo.AutoMigrate(); err != nil {
		return err
	}

	run, err := store.NewRun(uuid.New(), results, simulations, seed, store.SourceCLI)
	if err != nil {
		return err
	}
	if err := repo.SaveRun(ctx, run); err != nil {
		return err
	}
	logger.WithSimulationContext(run.ID.String(), "").WithField("teams", run.TeamCount).Info("Stored simulation run")
	return nil
}

func printTable(w io.Writer, results []types.SimulationResult, simulations int, seed int64) error {
	fmt.Fprintf(w, "%d simulations per team, seed %d\n\n", simulations, seed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Team\tSport\tRecord\tLeft\tProj W\t90% CI\tPlayoff %\tDivision %\tTitle %\tPyth %\t")
	fmt.Fprintln(tw, strings.Repeat("-\t", 10))
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%d\t%.1f\t%d-%d\t%.1f\t%.1f\t%.1f\t%.1f\t\n",
			r.TeamName, r.Sport,
			r.CurrentWins, r.CurrentLosses, r.RemainingGames,
			r.ProjectedWins,
			r.ConfidenceInterval.Lower, r.ConfidenceInterval.Upper,
			r.PlayoffProbability, r.DivisionWinProbability, r.ChampionshipProbability,
			r.Metadata.PythagoreanExpectation,
		)
	}
	return tw.Flush()
}
