package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stitts-dev/season-sim/shared/types"
)

// Run sources
const (
	SourceAPI       = "api"
	SourceScheduler = "scheduler"
	SourceCLI       = "cli"
)

// SimulationRun is one persisted batch
type SimulationRun struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Simulations int       `gorm:"not null" json:"simulations"`
	Seed        int64     `json:"seed"`
	TeamCount   int       `gorm:"not null" json:"team_count"`
	Source      string    `gorm:"size:20;not null;index" json:"source"`
	UserID      *string   `gorm:"size:100;index" json:"user_id,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`

	// Relationships
	Projections []TeamProjection `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"projections,omitempty"`
}

// TeamProjection is one team's result within a run
type TeamProjection struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	RunID    uuid.UUID `gorm:"type:uuid;not null;index" json:"run_id"`
	Position int       `gorm:"not null" json:"position"`

	TeamID         string `gorm:"size:100;not null;index" json:"team_id"`
	TeamName       string `gorm:"size:200" json:"team_name"`
	Sport          string `gorm:"size:50;not null" json:"sport"`
	CurrentWins    int    `json:"current_wins"`
	CurrentLosses  int    `json:"current_losses"`
	TotalGames     int    `json:"total_games"`
	RemainingGames int    `json:"remaining_games"`

	ProjectedWins           float64 `json:"projected_wins"`
	ProjectedLosses         float64 `json:"projected_losses"`
	PlayoffProbability      float64 `json:"playoff_probability"`
	DivisionWinProbability  float64 `json:"division_win_probability"`
	ChampionshipProbability float64 `json:"championship_probability"`

	CILower  int `gorm:"column:ci_lower" json:"ci_lower"`
	CIMedian int `gorm:"column:ci_median" json:"ci_median"`
	CIUpper  int `gorm:"column:ci_upper" json:"ci_upper"`

	PythagoreanExpectation float64        `json:"pythagorean_expectation"`
	MeanWinProbability     float64        `json:"mean_win_probability"`
	StandardDeviation      float64        `json:"standard_deviation"`
	WinDistribution        datatypes.JSON `json:"win_distribution"`
	SimulatedAt            time.Time      `json:"simulated_at"`
}

func (SimulationRun) TableName() string {
	return "simulation_runs"
}

func (TeamProjection) TableName() string {
	return "team_projections"
}

// BeforeCreate assigns an id to runs created without one
func (r *SimulationRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// NewRun builds a run record from engine results
func NewRun(id uuid.UUID, results []types.SimulationResult, simulations int, seed int64, source string) (*SimulationRun, error) {
	run := &SimulationRun{
		ID:          id,
		Simulations: simulations,
		Seed:        seed,
		TeamCount:   len(results),
		Source:      source,
		Projections: make([]TeamProjection, len(results)),
	}

	for i, result := range results {
		distribution, err := json.Marshal(result.WinDistribution)
		if err != nil {
			return nil, err
		}
		run.Projections[i] = TeamProjection{
			RunID:                   id,
			Position:                i,
			TeamID:                  result.TeamID,
			TeamName:                result.TeamName,
			Sport:                   string(result.Sport),
			CurrentWins:             result.CurrentWins,
			CurrentLosses:           result.CurrentLosses,
			TotalGames:              result.TotalGames,
			RemainingGames:          result.RemainingGames,
			ProjectedWins:           result.ProjectedWins,
			ProjectedLosses:         result.ProjectedLosses,
			PlayoffProbability:      result.PlayoffProbability,
			DivisionWinProbability:  result.DivisionWinProbability,
			ChampionshipProbability: result.ChampionshipProbability,
			CILower:                 result.ConfidenceInterval.Lower,
			CIMedian:                result.ConfidenceInterval.Median,
			CIUpper:                 result.ConfidenceInterval.Upper,
			PythagoreanExpectation:  result.Metadata.PythagoreanExpectation,
			MeanWinProbability:      result.Metadata.MeanWinProbability,
			StandardDeviation:       result.Metadata.StandardDeviation,
			WinDistribution:         datatypes.JSON(distribution),
			SimulatedAt:             result.Metadata.Timestamp,
		}
	}
	return run, nil
}

// Results converts the stored projections back into engine results, in the
// order they were saved
func (r *SimulationRun) Results() ([]types.SimulationResult, error) {
	results := make([]types.SimulationResult, len(r.Projections))
	for i, p := range r.Projections {
		var distribution []float64
		if len(p.WinDistribution) > 0 {
			if err := json.Unmarshal(p.WinDistribution, &distribution); err != nil {
				return nil, err
			}
		}
		results[i] = types.SimulationResult{
			TeamID:                  p.TeamID,
			TeamName:                p.TeamName,
			Sport:                   types.Sport(p.Sport),
			CurrentWins:             p.CurrentWins,
			CurrentLosses:           p.CurrentLosses,
			TotalGames:              p.TotalGames,
			RemainingGames:          p.RemainingGames,
			ProjectedWins:           p.ProjectedWins,
			ProjectedLosses:         p.ProjectedLosses,
			WinDistribution:         distribution,
			PlayoffProbability:      p.PlayoffProbability,
			DivisionWinProbability:  p.DivisionWinProbability,
			ChampionshipProbability: p.ChampionshipProbability,
			ConfidenceInterval: types.ConfidenceInterval{
				Lower:  p.CILower,
				Median: p.CIMedian,
				Upper:  p.CIUpper,
			},
			Metadata: types.SimulationMetadata{
				PythagoreanExpectation: p.PythagoreanExpectation,
				MeanWinProbability:     p.MeanWinProbability,
				StandardDeviation:      p.StandardDeviation,
				Timestamp:              p.SimulatedAt.UTC(),
				SimulationCount:        r.Simulations,
			},
		}
	}
	return results, nil
}
