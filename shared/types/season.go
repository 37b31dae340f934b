package types

import "time"

// Location is where a scheduled game is played relative to the simulated team
type Location string

const (
	LocationHome    Location = "home"
	LocationAway    Location = "away"
	LocationNeutral Location = "neutral"
)

// TeamStats is a team's season-to-date record. Optional fields are pointers;
// nil means "not supplied" and is treated as neutral by the win model.
type TeamStats struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Sport              Sport    `json:"sport"`
	Wins               int      `json:"wins"`
	Losses             int      `json:"losses"`
	PointsFor          float64  `json:"points_for"`
	PointsAgainst      float64  `json:"points_against"`
	RecentForm         []int    `json:"recent_form,omitempty"` // 0/1, most recent last
	StrengthOfSchedule *float64 `json:"strength_of_schedule,omitempty"`
	InjuryImpact       *float64 `json:"injury_impact,omitempty"`
}

// ScheduledGame is one contest on a team's schedule
type ScheduledGame struct {
	Opponent         string   `json:"opponent"`
	Location         Location `json:"location"`
	OpponentStrength float64  `json:"opponent_strength"`
	Completed        bool     `json:"completed"`
}

// ConfidenceInterval holds the 5th/50th/95th percentile simulated win totals
type ConfidenceInterval struct {
	Lower  int `json:"lower"`
	Median int `json:"median"`
	Upper  int `json:"upper"`
}

// SimulationMetadata describes how a SimulationResult was produced
type SimulationMetadata struct {
	PythagoreanExpectation float64   `json:"pythagorean_expectation"` // percent
	MeanWinProbability     float64   `json:"mean_win_probability"`
	StandardDeviation      float64   `json:"standard_deviation"`
	Timestamp              time.Time `json:"timestamp"`
	SimulationCount        int       `json:"simulation_count"`
}

// SimulationResult is the projected season outcome for one team
type SimulationResult struct {
	TeamID                  string             `json:"team_id"`
	TeamName                string             `json:"team_name"`
	Sport                   Sport              `json:"sport"`
	CurrentWins             int                `json:"current_wins"`
	CurrentLosses           int                `json:"current_losses"`
	TotalGames              int                `json:"total_games"`
	RemainingGames          int                `json:"remaining_games"`
	ProjectedWins           float64            `json:"projected_wins"`
	ProjectedLosses         float64            `json:"projected_losses"`
	WinDistribution         []float64          `json:"win_distribution"`
	PlayoffProbability      float64            `json:"playoff_probability"`
	DivisionWinProbability  float64            `json:"division_win_probability"`
	ChampionshipProbability float64            `json:"championship_probability"`
	ConfidenceInterval      ConfidenceInterval `json:"confidence_interval"`
	Metadata                SimulationMetadata `json:"metadata"`
}

// Float64 returns a pointer to v, for populating optional TeamStats fields
func Float64(v float64) *float64 {
	return &v
}

// SimulationBatch is a completed batch as cached and served by the API
type SimulationBatch struct {
	ID              string             `json:"id"`
	Results         []SimulationResult `json:"results"`
	Simulations     int                `json:"simulations"`
	Seed            int64              `json:"seed"`
	ExecutionTimeMs int64              `json:"execution_time_ms"`
	CreatedAt       time.Time          `json:"created_at"`
}
