// Package fixtures provides sample leagues for demos, the CLI, and the
// background projection job.
package fixtures

import (
	"fmt"

	"github.com/stitts-dev/season-sim/services/simulation-service/internal/season"
	"github.com/stitts-dev/season-sim/shared/types"
)

// Regular season length per sport; the sport table's MaxGames leaves room for
// postseason games
var seasonLength = map[types.Sport]int{
	types.SportCollegeFootball: 12,
	types.SportProFootball:     17,
	types.SportBaseball:        162,
}

const (
	minOpponentStrength   = 0.3
	opponentStrengthRange = 0.5

	// scheduleSalt moves schedule generation off the engine's per-team seeds
	scheduleSalt int64 = 0x2545F4914F6CDD1D
	// leagueStride separates leagues by more than any roster's team seeds
	leagueStride int64 = 1_000_003
)

var rosters = map[types.Sport][]types.TeamStats{
	types.SportCollegeFootball: {
		{ID: "cfb-georgia", Name: "Georgia", Wins: 6, Losses: 0, PointsFor: 214, PointsAgainst: 88, RecentForm: []int{1, 1, 1, 1, 1}, StrengthOfSchedule: types.Float64(0.62)},
		{ID: "cfb-michigan", Name: "Michigan", Wins: 5, Losses: 1, PointsFor: 198, PointsAgainst: 102, RecentForm: []int{1, 1, 0, 1, 1}},
		{ID: "cfb-texas", Name: "Texas", Wins: 5, Losses: 1, PointsFor: 221, PointsAgainst: 131, RecentForm: []int{1, 0, 1, 1, 1}, StrengthOfSchedule: types.Float64(0.58)},
		{ID: "cfb-oregon", Name: "Oregon", Wins: 4, Losses: 2, PointsFor: 205, PointsAgainst: 140, RecentForm: []int{0, 1, 1, 0, 1}, InjuryImpact: types.Float64(0.92)},
		{ID: "cfb-iowa", Name: "Iowa", Wins: 3, Losses: 3, PointsFor: 120, PointsAgainst: 118, RecentForm: []int{0, 1, 0, 1, 0}},
		{ID: "cfb-rice", Name: "Rice", Wins: 1, Losses: 5, PointsFor: 96, PointsAgainst: 189, RecentForm: []int{0, 0, 1, 0, 0}, StrengthOfSchedule: types.Float64(0.35)},
	},
	types.SportProFootball: {
		{ID: "nfl-kc", Name: "Kansas City", Wins: 7, Losses: 2, PointsFor: 231, PointsAgainst: 170, RecentForm: []int{1, 1, 0, 1, 1}},
		{ID: "nfl-buf", Name: "Buffalo", Wins: 6, Losses: 3, PointsFor: 245, PointsAgainst: 181, RecentForm: []int{1, 0, 1, 1, 0}},
		{ID: "nfl-det", Name: "Detroit", Wins: 8, Losses: 1, PointsFor: 262, PointsAgainst: 160, RecentForm: []int{1, 1, 1, 1, 1}, StrengthOfSchedule: types.Float64(0.55)},
		{ID: "nfl-nyj", Name: "New York", Wins: 3, Losses: 6, PointsFor: 170, PointsAgainst: 205, RecentForm: []int{0, 0, 1, 0, 0}, InjuryImpact: types.Float64(0.85)},
		{ID: "nfl-car", Name: "Carolina", Wins: 2, Losses: 7, PointsFor: 140, PointsAgainst: 250, RecentForm: []int{0, 1, 0, 0, 0}},
	},
	types.SportBaseball: {
		{ID: "mlb-lad", Name: "Los Angeles", Wins: 82, Losses: 58, PointsFor: 720, PointsAgainst: 590, RecentForm: []int{1, 1, 0, 1, 1, 0, 1, 1, 1, 0}},
		{ID: "mlb-nyy", Name: "New York", Wins: 80, Losses: 60, PointsFor: 705, PointsAgainst: 610, RecentForm: []int{1, 0, 1, 1, 0, 1, 0, 1, 1, 1}},
		{ID: "mlb-bal", Name: "Baltimore", Wins: 77, Losses: 63, PointsFor: 680, PointsAgainst: 620, RecentForm: []int{0, 1, 1, 0, 1, 0, 1, 0, 1, 1}},
		{ID: "mlb-chw", Name: "Chicago", Wins: 36, Losses: 104, PointsFor: 450, PointsAgainst: 760, RecentForm: []int{0, 0, 0, 1, 0, 0, 0, 1, 0, 0}, InjuryImpact: types.Float64(0.9)},
	},
}

// Teams returns a copy of the sample roster for a sport
func Teams(sport types.Sport) ([]types.TeamStats, error) {
	roster, ok := rosters[sport]
	if !ok {
		return nil, fmt.Errorf("%w: no fixture roster for %q", season.ErrUnknownSport, sport)
	}

	teams := make([]types.TeamStats, len(roster))
	for i, team := range roster {
		team.Sport = sport
		team.RecentForm = append([]int(nil), team.RecentForm...)
		teams[i] = team
	}
	return teams, nil
}

// RemainingSchedule fills the rest of the regular season with synthetic
// opponents, alternating home and away
func RemainingSchedule(team types.TeamStats, cfg season.SportConfig, rng season.RandomSource) []types.ScheduledGame {
	length, ok := seasonLength[cfg.Sport]
	if !ok {
		length = cfg.MaxGames
	}

	remaining := length - team.Wins - team.Losses
	if remaining <= 0 {
		return nil
	}

	games := make([]types.ScheduledGame, remaining)
	for i := range games {
		location := types.LocationHome
		if i%2 == 1 {
			location = types.LocationAway
		}
		games[i] = types.ScheduledGame{
			Opponent:         fmt.Sprintf("%s opponent %d", cfg.DisplayName, i+1),
			Location:         location,
			OpponentStrength: minOpponentStrength + rng.Float64()*opponentStrengthRange,
		}
	}
	return games
}

// League returns the sample roster for a sport with a generated schedule per
// team, ready for Engine.BatchSimulate
func League(sports *season.SportTable, sport types.Sport, rng season.RandomSource) ([]types.TeamStats, map[string][]types.ScheduledGame, error) {
	cfg, err := sports.Lookup(sport)
	if err != nil {
		return nil, nil, err
	}
	teams, err := Teams(sport)
	if err != nil {
		return nil, nil, err
	}

	schedules := make(map[string][]types.ScheduledGame, len(teams))
	for _, team := range teams {
		schedules[team.ID] = RemainingSchedule(team, cfg, rng)
	}
	return teams, schedules, nil
}

// LeagueSeed is the engine seed for the index-th league of a run that
// simulates several leagues from one base seed
func LeagueSeed(seed int64, index int) int64 {
	return seed + int64(index)*leagueStride
}

// ScheduleSeed is the seed for generating a league's schedules given the
// seed its engine runs with
func ScheduleSeed(leagueSeed int64) int64 {
	return leagueSeed ^ scheduleSalt
}

// Sports lists the sports with a sample roster
func Sports() []types.Sport {
	return []types.Sport{types.SportCollegeFootball, types.SportProFootball, types.SportBaseball}
}
