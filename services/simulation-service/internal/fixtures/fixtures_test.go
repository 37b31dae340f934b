package fixtures

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/season-sim/services/simulation-service/internal/season"
	"github.com/stitts-dev/season-sim/shared/types"
)

func TestTeams(t *testing.T) {
	for _, sport := range Sports() {
		teams, err := Teams(sport)
		require.NoError(t, err, sport)
		require.NotEmpty(t, teams, sport)

		for _, team := range teams {
			assert.Equal(t, sport, team.Sport)
			assert.NotEmpty(t, team.ID)
		}
	}

	_, err := Teams("cricket")
	assert.ErrorIs(t, err, season.ErrUnknownSport)
}

func TestTeams_ReturnsCopies(t *testing.T) {
	first, err := Teams(types.SportCollegeFootball)
	require.NoError(t, err)
	first[0].Wins = 99
	first[0].RecentForm[0] = 0

	second, err := Teams(types.SportCollegeFootball)
	require.NoError(t, err)
	assert.Equal(t, 6, second[0].Wins)
	assert.Equal(t, 1, second[0].RecentForm[0])
}

func TestRemainingSchedule(t *testing.T) {
	cfg, err := season.DefaultSportTable().Lookup(types.SportProFootball)
	require.NoError(t, err)
	team := types.TeamStats{ID: "x", Sport: types.SportProFootball, Wins: 5, Losses: 4}

	games := RemainingSchedule(team, cfg, rand.New(rand.NewSource(1)))
	require.Len(t, games, 8)
	for i, game := range games {
		if i%2 == 0 {
			assert.Equal(t, types.LocationHome, game.Location)
		} else {
			assert.Equal(t, types.LocationAway, game.Location)
		}
		assert.GreaterOrEqual(t, game.OpponentStrength, 0.3)
		assert.Less(t, game.OpponentStrength, 0.8)
		assert.False(t, game.Completed)
	}

	again := RemainingSchedule(team, cfg, rand.New(rand.NewSource(1)))
	assert.Equal(t, games, again, "same seed, same schedule")

	team.Wins = 17
	team.Losses = 0
	assert.Empty(t, RemainingSchedule(team, cfg, rand.New(rand.NewSource(1))))
}

func TestLeague_RunsThroughEngine(t *testing.T) {
	table := season.DefaultSportTable()
	engine := season.NewEngine(table, season.EngineConfig{Workers: 2, Seed: 11})

	for _, sport := range Sports() {
		teams, schedules, err := League(table, sport, rand.New(rand.NewSource(3)))
		require.NoError(t, err, sport)
		require.Len(t, schedules, len(teams))

		results, err := engine.BatchSimulate(context.Background(), teams, schedules, 200)
		require.NoError(t, err, sport)
		require.Len(t, results, len(teams))
		for i, result := range results {
			assert.Equal(t, teams[i].ID, result.TeamID)
			assert.Equal(t, seasonLength[sport], result.TotalGames)
		}
	}

	_, _, err := League(table, "cricket", rand.New(rand.NewSource(3)))
	assert.ErrorIs(t, err, season.ErrUnknownSport)
}

func TestSeedsDoNotShareStreams(t *testing.T) {
	const base int64 = 42
	const teamStride = 7919

	seen := make(map[int64]string)
	claim := func(seed int64, owner string) {
		if prev, ok := seen[seed]; ok {
			t.Fatalf("seed %d used by %s and %s", seed, prev, owner)
		}
		seen[seed] = owner
	}

	for i := range Sports() {
		league := LeagueSeed(base, i)
		teams, err := Teams(Sports()[i])
		require.NoError(t, err)
		for team := range teams {
			claim(league+int64(team)*teamStride, "engine team")
		}
		claim(ScheduleSeed(league), "schedule")
	}

	assert.Equal(t, base, LeagueSeed(base, 0))
	assert.NotEqual(t,
		rand.New(rand.NewSource(base)).Float64(),
		rand.New(rand.NewSource(ScheduleSeed(base))).Float64(),
		"the schedule stream differs from the first team's trial stream")
}
