package season

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/season-sim/shared/types"
)

func TestDefaultSportTable(t *testing.T) {
	table := DefaultSportTable()

	all := table.All()
	require.Len(t, all, 3)
	assert.Equal(t, types.SportCollegeFootball, all[0].Sport)
	assert.Equal(t, types.SportProFootball, all[1].Sport)
	assert.Equal(t, types.SportBaseball, all[2].Sport)

	baseball, err := table.Lookup(types.SportBaseball)
	require.NoError(t, err)
	assert.Equal(t, 1.83, baseball.Exponent)

	for _, cfg := range all {
		assert.NoError(t, cfg.Validate(), cfg.Sport)
		assert.GreaterOrEqual(t, cfg.ChampionshipFraction, cfg.PlayoffFraction, cfg.Sport)
	}
}

func TestSportTable_LookupUnknown(t *testing.T) {
	_, err := DefaultSportTable().Lookup("curling")
	assert.ErrorIs(t, err, ErrUnknownSport)
	assert.Contains(t, err.Error(), "curling")
}

func TestParseSportTable_OverlaysDefaults(t *testing.T) {
	data := []byte(`
sports:
  - sport: baseball
    display_name: Baseball (short season)
    exponent: 1.83
    home_advantage: 0.04
    playoff_fraction: 0.55
    division_fraction: 0.65
    championship_fraction: 0.6
    max_games: 60
  - sport: pro-basketball
    display_name: Pro Basketball
    exponent: 13.91
    home_advantage: 0.05
    playoff_fraction: 0.5
    division_fraction: 0.6
    championship_fraction: 0.7
    max_games: 82
`)

	table, err := ParseSportTable(data)
	require.NoError(t, err)

	all := table.All()
	require.Len(t, all, 4)
	assert.Equal(t, types.Sport("pro-basketball"), all[3].Sport)

	baseball, err := table.Lookup(types.SportBaseball)
	require.NoError(t, err)
	assert.Equal(t, 60, baseball.MaxGames)
	assert.Equal(t, 0.55, baseball.PlayoffFraction)

	college, err := table.Lookup(types.SportCollegeFootball)
	require.NoError(t, err)
	assert.Equal(t, 2.37, college.Exponent, "untouched sports keep built-in constants")
}

func TestParseSportTable_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{
			name:  "championship below playoff",
			data:  "sports:\n  - {sport: x, exponent: 2, home_advantage: 0.05, playoff_fraction: 0.8, division_fraction: 0.6, championship_fraction: 0.7}\n",
			field: "sports[x].championship_fraction",
		},
		{
			name:  "zero exponent",
			data:  "sports:\n  - {sport: x, exponent: 0, home_advantage: 0.05, playoff_fraction: 0.5, division_fraction: 0.6, championship_fraction: 0.7}\n",
			field: "sports[x].exponent",
		},
		{
			name:  "fraction above one",
			data:  "sports:\n  - {sport: x, exponent: 2, home_advantage: 0.05, playoff_fraction: 0.5, division_fraction: 1.2, championship_fraction: 0.7}\n",
			field: "sports[x].division_fraction",
		},
		{
			name:  "home advantage too large",
			data:  "sports:\n  - {sport: x, exponent: 2, home_advantage: 0.5, playoff_fraction: 0.5, division_fraction: 0.6, championship_fraction: 0.7}\n",
			field: "sports[x].home_advantage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSportTable([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSportConfig)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := ParseSportTable([]byte("sports: [unterminated"))
	assert.Error(t, err)
}

func TestLoadSportTable(t *testing.T) {
	table, err := LoadSportTable("")
	require.NoError(t, err)
	assert.Len(t, table.All(), 3)

	path := filepath.Join(t.TempDir(), "sports.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sports:
  - sport: pro-football
    exponent: 2.5
    home_advantage: 0.05
    playoff_fraction: 0.5625
    division_fraction: 0.65
    championship_fraction: 0.75
    max_games: 17
`), 0o600))

	table, err = LoadSportTable(path)
	require.NoError(t, err)
	pro, err := table.Lookup(types.SportProFootball)
	require.NoError(t, err)
	assert.Equal(t, 2.5, pro.Exponent)

	_, err = LoadSportTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSportTable_ShippedConfig(t *testing.T) {
	table, err := LoadSportTable(filepath.Join("..", "..", "configs", "sports.yaml"))
	require.NoError(t, err)

	basketball, err := table.Lookup("pro-basketball")
	require.NoError(t, err)
	assert.Equal(t, 13.91, basketball.Exponent)
	assert.Len(t, table.All(), 4)
}
