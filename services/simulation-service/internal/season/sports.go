package season

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stitts-dev/season-sim/shared/types"
)

// SportConfig holds the policy constants for one league category
type SportConfig struct {
	Sport                types.Sport `yaml:"sport" json:"sport"`
	DisplayName          string      `yaml:"display_name" json:"display_name"`
	Exponent             float64     `yaml:"exponent" json:"exponent"`
	HomeAdvantage        float64     `yaml:"home_advantage" json:"home_advantage"`
	PlayoffFraction      float64     `yaml:"playoff_fraction" json:"playoff_fraction"`
	DivisionFraction     float64     `yaml:"division_fraction" json:"division_fraction"`
	ChampionshipFraction float64     `yaml:"championship_fraction" json:"championship_fraction"`
	MaxGames             int         `yaml:"max_games" json:"max_games"` // 0 = no limit
}

// Validate checks that the constants describe a usable sport
func (c SportConfig) Validate() error {
	invalid := func(field, reason string) error {
		return &ValidationError{Field: fmt.Sprintf("sports[%s].%s", c.Sport, field), Reason: reason, Err: ErrInvalidSportConfig}
	}

	if c.Sport == "" {
		return invalid("sport", "name is required")
	}
	if !isFinite(c.Exponent) || c.Exponent <= 0 {
		return invalid("exponent", "must be a positive number")
	}
	if !isFinite(c.HomeAdvantage) || c.HomeAdvantage < 0 || c.HomeAdvantage >= 0.5 {
		return invalid("home_advantage", "must be in [0, 0.5)")
	}
	fractions := []struct {
		field string
		value float64
	}{
		{"playoff_fraction", c.PlayoffFraction},
		{"division_fraction", c.DivisionFraction},
		{"championship_fraction", c.ChampionshipFraction},
	}
	for _, f := range fractions {
		if !isFinite(f.value) || f.value <= 0 || f.value > 1 {
			return invalid(f.field, "must be in (0, 1]")
		}
	}
	if c.ChampionshipFraction < c.PlayoffFraction {
		return invalid("championship_fraction", "must not be below playoff_fraction")
	}
	if c.MaxGames < 0 {
		return invalid("max_games", "must not be negative")
	}
	return nil
}

// Built-in sport constants. Win fractions assume the regular season length of
// each league (e.g. 9 of 16 pro football games, 85 of 162 baseball games).
// MaxGames is the longest possible season including postseason games.
var defaultSports = []SportConfig{
	{
		Sport:                types.SportCollegeFootball,
		DisplayName:          "College Football",
		Exponent:             2.37,
		HomeAdvantage:        0.08,
		PlayoffFraction:      0.75,
		DivisionFraction:     0.65,
		ChampionshipFraction: 0.85,
		MaxGames:             17,
	},
	{
		Sport:                types.SportProFootball,
		DisplayName:          "Pro Football",
		Exponent:             2.37,
		HomeAdvantage:        0.06,
		PlayoffFraction:      0.5625,
		DivisionFraction:     0.65,
		ChampionshipFraction: 0.75,
		MaxGames:             21,
	},
	{
		Sport:                types.SportBaseball,
		DisplayName:          "Baseball",
		Exponent:             1.83,
		HomeAdvantage:        0.04,
		PlayoffFraction:      0.525,
		DivisionFraction:     0.65,
		ChampionshipFraction: 0.60,
		MaxGames:             184,
	},
}

// SportTable resolves a sport to its constants
type SportTable struct {
	sports map[types.Sport]SportConfig
	order  []types.Sport
}

// NewSportTable builds a table from the given configs. Later entries replace
// earlier entries for the same sport.
func NewSportTable(configs ...SportConfig) (*SportTable, error) {
	table := &SportTable{sports: make(map[types.Sport]SportConfig, len(configs))}
	for _, cfg := range configs {
		if err := table.put(cfg); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// DefaultSportTable returns the built-in college football, pro football and
// baseball constants
func DefaultSportTable() *SportTable {
	table, err := NewSportTable(defaultSports...)
	if err != nil {
		panic(fmt.Sprintf("built-in sport table is invalid: %v", err))
	}
	return table
}

type sportFile struct {
	Sports []SportConfig `yaml:"sports"`
}

// ParseSportTable overlays the sports listed in a YAML document onto the
// built-in table
func ParseSportTable(data []byte) (*SportTable, error) {
	var file sportFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sport table: %w", err)
	}

	table := DefaultSportTable()
	for _, cfg := range file.Sports {
		if err := table.put(cfg); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// LoadSportTable reads a YAML sport table from disk. An empty path returns the
// built-in table.
func LoadSportTable(path string) (*SportTable, error) {
	if path == "" {
		return DefaultSportTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sport table %s: %w", path, err)
	}
	return ParseSportTable(data)
}

// Lookup returns the constants for a sport
func (t *SportTable) Lookup(sport types.Sport) (SportConfig, error) {
	cfg, ok := t.sports[sport]
	if !ok {
		return SportConfig{}, fmt.Errorf("%w: %q", ErrUnknownSport, sport)
	}
	return cfg, nil
}

// All returns every configured sport in insertion order
func (t *SportTable) All() []SportConfig {
	configs := make([]SportConfig, 0, len(t.order))
	for _, sport := range t.order {
		configs = append(configs, t.sports[sport])
	}
	return configs
}

func (t *SportTable) put(cfg SportConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, exists := t.sports[cfg.Sport]; !exists {
		t.order = append(t.order, cfg.Sport)
	}
	t.sports[cfg.Sport] = cfg
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
