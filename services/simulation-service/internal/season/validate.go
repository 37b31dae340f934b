package season

import (
	"fmt"

	"github.com/stitts-dev/season-sim/shared/types"
)

// ValidateTeam rejects inputs that would produce a silently wrong
// distribution: negative or non-finite stats, out-of-range optional factors,
// malformed games, and seasons with no games at all.
func ValidateTeam(team types.TeamStats, schedule []types.ScheduledGame, cfg SportConfig) error {
	invalid := func(field, reason string, err error) error {
		return &ValidationError{TeamID: team.ID, Field: field, Reason: reason, Err: err}
	}

	if team.Sport != cfg.Sport {
		return invalid("sport", fmt.Sprintf("%q does not match sport config %q", team.Sport, cfg.Sport), ErrUnknownSport)
	}
	if team.Wins < 0 {
		return invalid("wins", "must not be negative", ErrInvalidTeam)
	}
	if team.Losses < 0 {
		return invalid("losses", "must not be negative", ErrInvalidTeam)
	}
	if !isFinite(team.PointsFor) || team.PointsFor < 0 {
		return invalid("points_for", "must be a finite, non-negative number", ErrInvalidTeam)
	}
	if !isFinite(team.PointsAgainst) || team.PointsAgainst < 0 {
		return invalid("points_against", "must be a finite, non-negative number", ErrInvalidTeam)
	}
	for i, result := range team.RecentForm {
		if result != 0 && result != 1 {
			return invalid(fmt.Sprintf("recent_form[%d]", i), "must be 0 or 1", ErrInvalidTeam)
		}
	}
	if !inUnitInterval(team.StrengthOfSchedule) {
		return invalid("strength_of_schedule", "must be in [0, 1]", ErrInvalidTeam)
	}
	if !inUnitInterval(team.InjuryImpact) {
		return invalid("injury_impact", "must be in [0, 1]", ErrInvalidTeam)
	}

	played := team.Wins + team.Losses
	if cfg.MaxGames > 0 && played > cfg.MaxGames {
		return invalid("wins", fmt.Sprintf("%d games played exceeds the %d game season", played, cfg.MaxGames), ErrInvalidTeam)
	}

	remaining := 0
	for i, game := range schedule {
		if err := validateGame(game); err != nil {
			return invalid(fmt.Sprintf("schedule[%d]", i), err.Error(), ErrInvalidGame)
		}
		if !game.Completed {
			remaining++
		}
	}

	total := played + remaining
	if total <= 0 {
		return invalid("schedule", "no played or remaining games", ErrEmptySeason)
	}
	if cfg.MaxGames > 0 && total > cfg.MaxGames {
		return invalid("schedule", fmt.Sprintf("%d total games exceeds the %d game season", total, cfg.MaxGames), ErrInvalidGame)
	}
	return nil
}

func validateGame(game types.ScheduledGame) error {
	switch game.Location {
	case types.LocationHome, types.LocationAway, types.LocationNeutral:
	default:
		return fmt.Errorf("unknown location %q", game.Location)
	}
	if !isFinite(game.OpponentStrength) || game.OpponentStrength < 0 || game.OpponentStrength > 1 {
		return fmt.Errorf("opponent strength %v outside [0, 1]", game.OpponentStrength)
	}
	return nil
}

func inUnitInterval(v *float64) bool {
	if v == nil {
		return true
	}
	return isFinite(*v) && *v >= 0 && *v <= 1
}
