package season

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSport           = errors.New("unknown sport")
	ErrInvalidTeam            = errors.New("invalid team stats")
	ErrInvalidGame            = errors.New("invalid scheduled game")
	ErrEmptySeason            = errors.New("season has no games")
	ErrInvalidSimulationCount = errors.New("simulation count must be positive")
	ErrInvalidSportConfig     = errors.New("invalid sport config")
	ErrNilRandomSource        = errors.New("random source is required")
)

// ValidationError reports which team and field rejected a simulation input.
// It unwraps to one of the package sentinels.
type ValidationError struct {
	TeamID string
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.TeamID == "" {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("team %q: %s: %s: %v", e.TeamID, e.Field, e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
