package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/season-sim/services/simulation-service/internal/season"
	"github.com/stitts-dev/season-sim/services/simulation-service/pkg/cache"
	"github.com/stitts-dev/season-sim/shared/types"
)

// SportsHandler serves sport constants, single-game probabilities and
// scheduled projections
type SportsHandler struct {
	sports *season.SportTable
	cache  ResultCache
	logger *logrus.Logger
}

// NewSportsHandler creates a new sports handler. cache may be nil.
func NewSportsHandler(sports *season.SportTable, cache ResultCache, logger *logrus.Logger) *SportsHandler {
	return &SportsHandler{
		sports: sports,
		cache:  cache,
		logger: logger,
	}
}

// WinProbabilityRequest asks for the probability of one game
type WinProbabilityRequest struct {
	Team types.TeamStats     `json:"team"`
	Game types.ScheduledGame `json:"game"`
}

// WinProbabilityResponse breaks the estimate into its inputs
type WinProbabilityResponse struct {
	TeamID      string  `json:"team_id"`
	Opponent    string  `json:"opponent"`
	Probability float64 `json:"probability"`
	Pythagorean float64 `json:"pythagorean"`
	FormFactor  float64 `json:"form_factor"`
}

// GetSports lists the configured sports
func (h *SportsHandler) GetSports(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sports": h.sports.All(),
	})
}

// WinProbability estimates a single game without simulating
func (h *SportsHandler) WinProbability(c *gin.Context) {
	var req WinProbabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	cfg, err := h.sports.Lookup(req.Team.Sport)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: err.Error(),
			Code:  "UNKNOWN_SPORT",
		})
		return
	}

	if err := season.ValidateTeam(req.Team, []types.ScheduledGame{req.Game}, cfg); err != nil {
		details := map[string]string{}
		var verr *season.ValidationError
		if errors.As(err, &verr) {
			details["field"] = verr.Field
			details["reason"] = verr.Reason
		}
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   err.Error(),
			Code:    "INVALID_TEAM",
			Details: details,
		})
		return
	}

	c.JSON(http.StatusOK, WinProbabilityResponse{
		TeamID:      req.Team.ID,
		Opponent:    req.Game.Opponent,
		Probability: season.GameWinProbability(req.Team, req.Game, cfg),
		Pythagorean: season.PythagoreanExpectation(req.Team.PointsFor, req.Team.PointsAgainst, cfg.Exponent),
		FormFactor:  season.FormFactor(req.Team.RecentForm),
	})
}

// GetProjection returns the latest scheduled projection for a sport
func (h *SportsHandler) GetProjection(c *gin.Context) {
	sport := types.Sport(c.Param("sport"))
	if _, err := h.sports.Lookup(sport); err != nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error: err.Error(),
			Code:  "UNKNOWN_SPORT",
		})
		return
	}

	if h.cache == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error: "Projection cache is not configured",
			Code:  "PROJECTIONS_UNAVAILABLE",
		})
		return
	}

	batch, err := h.cache.GetProjection(c.Request.Context(), sport)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"sport":      sport,
			"projection": newResponse(batch, true),
			"created_at": batch.CreatedAt,
		})
	case errors.Is(err, cache.ErrCacheMiss):
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error: "No projection available yet",
			Code:  "NOT_FOUND",
		})
	default:
		h.logger.WithError(err).WithField("sport", sport).Warn("Projection lookup failed")
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error: "Projection cache unavailable",
			Code:  "PROJECTIONS_UNAVAILABLE",
		})
	}
}
