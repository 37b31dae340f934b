package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/season-sim/services/simulation-service/internal/season"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/store"
	"github.com/stitts-dev/season-sim/services/simulation-service/pkg/cache"
	"github.com/stitts-dev/season-sim/shared/pkg/config"
	"github.com/stitts-dev/season-sim/shared/types"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ResultCache is the subset of the simulation cache the handlers use
type ResultCache interface {
	SetBatch(ctx context.Context, batch *types.SimulationBatch) error
	GetBatch(ctx context.Context, id string) (*types.SimulationBatch, error)
	SetRequestID(ctx context.Context, requestHash, id string) error
	GetRequestID(ctx context.Context, requestHash string) (string, error)
	GetProjection(ctx context.Context, sport types.Sport) (*types.SimulationBatch, error)
}

// RunStore is the subset of the run repository the handlers use
type RunStore interface {
	SaveRun(ctx context.Context, run *store.SimulationRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*store.SimulationRun, error)
	ListRunsForTeam(ctx context.Context, teamID string, limit int) ([]store.SimulationRun, error)
}

// ProgressNotifier relays engine progress to connected clients
type ProgressNotifier interface {
	ForwardProgress(userID string, updates <-chan types.ProgressUpdate)
}

// SimulationHandler handles season simulation endpoints
type SimulationHandler struct {
	sports   *season.SportTable
	cache    ResultCache
	runs     RunStore
	progress ProgressNotifier
	config   *config.Config
	logger   *logrus.Logger
}

// NewSimulationHandler creates a new simulation handler. cache, runs and
// progress may be nil.
func NewSimulationHandler(
	sports *season.SportTable,
	cache ResultCache,
	runs RunStore,
	progress ProgressNotifier,
	config *config.Config,
	logger *logrus.Logger,
) *SimulationHandler {
	return &SimulationHandler{
		sports:   sports,
		cache:    cache,
		runs:     runs,
		progress: progress,
		config:   config,
		logger:   logger,
	}
}

// SimulationRequest is a batch of teams to project
type SimulationRequest struct {
	Teams       []types.TeamStats                `json:"teams"`
	Schedules   map[string][]types.ScheduledGame `json:"schedules"`
	Simulations int                              `json:"simulations,omitempty"`
	Seed        *int64                           `json:"seed,omitempty"` // omitted or 0 draws a seed from the clock
	UserID      string                           `json:"user_id,omitempty"`
}

// SimulationResponse is returned by RunSimulation and GetSimulationResults
type SimulationResponse struct {
	ID              string                   `json:"id"`
	Results         []types.SimulationResult `json:"results"`
	Simulations     int                      `json:"simulations"`
	Seed            int64                    `json:"seed"`
	ExecutionTimeMs int64                    `json:"execution_time_ms"`
	Cached          bool                     `json:"cached"`
}

// HistoryEntry is one stored run in a team's history
type HistoryEntry struct {
	RunID       string                 `json:"run_id"`
	CreatedAt   time.Time              `json:"created_at"`
	Simulations int                    `json:"simulations"`
	Source      string                 `json:"source"`
	Result      types.SimulationResult `json:"result"`
}

// RunSimulation projects a batch of teams
func (h *SimulationHandler) RunSimulation(c *gin.Context) {
	var req SimulationRequest
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

	simulations, err := h.validateRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid simulation parameters",
			Code:  "INVALID_SIMULATION",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	ctx := c.Request.Context()

	// Seeded requests are reproducible, so an identical one can be replayed
	seeded := req.Seed != nil && *req.Seed != 0
	var requestHash string
	if seeded && h.cache != nil {
		requestHash = fingerprint(req, simulations)
		if batch := h.cachedRequest(ctx, requestHash); batch != nil {
			c.JSON(http.StatusOK, newResponse(batch, true))
			return
		}
	}

	seed := time.Now().UnixNano()
	if seeded {
		seed = *req.Seed
	}

	id := uuid.New()
	log := h.logger.WithFields(logrus.Fields{
		"simulation_id": id.String(),
		"teams":         len(req.Teams),
		"simulations":   simulations,
		"user_id":       req.UserID,
	})

	engine := season.NewEngine(h.sports, season.EngineConfig{
		Workers:      h.config.SimulationWorkers,
		TrialWorkers: h.config.TrialWorkers,
		Seed:         seed,
		Logger:       h.logger,
	})

	progressChan := make(chan types.ProgressUpdate, len(req.Teams))
	if h.progress != nil && req.UserID != "" {
		go h.progress.ForwardProgress(req.UserID, progressChan)
	}

	startTime := time.Now()
	results, err := engine.BatchSimulateWithProgress(ctx, req.Teams, req.Schedules, simulations, progressChan)
	close(progressChan)
	if err != nil {
		h.respondSimulationError(c, log, err)
		return
	}

	batch := &types.SimulationBatch{
		ID:              id.String(),
		Results:         results,
		Simulations:     simulations,
		Seed:            seed,
		ExecutionTimeMs: time.Since(startTime).Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}

	h.cacheBatch(ctx, log, batch, requestHash)
	h.saveBatch(ctx, log, id, batch, req.UserID)

	log.WithField("execution_time_ms", batch.ExecutionTimeMs).Info("Simulation batch completed")
	c.JSON(http.StatusOK, newResponse(batch, false))
}

// GetSimulationResults returns a completed batch from cache or history
func (h *SimulationHandler) GetSimulationResults(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if h.cache != nil {
		batch, err := h.cache.GetBatch(ctx, id)
		if err == nil {
			c.JSON(http.StatusOK, newResponse(batch, true))
			return
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.WithError(err).WithField("simulation_id", id).Warn("Cache lookup failed")
		}
	}

	if h.runs != nil {
		if runID, err := uuid.Parse(id); err == nil {
			run, err := h.runs.GetRun(ctx, runID)
			switch {
			case err == nil:
				results, err := run.Results()
				if err != nil {
					h.internalError(c, "Failed to decode stored results", err)
					return
				}
				c.JSON(http.StatusOK, SimulationResponse{
					ID:          run.ID.String(),
					Results:     results,
					Simulations: run.Simulations,
					Seed:        run.Seed,
				})
				return
			case !errors.Is(err, store.ErrRunNotFound):
				h.internalError(c, "Failed to load simulation results", err)
				return
			}
		}
	}

	c.JSON(http.StatusNotFound, types.ErrorResponse{
		Error: "Simulation results not found",
		Code:  "NOT_FOUND",
	})
}

// GetHistory lists stored projections for one team, newest first
func (h *SimulationHandler) GetHistory(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error: "Simulation history is not configured",
			Code:  "HISTORY_UNAVAILABLE",
		})
		return
	}

	teamID := c.Query("team_id")
	if teamID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "team_id is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	runs, err := h.runs.ListRunsForTeam(c.Request.Context(), teamID, limit)
	if err != nil {
		h.internalError(c, "Failed to load simulation history", err)
		return
	}

	entries := make([]HistoryEntry, 0, len(runs))
	for i := range runs {
		results, err := runs[i].Results()
		if err != nil || len(results) == 0 {
			continue
		}
		entries = append(entries, HistoryEntry{
			RunID:       runs[i].ID.String(),
			CreatedAt:   runs[i].CreatedAt,
			Simulations: runs[i].Simulations,
			Source:      runs[i].Source,
			Result:      results[0],
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"team_id": teamID,
		"history": entries,
	})
}

func (h *SimulationHandler) validateRequest(req *SimulationRequest) (int, error) {
	if len(req.Teams) == 0 {
		return 0, fmt.Errorf("at least one team is required")
	}
	if len(req.Teams) > h.config.MaxTeamsPerBatch {
		return 0, fmt.Errorf("batch of %d teams exceeds the limit of %d", len(req.Teams), h.config.MaxTeamsPerBatch)
	}

	simulations := req.Simulations
	if simulations == 0 {
		simulations = h.config.DefaultSimulations
	}
	if simulations < 0 {
		return 0, fmt.Errorf("simulations must be positive, got %d", simulations)
	}
	if simulations > h.config.MaxSimulations {
		return 0, fmt.Errorf("simulations %d exceeds the limit of %d", simulations, h.config.MaxSimulations)
	}

	seen := make(map[string]bool, len(req.Teams))
	for _, team := range req.Teams {
		if team.ID == "" {
			return 0, fmt.Errorf("every team needs an id")
		}
		if seen[team.ID] {
			return 0, fmt.Errorf("duplicate team id %q", team.ID)
		}
		seen[team.ID] = true
	}
	return simulations, nil
}

func (h *SimulationHandler) cachedRequest(ctx context.Context, requestHash string) *types.SimulationBatch {
	id, err := h.cache.GetRequestID(ctx, requestHash)
	if err != nil {
		return nil
	}
	batch, err := h.cache.GetBatch(ctx, id)
	if err != nil {
		return nil
	}
	return batch
}

func (h *SimulationHandler) cacheBatch(ctx context.Context, log *logrus.Entry, batch *types.SimulationBatch, requestHash string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetBatch(ctx, batch); err != nil {
		log.WithError(err).Warn("Failed to cache simulation batch")
		return
	}
	if requestHash != "" {
		if err := h.cache.SetRequestID(ctx, requestHash, batch.ID); err != nil {
			log.WithError(err).Warn("Failed to cache request mapping")
		}
	}
}

func (h *SimulationHandler) saveBatch(ctx context.Context, log *logrus.Entry, id uuid.UUID, batch *types.SimulationBatch, userID string) {
	if h.runs == nil {
		return
	}
	run, err := store.NewRun(id, batch.Results, batch.Simulations, batch.Seed, store.SourceAPI)
	if err != nil {
		log.WithError(err).Warn("Failed to build simulation run record")
		return
	}
	if userID != "" {
		run.UserID = &userID
	}
	if err := h.runs.SaveRun(ctx, run); err != nil {
		log.WithError(err).Warn("Failed to persist simulation run")
	}
}

func (h *SimulationHandler) respondSimulationError(c *gin.Context, log *logrus.Entry, err error) {
	var verr *season.ValidationError
	switch {
	case errors.As(err, &verr):
		details := map[string]string{"field": verr.Field, "reason": verr.Reason}
		if verr.TeamID != "" {
			details["team_id"] = verr.TeamID
		}
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   err.Error(),
			Code:    "INVALID_TEAM",
			Details: details,
		})
	case errors.Is(err, season.ErrInvalidSimulationCount):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_SIMULATION",
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.WithError(err).Warn("Simulation batch cancelled")
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error: "Simulation cancelled",
			Code:  "CANCELLED",
		})
	default:
		log.WithError(err).Error("Simulation batch failed")
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error: "Simulation failed",
			Code:  "SIMULATION_ERROR",
		})
	}
}

func (h *SimulationHandler) internalError(c *gin.Context, message string, err error) {
	h.logger.WithError(err).Error(message)
	c.JSON(http.StatusInternalServerError, types.ErrorResponse{
		Error: message,
		Code:  "INTERNAL_ERROR",
	})
}

func newResponse(batch *types.SimulationBatch, cached bool) SimulationResponse {
	return SimulationResponse{
		ID:              batch.ID,
		Results:         batch.Results,
		Simulations:     batch.Simulations,
		Seed:            batch.Seed,
		ExecutionTimeMs: batch.ExecutionTimeMs,
		Cached:          cached,
	}
}

// fingerprint hashes the inputs that determine a seeded batch's output
func fingerprint(req SimulationRequest, simulations int) string {
	canonical, _ := json.Marshal(struct {
		Teams       []types.TeamStats                `json:"teams"`
		Schedules   map[string][]types.ScheduledGame `json:"schedules"`
		Simulations int                              `json:"simulations"`
		Seed        int64                            `json:"seed"`
	}{req.Teams, req.Schedules, simulations, *req.Seed})

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
