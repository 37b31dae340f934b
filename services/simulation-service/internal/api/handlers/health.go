package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/season-sim/shared/pkg/config"
	"github.com/stitts-dev/season-sim/shared/types"
)

// Pinger is satisfied by the cache service
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker is satisfied by the run repository
type HealthChecker interface {
	HealthCheck() error
}

// HealthHandler handles health check endpoints. Both dependencies are
// optional; the service simulates without them.
type HealthHandler struct {
	db        HealthChecker
	cache     Pinger
	logger    *logrus.Logger
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db HealthChecker, cache Pinger, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// GetHealth reports dependency status. A failing dependency degrades the
// service but never takes it down.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := types.HealthStatus{
		Status:    "ok",
		Service:   config.ServiceName,
		Timestamp: time.Now(),
		Checks:    h.checks(c.Request.Context()),
	}

	for _, check := range response.Checks {
		if check != "ok" && check != "not_configured" {
			response.Status = "degraded"
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetReady reports readiness; the simulation engine has no hard dependencies
func (h *HealthHandler) GetReady(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthStatus{
		Status:    "ready",
		Service:   config.ServiceName,
		Timestamp: time.Now(),
		Checks: map[string]string{
			"uptime": time.Since(h.startedAt).Round(time.Second).String(),
		},
	})
}

func (h *HealthHandler) checks(ctx context.Context) map[string]string {
	checks := map[string]string{
		"database": "not_configured",
		"redis":    "not_configured",
	}

	if h.db != nil {
		if err := h.db.HealthCheck(); err != nil {
			h.logger.WithError(err).Warn("Database health check failed")
			checks["database"] = "failed: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.WithError(err).Warn("Redis health check failed")
			checks["redis"] = "failed: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}
	return checks
}
