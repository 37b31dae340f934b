package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stitts-dev/season-sim/shared/pkg/database"
)

var ErrRunNotFound = errors.New("simulation run not found")

const defaultHistoryLimit = 20

// RunRepository persists simulation runs and their team projections
type RunRepository struct {
	db     *database.DB
	logger *logrus.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *database.DB, logger *logrus.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// AutoMigrate creates or updates the run tables
func (r *RunRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&SimulationRun{}, &TeamProjection{}); err != nil {
		return fmt.Errorf("failed to migrate simulation tables: %w", err)
	}
	return nil
}

// SaveRun stores a run together with its projections
func (r *RunRepository) SaveRun(ctx context.Context, run *SimulationRun) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save simulation run %s: %w", run.ID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"source":     run.Source,
		"team_count": run.TeamCount,
	}).Debug("Saved simulation run")
	return nil
}

// GetRun loads a run with its projections in saved order
func (r *RunRepository) GetRun(ctx context.Context, id uuid.UUID) (*SimulationRun, error) {
	var run SimulationRun
	err := r.db.WithContext(ctx).
		Preload("Projections", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load simulation run %s: %w", id, err)
	}
	return &run, nil
}

// ListRunsForTeam returns the runs that projected a team, newest first. Only
// that team's projection is loaded for each run.
func (r *RunRepository) ListRunsForTeam(ctx context.Context, teamID string, limit int) ([]SimulationRun, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var runs []SimulationRun
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&TeamProjection{}).Select("run_id").Where("team_id = ?", teamID)).
		Preload("Projections", "team_id = ?", teamID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for team %s: %w", teamID, err)
	}
	return runs, nil
}

// DeleteRunsOlderThan removes runs created before cutoff and returns how many
// were deleted
func (r *RunRepository) DeleteRunsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&SimulationRun{}).Select("id").Where("created_at < ?", cutoff)
		if err := tx.Where("run_id IN (?)", stale).Delete(&TeamProjection{}).Error; err != nil {
			return err
		}
		result := tx.Where("created_at < ?", cutoff).Delete(&SimulationRun{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs older than %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if deleted > 0 {
		r.logger.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff,
		}).Info("Pruned simulation history")
	}
	return deleted, nil
}

// HealthCheck pings the underlying database
func (r *RunRepository) HealthCheck() error {
	return r.db.HealthCheck()
}
