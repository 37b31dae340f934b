package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/season-sim/services/simulation-service/internal/fixtures"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/season"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/store"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/websocket"
	"github.com/stitts-dev/season-sim/shared/types"
)

const (
	projectionJobID = "fixture_projections"
	cleanupJobID    = "history_cleanup"
	cleanupSchedule = "0 3 * * *"
	jobTimeout      = 5 * time.Minute
)

// ProjectionCache stores the latest projection per sport
type ProjectionCache interface {
	SetProjection(ctx context.Context, sport types.Sport, batch *types.SimulationBatch) error
}

// RunStore persists scheduled runs and prunes old ones
type RunStore interface {
	SaveRun(ctx context.Context, run *store.SimulationRun) error
	DeleteRunsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Broadcaster pushes a message to every connected client
type Broadcaster interface {
	BroadcastToAll(message interface{})
}

// Settings controls what the scheduled jobs do
type Settings struct {
	Schedule    string
	Simulations int
	Workers     int
	Seed        int64         // 0 draws a new seed per run
	Retention   time.Duration // 0 disables the cleanup job
}

// JobInfo represents information about a scheduled job
type JobInfo struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Schedule   string        `json:"schedule"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	Status     string        `json:"status"`
	RunCount   int           `json:"run_count"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ProjectionNotice is broadcast when a sport's projection is refreshed
type ProjectionNotice struct {
	Sport     types.Sport `json:"sport"`
	RunID     string      `json:"run_id"`
	Teams     int         `json:"teams"`
	CreatedAt time.Time   `json:"created_at"`
}

// ProjectionScheduler periodically projects the sample leagues and publishes
// the results. cache, runs and notifier may each be nil.
type ProjectionScheduler struct {
	sports   *season.SportTable
	cache    ProjectionCache
	runs     RunStore
	notifier Broadcaster
	settings Settings
	logger   *logrus.Logger
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	jobs     map[string]JobInfo
	entries  map[string]cron.EntryID
	running  bool
	now      func() time.Time
}

// NewProjectionScheduler creates a scheduler; call Start to begin running jobs
func NewProjectionScheduler(
	sports *season.SportTable,
	cache ProjectionCache,
	runs RunStore,
	notifier Broadcaster,
	settings Settings,
	logger *logrus.Logger,
) *ProjectionScheduler {
	if settings.Simulations <= 0 {
		settings.Simulations = season.DefaultSimulations
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &ProjectionScheduler{
		sports:   sports,
		cache:    cache,
		runs:     runs,
		notifier: notifier,
		settings: settings,
		logger:   logger,
		cron:     cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger))),
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]JobInfo),
		entries:  make(map[string]cron.EntryID),
		now:      time.Now,
	}
}

// Start schedules the jobs and starts the cron loop
func (s *ProjectionScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("projection scheduler is already running")
	}

	if err := s.addJob(projectionJobID, s.settings.Schedule, "Fixture projections", s.RunProjections); err != nil {
		return err
	}
	if s.runs != nil && s.settings.Retention > 0 {
		if err := s.addJob(cleanupJobID, cleanupSchedule, "History cleanup", s.PruneHistory); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.WithField("component", "scheduler").Info("Projection scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish
func (s *ProjectionScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.WithField("component", "scheduler").Info("Projection scheduler stopped")
}

// GetJobs returns a snapshot of the scheduled jobs
func (s *ProjectionScheduler) GetJobs() map[string]JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make(map[string]JobInfo, len(s.jobs))
	for id, job := range s.jobs {
		jobs[id] = job
	}
	return jobs
}

// addJob must be called with mu held
func (s *ProjectionScheduler) addJob(id, schedule, name string, job func(ctx context.Context) error) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runJob(id, job)
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", id, err)
	}

	s.entries[id] = entryID
	s.jobs[id] = JobInfo{
		ID:       id,
		Name:     name,
		Schedule: schedule,
		NextRun:  s.cron.Entry(entryID).Next,
		Status:   "scheduled",
	}

	s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"job_id":    id,
		"schedule":  schedule,
	}).Info("Scheduled job added")
	return nil
}

func (s *ProjectionScheduler) runJob(id string, job func(ctx context.Context) error) {
	s.mu.Lock()
	info := s.jobs[id]
	info.Status = "running"
	info.LastRun = s.now()
	info.RunCount++
	s.jobs[id] = info
	s.mu.Unlock()

	log := s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"job_id":    id,
		"run_count": info.RunCount,
	})
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = job(ctx)
	}()

	s.mu.Lock()
	info = s.jobs[id]
	info.Duration = time.Since(startTime)
	info.Status = "completed"
	if err != nil {
		info.Status = "failed"
		info.ErrorCount++
		info.LastError = err.Error()
	}
	info.NextRun = s.cron.Entry(s.entries[id]).Next
	s.jobs[id] = info
	s.mu.Unlock()

	if err != nil {
		log.WithError(err).Error("Scheduled job failed")
		return
	}
	log.WithField("duration", info.Duration).Info("Scheduled job completed")
}

// RunProjections simulates every sample league once, each on its own seed
// derived from the configured one. Sports missing from the sport table are
// skipped; the first simulation error stops the run.
func (s *ProjectionScheduler) RunProjections(ctx context.Context) error {
	base := s.settings.Seed
	if base == 0 {
		base = s.now().UnixNano()
	}

	for i, sport := range fixtures.Sports() {
		if _, err := s.sports.Lookup(sport); err != nil {
			s.logger.WithField("sport", sport).Debug("Sport not configured, skipping projection")
			continue
		}
		if err := s.projectSport(ctx, sport, fixtures.LeagueSeed(base, i)); err != nil {
			return fmt.Errorf("projecting %s: %w", sport, err)
		}
	}
	return nil
}

func (s *ProjectionScheduler) projectSport(ctx context.Context, sport types.Sport, seed int64) error {
	teams, schedules, err := fixtures.League(s.sports, sport, rand.New(rand.NewSource(fixtures.ScheduleSeed(seed))))
	if err != nil {
		return err
	}

	engine := season.NewEngine(s.sports, season.EngineConfig{
		Workers: s.settings.Workers,
		Seed:    seed,
		Logger:  s.logger,
		Clock:   s.now,
	})

	startTime := time.Now()
	results, err := engine.BatchSimulate(ctx, teams, schedules, s.settings.Simulations)
	if err != nil {
		return err
	}

	id := uuid.New()
	batch := &types.SimulationBatch{
		ID:              id.String(),
		Results:         results,
		Simulations:     s.settings.Simulations,
		Seed:            seed,
		ExecutionTimeMs: time.Since(startTime).Milliseconds(),
		CreatedAt:       s.now().UTC(),
	}

	log := s.logger.WithFields(logrus.Fields{
		"component":     "scheduler",
		"sport":         sport,
		"simulation_id": batch.ID,
	})

	if s.cache != nil {
		if err := s.cache.SetProjection(ctx, sport, batch); err != nil {
			log.WithError(err).Warn("Failed to cache projection")
		}
	}

	if s.runs != nil {
		run, err := store.NewRun(id, results, batch.Simulations, seed, store.SourceScheduler)
		if err != nil {
			return err
		}
		if err := s.runs.SaveRun(ctx, run); err != nil {
			log.WithError(err).Warn("Failed to persist projection")
		}
	}

	if s.notifier != nil {
		s.notifier.BroadcastToAll(websocket.Message{
			Type: "projection",
			Data: ProjectionNotice{
				Sport:     sport,
				RunID:     batch.ID,
				Teams:     len(results),
				CreatedAt: batch.CreatedAt,
			},
		})
	}

	log.WithField("teams", len(results)).Info("Projection refreshed")
	return nil
}

// PruneHistory deletes stored runs older than the retention window
func (s *ProjectionScheduler) PruneHistory(ctx context.Context) error {
	if s.runs == nil || s.settings.Retention <= 0 {
		return nil
	}

	deleted, err := s.runs.DeleteRunsOlderThan(ctx, s.now().Add(-s.settings.Retention))
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"deleted":   deleted,
	}).Info("Pruned simulation history")
	return nil
}
