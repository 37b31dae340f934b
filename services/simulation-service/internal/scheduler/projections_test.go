package scheduler

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/season-sim/services/simulation-service/internal/fixtures"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/season"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/store"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/websocket"
	"github.com/stitts-dev/season-sim/shared/pkg/database"
	"github.com/stitts-dev/season-sim/shared/types"
)

type recordingCache struct {
	mu          sync.Mutex
	projections map[types.Sport]*types.SimulationBatch
}

func (c *recordingCache) SetProjection(_ context.Context, sport types.Sport, batch *types.SimulationBatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.projections == nil {
		c.projections = make(map[types.Sport]*types.SimulationBatch)
	}
	c.projections[sport] = batch
	return nil
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []interface{}
}

func (b *recordingBroadcaster) BroadcastToAll(message interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newRepository(t *testing.T) *store.RunRepository {
	t.Helper()
	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := store.NewRunRepository(db, quietLogger())
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func testSettings() Settings {
	return Settings{
		Schedule:    "@every 1h",
		Simulations: 200,
		Workers:     2,
		Seed:        99,
		Retention:   30 * 24 * time.Hour,
	}
}

func TestRunProjections_PublishesEverySport(t *testing.T) {
	cache := &recordingCache{}
	notifier := &recordingBroadcaster{}
	repo := newRepository(t)

	s := NewProjectionScheduler(season.DefaultSportTable(), cache, repo, notifier, testSettings(), quietLogger())
	require.NoError(t, s.RunProjections(context.Background()))

	require.Len(t, cache.projections, len(fixtures.Sports()))
	seeds := make(map[int64]types.Sport)
	for i, sport := range fixtures.Sports() {
		batch := cache.projections[sport]
		require.NotNil(t, batch, sport)
		assert.Equal(t, fixtures.LeagueSeed(99, i), batch.Seed)
		assert.NotContains(t, seeds, batch.Seed, "each league draws from its own streams")
		seeds[batch.Seed] = sport
		assert.Equal(t, 200, batch.Simulations)

		roster, err := fixtures.Teams(sport)
		require.NoError(t, err)
		require.Len(t, batch.Results, len(roster))
		for i, result := range batch.Results {
			assert.Equal(t, roster[i].ID, result.TeamID)
			assert.Equal(t, sport, result.Sport)
		}
	}

	require.Len(t, notifier.messages, len(fixtures.Sports()))
	message, ok := notifier.messages[0].(websocket.Message)
	require.True(t, ok)
	assert.Equal(t, "projection", message.Type)
	notice, ok := message.Data.(ProjectionNotice)
	require.True(t, ok)
	assert.Equal(t, fixtures.Sports()[0], notice.Sport)
	assert.Equal(t, cache.projections[notice.Sport].ID, notice.RunID)

	runs, err := repo.ListRunsForTeam(context.Background(), "mlb-lad", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.SourceScheduler, runs[0].Source)
	assert.Equal(t, cache.projections[types.SportBaseball].ID, runs[0].ID.String())
}

func TestRunProjections_FixedSeedIsReproducible(t *testing.T) {
	frozen := time.Date(2025, time.November, 2, 12, 0, 0, 0, time.UTC)

	run := func() map[types.Sport]*types.SimulationBatch {
		cache := &recordingCache{}
		s := NewProjectionScheduler(season.DefaultSportTable(), cache, nil, nil, testSettings(), quietLogger())
		s.now = func() time.Time { return frozen }
		require.NoError(t, s.RunProjections(context.Background()))
		return cache.projections
	}

	first, second := run(), run()
	for _, sport := range fixtures.Sports() {
		assert.Equal(t, first[sport].Results, second[sport].Results, sport)
	}
}

func TestRunProjections_SkipsUnconfiguredSports(t *testing.T) {
	college, err := season.DefaultSportTable().Lookup(types.SportCollegeFootball)
	require.NoError(t, err)
	table, err := season.NewSportTable(college)
	require.NoError(t, err)

	cache := &recordingCache{}
	s := NewProjectionScheduler(table, cache, nil, nil, testSettings(), quietLogger())
	require.NoError(t, s.RunProjections(context.Background()))

	assert.Len(t, cache.projections, 1)
	assert.Contains(t, cache.projections, types.SportCollegeFootball)
}

func TestRunProjections_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewProjectionScheduler(season.DefaultSportTable(), nil, nil, nil, testSettings(), quietLogger())
	err := s.RunProjections(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPruneHistory(t *testing.T) {
	repo := newRepository(t)
	s := NewProjectionScheduler(season.DefaultSportTable(), nil, repo, nil, testSettings(), quietLogger())
	require.NoError(t, s.RunProjections(context.Background()))

	// Inside the retention window nothing is removed
	require.NoError(t, s.PruneHistory(context.Background()))
	runs, err := repo.ListRunsForTeam(context.Background(), "cfb-rice", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	s.now = func() time.Time { return time.Now().Add(60 * 24 * time.Hour) }
	require.NoError(t, s.PruneHistory(context.Background()))
	runs, err = repo.ListRunsForTeam(context.Background(), "cfb-rice", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStartStop(t *testing.T) {
	s := NewProjectionScheduler(season.DefaultSportTable(), nil, newRepository(t), nil, testSettings(), quietLogger())
	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start")

	jobs := s.GetJobs()
	require.Contains(t, jobs, projectionJobID)
	require.Contains(t, jobs, cleanupJobID)
	assert.Equal(t, "scheduled", jobs[projectionJobID].Status)
	assert.Equal(t, "@every 1h", jobs[projectionJobID].Schedule)

	s.Stop()
	s.Stop()
}

func TestStart_WithoutStoreSkipsCleanup(t *testing.T) {
	s := NewProjectionScheduler(season.DefaultSportTable(), nil, nil, nil, testSettings(), quietLogger())
	require.NoError(t, s.Start())
	defer s.Stop()

	jobs := s.GetJobs()
	assert.Contains(t, jobs, projectionJobID)
	assert.NotContains(t, jobs, cleanupJobID)
}

func TestStart_InvalidSchedule(t *testing.T) {
	settings := testSettings()
	settings.Schedule = "every now and then"

	s := NewProjectionScheduler(season.DefaultSportTable(), nil, nil, nil, settings, quietLogger())
	assert.Error(t, s.Start())
}

func TestRunJob_RecordsFailures(t *testing.T) {
	s := NewProjectionScheduler(season.DefaultSportTable(), nil, nil, nil, testSettings(), quietLogger())
	s.mu.Lock()
	require.NoError(t, s.addJob("boom", "@every 1h", "Boom", func(context.Context) error {
		panic("exploded")
	}))
	s.mu.Unlock()

	s.runJob("boom", func(context.Context) error { panic("exploded") })

	job := s.GetJobs()["boom"]
	assert.Equal(t, "failed", job.Status)
	assert.Equal(t, 1, job.RunCount)
	assert.Equal(t, 1, job.ErrorCount)
	assert.Contains(t, job.LastError, "exploded")
}
