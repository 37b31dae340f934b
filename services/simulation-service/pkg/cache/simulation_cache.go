package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/stitts-dev/season-sim/shared/types"
)

var (
	// ErrCacheMiss means the key is not cached
	ErrCacheMiss = errors.New("not found in cache")
	// ErrCacheUnavailable means the breaker is open and Redis was not called
	ErrCacheUnavailable = errors.New("cache unavailable")
)

const (
	simulationPrefix = "simulation:"
	requestPrefix    = "simulation:req:"
	projectionPrefix = "projection:"
)

// Settings tunes expiry and the circuit breaker around Redis
type Settings struct {
	TTL              time.Duration
	BreakerTimeout   time.Duration // how long the breaker stays open
	FailureThreshold uint32        // consecutive failures that open the breaker
}

// SimulationCacheService caches simulation batches and scheduled projections
type SimulationCacheService struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewSimulationCacheService creates a new simulation cache service
func NewSimulationCacheService(client *redis.Client, settings Settings, logger *logrus.Logger) *SimulationCacheService {
	if settings.TTL <= 0 {
		settings.TTL = time.Hour
	}
	if settings.BreakerTimeout <= 0 {
		settings.BreakerTimeout = 30 * time.Second
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "simulation-cache",
		MaxRequests: 1,
		Timeout:     settings.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Cache circuit breaker changed state")
		},
	})

	return &SimulationCacheService{
		client:  client,
		breaker: breaker,
		ttl:     settings.TTL,
		logger:  logger,
	}
}

// SetBatch stores a completed batch under its id
func (c *SimulationCacheService) SetBatch(ctx context.Context, batch *types.SimulationBatch) error {
	return c.setJSON(ctx, simulationPrefix+batch.ID, batch)
}

// GetBatch retrieves a batch by id
func (c *SimulationCacheService) GetBatch(ctx context.Context, id string) (*types.SimulationBatch, error) {
	var batch types.SimulationBatch
	if err := c.getJSON(ctx, simulationPrefix+id, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// SetRequestID maps a request fingerprint to the batch it produced
func (c *SimulationCacheService) SetRequestID(ctx context.Context, requestHash, id string) error {
	key := requestPrefix + requestHash
	_, err := c.execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, id, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set request mapping in cache: %w", err)
	}
	return nil
}

// GetRequestID returns the batch id previously produced for a request
func (c *SimulationCacheService) GetRequestID(ctx context.Context, requestHash string) (string, error) {
	key := requestPrefix + requestHash
	value, err := c.execute(func() (interface{}, error) {
		return c.client.Get(ctx, key).Result()
	})
	if err != nil {
		return "", c.readError(key, err)
	}
	return value.(string), nil
}

// SetProjection stores the latest scheduled projection for a sport
func (c *SimulationCacheService) SetProjection(ctx context.Context, sport types.Sport, batch *types.SimulationBatch) error {
	return c.setJSON(ctx, projectionPrefix+string(sport), batch)
}

// GetProjection retrieves the latest scheduled projection for a sport
func (c *SimulationCacheService) GetProjection(ctx context.Context, sport types.Sport) (*types.SimulationBatch, error) {
	var batch types.SimulationBatch
	if err := c.getJSON(ctx, projectionPrefix+string(sport), &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Ping checks Redis connectivity, bypassing the breaker
func (c *SimulationCacheService) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetStatus returns cache statistics
func (c *SimulationCacheService) GetStatus(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service":       "simulation-cache",
		"timestamp":     time.Now(),
		"breaker_state": c.breaker.State().String(),
		"connected":     c.client.Ping(ctx).Err() == nil,
	}

	if dbSize := c.client.DBSize(ctx); dbSize.Err() == nil {
		status["db_size"] = dbSize.Val()
	}
	if keys, err := c.client.Keys(ctx, simulationPrefix+"*").Result(); err == nil {
		status["simulation_keys"] = len(keys)
	}
	if keys, err := c.client.Keys(ctx, projectionPrefix+"*").Result(); err == nil {
		status["projection_keys"] = len(keys)
	}
	return status
}

func (c *SimulationCacheService) setJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	_, err = c.execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set %s in cache: %w", key, err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":  key,
		"expiration": c.ttl,
	}).Debug("Cached value")
	return nil
}

func (c *SimulationCacheService) getJSON(ctx context.Context, key string, dest interface{}) error {
	value, err := c.execute(func() (interface{}, error) {
		return c.client.Get(ctx, key).Bytes()
	})
	if err != nil {
		return c.readError(key, err)
	}

	if err := json.Unmarshal(value.([]byte), dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	c.logger.WithField("cache_key", key).Debug("Retrieved value from cache")
	return nil
}

// execute runs a Redis call through the breaker
func (c *SimulationCacheService) execute(call func() (interface{}, error)) (interface{}, error) {
	value, err := c.breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return value, err
}

func (c *SimulationCacheService) readError(key string, err error) error {
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", key, ErrCacheMiss)
	}
	if errors.Is(err, ErrCacheUnavailable) {
		return err
	}
	return fmt.Errorf("failed to get %s from cache: %w", key, err)
}
