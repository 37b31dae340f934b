package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ServiceName = "simulation-service"

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Persistence; empty disables the store
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Redis; empty disables the result cache
	RedisURL            string        `mapstructure:"REDIS_URL"`
	ResultCacheTTL      time.Duration `mapstructure:"RESULT_CACHE_TTL"`
	CacheBreakerTimeout time.Duration `mapstructure:"CACHE_BREAKER_TIMEOUT"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Simulation
	DefaultSimulations int    `mapstructure:"DEFAULT_SIMULATIONS"`
	MaxSimulations     int    `mapstructure:"MAX_SIMULATIONS"`
	SimulationWorkers  int    `mapstructure:"SIMULATION_WORKERS"`
	TrialWorkers       int    `mapstructure:"TRIAL_WORKERS"`
	MaxTeamsPerBatch   int    `mapstructure:"MAX_TEAMS_PER_BATCH"`
	SportsConfigPath   string `mapstructure:"SPORTS_CONFIG_PATH"`

	// Rate limiting
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Background projections
	EnableFixtureProjections bool   `mapstructure:"ENABLE_FIXTURE_PROJECTIONS"`
	ProjectionSchedule       string `mapstructure:"PROJECTION_SCHEDULE"`
	FixtureSeed              int64  `mapstructure:"FIXTURE_SEED"`

	// Stored runs older than this are pruned; 0 keeps everything
	HistoryRetention time.Duration `mapstructure:"HISTORY_RETENTION"`
}

// LoadConfig reads configuration from the environment and an optional .env
// file in the working directory or its parent
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8083")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RESULT_CACHE_TTL", "1h")
	v.SetDefault("CACHE_BREAKER_TIMEOUT", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("DEFAULT_SIMULATIONS", 10000)
	v.SetDefault("MAX_SIMULATIONS", 100000)
	v.SetDefault("SIMULATION_WORKERS", 4)
	v.SetDefault("TRIAL_WORKERS", 1)
	v.SetDefault("MAX_TEAMS_PER_BATCH", 200)
	v.SetDefault("SPORTS_CONFIG_PATH", "")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("ENABLE_FIXTURE_PROJECTIONS", false)
	v.SetDefault("PROJECTION_SCHEDULE", "@every 6h")
	v.SetDefault("FIXTURE_SEED", 0)
	v.SetDefault("HISTORY_RETENTION", "720h")
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := v.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DefaultSimulations <= 0 {
		return fmt.Errorf("DEFAULT_SIMULATIONS must be positive, got %d", c.DefaultSimulations)
	}
	if c.MaxSimulations < c.DefaultSimulations {
		return fmt.Errorf("MAX_SIMULATIONS (%d) must be at least DEFAULT_SIMULATIONS (%d)", c.MaxSimulations, c.DefaultSimulations)
	}
	if c.SimulationWorkers <= 0 {
		return fmt.Errorf("SIMULATION_WORKERS must be positive, got %d", c.SimulationWorkers)
	}
	if c.MaxTeamsPerBatch <= 0 {
		return fmt.Errorf("MAX_TEAMS_PER_BATCH must be positive, got %d", c.MaxTeamsPerBatch)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.HistoryRetention < 0 {
		return fmt.Errorf("HISTORY_RETENTION must not be negative, got %s", c.HistoryRetention)
	}
	if c.EnableFixtureProjections && c.ProjectionSchedule == "" {
		return fmt.Errorf("PROJECTION_SCHEDULE is required when ENABLE_FIXTURE_PROJECTIONS is set")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
