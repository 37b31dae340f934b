package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/season-sim/services/simulation-service/internal/api/handlers"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/api/middleware"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/scheduler"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/season"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/store"
	"github.com/stitts-dev/season-sim/services/simulation-service/internal/websocket"
	"github.com/stitts-dev/season-sim/services/simulation-service/pkg/cache"
	"github.com/stitts-dev/season-sim/shared/pkg/config"
	"github.com/stitts-dev/season-sim/shared/pkg/database"
	"github.com/stitts-dev/season-sim/shared/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log := logger.WithService(config.ServiceName)
	log.WithFields(logrus.Fields{
		"version":     "1.0.0",
		"environment": cfg.Env,
		"port":        cfg.Port,
	}).Info("Starting Simulation Service")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	sports, err := season.LoadSportTable(cfg.SportsConfigPath)
	if err != nil {
		log.Fatalf("Failed to load sport table: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence and caching are optional; the interfaces stay nil when the
	// backing service is not configured
	var (
		runStore    handlers.RunStore
		resultCache handlers.ResultCache
		dbHealth    handlers.HealthChecker
		cachePinger handlers.Pinger
		schedStore  scheduler.RunStore
		schedCache  scheduler.ProjectionCache
	)

	if cfg.DatabaseURL != "" {
		db, err := database.NewSimulationServiceConnection(cfg.DatabaseURL, cfg.IsDevelopment())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		repository := store.NewRunRepository(db, structuredLogger)
		if err := repository.AutoMigrate(); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		runStore, dbHealth, schedStore = repository, repository, repository
	} else {
		log.Warn("DATABASE_URL not set, simulation history disabled")
	}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opt)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis not reachable at startup, cache calls will fail open")
		}
		defer redisClient.Close()

		cacheService := cache.NewSimulationCacheService(redisClient, cache.Settings{
			TTL:            cfg.ResultCacheTTL,
			BreakerTimeout: cfg.CacheBreakerTimeout,
		}, structuredLogger)
		resultCache, cachePinger, schedCache = cacheService, cacheService, cacheService
	} else {
		log.Warn("REDIS_URL not set, result caching disabled")
	}

	wsHub := websocket.NewHub(structuredLogger)
	go wsHub.Run(ctx)

	simulationHandler := handlers.NewSimulationHandler(sports, resultCache, runStore, wsHub, cfg, structuredLogger)
	sportsHandler := handlers.NewSportsHandler(sports, resultCache, structuredLogger)
	healthHandler := handlers.NewHealthHandler(dbHealth, cachePinger, structuredLogger)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationID(),
		middleware.RequestLogger(structuredLogger),
		middleware.CORS(cfg.CorsOrigins),
	)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	apiV1 := router.Group("/api/v1")
	apiV1.Use(limiter.Middleware())
	{
		apiV1.POST("/simulate", simulationHandler.RunSimulation)
		apiV1.GET("/simulate/:id/results", simulationHandler.GetSimulationResults)
		apiV1.GET("/simulate/history", simulationHandler.GetHistory)

		apiV1.GET("/sports", sportsHandler.GetSports)
		apiV1.POST("/win-probability", sportsHandler.WinProbability)
		apiV1.GET("/projections/:sport", sportsHandler.GetProjection)
	}

	// WebSocket endpoint for progress and projection updates
	router.GET("/ws/simulation-progress/:user_id", wsHub.HandleWebSocket)

	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)

	if cfg.EnableFixtureProjections {
		projections := scheduler.NewProjectionScheduler(sports, schedCache, schedStore, wsHub, scheduler.Settings{
			Schedule:    cfg.ProjectionSchedule,
			Simulations: cfg.DefaultSimulations,
			Workers:     cfg.SimulationWorkers,
			Seed:        cfg.FixtureSeed,
			Retention:   cfg.HistoryRetention,
		}, structuredLogger)
		if err := projections.Start(); err != nil {
			log.Fatalf("Failed to start projection scheduler: %v", err)
		}
		defer projections.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Simulation service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down simulation service...")

	// The server has 5 seconds to finish the request it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Simulation service forced to shutdown: %v", err)
	}

	log.Info("Simulation service exited")
}
