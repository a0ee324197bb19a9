package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/popeskul/inbound-messages/internal/config"
	"github.com/popeskul/inbound-messages/internal/handler"
	"github.com/popeskul/inbound-messages/internal/infrastructure/database"
	"github.com/popeskul/inbound-messages/internal/infrastructure/migrate"
	"github.com/popeskul/inbound-messages/internal/metrics"
	"github.com/popeskul/inbound-messages/internal/middleware"
	"github.com/popeskul/inbound-messages/internal/repository"
	"github.com/popeskul/inbound-messages/internal/scheduler"
	"github.com/popeskul/inbound-messages/internal/service"
	"github.com/popeskul/inbound-messages/internal/signature"
)

// application owns every long-lived collaborator of the server process.
type application struct {
	handler http.Handler
	logger  *zap.Logger

	db          *sqlx.DB
	redisClient *redis.Client
	rateLimiter *middleware.RateLimiter
	probe       *scheduler.Scheduler
}

func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	verifier, err := signature.NewVerifier(cfg.Webhook.Secret)
	if err != nil {
		return nil, err
	}

	// The pool is opened before migrating so an in-memory SQLite database outlives the migration connection.
	db, target, err := database.Open(ctx, cfg.Database.URL, database.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return nil, err
	}

	app := &application{db: db, logger: logger}

	if err := migrate.NewRunner(&migrate.Config{DatabaseURL: cfg.Database.URL}).Run(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database ready", zap.String("driver", target.Driver))

	var cache service.StatsCache
	if cfg.Redis.Enabled {
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := app.redisClient.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		ttl := time.Duration(cfg.Redis.StatsTTLSeconds) * time.Second
		cache = service.NewRedisStatsCache(app.redisClient, ttl, logger)
	}

	prom := metrics.NewPrometheus()

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, verifier, cache, logger)
	h := handler.NewHandler(svc, prom, logger)

	if cfg.Database.ProbeInterval > 0 {
		app.probe, err = scheduler.NewScheduler(logger, scheduler.Task{
			Name:     "store-probe",
			Interval: time.Duration(cfg.Database.ProbeInterval) * time.Second,
			Timeout:  5 * time.Second,
			Run:      service.NewStoreProbe(repo, prom, logger).Run,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	router := setupRouter(h, prom)

	middlewareConfig := &middleware.Config{
		Logger:         logger,
		LogSkipPaths:   []string{"/webhook"},
		Metrics:        prom,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	}

	if cfg.Middleware.EnableCORS {
		cors := middleware.DefaultCORSConfig()
		if len(cfg.Middleware.AllowedOrigins) > 0 {
			cors.AllowedOrigins = cfg.Middleware.AllowedOrigins
		}
		middlewareConfig.CORS = cors
	}

	if cfg.Middleware.RateLimit > 0 {
		app.rateLimiter = middleware.NewRateLimiter(rate.Limit(cfg.Middleware.RateLimit), cfg.Middleware.RateLimitBurst)
		middlewareConfig.RateLimiter = app.rateLimiter
	}

	app.handler = middleware.Chain(middlewareConfig)(router)

	return app, nil
}

// Start launches the background work. It stops when ctx is canceled or Close is called.
func (a *application) Start(ctx context.Context) error {
	if a.probe == nil {
		return nil
	}
	return a.probe.Start(ctx)
}

// Close releases the collaborators in reverse order of creation.
func (a *application) Close() {
	if a.probe != nil && a.probe.IsRunning() {
		if err := a.probe.Stop(); err != nil {
			a.logger.Error("Failed to stop store probe", zap.Error(err))
		}
	}

	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
}
