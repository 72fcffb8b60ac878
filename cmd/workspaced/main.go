package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/vKaizen/graduation-backend/pkg/api"
	"github.com/vKaizen/graduation-backend/pkg/auth"
	"github.com/vKaizen/graduation-backend/pkg/config"
	"github.com/vKaizen/graduation-backend/pkg/goals"
	"github.com/vKaizen/graduation-backend/pkg/httputil"
	"github.com/vKaizen/graduation-backend/pkg/middleware"
	"github.com/vKaizen/graduation-backend/pkg/observability"
	"github.com/vKaizen/graduation-backend/pkg/sections"
	"github.com/vKaizen/graduation-backend/pkg/storage/postgres"
	"github.com/vKaizen/graduation-backend/pkg/workspaces"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting workspace service")

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}
	logger.Info("Migrations applied")

	// Optional redis role cache; the service runs without it, every role
	// resolution just goes to the database.
	var redisClient *redis.Client
	var roleCache *postgres.RoleCache
	if cfg.Cache.Enabled {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			logger.WithError(err).Error("Invalid redis URL")
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, starting without role cache")
			redisClient.Close()
			redisClient = nil
		} else {
			roleCache = postgres.NewRoleCacheWithClient(redisClient, cfg.Cache.RoleTTL)
			logger.WithField("ttl", cfg.Cache.RoleTTL.String()).Info("Role cache enabled")
		}
	}

	workspaceService := workspaces.NewPostgresService(db)
	if roleCache != nil {
		workspaceService = workspaceService.WithRoleCache(roleCache)
	}
	sectionService := sections.NewPostgresService(db)
	goalService := goals.NewPostgresService(db)
	tokenManager := auth.NewTokenManager(db)

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	statsDone := make(chan struct{})
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		if roleCache != nil {
			roleCache.WithMetrics(metrics.RoleCacheHitsTotal, metrics.RoleCacheMissesTotal)
		}
		go pollDBStats(db, metrics, statsDone)
	}

	// Expired invitations are purged on a schedule rather than per request.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Jobs.InvitationCleanupSchedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		removed, err := workspaceService.CleanupExpiredInvitations(jobCtx)
		if err != nil {
			logger.WithError(err).Error("Invitation cleanup failed")
			return
		}
		if removed > 0 {
			logger.WithField("removed", removed).Info("Purged expired invitations")
		}
	})
	if err != nil {
		logger.WithError(err).Error("Invalid invitation cleanup schedule")
		os.Exit(1)
	}
	scheduler.Start()

	server := api.NewServer(workspaceService, sectionService, goalService, logger, metrics)
	authMiddleware := middleware.NewAuthMiddleware(tokenManager, false)
	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		authMiddleware.Handler,
	)(server)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics live on their own port.
	healthChecker := observability.NewHealthChecker(db, redisClient, logger)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.LivenessHandler)
	healthMux.HandleFunc("/readyz", healthChecker.ReadinessHandler)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.Register(func(ctx context.Context) error {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	if redisClient != nil {
		shutdown.Register(func(context.Context) error {
			return redisClient.Close()
		})
	}
	if metrics != nil {
		shutdown.Register(func(context.Context) error {
			close(statsDone)
			return nil
		})
	}
	shutdown.Register(func(context.Context) error {
		return db.Close()
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

// pollDBStats mirrors the connection pool state into gauges until done closes
func pollDBStats(db *sql.DB, metrics *observability.Metrics, done <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		stats := db.Stats()
		metrics.DBConnectionsActive.Set(float64(stats.InUse))
		metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		select {
		case <-ticker.C:
		case <-done:
			return
		}
	}
}
