// campusd is the campus management API server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/campuskit/campus/pkg/api"
	"github.com/campuskit/campus/pkg/async"
	"github.com/campuskit/campus/pkg/config"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "campusd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	cm, err := postgres.NewConnectionManager(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer cm.Close()
	db := cm.Primary()

	// The change feed is best-effort; the API runs without Redis.
	var redisClient *redis.Client
	if client, err := postgres.NewRedisClient(cfg.Redis); err != nil {
		logger.WithError(err).Warn("Redis unavailable, change feed disabled")
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	server, err := api.NewServer(api.Options{
		DB:                db,
		Redis:             redisClient,
		Logger:            logger,
		Metrics:           metrics,
		SnapshotCacheSize: cfg.RBAC.SnapshotCacheSize,
		SnapshotTTL:       cfg.RBAC.SnapshotTTL,
		PendingPageSize:   cfg.Approval.PendingPageSize,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter(db, redisClient, metrics),
	}

	// Role assignments can expire while nobody touches the user's
	// session; sweep hourly so stale grants drop out of snapshots.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		userIDs, err := server.RoleStore().DeactivateExpired(sweepCtx)
		if err != nil {
			logger.WithError(err).Error("expired assignment sweep failed")
			return
		}
		for _, userID := range userIDs {
			server.Sessions().Invalidate(userID)
		}
		if len(userIDs) > 0 {
			logger.WithField("users", len(userIDs)).Info("deactivated expired role assignments")
		}
	}); err != nil {
		return fmt.Errorf("schedule assignment sweep: %w", err)
	}
	scheduler.Start()

	// Catch up immediately on startup; an instance that was down for a
	// while should not wait for the next tick to drop expired grants.
	async.SafeGo(ctx, logger, time.Minute, "startup-assignment-sweep", func(ctx context.Context) error {
		userIDs, err := server.RoleStore().DeactivateExpired(ctx)
		if err != nil {
			return err
		}
		for _, userID := range userIDs {
			server.Sessions().Invalidate(userID)
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		<-scheduler.Stop().Done()
		return nil
	})
	if providers != nil {
		shutdown.RegisterShutdownFunc(providers.Shutdown)
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("campus API listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	return g.Wait()
}

func healthRouter(db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics) http.Handler {
	health := observability.NewHealthChecker(db, redisClient)
	router := mux.NewRouter()
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	return router
}
