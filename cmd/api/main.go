// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Tablegate gateway server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis when a cache binding is configured.
//  5. Apply the optional demo-schema bootstrap (idempotent).
//  6. Wire the gateway: introspector, planes, factory, dispatcher.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/tablegate/internal/apidoc"
	"github.com/taibuivan/tablegate/internal/api"
	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/controlplane"
	"github.com/taibuivan/tablegate/internal/dataplane"
	"github.com/taibuivan/tablegate/internal/gateway"
	"github.com/taibuivan/tablegate/internal/platform/bootstrap"
	"github.com/taibuivan/tablegate/internal/platform/config"
	"github.com/taibuivan/tablegate/internal/platform/constants"
	"github.com/taibuivan/tablegate/internal/platform/metrics"
	pgstore "github.com/taibuivan/tablegate/internal/platform/postgres"
	redisstore "github.com/taibuivan/tablegate/internal/platform/redis"
	"github.com/taibuivan/tablegate/internal/platform/task"
	"github.com/taibuivan/tablegate/internal/sqlgen"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "tablegate"))
	slog.SetDefault(log)

	log.Info("[Tablegate] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "tablegate"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("schema", cfg.DBSchema),
		slog.Bool("cache_bound", cfg.HasRedis()),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Cache planes ───────────────────────────────────────────────────
	// Without a Redis binding the control plane lives in-process and the
	// data plane is disabled: every read reaches the database directly.
	var control controlplane.Store = controlplane.NewMemoryStore()
	var data dataplane.Cache = dataplane.Disabled{}
	var checkCache func() error

	if cfg.HasRedis() {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		control = controlplane.NewBreaker(controlplane.NewRedisStore(rdb))
		data = dataplane.NewBreaker(dataplane.NewRedisCache(rdb, time.Duration(cfg.DataCacheTTLSeconds)*time.Second))

		checkCache = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}
	}

	// ── 5. Demo-schema bootstrap (optional) ───────────────────────────────
	if cfg.BootstrapPath != "" {
		must(log, bootstrap.Apply(cfg.DatabaseURL, cfg.BootstrapPath, log), "apply bootstrap migrations")
	}

	// ── 6. Gateway wiring ─────────────────────────────────────────────────
	gauges := metrics.New()
	tasks := task.NewRunner(log, constants.DetachedTaskTimeout)
	introspector := catalog.NewPG(pool, cfg.DBSchema)

	options := catalog.Options{
		Schema:               cfg.DBSchema,
		PrimaryKey:           cfg.PrimaryKeyColumn,
		SoftDeleteCandidates: cfg.SoftDeleteCandidates(),
	}

	factory := gateway.NewFactory(gateway.Deps{
		Runner:    sqlgen.NewRunner(pool),
		Control:   control,
		Data:      data,
		Tasks:     tasks,
		Metrics:   gauges,
		Logger:    log,
		CacheHost: cfg.DataCacheHost,
		CacheTTL:  time.Duration(cfg.DataCacheTTLSeconds) * time.Second,
	})

	dispatcher := gateway.NewDispatcher(
		introspector,
		gateway.NewCodeCache(),
		control,
		factory,
		tasks,
		gauges,
		log,
		options,
	)

	docs := apidoc.NewHandler(introspector, control, tasks, gauges, log, options)

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: checkCache,
	}, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(startupCtx, cfg, log, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Gateway:   dispatcher,
		Docs:      docs,
		Metrics:   gauges.Handler(),
	})

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	// Drain detached background work (SWR refreshes, drift checks).
	tasks.Shutdown(constants.DetachedTaskTimeout)

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
