// Package main is the entry point for the orchestrator-svc microservice.
//
// orchestrator-svc exposes the chain-orchestration core over HTTP/JSON:
// service and node registration, initial deployment, federated
// refinement, and the read surfaces a fleet operator or dashboard polls
// (placement, critical paths, latest metrics). Its external transport is
// net/http rather than gRPC; pkg/apperror's HTTPStatus maps error codes
// to HTTP status codes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"orchestrator/migrations"
	"orchestrator/pkg/audit"
	"orchestrator/pkg/cache"
	"orchestrator/pkg/config"
	"orchestrator/pkg/database"
	"orchestrator/pkg/logger"
	"orchestrator/pkg/metrics"
	"orchestrator/pkg/orchestration/monitor"
	"orchestrator/pkg/orchestration/orchestrator"
	"orchestrator/pkg/passhash"
	"orchestrator/pkg/ratelimit"
	"orchestrator/pkg/swagger"
	"orchestrator/pkg/telemetry"
	"orchestrator/services/orchestrator-svc/internal/history"
	"orchestrator/services/orchestrator-svc/internal/httpapi"
	"orchestrator/services/orchestrator-svc/internal/probe"
)

func main() {
	cfg, err := config.LoadWithServiceDefaults("orchestrator-svc", 0)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("failed to init telemetry", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Log.Warn("failed to shutdown telemetry", "error", err)
				}
			}()
			logger.Log.Info("telemetry initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)

	// The deployment-history audit trail is optional: a node with no
	// database configured still orchestrates, it just can't record a
	// trail of past Deploy/Refine passes.
	var hist *history.Repository
	if cfg.Database.Host != "" {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			logger.Fatal("failed to connect to database", "error", err)
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.PostgresMigrations, "postgres"); err != nil {
				logger.Fatal("failed to run migrations", "error", err)
			}
		}
		hist = history.NewRepository(db)
	}

	orchCfg := orchestrator.Config{
		MaxRefinementIterations:   cfg.Orchestrator.MaxRefinementIterations,
		ConvergenceThreshold:      cfg.Orchestrator.ConvergenceThreshold,
		MigrationImprovementRatio: cfg.Orchestrator.MigrationImprovementRatio,
		EnableInterferencePenalty: cfg.Orchestrator.EnableInterferencePenalty,
		BaseSamplingInterval:      cfg.Orchestrator.BaseSamplingInterval,
		MinSamplingInterval:       cfg.Orchestrator.MinSamplingInterval,
		EpsilonResource:           cfg.Orchestrator.EpsilonResource,
		EpsilonLatency:            cfg.Orchestrator.EpsilonLatency,
		HistorySize:               cfg.Orchestrator.HistorySize,
		WindowSize:                cfg.Orchestrator.WindowSize,
		BaseLearningRate:          cfg.Orchestrator.BaseLearningRate,
		AdaptivityFactor:          cfg.Orchestrator.AdaptivityFactor,
		QuantityThreshold:         cfg.Orchestrator.QuantityThreshold,
		QualityThreshold:          cfg.Orchestrator.QualityThreshold,
		LocalBlendRatio:           cfg.Orchestrator.LocalBlendRatio,
		UtilizationThreshold:      cfg.Orchestrator.UtilizationThreshold,
	}

	// probe.New needs the Orchestrator it will read utilization from, so
	// construction happens in two steps: the probe is built first over
	// the address of orch, then the Orchestrator is assigned to that
	// variable; the probe dereferences it on each read.
	var orch *orchestrator.Orchestrator
	p := probe.New(&orch)
	orch = orchestrator.New(logger.Log, orchCfg, p, monitor.WithRand01(probe.Rand01()))

	for i := 0; i < cfg.Orchestrator.DefaultEdgeNodes; i++ {
		orch.RegisterNode(fmt.Sprintf("edge-%d", i), true)
	}
	for i := 0; i < cfg.Orchestrator.DefaultCloudNodes; i++ {
		orch.RegisterNode(fmt.Sprintf("cloud-%d", i), false)
	}

	var jwtMgr *passhash.JWTManager
	if cfg.Orchestrator.JWTSecret != "" {
		jwtMgr = passhash.NewJWTManager(&passhash.JWTConfig{SecretKey: cfg.Orchestrator.JWTSecret, Issuer: cfg.App.Name})
	}

	var snapBackend cache.Cache
	if cfg.Cache.Enabled {
		backend, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("failed to init snapshot cache, falling back to per-instance snapshots", "error", err)
		} else {
			snapBackend = backend
		}
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		l, err := ratelimit.New(&ratelimit.Config{
			Requests:        cfg.RateLimit.Requests,
			Window:          cfg.RateLimit.Window,
			Strategy:        cfg.RateLimit.Strategy,
			Backend:         cfg.RateLimit.Backend,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
			RedisAddr:       cfg.RateLimit.RedisAddr,
		})
		if err != nil {
			logger.Log.Warn("failed to init rate limiter, continuing unthrottled", "error", err)
		} else {
			limiter = l
		}
	}

	var auditLogger audit.Logger
	if cfg.Audit.Enabled {
		auditLogger = audit.NewStdoutLogger(&audit.Config{
			Backend:    cfg.Audit.Backend,
			BufferSize: cfg.Audit.BufferSize,
		})
	}

	handler := httpapi.New(logger.Log, orch, hist, jwtMgr, snapBackend, limiter, auditLogger)
	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.Handle("GET /swagger/", swagger.NewHandler(swagger.DefaultConfig(), orchestratorOpenAPISpec))

	addr := ":" + portString(cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	orch.Start()
	defer func() {
		if err := orch.Stop(); err != nil {
			logger.Log.Warn("orchestrator shutdown did not complete cleanly", "error", err)
		}
	}()

	refineStop := make(chan struct{})
	if cfg.Orchestrator.RefinementInterval > 0 {
		go runPeriodicRefinement(orch, cfg.Orchestrator.RefinementInterval, refineStop)
	}
	defer close(refineStop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting orchestrator-svc", "addr", addr, "environment", cfg.App.Environment, "version", cfg.App.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	waitForShutdown(srv, cfg.HTTP.ShutdownTimeout, errCh)
}

func waitForShutdown(srv *http.Server, timeout time.Duration, errCh chan error) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal("server failed", "error", err)
	case sig := <-quit:
		logger.Log.Info("received shutdown signal", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Warn("graceful shutdown did not complete in time", "error", err)
	}
}

// runPeriodicRefinement re-runs the federated refinement loop on a fixed
// cadence, independent of any refinement already triggered by an
// operator through the HTTP API.
func runPeriodicRefinement(orch *orchestrator.Orchestrator, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			orch.Refine()
		}
	}
}

func portString(port int) string {
	if port == 0 {
		port = 8085
	}
	return strconv.Itoa(port)
}
