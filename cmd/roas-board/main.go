package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/roas-board/internal/analytics"
	"github.com/radiusdt/roas-board/internal/config"
	"github.com/radiusdt/roas-board/internal/dashboard"
	"github.com/radiusdt/roas-board/internal/httpserver"
	"github.com/radiusdt/roas-board/internal/metrics"
	"github.com/radiusdt/roas-board/internal/middleware"
	"github.com/radiusdt/roas-board/internal/presenter"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterMaxIdle         = 10 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if _, err := presenter.ResolveColumns(cfg.Dashboard.VisibleColumns); err != nil {
		fmt.Fprintf(os.Stderr, "invalid dashboard.visible_columns: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting roas-board",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	m := metrics.NewMetrics("roasboard")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	stores, err := openBackends(connectCtx, cfg, logger, m)
	cancel()
	if stores != nil {
		defer stores.Close(logger)
	}
	if err != nil {
		logger.Error("failed to open storage", zap.Error(err))
		return
	}

	criterion, _ := analytics.ParseSortCriterion(cfg.Dashboard.DefaultCriterion)
	view, _ := analytics.ParseView(cfg.Dashboard.DefaultView)
	svc := dashboard.NewService(stores.rows, stores.states, dashboard.Defaults{
		Criterion:      criterion,
		View:           view,
		TrailingDays:   cfg.Dashboard.TrailingDays,
		VisibleColumns: cfg.Dashboard.VisibleColumns,
	}, logger, m)

	deps := &httpserver.Dependencies{
		Service: svc,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Checks:  stores.checks,
	}
	if cfg.RateLimit.Enabled {
		deps.RateLimiter = middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
		deps.RateLimiter.SetMetrics(m)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpserver.NewServer(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go housekeeping(ctx, deps.RateLimiter, stores, m, logger)

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("server failed", zap.Error(err))
	}

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// housekeeping drops idle per-IP limiters and publishes pool stats until ctx ends.
func housekeeping(ctx context.Context, rl *middleware.RateLimitMiddleware, stores *backends, m *metrics.Metrics, logger *zap.Logger) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rl != nil {
				if n := rl.CleanupIPLimiters(limiterMaxIdle); n > 0 {
					logger.Debug("removed idle rate limiters", zap.Int("count", n))
				}
			}
			stores.recordPoolStats(m)
		}
	}
}
