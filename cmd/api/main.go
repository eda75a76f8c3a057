package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyakaran/platform/internal/app"
	"github.com/vyakaran/platform/internal/auth"
	"github.com/vyakaran/platform/internal/guard"
	"github.com/vyakaran/platform/internal/infra"
	"github.com/vyakaran/platform/internal/projection"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := infra.RunMigrations(cfg, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Projection cache
	var store projection.Store = projection.NewInMemoryStore()
	redisClient, err := infra.NewRedisClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		store = projection.NewRedisStore(redisClient)
	}
	breaker := guard.NewCircuitBreaker(cfg.CacheBreakerThreshold, cfg.CacheBreakerCooldown)
	store = projection.NewGuardedStore(store, breaker, "redis")

	// Parse JWT expiry durations
	learnerExpiry, err := time.ParseDuration(cfg.JWTLearnerExpiry)
	if err != nil {
		return fmt.Errorf("parse learner JWT expiry: %w", err)
	}
	adminExpiry, err := time.ParseDuration(cfg.JWTAdminExpiry)
	if err != nil {
		return fmt.Errorf("parse admin JWT expiry: %w", err)
	}
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, learnerExpiry, adminExpiry)

	hub := infra.NewNotifyHub(logger)

	r := app.NewRouter(app.RouterDeps{
		DB:              pool,
		Health:          func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) },
		Tx:              infra.NewTxRunner(pool, cfg.TxMaxAttempts, logger),
		Repos:           app.PostgresRepositories(),
		JWTMgr:          jwtMgr,
		Store:           store,
		Hub:             hub,
		Logger:          logger,
		Location:        loc,
		SpendRateLimit:  cfg.SpendRateLimit,
		SpendRateWindow: cfg.SpendRateWindow,
		IdempotencyTTL:  cfg.IdempotencyTTL,
		CORSOrigins:     cfg.CORSAllowedOrigins,
	})

	// Start server. WriteTimeout stays zero so progress streams are not cut off.
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server starting", "addr", addr, "streak_timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		hub.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
