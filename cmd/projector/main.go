package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyakaran/platform/internal/guard"
	"github.com/vyakaran/platform/internal/infra"
	"github.com/vyakaran/platform/internal/projection"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("projector failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	// Only a shared cache makes invalidation from another process meaningful.
	if !cfg.RedisEnabled {
		return fmt.Errorf("projector requires REDIS_ENABLED=true")
	}
	client, err := infra.NewRedisClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer client.Close()
	breaker := guard.NewCircuitBreaker(cfg.CacheBreakerThreshold, cfg.CacheBreakerCooldown)
	store := projection.NewGuardedStore(projection.NewRedisStore(client), breaker, "redis")

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, infra.ProgressTopics(cfg.KafkaTopicPrefix), cfg.KafkaGroupID, cfg.KafkaEnabled, logger)
	defer consumer.Close()
	if !consumer.Enabled() {
		return fmt.Errorf("projector requires KAFKA_ENABLED=true and KAFKA_BROKERS")
	}

	projector := projection.NewProjector(store, logger)
	logger.Info("projector started", "group", cfg.KafkaGroupID)

	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info("projector shutting down")
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		// Cached entries carry short TTLs, so a failed invalidation heals on its own.
		if err := projector.Apply(ctx, msg.Value); err != nil {
			logger.Warn("projection update failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}
