package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/cache"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/repository"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/telemetry"
	"github.com/damocles-platform/gdpr-engine/internal/metrics"
	"github.com/damocles-platform/gdpr-engine/internal/service/escalation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create infrastructure logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	pool, err := repository.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	checkpoints, err := cache.NewCheckpointStore(cfg.Redis, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to checkpoint store: %v", err)
	}
	defer func() { _ = checkpoints.Close() }()

	registry, err := metrics.NewRegistry("gdpr-engine")
	if err != nil {
		log.Fatalf("Failed to create metrics registry: %v", err)
	}

	requests := repository.NewRequestRepository(pool)
	violations := repository.NewViolationRepository(pool)

	scheduler := escalation.NewScheduler(
		cfg.Scheduler,
		cfg.MassTrigger,
		requests,
		violations,
		newLogOnlyNotifier(logger),
		newLogOnlyCaseFiler(logger),
		checkpoints,
		logger,
		registry,
	)

	if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Scheduler stopped: %v", err)
	}
}
