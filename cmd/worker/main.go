package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"labattend/internal/config"
	"labattend/internal/logging"
	"labattend/internal/queue"
	"labattend/internal/report"
	"labattend/internal/store"
	"labattend/internal/worker"
)

// Worker consumes records.changed messages and keeps the cached summary fresh.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		logger.Warn("worker started with a non-shared queue; it will only see its own messages",
			zap.String("queue", cfg.QueueBackend))
	}

	kv, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	q, err := queue.Open(cfg, store.RedisClient(kv), logger)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}

	summarizer, err := report.FromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("summarizer: %w", err)
	}

	records := store.NewRecords(kv, cfg.StorageKey, logger)
	refresher := worker.NewRefresher(
		records,
		summarizer,
		report.NewCache(kv, cfg.SummaryKey),
		cfg.SummaryDebounce,
		nil,
		logger,
	)

	// Start from a fresh summary so GET /v1/summary has something to serve.
	if _, err := refresher.Refresh(ctx); err != nil {
		logger.Warn("initial summary refresh failed", zap.Error(err))
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}

	logger.Info("worker started, waiting for messages", zap.Duration("debounce", cfg.SummaryDebounce))
	refresher.Run(ctx, messages)
	logger.Info("worker stopped")
	return nil
}
