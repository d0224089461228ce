package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labattend/internal/attendance"
	"labattend/internal/config"
	"labattend/internal/handler"
	"labattend/internal/httpmiddleware"
	"labattend/internal/logging"
	"labattend/internal/metrics"
	"labattend/internal/queue"
	"labattend/internal/report"
	"labattend/internal/store"
	"labattend/internal/worker"
)

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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	kv, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	q, err := queue.Open(cfg, store.RedisClient(kv), logger)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records := store.NewRecords(kv, cfg.StorageKey, logger)
	summarizer, err := report.FromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("summarizer: %w", err)
	}
	cache := report.NewCache(kv, cfg.SummaryKey)
	m := metrics.New()

	// With the in-memory queue nobody else can consume, so refresh summaries in-process.
	if _, ok := q.(*queue.InMemory); ok {
		messages, err := q.Consume(ctx)
		if err != nil {
			return fmt.Errorf("consume queue: %w", err)
		}
		refresher := worker.NewRefresher(records, summarizer, cache, cfg.SummaryDebounce, m, logger)
		go refresher.Run(ctx, messages)
	}

	h := handler.New(handler.Deps{
		Engine:     attendance.NewEngine(records),
		Records:    records,
		Queue:      q,
		Summarizer: summarizer,
		Cache:      cache,
		Metrics:    m,
		Logger:     logger,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware(logger, "/healthz", "/metrics"))
	r.Use(m.GinMiddleware())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(m.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SummaryTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreBackend),
			zap.String("queue", cfg.QueueBackend),
			zap.Bool("summary_enabled", cfg.GeminiAPIKey != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
