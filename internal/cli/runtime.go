package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"labattend/internal/attendance"
	"labattend/internal/config"
	"labattend/internal/queue"
	"labattend/internal/report"
	"labattend/internal/store"
)

// Runtime is everything a command needs against the configured store.
type Runtime struct {
	Engine     *attendance.Engine
	Records    *store.Records
	Summarizer *report.Summarizer
	Cache      *report.Cache
	Queue      queue.Queue // nil unless a shared queue is configured
	Logger     *zap.Logger
	Now        func() time.Time
	Close      func() error
}

// Opener builds the runtime for a command invocation.
type Opener func(opts *RootOptions) (*Runtime, error)

// ConfigOpener loads configuration from the environment and opens the configured backends.
func ConfigOpener(opts *RootOptions) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return OpenRuntime(cfg, opts.Verbose)
}

// OpenRuntime wires a Runtime from cfg. Only a redis queue is attached, since an
// in-process queue has no consumer in a one-shot CLI.
func OpenRuntime(cfg config.App, verbose bool) (*Runtime, error) {
	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}

	kv, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q, err = queue.Open(cfg, store.RedisClient(kv), logger)
		if err != nil {
			_ = kv.Close()
			return nil, err
		}
	}

	rt, err := NewRuntime(kv, cfg, q, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return rt, nil
}

// NewRuntime builds a Runtime around an already opened KV backend.
func NewRuntime(kv store.KV, cfg config.App, q queue.Queue, logger *zap.Logger, opts ...attendance.Option) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	summarizer, err := report.FromConfig(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	records := store.NewRecords(kv, cfg.StorageKey, logger)
	return &Runtime{
		Engine:     attendance.NewEngine(records, opts...),
		Records:    records,
		Summarizer: summarizer,
		Cache:      report.NewCache(kv, cfg.SummaryKey),
		Queue:      q,
		Logger:     logger,
		Now:        time.Now,
		Close: func() error {
			_ = logger.Sync()
			return kv.Close()
		},
	}, nil
}

func (rt *Runtime) publish(ctx context.Context, op, id string) {
	if rt.Queue == nil {
		return
	}
	if err := rt.Queue.Publish(ctx, queue.NewChange(op, id)); err != nil {
		rt.Logger.Warn("queue publish failed", zap.String("op", op), zap.Error(err))
	}
}
