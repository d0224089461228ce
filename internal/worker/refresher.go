package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"labattend/internal/attendance"
	"labattend/internal/queue"
	"labattend/internal/report"
)

// RecordLoader reads the current record set.
type RecordLoader interface {
	Load(ctx context.Context) ([]attendance.Record, error)
}

// SummaryObserver is told the outcome of every regeneration.
type SummaryObserver interface {
	Summary(outcome string)
}

// Refresher regenerates the cached summary after the record set changes.
type Refresher struct {
	records    RecordLoader
	summarizer *report.Summarizer
	cache      *report.Cache
	debounce   time.Duration
	observer   SummaryObserver
	logger     *zap.Logger
}

// NewRefresher wires a refresher. observer may be nil.
func NewRefresher(records RecordLoader, summarizer *report.Summarizer, cache *report.Cache, debounce time.Duration, observer SummaryObserver, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		records:    records,
		summarizer: summarizer,
		cache:      cache,
		debounce:   debounce,
		observer:   observer,
		logger:     logger,
	}
}

// Run consumes messages until ctx is done or the channel closes. A burst of
// records.changed messages inside the debounce window causes one regeneration.
func (r *Refresher) Run(ctx context.Context, messages <-chan queue.Message) {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending bool
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				if pending {
					r.Refresh(ctx)
				}
				return
			}
			if msg.Type != queue.TypeRecordsChanged {
				r.logger.Debug("ignoring message", zap.String("type", msg.Type))
				continue
			}
			pending = true
			if r.debounce <= 0 {
				pending = false
				r.Refresh(ctx)
				continue
			}
			stop()
			timer = time.NewTimer(r.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			pending = false
			r.Refresh(ctx)
		}
	}
}

// Refresh regenerates and stores the summary once.
func (r *Refresher) Refresh(ctx context.Context) (report.Summary, error) {
	records, err := r.records.Load(ctx)
	if err != nil {
		// Keep the last good summary rather than caching one about an empty set.
		r.logger.Warn("skipping summary refresh, records unreadable", zap.Error(err))
		return report.Summary{}, err
	}

	summary := r.summarizer.Summarize(ctx, records)
	if r.observer != nil {
		outcome := "ok"
		if summary.Fallback {
			outcome = "fallback"
		}
		r.observer.Summary(outcome)
	}

	if err := r.cache.Put(ctx, summary); err != nil {
		r.logger.Error("store summary", zap.Error(err))
		return summary, err
	}
	r.logger.Info("summary refreshed",
		zap.Int("records", summary.RecordCount),
		zap.Bool("fallback", summary.Fallback),
	)
	return summary, nil
}
