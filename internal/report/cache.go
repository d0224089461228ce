package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"labattend/internal/store"
)

// DefaultCacheKey is where the worker keeps the latest summary.
const DefaultCacheKey = "lab_attendance_summary"

// ErrNoSummary means nothing has been cached yet.
var ErrNoSummary = errors.New("no summary cached")

// Cache persists the latest Summary in a KV backend.
type Cache struct {
	kv  store.KV
	key string
}

// NewCache stores summaries under key, or DefaultCacheKey when empty.
func NewCache(kv store.KV, key string) *Cache {
	if key == "" {
		key = DefaultCacheKey
	}
	return &Cache{kv: kv, key: key}
}

// Get returns the cached summary, or ErrNoSummary if none was stored.
func (c *Cache) Get(ctx context.Context) (Summary, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if errors.Is(err, store.ErrNotFound) {
		return Summary{}, ErrNoSummary
	}
	if err != nil {
		return Summary{}, fmt.Errorf("read summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	return s, nil
}

// Put replaces the cached summary.
func (c *Cache) Put(ctx context.Context, s Summary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
