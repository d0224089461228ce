package store

import (
	"context"
	"fmt"
	"time"

	"labattend/internal/config"
)

// Open returns the KV backend selected by cfg.StoreBackend.
func Open(cfg config.App) (KV, error) {
	switch cfg.StoreBackend {
	case "", "file":
		return NewFile(cfg.DataDir)
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "postgres":
		return NewPostgres(cfg.DatabaseURL)
	case "redis":
		r := NewRedis(cfg.RedisAddr)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
