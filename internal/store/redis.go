package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores each key as a plain Redis string.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts. Each override is applied to
// the options before the client is built.
func NewRedis(addr string, overrides ...func(*redis.Options)) *Redis {
	opts := &redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	}
	for _, o := range overrides {
		o(opts)
	}
	return &Redis{Client: redis.NewClient(opts)}
}

// RedisClient returns the client behind kv when it is a Redis backend, else nil.
func RedisClient(kv KV) *redis.Client {
	if r, ok := kv.(*Redis); ok && r != nil {
		return r.Client
	}
	return nil
}

// Get reads key, or ErrNotFound when it is unset.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

// Set writes key with no expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.Client.Set(ctx, key, value, 0).Err()
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.Client.Del(ctx, key).Err()
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
