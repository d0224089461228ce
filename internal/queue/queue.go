package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"labattend/internal/config"
	"labattend/internal/store"
)

// popReadTimeout covers the BRPOP wait on a client the queue owns.
const popReadTimeout = 10 * time.Second

// TypeRecordsChanged is published after every successful mutation of the record set.
const TypeRecordsChanged = "records.changed"

// Message represents work to be processed.
type Message struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
	At   time.Time       `json:"at"`
}

// Change is the body of a records.changed message.
type Change struct {
	Op       string `json:"op"`
	RecordID string `json:"recordId,omitempty"`
}

// NewChange builds a records.changed message.
func NewChange(op, recordID string) Message {
	body, _ := json.Marshal(Change{Op: op, RecordID: recordID})
	return Message{Type: TypeRecordsChanged, Body: body, At: time.Now().UTC()}
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a bounded channel-backed queue for single-process runs and tests.
// Publish never blocks: when the buffer is full the message is dropped, since a
// pending records.changed already covers it.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 1
	}
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- msg:
	default:
	}
	return nil
}

// Consume returns a channel for workers. It closes when ctx is done.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = "attendance:changes"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{client: client, key: key, logger: logger}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	raw, err := serialize(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Consume streams messages using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					q.logger.Warn("queue pop failed", zap.Error(err))
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			msg, err := deserialize(res[1])
			if err != nil {
				q.logger.Warn("dropping malformed queue message", zap.Error(err))
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Open selects the backend named by cfg.QueueBackend. A redis queue reuses
// shared when it is non-nil, e.g. the record store's client.
func Open(cfg config.App, shared *redis.Client, logger *zap.Logger) (Queue, error) {
	switch cfg.QueueBackend {
	case "", "memory":
		return NewInMemory(64), nil
	case "redis":
		client := shared
		if client == nil {
			client = store.NewRedis(cfg.RedisAddr, func(o *redis.Options) {
				o.ReadTimeout = popReadTimeout
			}).Client
		}
		return NewRedisQueue(client, cfg.QueueKey, logger), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}

func serialize(msg Message) (string, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return string(raw), nil
}

func deserialize(s string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(s), &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, errors.New("decode message: missing type")
	}
	return msg, nil
}
