package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"labattend/internal/attendance"
)

// DefaultKey is the well-known key holding the whole record collection.
const DefaultKey = "lab_attendance_db"

// Records persists the full attendance collection as one JSON array under a single key.
// Every mutation is a read-modify-write of the whole array.
type Records struct {
	kv     KV
	key    string
	logger *zap.Logger

	// writeMu serializes read-modify-write cycles within this process.
	writeMu sync.Mutex

	mu      sync.Mutex
	lastErr error
}

// NewRecords builds a record store on kv. An empty key selects DefaultKey.
func NewRecords(kv KV, key string, logger *zap.Logger) *Records {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Records{kv: kv, key: key, logger: logger}
}

// Load returns all records in insertion order. A missing key is an empty collection.
// When the stored value can't be read or decoded, Load logs it and returns an empty
// slice together with an error wrapping attendance.ErrPersistence.
func (s *Records) Load(ctx context.Context) ([]attendance.Record, error) {
	records, err := s.read(ctx)
	if err != nil {
		s.logger.Error("load attendance records", zap.String("key", s.key), zap.Error(err))
		s.setErr(err)
		return []attendance.Record{}, err
	}
	s.setErr(nil)
	return records, nil
}

// Append adds rec to the end of the collection. Id uniqueness is the caller's job.
func (s *Records) Append(ctx context.Context, rec attendance.Record) error {
	return s.mutate(ctx, "append", func(records []attendance.Record) ([]attendance.Record, bool) {
		return append(records, rec), true
	})
}

// Update replaces the record with the same id in place. Unknown ids are ignored.
func (s *Records) Update(ctx context.Context, rec attendance.Record) error {
	return s.mutate(ctx, "update", func(records []attendance.Record) ([]attendance.Record, bool) {
		for i := range records {
			if records[i].ID == rec.ID {
				records[i] = rec
				return records, true
			}
		}
		return records, false
	})
}

// Remove deletes the record with id, if present.
func (s *Records) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, "remove", func(records []attendance.Record) ([]attendance.Record, bool) {
		out := records[:0]
		for _, r := range records {
			if r.ID != id {
				out = append(out, r)
			}
		}
		return out, len(out) != len(records)
	})
}

// Clear deletes the whole collection.
func (s *Records) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return s.fail("clear", err)
	}
	s.setErr(nil)
	return nil
}

// LastError reports the most recent persistence failure, or nil if the last operation succeeded.
func (s *Records) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Ping checks the backend.
func (s *Records) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// mutate refuses to write when the current value is unreadable so a corrupt
// collection is never silently replaced.
func (s *Records) mutate(ctx context.Context, op string, fn func([]attendance.Record) ([]attendance.Record, bool)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	records, err := s.read(ctx)
	if err != nil {
		return s.fail(op, err)
	}
	records, changed := fn(records)
	if !changed {
		s.setErr(nil)
		return nil
	}
	b, err := json.Marshal(records)
	if err != nil {
		return s.fail(op, fmt.Errorf("%w: encode records: %v", attendance.ErrPersistence, err))
	}
	if err := s.kv.Set(ctx, s.key, b); err != nil {
		return s.fail(op, fmt.Errorf("%w: write records: %v", attendance.ErrPersistence, err))
	}
	s.setErr(nil)
	return nil
}

func (s *Records) read(ctx context.Context) ([]attendance.Record, error) {
	b, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return []attendance.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read records: %v", attendance.ErrPersistence, err)
	}
	return decodeRecords(b)
}

func (s *Records) fail(op string, err error) error {
	if !errors.Is(err, attendance.ErrPersistence) {
		err = fmt.Errorf("%w: %s: %v", attendance.ErrPersistence, op, err)
	}
	s.logger.Error("persist attendance records", zap.String("op", op), zap.String("key", s.key), zap.Error(err))
	s.setErr(err)
	return err
}

func (s *Records) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// decodeRecords tolerates older shapes: missing optional fields stay absent and a
// missing status is inferred from the presence of a check-out time.
func decodeRecords(b []byte) ([]attendance.Record, error) {
	if len(b) == 0 {
		return []attendance.Record{}, nil
	}
	var records []attendance.Record
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("%w: decode records: %v", attendance.ErrPersistence, err)
	}
	if records == nil {
		records = []attendance.Record{}
	}
	for i := range records {
		if records[i].Status == "" {
			if records[i].CheckOutTime != nil {
				records[i].Status = attendance.StatusCompleted
			} else {
				records[i].Status = attendance.StatusActive
			}
		}
	}
	return records, nil
}
