package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CheckInRequest opens a session. Empty Date and CheckInTime default to the engine clock.
type CheckInRequest struct {
	StudentName  string
	SystemNumber string
	Date         string
	CheckInTime  string
}

// CheckOutRequest closes the session matching both student and system.
// Empty CheckOutTime defaults to the engine clock.
type CheckOutRequest struct {
	StudentName  string
	SystemNumber string
	CheckOutTime string
}

// Engine enforces the single-active-session rules. It keeps no state between calls:
// every decision is made against a fresh snapshot from the store. Transitions on one
// Engine are serialized so snapshot, decision and write happen as one step; share a
// single Engine per store within a process.
type Engine struct {
	store Store
	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock used for defaults and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an engine backed by store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckIn validates and records a new active session.
func (e *Engine) CheckIn(ctx context.Context, req CheckInRequest) (Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, err := e.snapshot(ctx)
	if err != nil {
		return Record{}, err
	}
	now := e.now()
	if req.Date == "" {
		req.Date = now.Format(DateLayout)
	}
	if req.CheckInTime == "" {
		req.CheckInTime = now.Format(TimeLayout)
	}
	rec, err := DecideCheckIn(snapshot, req, now, e.newID())
	if err != nil {
		return Record{}, err
	}
	if err := e.store.Append(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("%w: append record: %v", ErrPersistence, err)
	}
	return rec, nil
}

// CheckOut closes the caller's active session on the given system.
func (e *Engine) CheckOut(ctx context.Context, req CheckOutRequest) (Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, err := e.snapshot(ctx)
	if err != nil {
		return Record{}, err
	}
	if req.CheckOutTime == "" {
		req.CheckOutTime = e.now().Format(TimeLayout)
	}
	rec, err := DecideCheckOut(snapshot, req)
	if err != nil {
		return Record{}, err
	}
	if err := e.store.Update(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("%w: update record: %v", ErrPersistence, err)
	}
	return rec, nil
}

func (e *Engine) snapshot(ctx context.Context) ([]Record, error) {
	records, err := e.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load records: %v", ErrPersistence, err)
	}
	return records, nil
}

// DecideCheckIn returns the record a check-in would create against snapshot, or the
// first rule it breaks. It does not touch any store.
func DecideCheckIn(snapshot []Record, req CheckInRequest, now time.Time, id string) (Record, error) {
	name := strings.TrimSpace(req.StudentName)
	system := NormalizeSystem(req.SystemNumber)
	if name == "" || system == "" {
		return Record{}, reject(ErrValidation, "Please fill in all fields")
	}
	if !validDate(req.Date) {
		return Record{}, reject(ErrValidation, "Date %q must be YYYY-MM-DD", req.Date)
	}
	if _, err := ParseClock(req.CheckInTime); err != nil {
		return Record{}, reject(ErrValidation, "Check-in time %q must be HH:mm", req.CheckInTime)
	}

	key := NormalizeName(name)
	for _, r := range snapshot {
		if r.IsActive() && NormalizeName(r.StudentName) == key {
			return Record{}, reject(ErrStudentAlreadyActive,
				"%s is already checked in on system #%s. Please check out first.", name, r.SystemNumber)
		}
	}
	for _, r := range snapshot {
		if r.IsActive() && NormalizeSystem(r.SystemNumber) == system {
			return Record{}, reject(ErrSystemOccupied,
				"System #%s is currently occupied by %s.", system, r.StudentName)
		}
	}

	return Record{
		ID:           id,
		StudentName:  name,
		SystemNumber: system,
		Date:         req.Date,
		CheckInTime:  req.CheckInTime,
		Status:       StatusActive,
		Timestamp:    nextTimestamp(snapshot, now),
	}, nil
}

// DecideCheckOut returns the completed form of the matching active session.
func DecideCheckOut(snapshot []Record, req CheckOutRequest) (Record, error) {
	name := strings.TrimSpace(req.StudentName)
	system := NormalizeSystem(req.SystemNumber)
	if name == "" || system == "" {
		return Record{}, reject(ErrValidation, "Please fill in all fields")
	}
	if _, err := ParseClock(req.CheckOutTime); err != nil {
		return Record{}, reject(ErrValidation, "Check-out time %q must be HH:mm", req.CheckOutTime)
	}

	active, ok := ActiveSession(snapshot, name, system)
	if !ok {
		return Record{}, reject(ErrNoActiveSession,
			"No active session found for %s on system #%s.", name, system)
	}
	minutes, err := SessionMinutes(active.CheckInTime, req.CheckOutTime)
	if err != nil {
		// Stored check-in time is not HH:mm.
		return Record{}, reject(ErrValidation, "Session %s has an invalid check-in time: %v", active.ID, err)
	}

	out := req.CheckOutTime
	active.CheckOutTime = &out
	active.DurationMinutes = &minutes
	active.Status = StatusCompleted
	return active, nil
}

// ActiveSession finds the open session for the student on the system.
func ActiveSession(records []Record, studentName, systemNumber string) (Record, bool) {
	system := NormalizeSystem(systemNumber)
	for _, r := range records {
		if r.IsActive() && NormalizeSystem(r.SystemNumber) == system && sameStudent(r.StudentName, studentName) {
			return r, true
		}
	}
	return Record{}, false
}

// nextTimestamp keeps creation order strictly increasing even if the wall clock steps back.
func nextTimestamp(snapshot []Record, now time.Time) int64 {
	ts := now.UnixMilli()
	for _, r := range snapshot {
		if r.Timestamp >= ts {
			ts = r.Timestamp + 1
		}
	}
	return ts
}
