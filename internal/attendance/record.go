package attendance

import "context"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
)

// Record is one check-in/check-out session at a workstation.
// The JSON shape is the persisted layout; optional fields are omitted while a session is open.
type Record struct {
	ID              string  `json:"id"`
	StudentName     string  `json:"studentName"`
	SystemNumber    string  `json:"systemNumber"`
	Date            string  `json:"date"`
	CheckInTime     string  `json:"checkInTime"`
	CheckOutTime    *string `json:"checkOutTime,omitempty"`
	DurationMinutes *int    `json:"durationMinutes,omitempty"`
	Status          Status  `json:"status"`
	Timestamp       int64   `json:"timestamp"`
}

// IsActive reports whether the session is still open.
func (r Record) IsActive() bool {
	return r.Status == StatusActive
}

// Store is the persistence surface the Engine needs. Implementations own the collection.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
