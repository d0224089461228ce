package attendance

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrStudentAlreadyActive = errors.New("student already active")
	ErrSystemOccupied       = errors.New("system occupied")
	ErrNoActiveSession      = errors.New("no active session")
	ErrPersistence          = errors.New("persistence failure")
)

// RuleError is a rejected transition. Kind is one of the sentinel errors above and
// Message is the user-facing explanation naming who or what conflicts.
type RuleError struct {
	Kind    error
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

func reject(kind error, format string, args ...any) *RuleError {
	return &RuleError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrStudentAlreadyActive):
		return "STUDENT_ALREADY_ACTIVE"
	case errors.Is(err, ErrSystemOccupied):
		return "SYSTEM_OCCUPIED"
	case errors.Is(err, ErrNoActiveSession):
		return "NO_ACTIVE_SESSION"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE_FAILURE"
	default:
		return "INTERNAL_ERROR"
	}
}
