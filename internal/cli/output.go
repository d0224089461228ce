package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"labattend/internal/attendance"
)

// Exit codes for labctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a check-in/check-out rule rejected the request
	ExitCommandError = 2 // bad flags, config or storage
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Errors that are not an
// ExitError (cobra flag parsing, for example) count as command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// ruleError maps an engine error onto an exit code. Rule rejections exit 1,
// persistence failures exit 2.
func ruleError(err error) error {
	var rule *attendance.RuleError
	if errors.As(err, &rule) && !errors.Is(err, attendance.ErrPersistence) {
		return &ExitError{Code: ExitFailure, Message: rule.Message, Err: rule.Kind}
	}
	return WrapExitError(ExitCommandError, "storage", err)
}

// OutputFormatter renders command results as text, JSON or YAML.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Emit writes text in text mode and data otherwise.
func (f *OutputFormatter) Emit(text string, data any) error {
	switch f.Format {
	case "json":
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		// Round-trip through JSON so YAML keys match the JSON field names.
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = f.Writer.Write(out)
		return err
	default:
		_, err := fmt.Fprintln(f.Writer, text)
		return err
	}
}

// VerboseLog writes diagnostics to ErrWriter when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
