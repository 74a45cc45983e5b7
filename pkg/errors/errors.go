// Package errors provides structured error handling for pullwatch.
// It implements coded errors with context and stack traces.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Code identifies an error class for programmatic handling.
type Code string

const (
	// Tokenizer errors (1xx)
	CodeMalformedTimestamp  Code = "E101"
	CodeFieldCountMismatch  Code = "E102"
	CodeTypeCoercionFailure Code = "E103"
	CodeEncodingError       Code = "E104"

	// Event factory errors (2xx)
	CodeUnknownEventTag         Code = "E201"
	CodeMalformedCombatantBlock Code = "E202"
	CodeAmountTypeMismatch      Code = "E203"

	// Segmentation errors (3xx)
	CodeUnroutableGuid Code = "E301"
	CodeBoundaryState  Code = "E302"

	// Driver errors (4xx)
	CodeFileNotFound    Code = "E401"
	CodeMapFailed       Code = "E402"
	CodeWorkerBoundary  Code = "E403"
	CodeContextCanceled Code = "E404"
	CodePanic           Code = "E405"

	// Export errors (5xx)
	CodeWriteFailed Code = "E501"

	// Unknown
	CodeUnknown Code = "E999"
)

// PullwatchError is the base error type for all pullwatch errors.
type PullwatchError struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *PullwatchError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *PullwatchError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *PullwatchError) Is(target error) bool {
	if t, ok := target.(*PullwatchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *PullwatchError) WithContext(key string, value interface{}) *PullwatchError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new PullwatchError.
func New(code Code, message string) *PullwatchError {
	return &PullwatchError{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *PullwatchError {
	if err == nil {
		return nil
	}

	return &PullwatchError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *PullwatchError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *PullwatchError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// FileNotFound creates a file not found error.
func FileNotFound(path string) *PullwatchError {
	return New(CodeFileNotFound, "file not found").WithContext("path", path)
}

// MalformedTimestamp creates a timestamp parsing error.
func MalformedTimestamp(value string) *PullwatchError {
	return New(CodeMalformedTimestamp, "line does not match timestamp grammar").
		WithContext("value", value)
}

// WorkerBoundary records a failure inside one worker's byte range.
func WorkerBoundary(err error, start, end int64) *PullwatchError {
	return Wrap(err, CodeWorkerBoundary, "worker failed inside boundary").
		WithContext("start", start).
		WithContext("end", end)
}

// ContextCanceled creates a cancellation error.
func ContextCanceled(operation string) *PullwatchError {
	return New(CodeContextCanceled, "operation canceled").
		WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var pwErr *PullwatchError
	if errors.As(err, &pwErr) {
		return pwErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var pwErr *PullwatchError
	if errors.As(err, &pwErr) {
		return pwErr.Code
	}
	return CodeUnknown
}

// IsFatal returns true if the error is unrecoverable for the whole run.
// Per-line and per-event failures are absorbed into counters and never
// reach this check.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeFileNotFound, CodeMapFailed, CodePanic:
		return true
	default:
		return false
	}
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
