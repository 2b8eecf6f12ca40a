package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeEmptyOrInvalidTree   = "EMPTY_OR_INVALID_HIERARCHY"
	ErrCodeMissingValue         = "MISSING_VALUE"
	ErrCodeInvalidDateFormat    = "INVALID_DATE_FORMAT"
	ErrCodeInvalidDateRange     = "INVALID_DATE_RANGE"
	ErrCodeInvalidProgress      = "INVALID_PROGRESS_VALUE"
	ErrCodeInvalidDiagramHeader = "INVALID_DIAGRAM_HEADER"
	ErrCodeEmptyGanttInput      = "EMPTY_GANTT_INPUT"
	ErrCodeCycleDetected        = "CYCLE_DETECTED"
	ErrCodeMalformedCSV         = "MALFORMED_CSV"
	ErrCodeUnsupportedType      = "UNSUPPORTED_DIAGRAM_TYPE"
	ErrCodeExecution            = "EXECUTION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeStore                = "STORE_ERROR"
)

// DiagramError is the structured error type returned by all parsing and
// validation entry points. Line is the 1-based row or line the problem was
// found on, 0 when the error is not tied to a position.
type DiagramError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Line    int            `json:"line,omitempty"`
	Cause   error          `json:"-"`
}

func (e *DiagramError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DiagramError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *DiagramError with the same code, so that
// errors.Is(err, schema.NewError(code, "")) matches on code alone.
func (e *DiagramError) Is(target error) bool {
	t, ok := target.(*DiagramError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new DiagramError.
func NewError(code, message string) *DiagramError {
	return &DiagramError{Code: code, Message: message}
}

// NewErrorf creates a new DiagramError with a formatted message.
func NewErrorf(code, format string, args ...any) *DiagramError {
	return &DiagramError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithLine attaches a 1-based row or line number.
func (e *DiagramError) WithLine(line int) *DiagramError {
	e.Line = line
	return e
}

// WithCause attaches an underlying cause.
func (e *DiagramError) WithCause(err error) *DiagramError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *DiagramError) WithDetails(details map[string]any) *DiagramError {
	e.Details = details
	return e
}

// HasCode reports whether err is a *DiagramError carrying code.
func HasCode(err error, code string) bool {
	return errors.Is(err, &DiagramError{Code: code})
}
