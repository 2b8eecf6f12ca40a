package schema

import (
	"errors"
	"fmt"
)

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is a single validation problem with location context.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Line     int                `json:"line,omitempty"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult aggregates all issues from the validation pipeline.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors (warnings are acceptable).
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// AddIssue appends an error-severity issue derived from err. DiagramErrors keep
// their code and line; any other error is reported as a validation error.
func (r *ValidationResult) AddIssue(path string, err error) {
	issue := ValidationIssue{Path: path, Code: ErrCodeValidation, Message: err.Error(), Severity: SeverityError}
	var de *DiagramError
	if errors.As(err, &de) {
		issue.Code = de.Code
		issue.Message = de.Message
		issue.Line = de.Line
	}
	r.Errors = append(r.Errors, issue)
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ToError converts the result to a DiagramError if invalid, nil if valid.
// A single error keeps its own code and line so callers can surface it verbatim.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	first := r.Errors[0]
	code, msg := first.Code, first.Message
	if len(r.Errors) > 1 {
		code = ErrCodeValidation
		msg = fmt.Sprintf("validation failed with %d errors", len(r.Errors))
	}

	return NewError(code, msg).
		WithLine(first.Line).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}

// FirstError returns the first error-severity issue as a DiagramError, or nil.
// Strict entry points surface this one issue to the user.
func (r *ValidationResult) FirstError() error {
	if r.Valid() {
		return nil
	}
	first := r.Errors[0]
	return NewError(first.Code, first.Message).WithLine(first.Line)
}
