// Package coerce turns loosely formatted cell text into dates and progress
// fractions. Each value type has a strict parser that returns a typed error
// and a lenient coercer that substitutes a default and logs a warning.
package coerce

import (
	"log/slog"
	"strings"
	"time"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/pkg/schema"
)

// dateLayouts are tried in order; the first successful parse wins, so an
// ambiguous "03/04/2024" reads as March 4.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"1/2/2006",
	"2/1/2006",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
}

// ParseDate parses text against the supported layouts and truncates the
// result to midnight UTC. label names the field in error messages.
func ParseDate(text, label string) (schema.Date, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return schema.Date{}, schema.NewErrorf(schema.ErrCodeMissingValue, "%s is empty", label)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return schema.NewDate(t), nil
		}
	}
	return schema.Date{}, schema.NewErrorf(schema.ErrCodeInvalidDateFormat,
		"invalid date %q for %s (expected YYYY-MM-DD, YYYY/MM/DD, MM/DD/YYYY or DD/MM/YYYY)", text, label).
		WithDetails(map[string]any{"value": text, "field": label})
}

// DateCoercer is the best-effort date policy used while ingesting task
// tables for preview.
type DateCoercer struct {
	// Now supplies today's date. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Start parses a start date, falling back to today.
func (c DateCoercer) Start(text, label string) schema.Date {
	d, err := ParseDate(text, label)
	if err == nil {
		return d
	}
	today := schema.NewDate(c.now())
	logging.OrDiscard(c.Logger).Warn("start date unusable, using today",
		"field", label, "value", text, "fallback", today.String(), "error", err)
	return today
}

// End parses an end date, falling back to the day after start.
func (c DateCoercer) End(text, label string, start schema.Date) schema.Date {
	d, err := ParseDate(text, label)
	if err == nil {
		return d
	}
	next := start.AddDays(1)
	logging.OrDiscard(c.Logger).Warn("end date unusable, using start + 1 day",
		"field", label, "value", text, "fallback", next.String(), "error", err)
	return next
}

func (c DateCoercer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
