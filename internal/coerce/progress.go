package coerce

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/pkg/schema"
)

// ParseProgress is the strict progress parser. Empty text is 0. A trailing
// "%" divides by 100; anything else must already be a fraction in [0,1].
func ParseProgress(text, label string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}

	raw, percent := strings.CutSuffix(text, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, invalidProgress(text, label).WithCause(err)
	}
	if percent {
		v /= 100
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, invalidProgress(text, label)
	}
	return v, nil
}

func invalidProgress(text, label string) *schema.DiagramError {
	return schema.NewErrorf(schema.ErrCodeInvalidProgress,
		"invalid progress %q for %s (expected 0-1 or 0%%-100%%)", text, label).
		WithDetails(map[string]any{"value": text, "field": label})
}

// ProgressCoercer is the best-effort progress policy. Values above 1 are read
// as percentages and the result is clamped to [0,1].
type ProgressCoercer struct {
	Logger *slog.Logger
}

// Parse never fails: unusable text yields 0 and a warning.
func (c ProgressCoercer) Parse(text, label string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	digits := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)

	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		logging.OrDiscard(c.Logger).Warn("progress unusable, using 0",
			"field", label, "value", text)
		return 0
	}
	if v > 1 {
		v /= 100
	}
	return min(max(v, 0), 1)
}
