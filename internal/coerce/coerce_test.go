package coerce

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mindflow/pkg/schema"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestParseDate_Layouts(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-05", "2024-01-05"},
		{"2024-1-5", "2024-01-05"},
		{"2024/01/05", "2024-01-05"},
		{"03/04/2024", "2024-03-04"},
		{"13/04/2024", "2024-04-13"},
		{"2024-01-05 14:30:00", "2024-01-05"},
		{"2024-01-05 14:30", "2024-01-05"},
		{"  2024-02-29  ", "2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in, "start")
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
			assert.Equal(t, time.UTC, d.Location())
			assert.Zero(t, d.Hour())
		})
	}
}

func TestParseDate_Empty(t *testing.T) {
	_, err := ParseDate("   ", "start")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeMissingValue))
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("next tuesday", "end")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidDateFormat))
	assert.Contains(t, err.Error(), "next tuesday")
	assert.Contains(t, err.Error(), "end")
}

func TestDateCoercer_StartFallsBackToToday(t *testing.T) {
	logger, buf := newTestLogger()
	c := DateCoercer{
		Now:    func() time.Time { return time.Date(2024, 6, 15, 17, 45, 0, 0, time.UTC) },
		Logger: logger,
	}

	assert.Equal(t, "2024-01-02", c.Start("2024-01-02", "start").String())
	assert.Empty(t, buf.String())

	assert.Equal(t, "2024-06-15", c.Start("garbage", "start").String())
	assert.Contains(t, buf.String(), "start date unusable")
}

func TestDateCoercer_EndFallsBackToStartPlusOne(t *testing.T) {
	logger, buf := newTestLogger()
	c := DateCoercer{Logger: logger}
	start := schema.NewDate(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "2025-01-01", c.End("", "end", start).String())
	assert.Contains(t, buf.String(), "end date unusable")
}

func TestParseProgress_Strict(t *testing.T) {
	ok := map[string]float64{
		"":      0,
		"50%":   0.5,
		"0.5":   0.5,
		"1":     1,
		"100%":  1,
		"0":     0,
		" 25 %": 0.25,
	}
	for in, want := range ok {
		t.Run("ok "+in, func(t *testing.T) {
			got, err := ParseProgress(in, "progress")
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-9)
		})
	}

	for _, in := range []string{"150", "1.5", "-0.1", "abc", "150%", "NaN", "nan%", "Inf", "-Inf"} {
		t.Run("bad "+in, func(t *testing.T) {
			_, err := ParseProgress(in, "progress")
			require.Error(t, err)
			assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidProgress))
		})
	}
}

func TestProgressCoercer_Lenient(t *testing.T) {
	logger, buf := newTestLogger()
	c := ProgressCoercer{Logger: logger}

	assert.InDelta(t, 0.5, c.Parse("50%", "progress"), 1e-9)
	assert.InDelta(t, 0.5, c.Parse("0.5", "progress"), 1e-9)
	assert.InDelta(t, 1.0, c.Parse("150", "progress"), 1e-9)
	assert.InDelta(t, 0.0, c.Parse("", "progress"), 1e-9)
	assert.InDelta(t, 0.75, c.Parse("75 pct", "progress"), 1e-9)
	assert.Empty(t, buf.String())

	assert.InDelta(t, 0.0, c.Parse("done", "progress"), 1e-9)
	assert.Contains(t, buf.String(), "progress unusable")
}

func TestProgressCoercer_ClampsHugeValues(t *testing.T) {
	c := ProgressCoercer{}
	assert.InDelta(t, 1.0, c.Parse("5000", "progress"), 1e-9)
}
