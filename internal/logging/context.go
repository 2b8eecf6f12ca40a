package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey int

const (
	diagramIDKey ctxKey = iota
	diagramTypeKey
	requestIDKey
)

// WithDiagramID returns a context with the saved diagram ID set.
func WithDiagramID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, diagramIDKey, id)
}

// WithDiagramType returns a context with the diagram type tag set.
func WithDiagramType(ctx context.Context, typ string) context.Context {
	return context.WithValue(ctx, diagramTypeKey, typ)
}

// WithRequestID returns a context with the request ID set.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// DiagramID extracts the diagram ID from the context, or "" if absent.
func DiagramID(ctx context.Context) string {
	v, _ := ctx.Value(diagramIDKey).(string)
	return v
}

// DiagramType extracts the diagram type from the context, or "" if absent.
func DiagramType(ctx context.Context) string {
	v, _ := ctx.Value(diagramTypeKey).(string)
	return v
}

// RequestID extracts the request ID from the context, or "" if absent.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes. Parsers do not take a
// context, so callers hand them the enriched logger instead.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	logger = OrDiscard(logger)
	if id := RequestID(ctx); id != "" {
		logger = logger.With(slog.String("request_id", id))
	}
	if id := DiagramID(ctx); id != "" {
		logger = logger.With(slog.String("diagram_id", id))
	}
	if typ := DiagramType(ctx); typ != "" {
		logger = logger.With(slog.String("diagram_type", typ))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := RequestID(ctx); v != "" {
		r.AddAttrs(slog.String("request_id", v))
	}
	if v := DiagramID(ctx); v != "" {
		r.AddAttrs(slog.String("diagram_id", v))
	}
	if v := DiagramType(ctx); v != "" {
		r.AddAttrs(slog.String("diagram_type", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// OrDiscard returns logger, or a logger that drops everything when nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// ParseLevel maps a config string (debug, info, warn, error) to a level.
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the process logger: a text handler at the given level wrapped in
// a CorrelationHandler. A nil writer means stderr.
func New(w io.Writer, level string) *slog.Logger {
	return NewLeveled(w, ParseLevel(level))
}

// NewLeveled is New with a caller-owned level, typically a *slog.LevelVar
// that is changed while the process runs.
func NewLeveled(w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewCorrelationHandler(inner))
}
