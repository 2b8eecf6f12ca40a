// Package convert dispatches raw diagram text to the parser for its type.
package convert

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/mindflow/internal/diagram"
	"github.com/rendis/mindflow/internal/gantt"
	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/mermaid"
	"github.com/rendis/mindflow/internal/mindmap"
	"github.com/rendis/mindflow/internal/source"
	"github.com/rendis/mindflow/pkg/schema"
)

// Result is the outcome of parsing one diagram. Exactly one of Mindmap,
// Gantt or Flowchart is set, matching Type.
type Result struct {
	Type      schema.DiagramType  `json:"type"`
	Mindmap   *schema.MindmapNode `json:"mindmap,omitempty"`
	Gantt     *schema.GanttChart  `json:"gantt,omitempty"`
	Flowchart *schema.Flowchart   `json:"flowchart,omitempty"`
}

// Payload returns the value the renderer consumes for r.Type.
func (r *Result) Payload() any {
	switch r.Type {
	case schema.DiagramMindmap:
		return r.Mindmap
	case schema.DiagramGantt:
		return r.Gantt
	case schema.DiagramFlowchart:
		return r.Flowchart
	}
	return nil
}

// Model converts the parsed diagram into the shared render model.
func (r *Result) Model() *diagram.DiagramModel {
	switch r.Type {
	case schema.DiagramMindmap:
		return diagram.FromMindmap(r.Mindmap)
	case schema.DiagramGantt:
		return diagram.FromGantt(r.Gantt.Tasks)
	default:
		return diagram.FromFlowchart(r.Flowchart)
	}
}

// Converter parses and validates diagram text by type tag. It holds no
// per-call state and is safe for concurrent use.
type Converter struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Converter.
type Option func(*Converter)

// WithClock overrides the clock used when Gantt start dates are guessed.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) { c.now = now }
}

// New creates a Converter. A nil logger discards parser warnings.
func New(logger *slog.Logger, opts ...Option) *Converter {
	c := &Converter{logger: logging.OrDiscard(logger), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parse runs the best-effort parser for typ. Lenient repairs are logged with
// the correlation fields carried by ctx.
func (c *Converter) Parse(ctx context.Context, typ schema.DiagramType, text string) (*Result, error) {
	logger := logging.LogWith(logging.WithDiagramType(ctx, string(typ)), c.logger)

	res := &Result{Type: typ}
	switch typ {
	case schema.DiagramMindmap:
		root, err := mindmap.Parse(text, logger)
		if err != nil {
			return nil, err
		}
		res.Mindmap = root
	case schema.DiagramGantt:
		table, err := source.ReadTable(text)
		if err != nil {
			return nil, err
		}
		tasks, err := gantt.NewBuilder(logger, gantt.WithClock(c.now)).BuildTable(table)
		if err != nil {
			return nil, err
		}
		res.Gantt = gantt.Chart(tasks)
	case schema.DiagramFlowchart:
		fc, err := mermaid.Parse(text, logger)
		if err != nil {
			return nil, err
		}
		res.Flowchart = fc
	default:
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedType, "unsupported diagram type %q", typ)
	}

	logger.Debug("diagram parsed")
	return res, nil
}

// Validate runs the strict checks for typ. The message is empty when valid.
func (c *Converter) Validate(ctx context.Context, typ schema.DiagramType, text string) (bool, string) {
	logger := logging.LogWith(logging.WithDiagramType(ctx, string(typ)), c.logger)

	switch typ {
	case schema.DiagramMindmap:
		return mindmap.Validate(text, logger)
	case schema.DiagramGantt:
		return gantt.Validate(text, logger)
	case schema.DiagramFlowchart:
		return mermaid.Validate(text, logger)
	}
	return false, schema.NewErrorf(schema.ErrCodeUnsupportedType, "unsupported diagram type %q", typ).Error()
}

// Sample returns the built-in example input for typ.
func Sample(typ schema.DiagramType) (string, bool) {
	switch typ {
	case schema.DiagramMindmap:
		return mindmap.SampleHierarchyCSV, true
	case schema.DiagramGantt:
		return gantt.SampleCSV, true
	case schema.DiagramFlowchart:
		return mermaid.SampleFlowchart, true
	}
	return "", false
}
