// Package gantt turns CSV task tables into Gantt task lists. Builder is the
// best-effort path used for live preview; Check is the strict path behind
// validation.
package gantt

import (
	"log/slog"
	"time"

	"github.com/rendis/mindflow/internal/coerce"
	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/source"
	"github.com/rendis/mindflow/pkg/schema"
)

// Column names, matched case-insensitively.
const (
	ColTask         = "task"
	ColStart        = "start"
	ColEnd          = "end"
	ColCategory     = "category"
	ColProgress     = "progress"
	ColDependencies = "dependencies"
	ColResource     = "resource"
)

const (
	DefaultCategory = "General"
	DefaultResource = "Unassigned"
)

// Builder builds task lists from table rows, repairing bad cells instead of
// failing.
type Builder struct {
	now    func() time.Time
	logger *slog.Logger
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the clock used when a start date has to be guessed.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a Builder that reports repairs to logger.
func NewBuilder(logger *slog.Logger, opts ...BuilderOption) *Builder {
	logger = logging.OrDiscard(logger)
	b := &Builder{logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build converts rows keyed by lower-cased column name into tasks. Rows with
// no task name or a task name already used are skipped. It fails with
// EMPTY_GANTT_INPUT when no task survives. Logged lines assume the header
// sits on line 1; use BuildTable to report the real ones.
func (b *Builder) Build(rows []map[string]string) ([]schema.GanttTask, error) {
	return b.BuildTable(&source.Table{Rows: rows})
}

// BuildTable is Build over a table read from text.
func (b *Builder) BuildTable(table *source.Table) ([]schema.GanttTask, error) {
	rows := table.Rows
	if len(rows) == 0 {
		return nil, schema.NewError(schema.ErrCodeEmptyGanttInput, "Gantt CSV data is empty")
	}

	tasks := make([]schema.GanttTask, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		line := table.Line(i)
		name := row[ColTask]
		if name == "" {
			b.logger.Warn("row without task name, skipped", "line", line)
			continue
		}
		if seen[name] {
			b.logger.Warn("duplicate task name, row skipped", "line", line, "task", name)
			continue
		}
		seen[name] = true
		tasks = append(tasks, b.task(row, name, line))
	}

	if len(tasks) == 0 {
		return nil, schema.NewError(schema.ErrCodeEmptyGanttInput, "no valid tasks found in Gantt CSV")
	}

	FilterKnown(tasks, b.logger)
	if _, err := Order(tasks); err != nil {
		b.logger.Warn("task dependencies form a cycle", "error", err)
	}
	return tasks, nil
}

func (b *Builder) task(row map[string]string, name string, line int) schema.GanttTask {
	log := b.logger.With("line", line, "task", name)
	dates := coerce.DateCoercer{Now: b.now, Logger: log}

	start := dates.Start(row[ColStart], ColStart)
	end := dates.End(row[ColEnd], ColEnd, start)
	if end.Before(start.Time) {
		log.Warn("end date before start date, swapped", "start", start.String(), "end", end.String())
		start, end = end, start
	}

	category := row[ColCategory]
	if category == "" {
		category = DefaultCategory
	}
	resource := row[ColResource]
	if resource == "" {
		resource = DefaultResource
	}

	return schema.GanttTask{
		Task:         name,
		Start:        start,
		End:          end,
		Duration:     start.DaysUntil(end) + 1,
		Progress:     coerce.ProgressCoercer{Logger: log}.Parse(row[ColProgress], ColProgress),
		Category:     category,
		Dependencies: ResolveDependencies(row[ColDependencies], name, log),
		Resource:     resource,
	}
}

// Parse reads a CSV task table with the best-effort policy.
func Parse(text string, logger *slog.Logger) ([]schema.GanttTask, error) {
	table, err := source.ReadTable(text)
	if err != nil {
		return nil, err
	}
	tasks, err := NewBuilder(logger).BuildTable(table)
	if err != nil {
		return nil, err
	}
	logging.OrDiscard(logger).Debug("parsed gantt table", "rows", len(table.Rows), "tasks", len(tasks))
	return tasks, nil
}

// Summarize derives chart-level metadata. Categories are listed in the order
// they first appear.
func Summarize(tasks []schema.GanttTask) schema.GanttSummary {
	s := schema.GanttSummary{TotalTasks: len(tasks), Categories: []string{}}
	seen := make(map[string]bool)
	for i, t := range tasks {
		if i == 0 || t.Start.Before(s.StartDate.Time) {
			s.StartDate = t.Start
		}
		if i == 0 || t.End.After(s.EndDate.Time) {
			s.EndDate = t.End
		}
		if !seen[t.Category] {
			seen[t.Category] = true
			s.Categories = append(s.Categories, t.Category)
		}
	}
	return s
}

// Chart bundles tasks with their summary.
func Chart(tasks []schema.GanttTask) *schema.GanttChart {
	return &schema.GanttChart{Tasks: tasks, Summary: Summarize(tasks)}
}
