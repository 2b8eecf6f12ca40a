package gantt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rendis/mindflow/internal/coerce"
	"github.com/rendis/mindflow/internal/source"
	"github.com/rendis/mindflow/pkg/schema"
)

var requiredColumns = []string{ColTask, ColStart, ColEnd}

// Check applies the strict policy to a task table. Bad dates, bad progress,
// inverted ranges and dependency cycles are errors; self references, unknown
// dependencies and repeated task names are warnings.
func Check(table *source.Table) *schema.ValidationResult {
	res := &schema.ValidationResult{}
	if len(table.Rows) == 0 {
		res.AddIssue("rows", schema.NewError(schema.ErrCodeEmptyGanttInput, "Gantt CSV data is empty"))
		return res
	}

	var missing []string
	for _, c := range requiredColumns {
		if !table.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		res.AddIssue("header", schema.NewErrorf(schema.ErrCodeMissingValue, "missing required columns: %s", strings.Join(missing, ", ")))
		return res
	}

	var tasks []schema.GanttTask
	seen := make(map[string]bool)
	for i, row := range table.Rows {
		line := table.Line(i)
		path := fmt.Sprintf("rows[%d]", i)

		name := row[ColTask]
		if name == "" {
			res.AddIssue(path+".task", schema.NewError(schema.ErrCodeMissingValue, "task name is required").WithLine(line))
			continue
		}
		if seen[name] {
			res.AddWarning(path+".task", schema.ErrCodeValidation, fmt.Sprintf("line %d: duplicate task %q ignored", line, name))
			continue
		}
		seen[name] = true

		start, serr := coerce.ParseDate(row[ColStart], ColStart)
		if serr != nil {
			res.AddIssue(path+".start", withLine(serr, line))
		}
		end, eerr := coerce.ParseDate(row[ColEnd], ColEnd)
		if eerr != nil {
			res.AddIssue(path+".end", withLine(eerr, line))
		}
		if serr == nil && eerr == nil && start.After(end.Time) {
			res.AddIssue(path, schema.NewErrorf(schema.ErrCodeInvalidDateRange,
				"start date %s is after end date %s", start, end).WithLine(line))
		}
		if _, err := coerce.ParseProgress(row[ColProgress], ColProgress); err != nil {
			res.AddIssue(path+".progress", withLine(err, line))
		}

		var deps []string
		for _, dep := range splitDependencies(row[ColDependencies]) {
			if dep == name {
				res.AddWarning(path+".dependencies", schema.ErrCodeValidation, fmt.Sprintf("line %d: task %q depends on itself", line, name))
				continue
			}
			deps = append(deps, dep)
		}
		tasks = append(tasks, schema.GanttTask{Task: name, Dependencies: deps})
	}

	for i := range tasks {
		for _, dep := range tasks[i].Dependencies {
			if !seen[dep] {
				res.AddWarning("dependencies", schema.ErrCodeValidation, fmt.Sprintf("task %q depends on unknown task %q", tasks[i].Task, dep))
			}
		}
	}
	FilterKnown(tasks, nil)
	if _, err := Order(tasks); err != nil {
		res.AddIssue("dependencies", err)
	}
	return res
}

func withLine(err error, line int) error {
	var de *schema.DiagramError
	if errors.As(err, &de) {
		return de.WithLine(line)
	}
	return err
}
