package gantt

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/pkg/schema"
)

// ResolveDependencies splits a dependency cell on ';' or ',' and drops empty
// tokens, repeats and references to the task itself. The result still has to
// go through FilterKnown once every task is known.
func ResolveDependencies(raw, own string, logger *slog.Logger) []string {
	deps := []string{}
	seen := make(map[string]bool)
	for _, tok := range splitDependencies(raw) {
		switch {
		case tok == own:
			logging.OrDiscard(logger).Warn("task depends on itself, dependency dropped", "task", own)
		case seen[tok]:
		default:
			seen[tok] = true
			deps = append(deps, tok)
		}
	}
	return deps
}

// splitDependencies returns the trimmed, non-empty tokens of a dependency
// cell.
func splitDependencies(raw string) []string {
	var out []string
	for _, tok := range strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' }) {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// FilterKnown removes, in place, every dependency that does not name a task
// in tasks.
func FilterKnown(tasks []schema.GanttTask, logger *slog.Logger) {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.Task] = true
	}
	for i := range tasks {
		kept := tasks[i].Dependencies[:0]
		for _, dep := range tasks[i].Dependencies {
			if known[dep] {
				kept = append(kept, dep)
				continue
			}
			logging.OrDiscard(logger).Warn("unknown dependency dropped", "task", tasks[i].Task, "dependency", dep)
		}
		tasks[i].Dependencies = kept
	}
}

// Order returns task names so that every task comes after the tasks it
// depends on. Tasks with no dependency links keep their input order at the
// end. A dependency cycle yields a CYCLE_DETECTED error.
func Order(tasks []schema.GanttTask) ([]string, error) {
	linked := make(map[string]bool)
	edges := make([]toposort.Edge, 0)
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			edges = append(edges, toposort.Edge{dep, t.Task})
			linked[dep], linked[t.Task] = true, true
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeCycleDetected, "dependency cycle among tasks: %s", cycleMembers(tasks)).
			WithCause(err)
	}

	order := make([]string, 0, len(tasks))
	for _, n := range sorted {
		order = append(order, n.(string))
	}
	for _, t := range tasks {
		if !linked[t.Task] {
			order = append(order, t.Task)
		}
	}
	return order, nil
}

// cycleMembers lists the tasks left over after repeatedly removing tasks
// whose dependencies are all removed, which is every task on or behind a
// cycle.
func cycleMembers(tasks []schema.GanttTask) string {
	done := make(map[string]bool)
	for progress := true; progress; {
		progress = false
		for _, t := range tasks {
			if done[t.Task] {
				continue
			}
			ready := true
			for _, dep := range t.Dependencies {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				done[t.Task] = true
				progress = true
			}
		}
	}

	var stuck []string
	for _, t := range tasks {
		if !done[t.Task] {
			stuck = append(stuck, t.Task)
		}
	}
	return fmt.Sprintf("%q", stuck)
}
