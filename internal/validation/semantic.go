package validation

import (
	"fmt"

	"github.com/rendis/mindflow/pkg/schema"
)

// validateMindmapSemantic checks level bookkeeping. Node/parent trees may
// legitimately break the parent+1 rule for detached nodes, so it only warns.
func validateMindmapSemantic(root *schema.MindmapNode) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if root.Level != 1 {
		result.AddWarning("/", schema.ErrCodeValidation,
			fmt.Sprintf("root %q has level %d, expected 1", root.Name, root.Level))
	}
	root.Walk(func(node, parent *schema.MindmapNode) {
		if parent != nil && node.Level != parent.Level+1 {
			result.AddWarning(node.Name, schema.ErrCodeValidation,
				fmt.Sprintf("node %q has level %d under %q (level %d)", node.Name, node.Level, parent.Name, parent.Level))
		}
	})
	return result
}

// validateGanttSemantic checks per-task invariants and dependency references.
func validateGanttSemantic(chart *schema.GanttChart) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	names := make(map[string]bool, len(chart.Tasks))
	for i, t := range chart.Tasks {
		if names[t.Task] {
			result.AddError(fmt.Sprintf("tasks[%d].task", i), schema.ErrCodeValidation,
				fmt.Sprintf("duplicate task %q", t.Task))
		}
		names[t.Task] = true
	}

	for i, t := range chart.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		if t.End.Before(t.Start.Time) {
			result.AddError(path+".end", schema.ErrCodeInvalidDateRange,
				fmt.Sprintf("task %q ends %s before it starts %s", t.Task, t.End, t.Start))
		}
		if want := t.Start.DaysUntil(t.End) + 1; t.Duration != want {
			result.AddError(path+".duration", schema.ErrCodeValidation,
				fmt.Sprintf("task %q has duration %d, dates span %d days", t.Task, t.Duration, want))
		}
		for j, dep := range t.Dependencies {
			depPath := fmt.Sprintf("%s.dependencies[%d]", path, j)
			switch {
			case dep == t.Task:
				result.AddError(depPath, schema.ErrCodeValidation,
					fmt.Sprintf("task %q depends on itself", t.Task))
			case !names[dep]:
				result.AddError(depPath, schema.ErrCodeValidation,
					fmt.Sprintf("references non-existent task %q", dep))
			}
		}
	}

	if chart.Summary.TotalTasks != len(chart.Tasks) {
		result.AddWarning("summary.total_tasks", schema.ErrCodeValidation,
			fmt.Sprintf("summary counts %d tasks, chart has %d", chart.Summary.TotalTasks, len(chart.Tasks)))
	}
	return result
}

// validateFlowchartSemantic checks node identity and edge endpoints.
func validateFlowchartSemantic(fc *schema.Flowchart) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make(map[string]bool, len(fc.Nodes))
	for i, n := range fc.Nodes {
		if ids[n.ID] {
			result.AddError(fmt.Sprintf("nodes[%d].id", i), schema.ErrCodeValidation,
				fmt.Sprintf("duplicate node id %q", n.ID))
		}
		ids[n.ID] = true
	}

	for i, e := range fc.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		if !ids[e.Source] {
			result.AddError(path+".source", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", e.Source))
		}
		if !ids[e.Target] {
			result.AddError(path+".target", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", e.Target))
		}
	}
	return result
}
