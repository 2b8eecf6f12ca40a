package validation

import (
	"fmt"

	"github.com/rendis/mindflow/internal/gantt"
	"github.com/rendis/mindflow/internal/mermaid"
	"github.com/rendis/mindflow/pkg/schema"
)

// validateGanttDAG rejects dependency cycles. Ordering reuses the scheduler's
// topological sort so both agree on what a cycle is.
func validateGanttDAG(chart *schema.GanttChart) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if _, err := gantt.Order(chart.Tasks); err != nil {
		result.AddIssue("tasks", err)
	}
	return result
}

// validateFlowchartDAG flags nodes no edge touches. Flowcharts may loop, so
// cycles are not an error here.
func validateFlowchartDAG(fc *schema.Flowchart) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, id := range mermaid.Disconnected(fc) {
		result.AddWarning(fmt.Sprintf("nodes[%s]", id), schema.ErrCodeValidation,
			fmt.Sprintf("node %q is not connected to any other node", id))
	}
	return result
}
