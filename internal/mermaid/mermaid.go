package mermaid

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/pkg/schema"
)

// Validate parses text and additionally requires at least one node and one
// edge. Nodes that no edge touches are logged but accepted.
func Validate(text string, logger *slog.Logger) (bool, string) {
	fc, err := Parse(text, logger)
	if err != nil {
		return false, err.Error()
	}
	if len(fc.Nodes) == 0 {
		return false, "no nodes found in diagram"
	}
	if len(fc.Edges) == 0 {
		return false, "no connections found in diagram"
	}
	if ids := Disconnected(fc); len(ids) > 0 {
		logging.OrDiscard(logger).Warn("disconnected nodes found", "nodes", ids)
	}
	return true, ""
}

// Disconnected returns the ids of nodes no edge starts or ends at, in node
// order.
func Disconnected(fc *schema.Flowchart) []string {
	linked := make(map[string]bool, len(fc.Nodes))
	for _, e := range fc.Edges {
		linked[e.Source] = true
		linked[e.Target] = true
	}
	var out []string
	for _, n := range fc.Nodes {
		if !linked[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// SampleFlowchart is a top-down flow with a decision and labeled branches.
const SampleFlowchart = `flowchart TD
    A[Start] --> B{Check condition}
    B -->|Yes| C[Run process]
    B -->|No| D[Handle error]
    C --> E[Save result]
    D --> F[Write log]
    E --> G[Finish]
    F --> G`

// SampleHorizontalFlowchart is a left-to-right flow with a retry loop.
const SampleHorizontalFlowchart = `flowchart LR
    Start([Start]) --> Input[Enter data]
    Input --> Validate{Validate input}
    Validate -->|Valid| Process[Process data]
    Validate -->|Invalid| Error[Show error]
    Process --> Output[Output result]
    Error --> Input
    Output --> End([Finish])`

// Canned process flows returned by WorkflowTemplate.
var workflowTemplates = map[string]string{
	"decision": `flowchart TD
    Start([Start]) --> Input[Enter data]
    Input --> Check1{Format OK?}
    Check1 -->|No| Error1[Format error]
    Error1 --> Input
    Check1 -->|Yes| Check2{Authorized?}
    Check2 -->|No| Error2[Permission error]
    Error2 --> End1([Stop])
    Check2 -->|Yes| Process[Process data]
    Process --> Check3{Succeeded?}
    Check3 -->|No| Error3[Processing error]
    Error3 --> Retry{Retry?}
    Retry -->|Yes| Process
    Retry -->|No| End2([Stop])
    Check3 -->|Yes| Output[Write result]
    Output --> End3([Done])`,
	"approval": `flowchart TD
    Submit[Submit request] --> Review1{First review}
    Review1 -->|Approve| Review2{Second review}
    Review1 -->|Send back| Revise[Revise]
    Revise --> Submit
    Review2 -->|Approve| Approve[Approved]
    Review2 -->|Send back| Revise
    Review2 -->|Reject| Reject[Rejected]
    Approve --> End1([Closed])
    Reject --> End2([Stop])`,
	"review": `flowchart LR
    Create[Write document] --> Submit[Request review]
    Submit --> Review[Review]
    Review --> Check{Issues found?}
    Check -->|Yes| Feedback[Feedback]
    Feedback --> Revise[Revise]
    Revise --> Submit
    Check -->|No| Approve[Approve]
    Approve --> Publish[Publish]`,
	"development": `flowchart TD
    Plan[Plan] --> Design[Design]
    Design --> Dev[Develop]
    Dev --> Test[Test]
    Test --> Bug{Bugs found?}
    Bug -->|Yes| Fix[Fix]
    Fix --> Test
    Bug -->|No| Deploy[Deploy]
    Deploy --> Monitor[Monitor]
    Monitor --> Maintain[Maintain]`,
}

// WorkflowKinds lists the names WorkflowTemplate accepts.
func WorkflowKinds() []string {
	return []string{"decision", "approval", "review", "development"}
}

// WorkflowTemplate returns a canned process flow. Unknown kinds fall back to
// "approval".
func WorkflowTemplate(kind string) string {
	if text, ok := workflowTemplates[kind]; ok {
		return text
	}
	return workflowTemplates["approval"]
}

// Template returns a linear flowchart through steps. The first and last
// steps are drawn as stadiums, steps ending in '?' as decisions whose "Yes"
// branch continues the flow. With no steps a default six-step flow is used.
func Template(direction schema.Direction, steps []string) string {
	if len(steps) == 0 {
		steps = []string{"Start", "Input", "Process", "Approved?", "Output", "Finish"}
	}
	if direction == "" {
		direction = schema.DirectionTD
	}

	var b strings.Builder
	fmt.Fprintf(&b, "flowchart %s", direction)
	for i, step := range steps {
		id := fmt.Sprintf("step%d", i+1)
		switch {
		case i == 0 || i == len(steps)-1:
			fmt.Fprintf(&b, "\n    %s([%s])", id, step)
		case strings.HasSuffix(step, "?"):
			fmt.Fprintf(&b, "\n    %s{%s}", id, step)
		default:
			fmt.Fprintf(&b, "\n    %s[%s]", id, step)
		}
	}
	for i := 0; i+1 < len(steps); i++ {
		label := ""
		if i > 0 && strings.HasSuffix(steps[i], "?") {
			label = "|Yes| "
		}
		fmt.Fprintf(&b, "\n    step%d --> %sstep%d", i+1, label, i+2)
	}
	return b.String()
}
