package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mindflow/internal/gantt"
	"github.com/rendis/mindflow/internal/mermaid"
	"github.com/rendis/mindflow/internal/mindmap"
	"github.com/rendis/mindflow/pkg/schema"
)

func TestRenderMermaid_Shapes(t *testing.T) {
	model := &DiagramModel{
		Title: "Shapes",
		Nodes: []*Node{
			{ID: "a", Label: "rect", Shape: schema.ShapeRect},
			{ID: "b", Label: "round", Shape: schema.ShapeRound},
			{ID: "c", Label: "rhombus", Shape: schema.ShapeRhombus},
			{ID: "d", Label: "circle", Shape: schema.ShapeCircle},
			{ID: "e", Label: "stadium", Shape: schema.ShapeStadium},
			{ID: "f", Label: "sub", Shape: schema.ShapeSubroutine},
		},
	}

	result := RenderMermaid(model)

	assert.True(t, strings.HasPrefix(result, "flowchart TD\n"))
	assert.Contains(t, result, "%% Shapes")
	assert.Contains(t, result, `a["rect"]`)
	assert.Contains(t, result, `b("round")`)
	assert.Contains(t, result, `c{"rhombus"}`)
	assert.Contains(t, result, `d(("circle"))`)
	assert.Contains(t, result, `e(["stadium"])`)
	assert.Contains(t, result, `f[["sub"]]`)
}

func TestRenderMermaid_ArrowsAndLabels(t *testing.T) {
	model := &DiagramModel{
		Keyword:   "graph",
		Direction: schema.DirectionLR,
		Nodes:     []*Node{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
		Edges: []Edge{
			{From: "a", To: "b", Label: "go", Arrow: schema.ArrowThick},
			{From: "a", To: "b", Arrow: schema.ArrowDottedArrow},
			{From: "a", To: "b", Arrow: schema.ArrowLine},
		},
	}

	result := RenderMermaid(model)
	assert.True(t, strings.HasPrefix(result, "graph LR\n"))
	assert.Contains(t, result, `a ==>|"go"| b`)
	assert.Contains(t, result, "a -.-> b")
	assert.Contains(t, result, "a --- b")
}

func TestRenderMermaid_RoundTrip(t *testing.T) {
	inputs := map[string]string{
		"sample":     mermaid.SampleFlowchart,
		"horizontal": mermaid.SampleHorizontalFlowchart,
		"mixed": `graph BT
    A((Hub)) -.->|"a #124; b"| B[["Sub #quot;routine#quot;"]]
    B === C([Pill])
    C --- D[(Store)]
    D ==> E{{Hex}}
    E -.- A`,
	}
	for name, text := range inputs {
		t.Run(name, func(t *testing.T) {
			first, err := mermaid.Parse(text, nil)
			require.NoError(t, err)

			rendered := RenderMermaid(FromFlowchart(first))
			second, err := mermaid.Parse(rendered, nil)
			require.NoError(t, err, rendered)

			assert.Equal(t, first, second, rendered)
		})
	}
}

func TestRenderMermaid_MindmapReparses(t *testing.T) {
	root, err := mindmap.ParseHierarchy(mindmap.SampleHierarchyCSV, nil)
	require.NoError(t, err)

	model := FromMindmap(root)
	result := RenderMermaid(model)
	assert.Contains(t, result, "style n1 fill:#1f77b4")

	fc, err := mermaid.Parse(result, nil)
	require.NoError(t, err)
	assert.Len(t, fc.Nodes, root.Count())
	assert.Len(t, fc.Edges, root.Count()-1)
}

func TestRenderMermaid_GanttGroups(t *testing.T) {
	tasks, err := gantt.Parse(gantt.SampleCSV, nil)
	require.NoError(t, err)

	result := RenderMermaid(FromGantt(tasks))
	assert.Contains(t, result, `subgraph group_Phase1["Phase1"]`)
	assert.Equal(t, 3, strings.Count(result, "\n    end\n"))

	fc, err := mermaid.Parse(result, nil)
	require.NoError(t, err)
	assert.Len(t, fc.Nodes, 7)
	assert.Len(t, fc.Edges, 7)
}

func TestMermaidSafeID(t *testing.T) {
	assert.Equal(t, "a_b_c_d", mermaidSafeID("a.b-c d"))
	assert.Equal(t, "group_Phase_1_", mermaidSafeID("group_Phase 1!"))
}
