package expressions

import (
	"testing"

	"github.com/rendis/mindflow/internal/mermaid"
	"github.com/rendis/mindflow/internal/mindmap"
	"github.com/rendis/mindflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScope_Mindmap(t *testing.T) {
	root, err := mindmap.ParseHierarchy("Root\n,Child\n,,Leaf", nil)
	require.NoError(t, err)

	scope, err := BuildScope(schema.DiagramMindmap, root)
	require.NoError(t, err)
	assert.Equal(t, "mindmap", scope[ScopeDiagramType])

	nodes := scope[ScopeNodes].([]any)
	require.Len(t, nodes, 3)
	leaf := nodes[2].(map[string]any)
	assert.Equal(t, "Leaf", leaf["name"])
	assert.Equal(t, "Child", leaf["parent"])
	assert.Equal(t, 2.0, leaf["depth"])
	assert.Equal(t, 3.0, leaf["level"])

	tree := scope[ScopeRoot].(map[string]any)
	assert.Equal(t, "Root", tree["name"])
}

func TestBuildScope_Gantt(t *testing.T) {
	scope, err := BuildScope(schema.DiagramGantt, sampleChart(t))
	require.NoError(t, err)

	tasks := scope[ScopeTasks].([]any)
	require.Len(t, tasks, 7)
	first := tasks[0].(map[string]any)
	assert.Equal(t, "2024-01-01", first["start"])
	assert.Equal(t, 15.0, first["duration"])
	assert.Len(t, Items(scope), 7)
}

func TestBuildScope_Flowchart(t *testing.T) {
	fc, err := mermaid.Parse("graph LR\nA --> B", nil)
	require.NoError(t, err)

	scope, err := BuildScope(schema.DiagramFlowchart, fc)
	require.NoError(t, err)
	assert.Equal(t, "graph", scope[ScopeKeyword])
	assert.Equal(t, "LR", scope[ScopeDirection])
	assert.Len(t, scope[ScopeEdges], 1)
	assert.Len(t, Items(scope), 2)
}

func TestBuildScope_AcceptsDecodedJSON(t *testing.T) {
	payload := map[string]any{"name": "Root", "level": 1, "color": "#1f77b4", "children": []any{}}
	scope, err := BuildScope(schema.DiagramMindmap, payload)
	require.NoError(t, err)
	assert.Len(t, scope[ScopeNodes], 1)
}

func TestBuildScope_Errors(t *testing.T) {
	_, err := BuildScope("sequence", nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeUnsupportedType))

	_, err = BuildScope(schema.DiagramGantt, nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	var root *schema.MindmapNode
	_, err = BuildScope(schema.DiagramMindmap, root)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = BuildScope(schema.DiagramFlowchart, "not a flowchart")
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestScopeKeys(t *testing.T) {
	assert.Equal(t, []string{
		ScopeDiagramType, ScopeDirection, ScopeEdges, ScopeItem, ScopeKeyword,
		ScopeNodes, ScopeRoot, ScopeSummary, ScopeTasks,
	}, ScopeKeys())
}

func TestWithDefaults(t *testing.T) {
	got := withDefaults(map[string]any{ScopeDirection: "LR", ScopeNodes: nil, "extra": 1})
	assert.Len(t, got, len(ScopeKeys()))
	assert.Equal(t, "LR", got[ScopeDirection])
	assert.Equal(t, []any{}, got[ScopeNodes])
	assert.NotContains(t, got, "extra")
}
