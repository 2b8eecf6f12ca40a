package mermaid

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mindflow/pkg/schema"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestParse_Basic(t *testing.T) {
	fc, err := Parse("flowchart TD\nA[Start] --> B{Check}\nB -->|Yes| C[Done]", nil)
	require.NoError(t, err)

	assert.Equal(t, "flowchart", fc.Type)
	assert.Equal(t, schema.DirectionTD, fc.Direction)
	assert.Equal(t, []schema.MermaidNode{
		{ID: "A", Text: "Start", Shape: schema.ShapeRect},
		{ID: "B", Text: "Check", Shape: schema.ShapeRhombus},
		{ID: "C", Text: "Done", Shape: schema.ShapeRect},
	}, fc.Nodes)
	assert.Equal(t, []schema.MermaidEdge{
		{Source: "A", Target: "B", Arrow: schema.ArrowNormal},
		{Source: "B", Target: "C", Text: "Yes", Arrow: schema.ArrowNormal},
	}, fc.Edges)
}

func TestParse_Header(t *testing.T) {
	tests := []struct {
		in       string
		typ      string
		dir      schema.Direction
		warnings bool
	}{
		{"graph LR\nA-->B", "graph", schema.DirectionLR, false},
		{"FLOWCHART bt\nA-->B", "flowchart", schema.DirectionBT, false},
		{"flowchart\nA-->B", "flowchart", schema.DirectionTD, false},
		{"flowchart XY\nA-->B", "flowchart", schema.DirectionTD, true},
		{"%% title\n\ngraph RL;\nA-->B", "graph", schema.DirectionRL, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			logger, buf := newTestLogger()
			fc, err := Parse(tt.in, logger)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, fc.Type)
			assert.Equal(t, tt.dir, fc.Direction)
			assert.Len(t, fc.Edges, 1)
			if tt.warnings {
				assert.Contains(t, buf.String(), "unknown flowchart direction")
			} else {
				assert.NotContains(t, buf.String(), "level=WARN")
			}
		})
	}
}

func TestParse_InvalidHeader(t *testing.T) {
	for _, in := range []string{"", "   \n\n", "sequenceDiagram\nA->>B: hi", "A --> B"} {
		_, err := Parse(in, nil)
		require.Error(t, err, in)
		assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidDiagramHeader), in)
	}
}

func TestParse_InvalidHeaderCitesLine(t *testing.T) {
	_, err := Parse("\n\npie title Pets", nil)
	var de *schema.DiagramError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Line)
}

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		stmt  string
		id    string
		text  string
		shape schema.Shape
	}{
		{"n[rect]", "n", "rect", schema.ShapeRect},
		{"n(round)", "n", "round", schema.ShapeRound},
		{"n{rhombus}", "n", "rhombus", schema.ShapeRhombus},
		{"n((circle))", "n", "circle", schema.ShapeCircle},
		{"n([stadium])", "n", "stadium", schema.ShapeStadium},
		{"n[(db)]", "n", "db", schema.ShapeStadium},
		{"n[[sub]]", "n", "sub", schema.ShapeSubroutine},
		{"n[/para/]", "n", "para", schema.ShapeRhombus},
		{`n[\alt\]`, "n", "alt", schema.ShapeRhombus},
		{"n{{hex}}", "n", "hex", schema.ShapeRhombus},
		{`n["quoted [x]"]`, "n", "quoted [x]", schema.ShapeRect},
		{"n [ spaced ]", "n", "spaced", schema.ShapeRect},
		{"[Label only!]", "Label_only_", "Label only!", schema.ShapeRect},
	}
	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			fc, err := Parse("graph TD\n"+tt.stmt, nil)
			require.NoError(t, err)
			require.Len(t, fc.Nodes, 1)
			assert.Equal(t, schema.MermaidNode{ID: tt.id, Text: tt.text, Shape: tt.shape}, fc.Nodes[0])
		})
	}
}

func TestParse_Arrows(t *testing.T) {
	tests := map[string]schema.ArrowKind{
		"A --> B":  schema.ArrowNormal,
		"A --- B":  schema.ArrowLine,
		"A -.- B":  schema.ArrowDotted,
		"A ==> B":  schema.ArrowThick,
		"A === B":  schema.ArrowThickLine,
		"A -.-> B": schema.ArrowDottedArrow,
		"A---->B":  schema.ArrowNormal,
		"A====B":   schema.ArrowThickLine,
	}
	for stmt, kind := range tests {
		t.Run(stmt, func(t *testing.T) {
			fc, err := Parse("graph LR\n"+stmt, nil)
			require.NoError(t, err)
			require.Len(t, fc.Edges, 1)
			assert.Equal(t, kind, fc.Edges[0].Arrow)
			assert.Equal(t, "A", fc.Edges[0].Source)
			assert.Equal(t, "B", fc.Edges[0].Target)
		})
	}
}

func TestParse_ArrowInsideNodeText(t *testing.T) {
	fc, err := Parse("graph TD\nA[a --> b] -->|x --> y| B(c -.- d)", nil)
	require.NoError(t, err)
	require.Len(t, fc.Edges, 1)
	assert.Equal(t, "x --> y", fc.Edges[0].Text)
	assert.Equal(t, "a --> b", fc.Nodes[0].Text)
	assert.Equal(t, "c -.- d", fc.Nodes[1].Text)
}

func TestParse_LabeledArrowKinds(t *testing.T) {
	fc, err := Parse("graph TD\nA ==>|\"go\"| B\nB -.->| maybe | C", nil)
	require.NoError(t, err)
	require.Len(t, fc.Edges, 2)
	assert.Equal(t, schema.MermaidEdge{Source: "A", Target: "B", Text: "go", Arrow: schema.ArrowThick}, fc.Edges[0])
	assert.Equal(t, schema.MermaidEdge{Source: "B", Target: "C", Text: "maybe", Arrow: schema.ArrowDottedArrow}, fc.Edges[1])
}

func TestParse_ChainedEdges(t *testing.T) {
	fc, err := Parse("graph LR\nA[One] --> B -->|next| C((Three)) --- D", nil)
	require.NoError(t, err)
	require.Len(t, fc.Edges, 3)
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids(fc))
	assert.Equal(t, "next", fc.Edges[1].Text)
	assert.Equal(t, schema.ArrowLine, fc.Edges[2].Arrow)
	assert.Equal(t, schema.ShapeCircle, fc.Node("C").Shape)
}

func TestParse_MergeSemantics(t *testing.T) {
	text := `flowchart TD
    A --> B
    B{Decide} --> C
    A --> B[Ignored]
    B --> C(Round)
    C[Final]
    B --> C`
	fc, err := Parse(text, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, ids(fc))
	// Shaped reference completes the bare B; later shaped references do not.
	assert.Equal(t, schema.MermaidNode{ID: "B", Text: "Decide", Shape: schema.ShapeRhombus}, *fc.Node("B"))
	// The standalone definition overwrites C.
	assert.Equal(t, schema.MermaidNode{ID: "C", Text: "Final", Shape: schema.ShapeRect}, *fc.Node("C"))
	// A was only ever bare.
	assert.Equal(t, schema.MermaidNode{ID: "A", Text: "A", Shape: schema.ShapeRect}, *fc.Node("A"))
	assert.Len(t, fc.Edges, 5)
}

func TestParse_SkipsCommentsDirectivesAndJunk(t *testing.T) {
	logger, buf := newTestLogger()
	text := `graph TD
    %% comment
    classDef hot fill:#f96,stroke-width:2px;
    subgraph group [Group]
    direction LR
    A --> B;
    end
    class A hot
    style B fill:#bbf
    click A callback
    linkStyle 0 stroke:#ff3
    this is not mermaid
    X --> Y Z`
	fc, err := Parse(text, logger)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, ids(fc))
	assert.Len(t, fc.Edges, 1)
	out := buf.String()
	assert.Contains(t, out, "mermaid directive skipped")
	assert.Contains(t, out, "unrecognized mermaid statement")
	assert.Contains(t, out, "unrecognized node in edge")
}

func TestParse_SemicolonSeparatedStatements(t *testing.T) {
	fc, err := Parse("graph LR; A-->B; B-->C[\"x;y\"]", nil)
	require.NoError(t, err)
	assert.Len(t, fc.Edges, 2)
	assert.Equal(t, "x;y", fc.Node("C").Text)
}

func TestParse_SemicolonInsideEdgeLabel(t *testing.T) {
	fc, err := Parse("flowchart TD\nA -->|x;y| B; B -->|done| C", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ids(fc))
	require.Len(t, fc.Edges, 2)
	assert.Equal(t, schema.MermaidEdge{Source: "A", Target: "B", Text: "x;y", Arrow: schema.ArrowNormal}, fc.Edges[0])
	assert.Equal(t, "done", fc.Edges[1].Text)
}

func TestParse_UnmatchedPipeStillSplits(t *testing.T) {
	fc, err := Parse("flowchart TD\nA --> B |; B --> C", nil)
	require.NoError(t, err)
	var found bool
	for _, e := range fc.Edges {
		if e.Source == "B" && e.Target == "C" {
			found = true
		}
	}
	assert.True(t, found, "%+v", fc.Edges)
}

func TestParse_CRLFAndBOM(t *testing.T) {
	fc, err := Parse("\ufeffflowchart LR\r\nA --> B\r\n", nil)
	require.NoError(t, err)
	assert.Equal(t, schema.DirectionLR, fc.Direction)
	assert.Len(t, fc.Edges, 1)
}

func TestParse_EmptyBodyHasEmptySlices(t *testing.T) {
	fc, err := Parse("graph TD", nil)
	require.NoError(t, err)
	assert.NotNil(t, fc.Nodes)
	assert.NotNil(t, fc.Edges)
	assert.Empty(t, fc.Nodes)
}

func TestParse_Samples(t *testing.T) {
	fc, err := Parse(SampleFlowchart, nil)
	require.NoError(t, err)
	assert.Len(t, fc.Nodes, 7)
	assert.Len(t, fc.Edges, 7)

	fc, err = Parse(SampleHorizontalFlowchart, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.ShapeStadium, fc.Node("Start").Shape)
	assert.Equal(t, schema.ShapeStadium, fc.Node("End").Shape)
	assert.Len(t, fc.Edges, 7)
}

func TestValidate(t *testing.T) {
	ok, msg := Validate(SampleFlowchart, nil)
	assert.True(t, ok)
	assert.Empty(t, msg)

	ok, msg = Validate("graph TD\nA[Alone]", nil)
	assert.False(t, ok)
	assert.Equal(t, "no connections found in diagram", msg)

	ok, msg = Validate("graph TD", nil)
	assert.False(t, ok)
	assert.Equal(t, "no nodes found in diagram", msg)

	ok, msg = Validate("nonsense", nil)
	assert.False(t, ok)
	assert.Contains(t, msg, schema.ErrCodeInvalidDiagramHeader)
}

func TestValidate_LogsDisconnected(t *testing.T) {
	logger, buf := newTestLogger()
	ok, _ := Validate("graph TD\nA --> B\nC[Island]", logger)
	assert.True(t, ok)
	assert.Contains(t, buf.String(), "disconnected nodes found")
	assert.Contains(t, buf.String(), "C")
}

func TestTemplate(t *testing.T) {
	fc, err := Parse(Template(schema.DirectionLR, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, schema.DirectionLR, fc.Direction)
	require.Len(t, fc.Nodes, 6)
	assert.Equal(t, schema.ShapeStadium, fc.Nodes[0].Shape)
	assert.Equal(t, schema.ShapeRhombus, fc.Nodes[3].Shape)
	require.Len(t, fc.Edges, 5)
	assert.Equal(t, "Yes", fc.Edges[3].Text)
}

func TestWorkflowTemplate(t *testing.T) {
	tests := []struct {
		kind      string
		direction schema.Direction
		nodes     int
		edges     int
	}{
		{kind: "decision", direction: schema.DirectionTD, nodes: 14, edges: 16},
		{kind: "approval", direction: schema.DirectionTD, nodes: 8, edges: 9},
		{kind: "review", direction: schema.DirectionLR, nodes: 8, edges: 8},
		{kind: "development", direction: schema.DirectionTD, nodes: 9, edges: 9},
	}
	require.Len(t, WorkflowKinds(), len(tests))
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			text := WorkflowTemplate(tt.kind)
			ok, msg := Validate(text, nil)
			require.True(t, ok, msg)

			fc, err := Parse(text, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.direction, fc.Direction)
			assert.Len(t, fc.Nodes, tt.nodes)
			assert.Len(t, fc.Edges, tt.edges)
			assert.Empty(t, Disconnected(fc))
		})
	}

	assert.Equal(t, WorkflowTemplate("approval"), WorkflowTemplate("unknown"))
}

func ids(fc *schema.Flowchart) []string {
	out := make([]string, len(fc.Nodes))
	for i, n := range fc.Nodes {
		out[i] = n.ID
	}
	return out
}
