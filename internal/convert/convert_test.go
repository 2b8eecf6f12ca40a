package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestParse_EachType(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	for _, typ := range schema.DiagramTypes() {
		t.Run(string(typ), func(t *testing.T) {
			text, ok := Sample(typ)
			require.True(t, ok)

			res, err := c.Parse(ctx, typ, text)
			require.NoError(t, err)
			assert.Equal(t, typ, res.Type)
			assert.NotNil(t, res.Payload())
			assert.NotEmpty(t, res.Model().Nodes)
		})
	}
}

func TestParse_MindmapFormats(t *testing.T) {
	c := New(nil)

	res, err := c.Parse(context.Background(), schema.DiagramMindmap, "node,parent,level\nRoot,,1\nChild,Root,2")
	require.NoError(t, err)
	require.NotNil(t, res.Mindmap)
	assert.Equal(t, "Root", res.Mindmap.Name)
	require.Len(t, res.Mindmap.Children, 1)
	assert.Equal(t, "Child", res.Mindmap.Children[0].Name)
	assert.Nil(t, res.Gantt)
	assert.Nil(t, res.Flowchart)
}

func TestParse_GanttUsesClock(t *testing.T) {
	now := time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)
	c := New(nil, WithClock(func() time.Time { return now }))

	res, err := c.Parse(context.Background(), schema.DiagramGantt, "task,start,end\nA,someday,")
	require.NoError(t, err)
	require.Len(t, res.Gantt.Tasks, 1)
	assert.Equal(t, "2024-06-01", res.Gantt.Tasks[0].Start.String())
	assert.Equal(t, "2024-06-02", res.Gantt.Tasks[0].End.String())
	assert.Equal(t, 1, res.Gantt.Summary.TotalTasks)
}

func TestParse_Errors(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		typ  schema.DiagramType
		text string
		code string
	}{
		{"empty mindmap", schema.DiagramMindmap, "", schema.ErrCodeEmptyOrInvalidTree},
		{"empty gantt", schema.DiagramGantt, "task,start,end\n", schema.ErrCodeEmptyGanttInput},
		{"bad mermaid header", schema.DiagramFlowchart, "sequenceDiagram\nA->>B: hi", schema.ErrCodeInvalidDiagramHeader},
		{"unknown type", "sequence", "x", schema.ErrCodeUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Parse(ctx, tt.typ, tt.text)
			require.Error(t, err)
			assert.True(t, schema.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestParse_LogsCorrelationFields(t *testing.T) {
	logger, buf := newTestLogger()
	c := New(logger)
	ctx := logging.WithRequestID(context.Background(), "req-1")

	_, err := c.Parse(ctx, schema.DiagramGantt, "task,start,end\nA,2024-01-05,2024-01-01")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "swapped")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "diagram_type=gantt")
}

func TestResult_JSONShape(t *testing.T) {
	res, err := New(nil).Parse(context.Background(), schema.DiagramFlowchart, "graph LR\nA --> B")
	require.NoError(t, err)

	b, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "flowchart", decoded["type"])
	assert.Contains(t, decoded, "flowchart")
	assert.NotContains(t, decoded, "mindmap")
	assert.NotContains(t, decoded, "gantt")
}

func TestValidate(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		typ     schema.DiagramType
		text    string
		valid   bool
		message string
	}{
		{"mindmap ok", schema.DiagramMindmap, "Root\n,Child", true, ""},
		{"gantt ok", schema.DiagramGantt, "task,start,end\nA,2024-01-01,2024-01-02", true, ""},
		{"gantt bad date", schema.DiagramGantt, "task,start,end\nA,tomorrow,2024-01-02", false, "INVALID_DATE_FORMAT"},
		{"flowchart ok", schema.DiagramFlowchart, "graph TD\nA --> B", true, ""},
		{"flowchart no edges", schema.DiagramFlowchart, "graph TD\nA[Alone]", false, "no connections found in diagram"},
		{"unknown type", "sequence", "x", false, "unsupported diagram type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := c.Validate(ctx, tt.typ, tt.text)
			assert.Equal(t, tt.valid, ok)
			if tt.message == "" {
				assert.Empty(t, msg)
			} else {
				assert.Contains(t, msg, tt.message)
			}
		})
	}
}

func TestSample_Unknown(t *testing.T) {
	_, ok := Sample("sequence")
	assert.False(t, ok)
}
