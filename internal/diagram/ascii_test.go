package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mindflow/internal/gantt"
	"github.com/rendis/mindflow/pkg/schema"
)

func TestRenderASCIIFlowchart(t *testing.T) {
	output := RenderASCII(FromFlowchart(sampleFlowchart(t)))
	assert.NotEmpty(t, output)

	// Verify title.
	assert.Contains(t, output, "=== Flowchart ===")

	// Verify box-drawing characters.
	assert.Contains(t, output, "┌") // ┌
	assert.Contains(t, output, "┐") // ┐
	assert.Contains(t, output, "└") // └
	assert.Contains(t, output, "┘") // ┘
	assert.Contains(t, output, "│") // │
	assert.Contains(t, output, "─") // ─

	// Verify node labels and the decision marker.
	assert.Contains(t, output, "Start")
	assert.Contains(t, output, "< Check condition >")
	assert.Contains(t, output, "Check condition ─Yes→ Run process")
}

func TestRenderASCIIBadges(t *testing.T) {
	tasks, err := gantt.Parse(gantt.SampleCSV, nil)
	require.NoError(t, err)

	output := RenderASCII(FromGantt(tasks))
	assert.Contains(t, output, "100% 15d")
	assert.Contains(t, output, "[Phase2]")
	assert.Contains(t, output, "Planning & Requirements ─→ UI/UX Design")
}

func TestRenderASCIIAlignsWideRunes(t *testing.T) {
	model := &DiagramModel{
		Nodes:  []*Node{{ID: "a", Label: "開始", Shape: schema.ShapeRect, Badge: "ok"}},
		Levels: [][]string{{"a"}},
	}

	lines := strings.Split(strings.TrimRight(RenderASCII(model), "\n"), "\n")
	require.Len(t, lines, 4)
	for _, l := range lines {
		assert.Equal(t, len([]rune(lines[0])), len([]rune(l)), l)
	}
}

func TestRenderASCIISkipsUnknownLevelIDs(t *testing.T) {
	model := &DiagramModel{
		Nodes:  []*Node{{ID: "a", Label: "only"}},
		Levels: [][]string{{"a", "ghost"}},
	}
	output := RenderASCII(model)
	assert.Contains(t, output, "only")
	assert.NotContains(t, output, "ghost")
}
