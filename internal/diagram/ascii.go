package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rendis/mindflow/pkg/schema"
)

// RenderASCII renders a DiagramModel as a text-based ASCII diagram.
// It uses a level-based layout with box-drawing characters.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	// Title.
	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", firstLine(model.Title))
	}

	// Render each level.
	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, nodeID := range level {
			node := model.Node(nodeID)
			if node == nil {
				continue
			}
			boxes = append(boxes, makeBox(node))
		}

		renderBoxRow(&b, boxes)

		// Draw connectors between levels (except after last level).
		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	if len(model.Edges) > 0 {
		b.WriteString("\n--- links ---\n")
		for _, edge := range model.Edges {
			renderEdge(&b, model, edge)
		}
	}

	for _, g := range model.Groups {
		fmt.Fprintf(&b, "\n[%s]\n", g.Label)
		for _, id := range g.NodeIDs {
			if n := model.Node(id); n != nil {
				fmt.Fprintf(&b, "    %s\n", firstLine(n.Label))
			}
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node. Widths count runes so that
// non-ASCII labels line up.
func makeBox(node *Node) asciiBox {
	contentLines := []string{firstLine(node.Label)}
	if node.Badge != "" {
		contentLines = append(contentLines, node.Badge)
	}

	maxLen := 0
	for _, line := range contentLines {
		maxLen = max(maxLen, utf8.RuneCountInString(line))
	}
	width := maxLen + 4 // 2 border + 2 padding

	left, right := "│", "│"
	if node.Shape == schema.ShapeRhombus {
		left, right = "<", ">"
	}

	var lines []string
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bot := "└" + strings.Repeat("─", width-2) + "┘"
	lines = append(lines, top)
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-utf8.RuneCountInString(content))
		lines = append(lines, left+" "+padded+" "+right)
	}
	lines = append(lines, bot)

	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		maxHeight = max(maxHeight, len(box.lines))
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ") // gap between boxes
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

// renderEdge writes one "from ─→ to" line using node labels.
func renderEdge(b *strings.Builder, model *DiagramModel, edge Edge) {
	label := func(id string) string {
		if n := model.Node(id); n != nil {
			return firstLine(n.Label)
		}
		return id
	}
	arrow := "─→"
	if edge.Label != "" {
		arrow = fmt.Sprintf("─%s→", edge.Label)
	}
	fmt.Fprintf(b, "    %s %s %s\n", label(edge.From), arrow, label(edge.To))
}
