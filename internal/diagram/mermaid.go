package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/mindflow/pkg/schema"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string that
// the mermaid package parses back into the same nodes and edges.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	keyword := model.Keyword
	if keyword == "" {
		keyword = "flowchart"
	}
	dir := model.Direction
	if dir == "" {
		dir = schema.DirectionTD
	}
	fmt.Fprintf(&b, "%s %s\n", keyword, dir)

	// Title as comment.
	if model.Title != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", firstLine(model.Title))
	}

	grouped := make(map[string]bool)
	for _, g := range model.Groups {
		fmt.Fprintf(&b, "    subgraph %s[\"%s\"]\n", mermaidSafeID("group_"+g.Label), mermaidEscapeLabel(g.Label))
		for _, id := range g.NodeIDs {
			if n := model.Node(id); n != nil {
				fmt.Fprintf(&b, "        %s\n", mermaidNodeDef(n))
				grouped[id] = true
			}
		}
		b.WriteString("    end\n")
	}

	for _, node := range model.Nodes {
		if !grouped[node.ID] {
			fmt.Fprintf(&b, "    %s\n", mermaidNodeDef(node))
		}
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|\"%s\"|", mermaidEscapeLabel(edge.Label))
		}
		fmt.Fprintf(&b, "    %s %s%s %s\n",
			mermaidSafeID(edge.From), mermaidArrow(edge.Arrow), label, mermaidSafeID(edge.To))
	}

	// Fill colors.
	for _, node := range model.Nodes {
		if node.Color != "" {
			fmt.Fprintf(&b, "    style %s fill:%s\n", mermaidSafeID(node.ID), node.Color)
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)
	if node.Badge != "" {
		label += " " + node.Badge
	}
	label = `"` + mermaidEscapeLabel(label) + `"`

	switch node.Shape {
	case schema.ShapeRound:
		return fmt.Sprintf("%s(%s)", id, label)
	case schema.ShapeRhombus:
		return fmt.Sprintf("%s{%s}", id, label)
	case schema.ShapeCircle:
		return fmt.Sprintf("%s((%s))", id, label)
	case schema.ShapeStadium:
		return fmt.Sprintf("%s([%s])", id, label)
	case schema.ShapeSubroutine:
		return fmt.Sprintf("%s[[%s]]", id, label)
	default: // rect
		return fmt.Sprintf("%s[%s]", id, label)
	}
}

func mermaidArrow(kind schema.ArrowKind) string {
	switch kind {
	case schema.ArrowLine:
		return "---"
	case schema.ArrowDotted:
		return "-.-"
	case schema.ArrowThick:
		return "==>"
	case schema.ArrowThickLine:
		return "==="
	case schema.ArrowDottedArrow:
		return "-.->"
	default:
		return "-->"
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier by
// replacing everything outside [A-Za-z0-9_] with underscores.
func mermaidSafeID(id string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, id)
}

// mermaidEscapeLabel escapes characters that would end a quoted label or an
// edge label early.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;")
	return r.Replace(s)
}
