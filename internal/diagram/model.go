package diagram

import "github.com/rendis/mindflow/pkg/schema"

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title string
	// Keyword is the Mermaid header keyword, "flowchart" or "graph".
	Keyword   string
	Direction schema.Direction
	Nodes     []*Node
	Edges     []Edge
	Groups    []*Group
	Levels    [][]string
}

// Node is a single box in the diagram.
type Node struct {
	ID    string
	Label string
	Shape schema.Shape
	// Color is a fill color, empty for the renderer default.
	Color string
	// Badge is a short annotation such as a task's progress.
	Badge string
}

// Group clusters nodes under a label, rendered as a Mermaid subgraph.
type Group struct {
	Label   string
	NodeIDs []string
}

// Edge connects two node IDs.
type Edge struct {
	From  string
	To    string
	Label string
	Arrow schema.ArrowKind
}

// Node returns the node with the given ID, or nil.
func (m *DiagramModel) Node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
