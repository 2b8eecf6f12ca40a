package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// DiagramType tags raw input text with the parser that understands it.
type DiagramType string

const (
	DiagramMindmap   DiagramType = "mindmap"
	DiagramGantt     DiagramType = "gantt"
	DiagramFlowchart DiagramType = "flowchart"
)

// DiagramTypes lists every supported diagram type.
func DiagramTypes() []DiagramType {
	return []DiagramType{DiagramMindmap, DiagramGantt, DiagramFlowchart}
}

// ParseDiagramType converts a user-supplied tag into a DiagramType.
func ParseDiagramType(s string) (DiagramType, error) {
	for _, t := range DiagramTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", NewErrorf(ErrCodeUnsupportedType, "unsupported diagram type %q (want mindmap, gantt or flowchart)", s)
}

// MindmapNode is one topic of a mind map tree.
type MindmapNode struct {
	Name     string         `json:"name"`
	Level    int            `json:"level"`
	Color    string         `json:"color"`
	Children []*MindmapNode `json:"children"`
}

// AddChild appends child, preserving insertion order.
func (n *MindmapNode) AddChild(child *MindmapNode) {
	n.Children = append(n.Children, child)
}

// Walk visits n and every descendant depth-first, parents before children.
func (n *MindmapNode) Walk(fn func(node, parent *MindmapNode)) {
	var walk func(node, parent *MindmapNode)
	walk = func(node, parent *MindmapNode) {
		fn(node, parent)
		for _, c := range node.Children {
			walk(c, node)
		}
	}
	walk(n, nil)
}

// Count returns the number of nodes in the tree rooted at n.
func (n *MindmapNode) Count() int {
	total := 0
	n.Walk(func(_, _ *MindmapNode) { total++ })
	return total
}

// Date is a calendar day. It serializes as YYYY-MM-DD.
type Date struct {
	time.Time
}

// DateLayout is the canonical textual form of a Date.
const DateLayout = "2006-01-02"

// NewDate truncates t to midnight UTC of its calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the whole number of days from d to other. Both are UTC
// midnights, so Unix seconds divide evenly and no time.Duration (capped near
// 292 years) is involved.
func (d Date) DaysUntil(other Date) int {
	return int((other.Unix() - d.Unix()) / 86400)
}

func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	t, err := time.Parse(DateLayout, string(b))
	if err != nil {
		return fmt.Errorf("date %q: %w", string(b), err)
	}
	*d = NewDate(t)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// GanttTask is one bar of a Gantt chart. Task is unique within a parse.
type GanttTask struct {
	Task         string   `json:"task"`
	Start        Date     `json:"start"`
	End          Date     `json:"end"`
	Duration     int      `json:"duration"`
	Progress     float64  `json:"progress"`
	Category     string   `json:"category"`
	Dependencies []string `json:"dependencies"`
	Resource     string   `json:"resource"`
}

// GanttSummary is chart-level metadata derived from a task list.
type GanttSummary struct {
	StartDate  Date     `json:"start_date"`
	EndDate    Date     `json:"end_date"`
	TotalTasks int      `json:"total_tasks"`
	Categories []string `json:"categories"`
}

// GanttChart is the payload handed to the renderer for a Gantt diagram.
type GanttChart struct {
	Tasks   []GanttTask  `json:"tasks"`
	Summary GanttSummary `json:"summary"`
}

// Shape is the outline a flowchart node is drawn with.
type Shape string

const (
	ShapeRect       Shape = "rect"
	ShapeRound      Shape = "round"
	ShapeRhombus    Shape = "rhombus"
	ShapeCircle     Shape = "circle"
	ShapeStadium    Shape = "stadium"
	ShapeSubroutine Shape = "subroutine"
)

// ArrowKind is the line style of a flowchart edge.
type ArrowKind string

const (
	ArrowNormal      ArrowKind = "arrow"
	ArrowLine        ArrowKind = "line"
	ArrowDotted      ArrowKind = "dotted"
	ArrowThick       ArrowKind = "thick"
	ArrowThickLine   ArrowKind = "thick_line"
	ArrowDottedArrow ArrowKind = "dotted_arrow"
)

// Direction is the flowchart layout direction.
type Direction string

const (
	DirectionTD Direction = "TD"
	DirectionTB Direction = "TB"
	DirectionBT Direction = "BT"
	DirectionRL Direction = "RL"
	DirectionLR Direction = "LR"
)

// MermaidNode is a flowchart vertex. ID is stable across lines of one parse.
type MermaidNode struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Shape Shape  `json:"shape"`
}

// MermaidEdge connects two node IDs.
type MermaidEdge struct {
	Source string    `json:"source"`
	Target string    `json:"target"`
	Text   string    `json:"text,omitempty"`
	Arrow  ArrowKind `json:"arrow"`
}

// Flowchart is the parsed form of a Mermaid flowchart.
type Flowchart struct {
	Type      string        `json:"type"`
	Direction Direction     `json:"direction"`
	Nodes     []MermaidNode `json:"nodes"`
	Edges     []MermaidEdge `json:"edges"`
}

// Node returns the node with the given id, or nil.
func (f *Flowchart) Node(id string) *MermaidNode {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}
