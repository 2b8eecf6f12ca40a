package diagram

import (
	"fmt"
	"math"

	"github.com/gammazero/toposort"

	"github.com/rendis/mindflow/pkg/schema"
)

// FromFlowchart builds a model from a parsed flowchart, keeping node order,
// shapes and arrow kinds.
func FromFlowchart(fc *schema.Flowchart) *DiagramModel {
	m := &DiagramModel{
		Title:     "Flowchart",
		Keyword:   fc.Type,
		Direction: fc.Direction,
	}
	for _, n := range fc.Nodes {
		m.Nodes = append(m.Nodes, &Node{ID: n.ID, Label: n.Text, Shape: n.Shape})
	}
	for _, e := range fc.Edges {
		m.Edges = append(m.Edges, Edge{From: e.Source, To: e.Target, Label: e.Text, Arrow: e.Arrow})
	}
	m.Levels = buildLevels(m)
	return m
}

// FromMindmap lays a mind map out top-down, one level per tree depth. Node
// IDs are assigned in depth-first order since names need not be unique.
func FromMindmap(root *schema.MindmapNode) *DiagramModel {
	m := &DiagramModel{
		Title:     root.Name,
		Keyword:   "flowchart",
		Direction: schema.DirectionLR,
	}

	ids := make(map[*schema.MindmapNode]string)
	depth := make(map[*schema.MindmapNode]int)
	root.Walk(func(n, parent *schema.MindmapNode) {
		id := fmt.Sprintf("n%d", len(ids)+1)
		ids[n] = id

		shape := schema.ShapeRect
		switch {
		case parent == nil:
			shape = schema.ShapeCircle
		case parent == root:
			shape = schema.ShapeRound
		}
		m.Nodes = append(m.Nodes, &Node{ID: id, Label: n.Name, Shape: shape, Color: n.Color})

		if parent != nil {
			depth[n] = depth[parent] + 1
			m.Edges = append(m.Edges, Edge{From: ids[parent], To: id, Arrow: schema.ArrowLine})
		}
		if len(m.Levels) <= depth[n] {
			m.Levels = append(m.Levels, nil)
		}
		m.Levels[depth[n]] = append(m.Levels[depth[n]], id)
	})
	return m
}

// FromGantt turns tasks into a dependency graph grouped by category. Each
// node carries the task's progress and duration as its badge.
func FromGantt(tasks []schema.GanttTask) *DiagramModel {
	m := &DiagramModel{
		Title:     "Gantt",
		Keyword:   "flowchart",
		Direction: schema.DirectionLR,
	}

	ids := make(map[string]string, len(tasks))
	groups := make(map[string]*Group)
	for i, t := range tasks {
		id := fmt.Sprintf("t%d", i+1)
		ids[t.Task] = id
		m.Nodes = append(m.Nodes, &Node{
			ID:    id,
			Label: t.Task,
			Shape: schema.ShapeRect,
			Badge: fmt.Sprintf("%d%% %dd", int(math.Round(t.Progress*100)), t.Duration),
		})

		g, ok := groups[t.Category]
		if !ok {
			g = &Group{Label: t.Category}
			groups[t.Category] = g
			m.Groups = append(m.Groups, g)
		}
		g.NodeIDs = append(g.NodeIDs, id)
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if from, ok := ids[dep]; ok {
				m.Edges = append(m.Edges, Edge{From: from, To: ids[t.Task], Arrow: schema.ArrowNormal})
			}
		}
	}
	m.Levels = buildLevels(m)
	return m
}

// buildLevels assigns every node to a layer. For acyclic graphs a node sits
// one layer below its deepest predecessor. A cyclic graph falls back to
// breadth-first layers from the nodes nothing points at.
func buildLevels(m *DiagramModel) [][]string {
	edges := make([]toposort.Edge, 0, len(m.Edges))
	for _, e := range m.Edges {
		edges = append(edges, toposort.Edge{e.From, e.To})
	}

	level := make(map[string]int, len(m.Nodes))
	if sorted, err := toposort.Toposort(edges); err == nil {
		preds := make(map[string][]string)
		for _, e := range m.Edges {
			preds[e.To] = append(preds[e.To], e.From)
		}
		for _, n := range sorted {
			id := n.(string)
			for _, p := range preds[id] {
				level[id] = max(level[id], level[p]+1)
			}
		}
	} else {
		level = bfsLevels(m)
	}

	var levels [][]string
	for _, n := range m.Nodes {
		l := level[n.ID]
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], n.ID)
	}
	return levels
}

func bfsLevels(m *DiagramModel) map[string]int {
	out := make(map[string][]string)
	indeg := make(map[string]int)
	for _, e := range m.Edges {
		out[e.From] = append(out[e.From], e.To)
		indeg[e.To]++
	}

	level := make(map[string]int, len(m.Nodes))
	var queue []string
	seed := func(id string) {
		if _, seen := level[id]; !seen {
			level[id] = 0
			queue = append(queue, id)
		}
	}
	drain := func() {
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, next := range out[id] {
				if _, seen := level[next]; !seen {
					level[next] = level[id] + 1
					queue = append(queue, next)
				}
			}
		}
	}

	for _, n := range m.Nodes {
		if indeg[n.ID] == 0 {
			seed(n.ID)
		}
	}
	drain()
	// Nodes only reachable around a cycle.
	for _, n := range m.Nodes {
		seed(n.ID)
		drain()
	}
	return level
}
