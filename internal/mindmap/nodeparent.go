package mindmap

import (
	"cmp"
	"log/slog"
	"slices"
	"strconv"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/source"
	"github.com/rendis/mindflow/pkg/schema"
)

// NodeParentRow is one row of a node/parent/level table.
type NodeParentRow struct {
	Node   string
	Parent string
	Level  int
	Color  string
	// Line is the 1-based data row, used only in log output.
	Line int
}

// BuildNodeParent builds a tree from explicit parent links. Rows are visited
// in ascending level order so input order does not matter. A row with no
// parent or level 1 is the root.
//
// A parent that has not been defined yet gets a gray placeholder one level
// up. The placeholder is completed if its own row turns up later; otherwise
// it ends up under the root. When no root is found the sample tree is
// returned.
func BuildNodeParent(rows []NodeParentRow, logger *slog.Logger) *schema.MindmapNode {
	logger = logging.OrDiscard(logger)

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b NodeParentRow) int { return cmp.Compare(a.Level, b.Level) })

	var (
		root        *schema.MindmapNode
		order       []*schema.MindmapNode
		nodes       = make(map[string]*schema.MindmapNode)
		placeholder = make(map[*schema.MindmapNode]bool)
		parentOf    = make(map[*schema.MindmapNode]*schema.MindmapNode)
	)

	newNode := func(name string, level int, color string) *schema.MindmapNode {
		n := &schema.MindmapNode{Name: name, Level: level, Color: color, Children: []*schema.MindmapNode{}}
		nodes[name] = n
		order = append(order, n)
		return n
	}

	for _, row := range sorted {
		color := row.Color
		if color == "" {
			color = ColorForLevel(row.Level)
		}

		node, seen := nodes[row.Node]
		switch {
		case !seen:
			node = newNode(row.Node, row.Level, color)
		case placeholder[node]:
			delete(placeholder, node)
			node.Level, node.Color = row.Level, color
		default:
			logger.Warn("duplicate node row, skipped", "line", row.Line, "node", row.Node)
			continue
		}

		if row.Parent == "" || row.Level == 1 {
			if root != nil {
				logger.Warn("root redefined", "line", row.Line, "previous", root.Name, "node", row.Node)
			}
			root = node
			continue
		}

		parent, ok := nodes[row.Parent]
		if !ok {
			parent = newNode(row.Parent, max(row.Level-1, 1), PlaceholderColor)
			placeholder[parent] = true
			logger.Warn("parent not defined, placeholder created", "line", row.Line, "node", row.Node, "parent", row.Parent)
		}
		if descends(parent, node, parentOf) {
			logger.Warn("parent link would form a cycle, left detached", "line", row.Line, "node", row.Node, "parent", row.Parent)
			continue
		}
		parent.AddChild(node)
		parentOf[node] = parent
	}

	if root == nil {
		logger.Warn("no root node in node/parent table, using sample tree")
		return SampleTree()
	}

	for _, n := range order {
		if n == root || parentOf[n] != nil {
			continue
		}
		logger.Warn("detached node attached to root", "node", n.Name)
		root.AddChild(n)
		parentOf[n] = root
	}
	return root
}

// descends reports whether n is ancestor itself or lies below it.
func descends(n, ancestor *schema.MindmapNode, parentOf map[*schema.MindmapNode]*schema.MindmapNode) bool {
	for p := n; p != nil; p = parentOf[p] {
		if p == ancestor {
			return true
		}
	}
	return false
}

// ParseNodeParent reads a node/parent/level CSV table. The node column may be
// headed "node" or "name"; "parent", "level" and "color" are optional.
func ParseNodeParent(text string, logger *slog.Logger) (*schema.MindmapNode, error) {
	logger = logging.OrDiscard(logger)

	table, err := source.ReadTable(text)
	if err != nil {
		return nil, err
	}
	nodeCol := nodeColumn(table)
	if nodeCol == "" {
		return nil, schema.NewError(schema.ErrCodeMissingValue, `node/parent table needs a "node" or "name" column`)
	}

	rows := make([]NodeParentRow, 0, len(table.Rows))
	for i, rec := range table.Rows {
		line := table.Line(i)
		row := NodeParentRow{Node: rec[nodeCol], Parent: rec["parent"], Color: rec["color"], Line: line}
		if row.Node == "" {
			logger.Warn("row without node name, skipped", "line", line)
			continue
		}
		row.Level = parseLevel(rec["level"], row.Parent, line, logger)
		rows = append(rows, row)
	}
	return BuildNodeParent(rows, logger), nil
}

func parseLevel(text, parent string, line int, logger *slog.Logger) int {
	if lvl, err := strconv.Atoi(text); err == nil && lvl >= 1 {
		return lvl
	}
	lvl := 2
	if parent == "" {
		lvl = 1
	}
	if text != "" {
		logger.Warn("invalid level, inferred from parent", "line", line, "value", text, "level", lvl)
	}
	return lvl
}

func nodeColumn(t *source.Table) string {
	for _, c := range []string{"node", "name"} {
		if t.Has(c) {
			return c
		}
	}
	return ""
}
