// Package mindmap builds mind map trees from CSV outlines. Two input shapes
// are understood: an outline where the column of a row's first non-empty cell
// encodes its depth, and an explicit node/parent/level table.
package mindmap

import (
	"log/slog"
	"strings"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/source"
	"github.com/rendis/mindflow/pkg/schema"
)

// MaxDepth is the number of outline columns that can hold a node. Cells
// further right are rejected.
const MaxDepth = 6

// BuildHierarchy builds a tree from outline rows. Only the first non-empty
// cell of each row is read; its column is the node's depth. A node in column 0
// becomes the root, replacing any earlier root. Any other node is appended to
// the most recent node one column to its left.
//
// When that slot is empty (a row skips a column) the node attaches to the
// nearest live ancestor to its left and takes that ancestor's level + 1. A
// node with no live ancestor at all is dropped with a warning.
func BuildHierarchy(rows [][]string, logger *slog.Logger) (*schema.MindmapNode, error) {
	return buildHierarchy(rows, nil, logger)
}

// buildHierarchy logs lines[i] for rows[i], or i+1 when lines is short.
func buildHierarchy(rows [][]string, lines []int, logger *slog.Logger) (*schema.MindmapNode, error) {
	logger = logging.OrDiscard(logger)

	var root *schema.MindmapNode
	stack := make([]*schema.MindmapNode, MaxDepth)

	for i, row := range rows {
		line := i + 1
		if i < len(lines) {
			line = lines[i]
		}
		depth, name := firstCell(row)
		if depth < 0 {
			continue
		}
		if depth >= MaxDepth {
			logger.Warn("outline row too deep, skipped", "line", line, "node", name, "column", depth+1, "max_depth", MaxDepth)
			continue
		}

		if depth == 0 {
			if root != nil {
				logger.Warn("root redefined, previous tree discarded", "line", line, "previous", root.Name, "node", name)
			}
			root = &schema.MindmapNode{Name: name, Level: 1, Color: ColorForLevel(1), Children: []*schema.MindmapNode{}}
			stack[0] = root
			clear(stack[1:])
			continue
		}

		parent := nearestAncestor(stack, depth)
		if parent == nil {
			logger.Warn("outline row has no parent, skipped", "line", line, "node", name, "column", depth+1)
			continue
		}
		if stack[depth-1] == nil {
			logger.Debug("outline gap, attached to nearest ancestor", "line", line, "node", name, "parent", parent.Name)
		}

		node := &schema.MindmapNode{
			Name:     name,
			Level:    parent.Level + 1,
			Color:    ColorForLevel(parent.Level + 1),
			Children: []*schema.MindmapNode{},
		}
		parent.AddChild(node)
		stack[depth] = node
		clear(stack[depth+1:])
	}

	if root == nil {
		return nil, schema.NewError(schema.ErrCodeEmptyOrInvalidTree, "no root node found: the first column of some row must name the central topic")
	}
	return root, nil
}

// ParseHierarchy reads CSV outline text and builds its tree.
func ParseHierarchy(text string, logger *slog.Logger) (*schema.MindmapNode, error) {
	rows, lines, err := source.ReadNumbered(text)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, schema.NewError(schema.ErrCodeEmptyOrInvalidTree, "CSV data is empty")
	}
	root, err := buildHierarchy(rows, lines, logger)
	if err != nil {
		return nil, err
	}
	logging.OrDiscard(logger).Debug("parsed mindmap outline", "rows", len(rows), "nodes", root.Count())
	return root, nil
}

// firstCell returns the column and trimmed text of the first non-empty cell,
// or -1 when the row is blank.
func firstCell(row []string) (int, string) {
	for i, cell := range row {
		if c := strings.TrimSpace(cell); c != "" {
			return i, c
		}
	}
	return -1, ""
}

func nearestAncestor(stack []*schema.MindmapNode, depth int) *schema.MindmapNode {
	for k := depth - 1; k >= 0; k-- {
		if stack[k] != nil {
			return stack[k]
		}
	}
	return nil
}
