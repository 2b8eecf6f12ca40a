package expressions

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/rendis/mindflow/pkg/schema"
)

// Scope keys shared by every engine.
const (
	ScopeDiagramType = "diagram_type"
	ScopeRoot        = "root"
	ScopeNodes       = "nodes"
	ScopeEdges       = "edges"
	ScopeTasks       = "tasks"
	ScopeSummary     = "summary"
	ScopeDirection   = "direction"
	ScopeKeyword     = "keyword"
	ScopeItem        = "item"
)

// scopeZero maps every scope key to the value it takes when the diagram type
// at hand does not define it. The value types are what BuildScope produces,
// which lets the typed engines declare their environment from it.
var scopeZero = map[string]any{
	ScopeDiagramType: "",
	ScopeRoot:        map[string]any{},
	ScopeNodes:       []any{},
	ScopeEdges:       []any{},
	ScopeTasks:       []any{},
	ScopeSummary:     map[string]any{},
	ScopeDirection:   "",
	ScopeKeyword:     "",
	ScopeItem:        map[string]any{},
}

// ScopeKeys returns the names expressions may reference, sorted.
func ScopeKeys() []string {
	return slices.Sorted(maps.Keys(scopeZero))
}

// withDefaults returns a copy of data with every missing or nil scope key set
// to its zero value. Keys outside the scope are dropped.
func withDefaults(data map[string]any) map[string]any {
	out := make(map[string]any, len(scopeZero))
	for key, zero := range scopeZero {
		if v, ok := data[key]; ok && v != nil {
			out[key] = v
		} else {
			out[key] = zero
		}
	}
	return out
}

// BuildScope turns a parsed payload into the JSON-shaped data expressions run
// against. All numbers become float64.
//
//   - mindmap:   root (the tree), nodes (flattened, with parent and depth)
//   - gantt:     tasks, summary
//   - flowchart: keyword, direction, nodes, edges
func BuildScope(typ schema.DiagramType, payload any) (map[string]any, error) {
	scope := map[string]any{ScopeDiagramType: string(typ)}

	switch typ {
	case schema.DiagramMindmap:
		root, err := asType[schema.MindmapNode](payload)
		if err != nil {
			return nil, err
		}
		tree, err := toJSONMap(root)
		if err != nil {
			return nil, err
		}
		scope[ScopeRoot] = tree
		scope[ScopeNodes] = flattenMindmap(root)
	case schema.DiagramGantt:
		chart, err := asType[schema.GanttChart](payload)
		if err != nil {
			return nil, err
		}
		data, err := toJSONMap(chart)
		if err != nil {
			return nil, err
		}
		scope[ScopeTasks] = data["tasks"]
		scope[ScopeSummary] = data["summary"]
	case schema.DiagramFlowchart:
		fc, err := asType[schema.Flowchart](payload)
		if err != nil {
			return nil, err
		}
		data, err := toJSONMap(fc)
		if err != nil {
			return nil, err
		}
		scope[ScopeKeyword] = data["type"]
		scope[ScopeDirection] = data["direction"]
		scope[ScopeNodes] = data["nodes"]
		scope[ScopeEdges] = data["edges"]
	default:
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedType, "unsupported diagram type %q", typ)
	}
	return scope, nil
}

// Items returns the collection per-item filters walk: tasks for Gantt
// charts, nodes otherwise.
func Items(scope map[string]any) []any {
	key := ScopeNodes
	if scope[ScopeDiagramType] == string(schema.DiagramGantt) {
		key = ScopeTasks
	}
	items, _ := scope[key].([]any)
	return items
}

// flattenMindmap lists nodes depth-first with their parent name and depth.
func flattenMindmap(root *schema.MindmapNode) []any {
	depth := map[*schema.MindmapNode]int{}
	var out []any
	root.Walk(func(node, parent *schema.MindmapNode) {
		parentName := ""
		if parent != nil {
			parentName = parent.Name
			depth[node] = depth[parent] + 1
		}
		out = append(out, map[string]any{
			"name":        node.Name,
			"level":       float64(node.Level),
			"color":       node.Color,
			"parent":      parentName,
			"depth":       float64(depth[node]),
			"child_count": float64(len(node.Children)),
		})
	})
	return out
}

// asType returns payload as *T, converting through JSON when it is not
// already that type.
func asType[T any](payload any) (*T, error) {
	switch v := payload.(type) {
	case *T:
		if v == nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "payload is nil")
		}
		return v, nil
	case T:
		return &v, nil
	case nil:
		return nil, schema.NewError(schema.ErrCodeValidation, "payload is nil")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "failed to serialize payload").WithCause(err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "payload does not match diagram type").WithCause(err)
	}
	return &out, nil
}

func toJSONMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal scope: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	return out, nil
}
