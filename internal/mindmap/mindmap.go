package mindmap

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rendis/mindflow/internal/source"
	"github.com/rendis/mindflow/pkg/schema"
)

// Format identifies which of the two CSV shapes a mind map was written in.
type Format string

const (
	FormatHierarchy  Format = "hierarchy"
	FormatNodeParent Format = "node_parent"
)

// DetectFormat looks at the first row: a header naming both a node column and
// a parent column marks a node/parent table. Anything else is an outline.
func DetectFormat(text string) Format {
	first, _, _ := strings.Cut(source.Normalize(text), "\n")
	hasNode, hasParent := false, false
	for _, h := range strings.Split(strings.ToLower(first), ",") {
		switch strings.Trim(strings.TrimSpace(h), `"`) {
		case "node", "name":
			hasNode = true
		case "parent":
			hasParent = true
		}
	}
	if hasNode && hasParent {
		return FormatNodeParent
	}
	return FormatHierarchy
}

// Parse builds a tree from either CSV shape.
func Parse(text string, logger *slog.Logger) (*schema.MindmapNode, error) {
	if DetectFormat(text) == FormatNodeParent {
		return ParseNodeParent(text, logger)
	}
	return ParseHierarchy(text, logger)
}

// Validate reports whether text parses as a mind map. The message is empty on
// success and otherwise the error a user should see.
func Validate(text string, logger *slog.Logger) (bool, string) {
	if _, err := Parse(text, logger); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// SampleTree is the tree shown when a node/parent table has no root.
func SampleTree() *schema.MindmapNode {
	leaf := func(name string) *schema.MindmapNode {
		return &schema.MindmapNode{Name: name, Level: 3, Color: ColorForLevel(3), Children: []*schema.MindmapNode{}}
	}
	branch := func(name string, leaves ...*schema.MindmapNode) *schema.MindmapNode {
		return &schema.MindmapNode{Name: name, Level: 2, Color: ColorForLevel(2), Children: leaves}
	}
	return &schema.MindmapNode{
		Name:  "Sample Mind Map",
		Level: 1,
		Color: ColorForLevel(1),
		Children: []*schema.MindmapNode{
			branch("Branch 1", leaf("Leaf 1.1"), leaf("Leaf 1.2")),
			branch("Branch 2", leaf("Leaf 2.1"), leaf("Leaf 2.2")),
		},
	}
}

// SampleHierarchyCSV is an example outline covering four levels.
const SampleHierarchyCSV = `Project Planning,,,
,Market Research,,
,,Target Analysis,
,,Competitor Survey,
,,Trend Analysis,
,Technology,,
,,Frontend,
,,,React
,,,Vue.js
,,Backend,
,,,Node.js
,,,Python
,Risk Management,,
,,Technical Risk,
,,Schedule Risk,`

var templates = map[string][][]string{
	"project": {
		{"Planning", "Requirements", "Market Research"},
		{"Development", "Design", "Implementation"},
		{"Testing", "Unit Tests", "Integration Tests"},
	},
	"study": {
		{"Fundamentals", "Theory", "Exercises"},
		{"Application", "Project", "Presentation"},
		{"Review", "Self Assessment", "Feedback"},
	},
	"business": {
		{"Strategy", "Market Analysis", "Competitor Analysis"},
		{"Execution", "Marketing", "Sales"},
		{"Evaluation", "KPI Tracking", "Improvements"},
	},
}

// TemplateThemes lists the themes Template accepts.
func TemplateThemes() []string {
	return []string{"project", "study", "business"}
}

// Template returns a starter outline with title as the root topic. Unknown
// themes fall back to "project".
func Template(theme, title string) string {
	branches, ok := templates[theme]
	if !ok {
		branches = templates["project"]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s,,", csvCell(title))
	for _, br := range branches {
		fmt.Fprintf(&b, "\n,%s,", csvCell(br[0]))
		for _, leaf := range br[1:] {
			fmt.Fprintf(&b, "\n,,%s", csvCell(leaf))
		}
	}
	return b.String()
}

func csvCell(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
