package mermaid

import (
	"strings"

	"github.com/rendis/mindflow/pkg/schema"
)

type shapeLiteral struct {
	open, close string
	shape       schema.Shape
}

// shapeLiterals are tried in order; forms sharing an opening bracket are
// listed most specific first.
var shapeLiterals = []shapeLiteral{
	{"((", "))", schema.ShapeCircle},
	{"([", "])", schema.ShapeStadium},
	{"[(", ")]", schema.ShapeStadium},
	{"[[", "]]", schema.ShapeSubroutine},
	{"[/", "/]", schema.ShapeRhombus},
	{`[\`, `\]`, schema.ShapeRhombus},
	{"{{", "}}", schema.ShapeRhombus},
	{"[", "]", schema.ShapeRect},
	{"(", ")", schema.ShapeRound},
	{"{", "}", schema.ShapeRhombus},
}

// nodeRef is a node as written in one segment.
type nodeRef struct {
	id    string
	text  string
	shape schema.Shape
	// shaped is false for a bare identifier.
	shaped bool
}

// parseNodeRef reads "id", "id[text]" or "[text]" style segments.
func parseNodeRef(seg string) (nodeRef, bool) {
	seg = strings.TrimSpace(seg)
	open := strings.IndexAny(seg, "[({")
	if open < 0 {
		if !isIdent(seg) {
			return nodeRef{}, false
		}
		return nodeRef{id: seg, text: seg, shape: schema.ShapeRect}, true
	}

	id := strings.TrimSpace(seg[:open])
	if id != "" && !isIdent(id) {
		return nodeRef{}, false
	}
	text, shape, ok := matchShape(seg[open:])
	if !ok {
		return nodeRef{}, false
	}
	if id == "" {
		id = sanitizeID(text)
	}
	return nodeRef{id: id, text: text, shape: shape, shaped: true}, true
}

func matchShape(s string) (string, schema.Shape, bool) {
	for _, lit := range shapeLiterals {
		if len(s) <= len(lit.open)+len(lit.close) ||
			!strings.HasPrefix(s, lit.open) || !strings.HasSuffix(s, lit.close) {
			continue
		}
		text := unquote(strings.TrimSpace(s[len(lit.open) : len(s)-len(lit.close)]))
		if text == "" {
			continue
		}
		return text, lit.shape, true
	}
	return "", "", false
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isIdentRune(r) {
			return false
		}
	}
	return true
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// sanitizeID derives an id from a label by replacing every rune outside
// [A-Za-z0-9_] with '_'.
func sanitizeID(text string) string {
	return strings.Map(func(r rune) rune {
		if isIdentRune(r) {
			return r
		}
		return '_'
	}, text)
}

var entities = strings.NewReplacer("#quot;", `"`, "#124;", "|", "#35;", "#")

// unquote strips surrounding double quotes and decodes the entity escapes
// Mermaid uses inside labels.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return entities.Replace(s)
}
