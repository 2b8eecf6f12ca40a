package mermaid

import (
	"strings"

	"github.com/rendis/mindflow/pkg/schema"
)

// link is one arrow found in a statement, with its optional |label|.
type link struct {
	kind  schema.ArrowKind
	label string
}

// splitStatements splits a line on ';' outside node text, quotes and
// |edge labels|. An unmatched '|' is treated as plain text.
func splitStatements(line string) []string {
	parts, open := cutStatements(line, true)
	if open {
		parts, _ = cutStatements(line, false)
	}

	stmts := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// cutStatements does the splitting. It reports whether a label pipe was left
// open at the end of the line.
func cutStatements(line string, pipes bool) ([]string, bool) {
	var out []string
	depth, quoted, piped, start := 0, false, false, 0
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '|' && pipes && depth == 0:
			piped = !piped
		case piped:
		case c == '[' || c == '(' || c == '{':
			depth++
		case c == ']' || c == ')' || c == '}':
			depth = max(depth-1, 0)
		case c == ';' && depth == 0:
			out = append(out, line[start:i])
			start = i + 1
		}
	}
	return append(out, line[start:]), piped
}

// scanLinks cuts a statement into node segments separated by arrows. Arrows
// inside node text or quotes are not arrows. There is always one more
// segment than links.
func scanLinks(stmt string) ([]string, []link) {
	var (
		segs   []string
		links  []link
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(stmt); {
		c := stmt[i]
		switch {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '[' || c == '(' || c == '{':
			depth++
		case c == ']' || c == ')' || c == '}':
			depth = max(depth-1, 0)
		case depth == 0:
			if kind, n := matchArrow(stmt[i:]); n > 0 {
				segs = append(segs, strings.TrimSpace(stmt[start:i]))
				l := link{kind: kind}
				i += n
				l.label, i = matchLabel(stmt, i)
				links = append(links, l)
				start = i
				continue
			}
		}
		i++
	}
	segs = append(segs, strings.TrimSpace(stmt[start:]))
	return segs, links
}

// matchArrow recognizes an arrow at the start of s and returns its kind and
// byte length. Longer dash or equals runs ("--->", "====") are accepted as
// the same kind as their shortest form.
func matchArrow(s string) (schema.ArrowKind, int) {
	switch {
	case strings.HasPrefix(s, "-.->"):
		return schema.ArrowDottedArrow, 4
	case strings.HasPrefix(s, "-.-"):
		return schema.ArrowDotted, 3
	}

	if s == "" || (s[0] != '-' && s[0] != '=') {
		return "", 0
	}
	ch := s[0]
	n := 0
	for n < len(s) && s[n] == ch {
		n++
	}
	head := n < len(s) && s[n] == '>'

	switch {
	case ch == '-' && head && n >= 2:
		return schema.ArrowNormal, n + 1
	case ch == '-' && n >= 3:
		return schema.ArrowLine, n
	case ch == '=' && head && n >= 2:
		return schema.ArrowThick, n + 1
	case ch == '=' && n >= 3:
		return schema.ArrowThickLine, n
	}
	return "", 0
}

// matchLabel reads an optional |label| right after an arrow, allowing
// whitespace before it. It returns the trimmed label and the index just past
// the closing pipe, or "" and i when there is no complete label.
func matchLabel(s string, i int) (string, int) {
	j := i
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	if j >= len(s) || s[j] != '|' {
		return "", i
	}
	end := strings.IndexByte(s[j+1:], '|')
	if end < 0 {
		return "", i
	}
	label := strings.TrimSpace(s[j+1 : j+1+end])
	return unquote(label), j + end + 2
}
