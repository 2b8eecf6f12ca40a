// Package mermaid parses the flowchart subset of Mermaid into nodes and
// edges. Malformed statements are logged and skipped; only a missing header
// fails the parse.
package mermaid

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/source"
	"github.com/rendis/mindflow/pkg/schema"
)

var directions = []schema.Direction{
	schema.DirectionTD,
	schema.DirectionTB,
	schema.DirectionBT,
	schema.DirectionRL,
	schema.DirectionLR,
}

// directives are statements that style or group nodes without adding any.
var directives = []string{"classDef", "class", "style", "linkStyle", "click", "subgraph", "end", "direction"}

// Parser parses Mermaid flowcharts. It holds no per-parse state and is safe
// for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser that logs skipped statements to logger.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logging.OrDiscard(logger)}
}

// Parse parses text with a throwaway Parser.
func Parse(text string, logger *slog.Logger) (*schema.Flowchart, error) {
	return NewParser(logger).Parse(text)
}

// Parse reads the header from the first non-blank line, then every following
// statement. Node order is the order ids are first seen.
func (p *Parser) Parse(text string) (*schema.Flowchart, error) {
	lines := source.Lines(text)

	headerAt := -1
	for i, l := range lines {
		if l = strings.TrimSpace(l); l != "" && !strings.HasPrefix(l, "%") {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, schema.NewError(schema.ErrCodeInvalidDiagramHeader,
			"empty diagram: expected 'flowchart <direction>' or 'graph <direction>'")
	}

	header := splitStatements(lines[headerAt])
	fc, err := p.parseHeader(header[0], headerAt+1)
	if err != nil {
		return nil, err
	}

	g := newGraph()
	for _, stmt := range header[1:] {
		p.parseStatement(g, stmt, headerAt+1)
	}
	for i := headerAt + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		for _, stmt := range splitStatements(line) {
			p.parseStatement(g, stmt, i+1)
		}
	}

	fc.Nodes = g.list()
	fc.Edges = g.edges
	p.logger.Debug("parsed mermaid flowchart", "nodes", len(fc.Nodes), "edges", len(fc.Edges))
	return fc, nil
}

func (p *Parser) parseHeader(stmt string, line int) (*schema.Flowchart, error) {
	fields := strings.Fields(stmt)
	keyword := ""
	if len(fields) > 0 {
		keyword = strings.ToLower(fields[0])
	}
	if keyword != "flowchart" && keyword != "graph" {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidDiagramHeader,
			"invalid diagram header %q: expected 'flowchart <direction>' or 'graph <direction>'", stmt).WithLine(line)
	}

	fc := &schema.Flowchart{
		Type:      keyword,
		Direction: schema.DirectionTD,
		Nodes:     []schema.MermaidNode{},
		Edges:     []schema.MermaidEdge{},
	}
	if len(fields) > 1 {
		dir := schema.Direction(strings.ToUpper(fields[1]))
		if slices.Contains(directions, dir) {
			fc.Direction = dir
		} else {
			p.logger.Warn("unknown flowchart direction, using TD", "line", line, "direction", fields[1])
		}
	}
	return fc, nil
}

func (p *Parser) parseStatement(g *graph, stmt string, line int) {
	segs, links := scanLinks(stmt)

	if len(links) == 0 {
		if slices.Contains(directives, strings.Fields(stmt)[0]) {
			p.logger.Debug("mermaid directive skipped", "line", line, "statement", stmt)
			return
		}
		ref, ok := parseNodeRef(stmt)
		if !ok || !ref.shaped {
			p.logger.Warn("unrecognized mermaid statement, skipped", "line", line, "statement", stmt)
			return
		}
		g.define(ref)
		return
	}

	refs := make([]nodeRef, len(segs))
	for i, seg := range segs {
		ref, ok := parseNodeRef(seg)
		if !ok {
			p.logger.Warn("unrecognized node in edge, statement skipped", "line", line, "statement", stmt, "segment", seg)
			return
		}
		refs[i] = ref
	}

	for _, ref := range refs {
		g.reference(ref)
	}
	for i, l := range links {
		g.edges = append(g.edges, schema.MermaidEdge{
			Source: refs[i].id,
			Target: refs[i+1].id,
			Text:   l.label,
			Arrow:  l.kind,
		})
	}
}

// graph accumulates one parse's nodes and edges.
type graph struct {
	nodes  map[string]*schema.MermaidNode
	shaped map[string]bool
	order  []string
	edges  []schema.MermaidEdge
}

func newGraph() *graph {
	return &graph{
		nodes:  make(map[string]*schema.MermaidNode),
		shaped: make(map[string]bool),
		edges:  []schema.MermaidEdge{},
	}
}

// reference records a node mentioned in an edge. A bare id never changes a
// known node; a shaped one fills in a node so far only seen bare.
func (g *graph) reference(ref nodeRef) {
	n, ok := g.nodes[ref.id]
	if !ok {
		g.add(ref)
		return
	}
	if ref.shaped && !g.shaped[ref.id] {
		n.Text, n.Shape = ref.text, ref.shape
		g.shaped[ref.id] = true
	}
}

// define records a standalone node definition, which always wins.
func (g *graph) define(ref nodeRef) {
	n, ok := g.nodes[ref.id]
	if !ok {
		g.add(ref)
		return
	}
	n.Text, n.Shape = ref.text, ref.shape
	g.shaped[ref.id] = true
}

func (g *graph) add(ref nodeRef) {
	g.nodes[ref.id] = &schema.MermaidNode{ID: ref.id, Text: ref.text, Shape: ref.shape}
	g.shaped[ref.id] = ref.shaped
	g.order = append(g.order, ref.id)
}

func (g *graph) list() []schema.MermaidNode {
	out := make([]schema.MermaidNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.nodes[id])
	}
	return out
}
