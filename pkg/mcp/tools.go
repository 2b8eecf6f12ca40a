package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/mindflow/internal/convert"
	"github.com/rendis/mindflow/internal/diagram"
	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/store"
	"github.com/rendis/mindflow/internal/streaming"
	"github.com/rendis/mindflow/pkg/schema"
)

// handleParse converts source text into its renderer payload.
func (s *MindflowServer) handleParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, errResult := requireType(req)
	if errResult != nil {
		return errResult, nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}

	res, err := s.converter.Parse(ctx, typ, source)
	if err != nil {
		return diagramErrorResult("parse failed", err), nil
	}

	out := map[string]any{"result": res}
	if s.validator != nil {
		vr := s.validator.Validate(typ, res.Payload())
		if len(vr.Errors) > 0 {
			out["errors"] = vr.Errors
		}
		if len(vr.Warnings) > 0 {
			out["warnings"] = vr.Warnings
		}
	}
	return marshalResult(out)
}

// handleValidate runs the strict checks on source text.
func (s *MindflowServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, errResult := requireType(req)
	if errResult != nil {
		return errResult, nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}

	valid, msg := s.converter.Validate(ctx, typ, source)
	return marshalResult(map[string]any{"valid": valid, "message": msg})
}

// handleRender re-renders inline or saved diagram text as Mermaid or ASCII.
func (s *MindflowServer) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := diagram.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return diagramErrorResult("render failed", err), nil
	}

	res, errResult := s.resolveDiagram(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	text, err := diagram.Render(ctx, res.Model(), format, s.asciiBin)
	if err != nil {
		return diagramErrorResult("render failed", err), nil
	}
	return mcp.NewToolResultText(text), nil
}

// handleQuery evaluates an expression over inline or saved diagram text.
func (s *MindflowServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.querier == nil {
		return mcp.NewToolResultError("query engines not configured"), nil
	}
	expression, err := req.RequireString("expression")
	if err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}
	lang := req.GetString("lang", "jq")

	res, errResult := s.resolveDiagram(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	if req.GetBool("filter", false) {
		items, err := s.querier.Filter(ctx, lang, expression, res.Type, res.Payload())
		if err != nil {
			return diagramErrorResult("query failed", err), nil
		}
		return marshalResult(map[string]any{"items": items, "count": len(items)})
	}

	out, err := s.querier.Query(ctx, lang, expression, res.Type, res.Payload())
	if err != nil {
		return diagramErrorResult("query failed", err), nil
	}
	return marshalResult(map[string]any{"result": out})
}

// handleSave creates a diagram, or updates one when id is given. Source text
// must parse before it is stored.
func (s *MindflowServer) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("diagram store not configured"), nil
	}
	args := req.GetArguments()

	if id := req.GetString("id", ""); id != "" {
		return s.updateDiagram(logging.WithDiagramID(ctx, id), id, args)
	}

	typ, errResult := requireType(req)
	if errResult != nil {
		return errResult, nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}
	if _, err := s.converter.Parse(ctx, typ, source); err != nil {
		return diagramErrorResult("parse failed", err), nil
	}

	d := &store.Diagram{
		Title:       req.GetString("title", ""),
		Description: req.GetString("description", ""),
		Type:        typ,
		Source:      source,
	}
	if err := s.store.CreateDiagram(ctx, d); err != nil {
		return diagramErrorResult("save failed", err), nil
	}

	s.captureSession(ctx, d.ID)
	s.publish(ctx, d, streaming.EventDiagramCreated)
	return marshalResult(d)
}

func (s *MindflowServer) updateDiagram(ctx context.Context, id string, args map[string]any) (*mcp.CallToolResult, error) {
	current, err := s.store.GetDiagram(ctx, id)
	if err != nil {
		return diagramErrorResult("diagram lookup failed", err), nil
	}
	if t, ok := args["type"].(string); ok && t != "" && t != string(current.Type) {
		return mcp.NewToolResultError(fmt.Sprintf("diagram %q is a %s; its type cannot change", id, current.Type)), nil
	}

	var update store.DiagramUpdate
	if v, ok := args["title"].(string); ok {
		update.Title = &v
	}
	if v, ok := args["description"].(string); ok {
		update.Description = &v
	}
	if v, ok := args["source"].(string); ok {
		if _, err := s.converter.Parse(ctx, current.Type, v); err != nil {
			return diagramErrorResult("parse failed", err), nil
		}
		update.Source = &v
	}
	if update.IsEmpty() {
		return mcp.NewToolResultError("nothing to update: give title, description or source"), nil
	}

	if err := s.store.UpdateDiagram(ctx, id, update); err != nil {
		return diagramErrorResult("save failed", err), nil
	}
	d, err := s.store.GetDiagram(ctx, id)
	if err != nil {
		return diagramErrorResult("diagram lookup failed", err), nil
	}

	s.captureSession(ctx, d.ID)
	s.publish(ctx, d, streaming.EventDiagramUpdated)
	return marshalResult(d)
}

// handleList lists saved diagrams.
func (s *MindflowServer) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("diagram store not configured"), nil
	}
	filter := store.DiagramFilter{
		Search: req.GetString("search", ""),
		Limit:  req.GetInt("limit", 50),
		Offset: req.GetInt("offset", 0),
	}
	if v := req.GetString("type", ""); v != "" {
		typ, err := schema.ParseDiagramType(v)
		if err != nil {
			return diagramErrorResult("list failed", err), nil
		}
		filter.Type = &typ
	}

	diagrams, err := s.store.ListDiagrams(ctx, filter)
	if err != nil {
		return diagramErrorResult("list failed", err), nil
	}

	// Sources are omitted to keep listings small.
	type summary struct {
		ID        string             `json:"id"`
		Title     string             `json:"title"`
		Type      schema.DiagramType `json:"type"`
		UpdatedAt string             `json:"updated_at"`
	}
	out := make([]summary, 0, len(diagrams))
	for _, d := range diagrams {
		out = append(out, summary{ID: d.ID, Title: d.Title, Type: d.Type, UpdatedAt: d.UpdatedAt.Format(time.RFC3339)})
	}
	return marshalResult(map[string]any{"diagrams": out})
}

// handleGet returns a saved diagram with its parsed payload.
func (s *MindflowServer) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("diagram store not configured"), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}
	ctx = logging.WithDiagramID(ctx, id)

	d, err := s.store.GetDiagram(ctx, id)
	if err != nil {
		return diagramErrorResult("diagram lookup failed", err), nil
	}
	out := map[string]any{"diagram": d}

	res, err := s.converter.Parse(ctx, d.Type, d.Source)
	if err != nil {
		out["parse_error"] = err.Error()
	} else {
		out["parsed"] = res
	}

	if req.GetBool("include_revisions", false) {
		revs, err := s.store.ListRevisions(ctx, id, 0)
		if err != nil {
			return diagramErrorResult("revision lookup failed", err), nil
		}
		out["revisions"] = revs
	}

	s.captureSession(ctx, d.ID)
	return marshalResult(out)
}

// --- Internal helpers ---

// resolveDiagram parses either the saved diagram named by diagram_id or the
// inline type and source arguments.
func (s *MindflowServer) resolveDiagram(ctx context.Context, req mcp.CallToolRequest) (*convert.Result, *mcp.CallToolResult) {
	if id := req.GetString("diagram_id", ""); id != "" {
		if s.store == nil {
			return nil, mcp.NewToolResultError("diagram store not configured")
		}
		ctx = logging.WithDiagramID(ctx, id)
		d, err := s.store.GetDiagram(ctx, id)
		if err != nil {
			return nil, diagramErrorResult("diagram lookup failed", err)
		}
		res, err := s.converter.Parse(ctx, d.Type, d.Source)
		if err != nil {
			return nil, diagramErrorResult("parse failed", err)
		}
		return res, nil
	}

	typ, errResult := requireType(req)
	if errResult != nil {
		return nil, errResult
	}
	source, err := req.RequireString("source")
	if err != nil {
		return nil, mcp.NewToolResultError("source or diagram_id is required")
	}
	res, err := s.converter.Parse(ctx, typ, source)
	if err != nil {
		return nil, diagramErrorResult("parse failed", err)
	}
	return res, nil
}

// requireType reads and checks the type argument.
func requireType(req mcp.CallToolRequest) (schema.DiagramType, *mcp.CallToolResult) {
	v, err := req.RequireString("type")
	if err != nil {
		return "", mcp.NewToolResultError("type is required")
	}
	typ, err := schema.ParseDiagramType(v)
	if err != nil {
		return "", diagramErrorResult("invalid type", err)
	}
	return typ, nil
}

// diagramErrorResult reports err as a tool error, keeping the error code and
// line of a DiagramError so agents can act on them.
func diagramErrorResult(prefix string, err error) *mcp.CallToolResult {
	var de *schema.DiagramError
	if errors.As(err, &de) {
		data, _ := json.Marshal(de)
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", prefix, data))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

// captureSession subscribes the calling session to changes of diagramID.
func (s *MindflowServer) captureSession(ctx context.Context, diagramID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Watch(diagramID, session.SessionID())
	}
}

// publish emits a change event when a hub is configured.
func (s *MindflowServer) publish(ctx context.Context, d *store.Diagram, eventType string) {
	if s.hub == nil {
		return
	}
	err := s.hub.Publish(ctx, streaming.StreamEvent{
		DiagramID:   d.ID,
		DiagramType: string(d.Type),
		EventType:   eventType,
		Payload:     map[string]any{"title": d.Title},
	})
	if err != nil {
		logging.LogWith(ctx, s.logger).Warn("publish diagram event failed", "event_type", eventType, "error", err)
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
