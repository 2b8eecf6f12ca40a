package panel

import (
	"context"
	"net/http"

	"github.com/rendis/mindflow/internal/convert"
	"github.com/rendis/mindflow/internal/diagram"
	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/pkg/schema"
)

// parseResponse is a parsed diagram plus the payload checks run on it.
type parseResponse struct {
	*convert.Result
	Errors   []schema.ValidationIssue `json:"errors,omitempty"`
	Warnings []schema.ValidationIssue `json:"warnings,omitempty"`
}

func (s *PanelServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleParse runs the best-effort parser and returns the renderer payload.
func (s *PanelServer) handleParse(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	typ, ok := pathType(w, r)
	if !ok {
		return
	}
	text, err := readSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Converter.Parse(r.Context(), typ, text)
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.checked(r.Context(), res))
}

// checked attaches payload validation issues to res when a validator is set.
func (s *PanelServer) checked(ctx context.Context, res *convert.Result) parseResponse {
	resp := parseResponse{Result: res}
	if s.deps.Validator == nil {
		return resp
	}
	vr := s.deps.Validator.Validate(res.Type, res.Payload())
	resp.Errors, resp.Warnings = vr.Errors, vr.Warnings
	if !vr.Valid() {
		logging.LogWith(ctx, s.deps.Logger).Warn("parsed payload failed validation",
			"diagram_type", res.Type, "errors", len(vr.Errors))
	}
	return resp
}

// handleValidate runs the strict checks and reports the first problem.
func (s *PanelServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	typ, ok := pathType(w, r)
	if !ok {
		return
	}
	text, err := readSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	valid, msg := s.deps.Converter.Validate(r.Context(), typ, text)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   valid,
		"message": msg,
	})
}

// handleRender parses the body and re-renders it as Mermaid or ASCII text.
func (s *PanelServer) handleRender(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	typ, ok := pathType(w, r)
	if !ok {
		return
	}
	format, err := diagram.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	text, err := readSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Converter.Parse(r.Context(), typ, text)
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	out, err := diagram.Render(r.Context(), res.Model(), format, s.deps.MermaidASCIIBin)
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"type":   string(typ),
		"format": string(format),
		"output": out,
	})
}

// queryRequest evaluates an expression over a parsed diagram. The diagram is
// either inline (Type and Source) or a saved one (DiagramID).
type queryRequest struct {
	Lang       string `json:"lang"`
	Expression string `json:"expression"`
	Type       string `json:"type,omitempty"`
	Source     string `json:"source,omitempty"`
	DiagramID  string `json:"diagram_id,omitempty"`
	// Filter evaluates Expression once per item as a predicate.
	Filter bool `json:"filter,omitempty"`
}

func (s *PanelServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	if s.deps.Querier == nil {
		writeError(w, http.StatusServiceUnavailable, "query engines not configured")
		return
	}

	var body queryRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Lang == "" {
		body.Lang = "jq"
	}
	if body.Expression == "" {
		writeError(w, http.StatusBadRequest, "expression is required")
		return
	}

	ctx := r.Context()
	typeTag, text := body.Type, body.Source
	if body.DiagramID != "" {
		if s.deps.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "diagram store not configured")
			return
		}
		d, err := s.deps.Store.GetDiagram(ctx, body.DiagramID)
		if err != nil {
			writeDiagramError(w, err)
			return
		}
		typeTag, text = string(d.Type), d.Source
		ctx = logging.WithDiagramID(ctx, d.ID)
	}
	typ, err := schema.ParseDiagramType(typeTag)
	if err != nil {
		writeDiagramError(w, err)
		return
	}

	res, err := s.deps.Converter.Parse(ctx, typ, text)
	if err != nil {
		writeDiagramError(w, err)
		return
	}

	if body.Filter {
		items, err := s.deps.Querier.Filter(ctx, body.Lang, body.Expression, typ, res.Payload())
		if err != nil {
			writeDiagramError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
		return
	}

	out, err := s.deps.Querier.Query(ctx, body.Lang, body.Expression, typ, res.Payload())
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": out})
}

// handleSample returns the built-in example input for a type.
func (s *PanelServer) handleSample(w http.ResponseWriter, r *http.Request) {
	typ, ok := pathType(w, r)
	if !ok {
		return
	}
	text, _ := convert.Sample(typ)
	writeJSON(w, http.StatusOK, map[string]string{"type": string(typ), "source": text})
}
