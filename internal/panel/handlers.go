package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/store"
	"github.com/rendis/mindflow/internal/streaming"
	"github.com/rendis/mindflow/pkg/schema"
)

// createDiagramRequest is the body of POST /api/diagrams.
type createDiagramRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	NodeStyles  json.RawMessage `json:"node_styles,omitempty"`
}

// requireStore writes a 503 when no store is configured.
func (s *PanelServer) requireStore(w http.ResponseWriter) bool {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "diagram store not configured")
		return false
	}
	return true
}

func (s *PanelServer) handleListDiagrams(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	q := r.URL.Query()
	filter := store.DiagramFilter{
		Search: q.Get("search"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if v := q.Get("type"); v != "" {
		typ, err := schema.ParseDiagramType(v)
		if err != nil {
			writeDiagramError(w, err)
			return
		}
		filter.Type = &typ
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}

	diagrams, err := s.deps.Store.ListDiagrams(r.Context(), filter)
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagrams": diagrams})
}

// handleCreateDiagram saves a new diagram. The source must parse so that
// every saved diagram can be rendered.
func (s *PanelServer) handleCreateDiagram(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	if !s.requireStore(w) {
		return
	}
	var body createDiagramRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	typ, err := schema.ParseDiagramType(body.Type)
	if err != nil {
		writeDiagramError(w, err)
		return
	}

	ctx := r.Context()
	if _, err := s.deps.Converter.Parse(ctx, typ, body.Source); err != nil {
		writeDiagramError(w, err)
		return
	}

	d := &store.Diagram{
		Title:       body.Title,
		Description: body.Description,
		Type:        typ,
		Source:      body.Source,
		NodeStyles:  body.NodeStyles,
	}
	if err := s.deps.Store.CreateDiagram(ctx, d); err != nil {
		writeDiagramError(w, err)
		return
	}

	s.publish(ctx, d, streaming.EventDiagramCreated, map[string]any{"title": d.Title})
	writeJSON(w, http.StatusCreated, d)
}

func (s *PanelServer) handleGetDiagram(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	d, err := s.deps.Store.GetDiagram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDiagram applies a partial update. A new source is parsed
// against the diagram's fixed type before it is stored.
func (s *PanelServer) handleUpdateDiagram(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	ctx := logging.WithDiagramID(r.Context(), id)

	var update store.DiagramUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if update.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	current, err := s.deps.Store.GetDiagram(ctx, id)
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	if update.Source != nil {
		if _, err := s.deps.Converter.Parse(ctx, current.Type, *update.Source); err != nil {
			writeDiagramError(w, err)
			return
		}
	}

	if err := s.deps.Store.UpdateDiagram(ctx, id, update); err != nil {
		writeDiagramError(w, err)
		return
	}
	d, err := s.deps.Store.GetDiagram(ctx, id)
	if err != nil {
		writeDiagramError(w, err)
		return
	}

	s.publish(ctx, d, streaming.EventDiagramUpdated, nil)
	writeJSON(w, http.StatusOK, d)
}

func (s *PanelServer) handleDeleteDiagram(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	ctx := r.Context()

	d, err := s.deps.Store.GetDiagram(ctx, id)
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	if err := s.deps.Store.DeleteDiagram(ctx, id); err != nil {
		writeDiagramError(w, err)
		return
	}

	s.publish(ctx, d, streaming.EventDiagramDeleted, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

// handleParsedDiagram rebuilds the renderer payload of a saved diagram.
func (s *PanelServer) handleParsedDiagram(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	ctx := logging.WithDiagramID(r.Context(), id)

	d, err := s.deps.Store.GetDiagram(ctx, id)
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	res, err := s.deps.Converter.Parse(ctx, d.Type, d.Source)
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"diagram": d,
		"parsed":  s.checked(ctx, res),
	})
}

func (s *PanelServer) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	since := int64(queryInt(r, "since", 0))
	revs, err := s.deps.Store.ListRevisions(r.Context(), r.PathValue("id"), since)
	if err != nil {
		writeDiagramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revs})
}

// handleRestoreRevision copies an old revision back onto the diagram.
func (s *PanelServer) handleRestoreRevision(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	seq, err := strconv.ParseInt(r.PathValue("seq"), 10, 64)
	if err != nil || seq < 1 {
		writeError(w, http.StatusBadRequest, "revision sequence must be a positive integer")
		return
	}
	ctx := logging.WithDiagramID(r.Context(), id)

	if err := s.deps.Store.RestoreRevision(ctx, id, seq); err != nil {
		writeDiagramError(w, err)
		return
	}
	d, err := s.deps.Store.GetDiagram(ctx, id)
	if err != nil {
		writeDiagramError(w, err)
		return
	}

	s.publish(ctx, d, streaming.EventDiagramRestored, map[string]any{"sequence": seq})
	writeJSON(w, http.StatusOK, d)
}

// publish emits a change event when a hub is configured. Failures are logged
// and never fail the request.
func (s *PanelServer) publish(ctx context.Context, d *store.Diagram, eventType string, payload any) {
	if s.deps.Hub == nil {
		return
	}
	err := s.deps.Hub.Publish(ctx, streaming.StreamEvent{
		DiagramID:   d.ID,
		DiagramType: string(d.Type),
		EventType:   eventType,
		Payload:     payload,
	})
	if err != nil {
		logging.LogWith(ctx, s.deps.Logger).Warn("publish diagram event failed",
			"event_type", eventType, "error", err)
	}
}
