package panel

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rendis/mindflow/internal/streaming"
)

// handleSSEGlobal streams every diagram change, optionally narrowed by the
// type and event query parameters.
func (s *PanelServer) handleSSEGlobal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.serveSSE(w, r, streaming.EventFilter{
		DiagramType: q.Get("type"),
		EventTypes:  q["event"],
	})
}

// handleSSEDiagram streams changes to one diagram.
func (s *PanelServer) handleSSEDiagram(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.EventFilter{DiagramID: r.PathValue("id")})
}

func (s *PanelServer) serveSSE(w http.ResponseWriter, r *http.Request, filter streaming.EventFilter) {
	if s.deps.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}
	rc := http.NewResponseController(w)

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
