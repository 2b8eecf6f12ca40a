// Package panel serves the JSON API used by the live-preview editor.
package panel

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/mindflow/internal/convert"
	"github.com/rendis/mindflow/internal/expressions"
	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/store"
	"github.com/rendis/mindflow/internal/streaming"
	"github.com/rendis/mindflow/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// PanelDeps holds the dependencies for the panel server.
type PanelDeps struct {
	Store     store.Store
	Converter *convert.Converter
	Validator *validation.PayloadValidator
	Querier   *expressions.Querier
	Hub       streaming.EventHub
	// MermaidASCIIBin is the optional mermaid-ascii binary used for ASCII renders.
	MermaidASCIIBin string
	Logger          *slog.Logger
}

// PanelServer serves the HTTP API.
type PanelServer struct {
	deps PanelDeps
}

// NewPanelServer creates a PanelServer. Missing optional dependencies are
// replaced with working defaults; Store and Hub may be nil, in which case the
// saved-diagram and SSE routes answer 503.
func NewPanelServer(deps PanelDeps) *PanelServer {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if deps.Converter == nil {
		deps.Converter = convert.New(deps.Logger)
	}
	return &PanelServer{deps: deps}
}

// Handler returns the HTTP handler for all routes.
func (s *PanelServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Stateless conversion.
	mux.HandleFunc("POST /api/parse/{type}", s.handleParse)
	mux.HandleFunc("POST /api/validate/{type}", s.handleValidate)
	mux.HandleFunc("POST /api/render/{type}", s.handleRender)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/samples/{type}", s.handleSample)

	// Saved diagrams.
	mux.HandleFunc("GET /api/diagrams", s.handleListDiagrams)
	mux.HandleFunc("POST /api/diagrams", s.handleCreateDiagram)
	mux.HandleFunc("GET /api/diagrams/{id}", s.handleGetDiagram)
	mux.HandleFunc("PUT /api/diagrams/{id}", s.handleUpdateDiagram)
	mux.HandleFunc("DELETE /api/diagrams/{id}", s.handleDeleteDiagram)
	mux.HandleFunc("GET /api/diagrams/{id}/parsed", s.handleParsedDiagram)
	mux.HandleFunc("GET /api/diagrams/{id}/revisions", s.handleListRevisions)
	mux.HandleFunc("POST /api/diagrams/{id}/revisions/{seq}/restore", s.handleRestoreRevision)

	// SSE streams.
	mux.HandleFunc("GET /sse/diagrams", s.handleSSEGlobal)
	mux.HandleFunc("GET /sse/diagrams/{id}", s.handleSSEDiagram)

	return s.withRequestID(mux)
}

// withRequestID tags each request with an ID, taken from X-Request-ID when the
// client sends one, and logs the request once it completes.
func (s *PanelServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logging.WithRequestID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		logging.LogWith(ctx, s.deps.Logger).Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
