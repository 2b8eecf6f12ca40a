package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/rendis/mindflow/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorBody is the JSON shape of a failed request carrying a DiagramError.
type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Line    int            `json:"line,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// writeDiagramError maps err to a status code by its DiagramError code.
func writeDiagramError(w http.ResponseWriter, err error) {
	var de *schema.DiagramError
	if !errors.As(err, &de) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, statusFor(de.Code), errorBody{
		Error:   de.Message,
		Code:    de.Code,
		Line:    de.Line,
		Details: de.Details,
	})
}

func statusFor(code string) int {
	switch code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeExecution:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeStore:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// sourceBody is the JSON form of a conversion request.
type sourceBody struct {
	Source string `json:"source"`
}

// readSource returns the diagram text of a request. JSON bodies carry it in
// "source"; any other content type is taken as the raw text.
func readSource(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body sourceBody
		if err := decodeJSON(r, &body); err != nil {
			return "", err
		}
		return body.Source, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// limitBody caps the request body size.
func limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
}

// pathType parses the {type} path value, writing a 400 on failure.
func pathType(w http.ResponseWriter, r *http.Request) (schema.DiagramType, bool) {
	typ, err := schema.ParseDiagramType(r.PathValue("type"))
	if err != nil {
		writeDiagramError(w, err)
		return "", false
	}
	return typ, true
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
