package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/mindflow/pkg/schema"
)

// DefaultTitle is used when a diagram is saved without one.
const DefaultTitle = "Untitled diagram"

// Diagram is a saved diagram. Only the raw input text and its type are
// persisted; parsed structures are rebuilt on read.
type Diagram struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Type        schema.DiagramType `json:"type"`
	Source      string             `json:"source"`
	NodeStyles  json.RawMessage    `json:"node_styles,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Revision is an immutable snapshot taken each time a diagram is created or
// its content changes. Sequence starts at 1 for every diagram.
type Revision struct {
	ID         int64           `json:"id"`
	DiagramID  string          `json:"diagram_id"`
	Sequence   int64           `json:"sequence"`
	Title      string          `json:"title"`
	Source     string          `json:"source"`
	NodeStyles json.RawMessage `json:"node_styles,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// --- Filter and update types ---

// DiagramFilter specifies criteria for listing diagrams.
type DiagramFilter struct {
	Type   *schema.DiagramType `json:"type,omitempty"`
	Search string              `json:"search,omitempty"`
	Since  *time.Time          `json:"since,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// DiagramUpdate specifies mutable fields of a diagram. Nil fields are left
// unchanged. The type tag is fixed at creation.
type DiagramUpdate struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Source      *string         `json:"source,omitempty"`
	NodeStyles  json.RawMessage `json:"node_styles,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u DiagramUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Source == nil && len(u.NodeStyles) == 0
}
