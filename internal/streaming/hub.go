// Package streaming fans out saved-diagram change notifications to live
// subscribers such as the panel's SSE endpoint.
package streaming

import "context"

// Event types published for saved diagrams.
const (
	EventDiagramCreated  = "diagram.created"
	EventDiagramUpdated  = "diagram.updated"
	EventDiagramDeleted  = "diagram.deleted"
	EventDiagramRestored = "diagram.restored"
)

// StreamEvent is a change to a saved diagram.
type StreamEvent struct {
	DiagramID   string `json:"diagram_id"`
	DiagramType string `json:"diagram_type,omitempty"`
	EventType   string `json:"event_type"`
	Payload     any    `json:"payload,omitempty"`
}

// EventFilter selects the events a subscriber receives. Zero fields match
// everything.
type EventFilter struct {
	DiagramID   string   `json:"diagram_id,omitempty"`
	DiagramType string   `json:"diagram_type,omitempty"`
	EventTypes  []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for diagram change events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
