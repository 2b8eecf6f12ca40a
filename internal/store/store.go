package store

import "context"

// Store defines the persistence layer contract for saved diagrams.
// All implementations must be safe for concurrent use.
type Store interface {
	// Diagrams
	CreateDiagram(ctx context.Context, d *Diagram) error
	GetDiagram(ctx context.Context, id string) (*Diagram, error)
	UpdateDiagram(ctx context.Context, id string, update DiagramUpdate) error
	ListDiagrams(ctx context.Context, filter DiagramFilter) ([]*Diagram, error)
	DeleteDiagram(ctx context.Context, id string) error

	// Revisions (append-only)
	ListRevisions(ctx context.Context, diagramID string, since int64) ([]*Revision, error)
	RestoreRevision(ctx context.Context, diagramID string, sequence int64) error
	PruneRevisions(ctx context.Context, keep int) (int64, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
