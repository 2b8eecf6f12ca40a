package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rendis/mindflow/pkg/schema"
)

// appendRevision snapshots d with the next per-diagram sequence number. It
// must run inside the transaction that wrote d so sequence reads and writes
// do not interleave.
func appendRevision(ctx context.Context, tx *sql.Tx, d *Diagram, at time.Time) error {
	var seq int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM diagram_revisions WHERE diagram_id = ?`, d.ID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO diagram_revisions (diagram_id, sequence, title, source, node_styles, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, seq, d.Title, d.Source, nullRaw(d.NodeStyles), at,
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

// ListRevisions returns revisions of a diagram with sequence > since, ordered
// by sequence ASC. An unknown diagram is NOT_FOUND.
func (s *LibSQLStore) ListRevisions(ctx context.Context, diagramID string, since int64) ([]*Revision, error) {
	if _, err := s.GetDiagram(ctx, diagramID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, diagram_id, sequence, title, source, node_styles, created_at
		 FROM diagram_revisions WHERE diagram_id = ? AND sequence > ? ORDER BY sequence ASC`,
		diagramID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revisions := []*Revision{}
	for rows.Next() {
		r := &Revision{}
		var nodeStyles sql.NullString
		if err := rows.Scan(&r.ID, &r.DiagramID, &r.Sequence, &r.Title, &r.Source, &nodeStyles, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.NodeStyles = rawOrNil(nodeStyles)
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// RestoreRevision brings a diagram back to the title, source and node styles
// of one of its revisions. The restore itself is recorded as a new revision,
// so history is never rewritten.
func (s *LibSQLStore) RestoreRevision(ctx context.Context, diagramID string, sequence int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := getDiagram(ctx, tx, diagramID)
	if err != nil {
		return err
	}

	var nodeStyles sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT title, source, node_styles FROM diagram_revisions WHERE diagram_id = ? AND sequence = ?`,
		diagramID, sequence,
	).Scan(&d.Title, &d.Source, &nodeStyles)
	if err == sql.ErrNoRows {
		return schema.NewErrorf(schema.ErrCodeNotFound, "revision %d of diagram %q not found", sequence, diagramID)
	}
	if err != nil {
		return err
	}
	d.NodeStyles = rawOrNil(nodeStyles)
	d.UpdatedAt = s.now()

	_, err = tx.ExecContext(ctx,
		`UPDATE diagrams SET title = ?, source = ?, node_styles = ?, updated_at = ? WHERE id = ?`,
		d.Title, d.Source, nullRaw(d.NodeStyles), d.UpdatedAt, diagramID,
	)
	if err != nil {
		return fmt.Errorf("restore diagram: %w", err)
	}
	if err := appendRevision(ctx, tx, d, d.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// PruneRevisions keeps the newest keep revisions of every diagram and deletes
// the rest, returning how many were removed. keep <= 0 disables pruning.
func (s *LibSQLStore) PruneRevisions(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM diagram_revisions WHERE id IN (
			SELECT r.id FROM diagram_revisions r
			WHERE (SELECT COUNT(*) FROM diagram_revisions n
			       WHERE n.diagram_id = r.diagram_id AND n.sequence > r.sequence) >= ?
		)`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}
	return res.RowsAffected()
}
