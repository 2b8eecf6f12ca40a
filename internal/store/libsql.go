package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/mindflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Diagrams ---

// CreateDiagram inserts d and records its first revision. A missing ID is
// generated and a missing title defaults to DefaultTitle; both are written
// back to d.
func (s *LibSQLStore) CreateDiagram(ctx context.Context, d *Diagram) error {
	if _, err := schema.ParseDiagramType(string(d.Type)); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = DefaultTitle
	}
	now := s.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = d.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO diagrams (id, title, description, type, source, node_styles, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, nullStr(d.Description), string(d.Type), d.Source, nullRaw(d.NodeStyles),
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert diagram: %w", err)
	}
	if err := appendRevision(ctx, tx, d, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit diagram: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetDiagram(ctx context.Context, id string) (*Diagram, error) {
	return getDiagram(ctx, s.db, id)
}

// UpdateDiagram applies update and, when the title, source or node styles
// change, records a new revision.
func (s *LibSQLStore) UpdateDiagram(ctx context.Context, id string, update DiagramUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := getDiagram(ctx, tx, id)
	if err != nil {
		return err
	}

	changed := false
	if update.Title != nil && *update.Title != d.Title {
		d.Title = *update.Title
		if strings.TrimSpace(d.Title) == "" {
			d.Title = DefaultTitle
		}
		changed = true
	}
	if update.Source != nil && *update.Source != d.Source {
		d.Source = *update.Source
		changed = true
	}
	if len(update.NodeStyles) > 0 && string(update.NodeStyles) != string(d.NodeStyles) {
		d.NodeStyles = update.NodeStyles
		changed = true
	}
	if update.Description != nil {
		d.Description = *update.Description
	}
	d.UpdatedAt = s.now()

	_, err = tx.ExecContext(ctx,
		`UPDATE diagrams SET title = ?, description = ?, source = ?, node_styles = ?, updated_at = ? WHERE id = ?`,
		d.Title, nullStr(d.Description), d.Source, nullRaw(d.NodeStyles), d.UpdatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update diagram: %w", err)
	}
	if changed {
		if err := appendRevision(ctx, tx, d, d.UpdatedAt); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit diagram: %w", err)
	}
	return nil
}

func (s *LibSQLStore) ListDiagrams(ctx context.Context, filter DiagramFilter) ([]*Diagram, error) {
	var where []string
	var args []any

	if filter.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.Search != "" {
		where = append(where, "(title LIKE ? OR description LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Since != nil {
		where = append(where, "updated_at >= ?")
		args = append(args, *filter.Since)
	}

	query := "SELECT " + diagramColumns + " FROM diagrams"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	diagrams := []*Diagram{}
	for rows.Next() {
		d, err := scanDiagram(rows)
		if err != nil {
			return nil, err
		}
		diagrams = append(diagrams, d)
	}
	return diagrams, rows.Err()
}

// DeleteDiagram removes a diagram and its revisions.
func (s *LibSQLStore) DeleteDiagram(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM diagram_revisions WHERE diagram_id = ?`, id); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM diagrams WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res, "diagram", id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Scanning ---

const diagramColumns = "id, title, description, type, source, node_styles, created_at, updated_at"

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func getDiagram(ctx context.Context, q querier, id string) (*Diagram, error) {
	row := q.QueryRowContext(ctx, "SELECT "+diagramColumns+" FROM diagrams WHERE id = ?", id)
	d, err := scanDiagram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("diagram", id)
	}
	return d, err
}

func scanDiagram(r rowScanner) (*Diagram, error) {
	d := &Diagram{}
	var (
		description, nodeStyles sql.NullString
		typ                     string
	)
	if err := r.Scan(&d.ID, &d.Title, &description, &typ, &d.Source, &nodeStyles, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Description = description.String
	d.Type = schema.DiagramType(typ)
	d.NodeStyles = rawOrNil(nodeStyles)
	return d, nil
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.DiagramError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
