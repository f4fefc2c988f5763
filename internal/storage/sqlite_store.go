package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteTemplateStore persists template metadata in a SQLite database.
type SQLiteTemplateStore struct {
	db *sql.DB
}

const templateSchema = `
CREATE TABLE IF NOT EXISTS templates (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	placeholders TEXT NOT NULL,
	kind         TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	usage_count  INTEGER NOT NULL DEFAULT 0
);`

// NewSQLiteTemplateStore opens (and if needed initializes) the template
// database at path.
func NewSQLiteTemplateStore(path string) (*SQLiteTemplateStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open template database: %w", err)
	}
	if _, err := db.Exec(templateSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize template schema: %w", err)
	}
	return &SQLiteTemplateStore{db: db}, nil
}

// SaveTemplate persists a new template record.
func (s *SQLiteTemplateStore) SaveTemplate(ctx context.Context, ref *TemplateRef) error {
	placeholders, err := json.Marshal(ref.PlaceholderNames)
	if err != nil {
		return fmt.Errorf("marshal placeholders: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, name, document_id, placeholders, kind, created_at, usage_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ref.ID, ref.Name, ref.SourceDocumentID, string(placeholders), ref.Kind,
		ref.CreatedAt.UTC().Format(time.RFC3339Nano), ref.UsageCount)
	if err != nil {
		return fmt.Errorf("insert template %s: %w", ref.ID, err)
	}
	return nil
}

// GetTemplate fetches a template record by id.
func (s *SQLiteTemplateStore) GetTemplate(ctx context.Context, templateID string) (*TemplateRef, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, document_id, placeholders, kind, created_at, usage_count
		 FROM templates WHERE id = ?`, templateID)
	ref, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, ErrTemplateNotFound{ID: templateID}
	}
	if err != nil {
		return nil, fmt.Errorf("query template %s: %w", templateID, err)
	}
	return ref, nil
}

// ListTemplates returns all template records ordered by creation time.
func (s *SQLiteTemplateStore) ListTemplates(ctx context.Context) ([]*TemplateRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, document_id, placeholders, kind, created_at, usage_count
		 FROM templates ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []*TemplateRef
	for rows.Next() {
		ref, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// IncrementUsage bumps a template's usage counter.
func (s *SQLiteTemplateStore) IncrementUsage(ctx context.Context, templateID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET usage_count = usage_count + 1 WHERE id = ?`, templateID)
	if err != nil {
		return fmt.Errorf("increment usage for %s: %w", templateID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTemplateNotFound{ID: templateID}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteTemplateStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*TemplateRef, error) {
	var ref TemplateRef
	var placeholders, createdAt string
	if err := row.Scan(&ref.ID, &ref.Name, &ref.SourceDocumentID, &placeholders,
		&ref.Kind, &createdAt, &ref.UsageCount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(placeholders), &ref.PlaceholderNames); err != nil {
		return nil, fmt.Errorf("parse placeholders: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	ref.CreatedAt = ts
	return &ref, nil
}
