// Package storage provides the engine's two external collaborators behind
// narrow interfaces: a byte store for canonical template documents and a
// metadata store for template records.
package storage

import (
	"context"
	"time"
)

// DocumentStore persists raw document bytes. The generation engine only
// needs fetch-by-id and store-with-name.
type DocumentStore interface {
	// FetchBytes retrieves a stored document's bytes.
	// Returns ErrDocumentNotFound when the id is unknown.
	FetchBytes(ctx context.Context, documentID string) ([]byte, error)

	// Store persists document bytes under a display name and returns the
	// new document id.
	Store(ctx context.Context, name string, data []byte) (string, error)
}

// TemplateRef is a registered template's metadata record. Placeholder names
// are discovered once at registration and never recomputed implicitly.
type TemplateRef struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	SourceDocumentID string    `json:"source_document_id"`
	PlaceholderNames []string  `json:"placeholder_names"`
	Kind             string    `json:"kind"`
	CreatedAt        time.Time `json:"created_at"`
	UsageCount       int64     `json:"usage_count"`
}

// HasPlaceholder reports whether a name is in the template's placeholder set.
func (t *TemplateRef) HasPlaceholder(name string) bool {
	for _, p := range t.PlaceholderNames {
		if p == name {
			return true
		}
	}
	return false
}

// TemplateStore persists template metadata.
type TemplateStore interface {
	// GetTemplate fetches a template record.
	// Returns ErrTemplateNotFound when the id is unknown.
	GetTemplate(ctx context.Context, templateID string) (*TemplateRef, error)

	// SaveTemplate persists a new template record.
	SaveTemplate(ctx context.Context, ref *TemplateRef) error

	// ListTemplates returns all template records ordered by creation time.
	ListTemplates(ctx context.Context) ([]*TemplateRef, error)

	// IncrementUsage bumps a template's usage counter.
	IncrementUsage(ctx context.Context, templateID string) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrDocumentNotFound is returned when a document id is unknown.
type ErrDocumentNotFound struct {
	ID string
}

func (e ErrDocumentNotFound) Error() string {
	return "document not found: " + e.ID
}

// ErrTemplateNotFound is returned when a template id is unknown.
type ErrTemplateNotFound struct {
	ID string
}

func (e ErrTemplateNotFound) Error() string {
	return "template not found: " + e.ID
}

// IsNotFound returns true for either store's not-found error.
func IsNotFound(err error) bool {
	switch err.(type) {
	case ErrDocumentNotFound, ErrTemplateNotFound:
		return true
	}
	return false
}
