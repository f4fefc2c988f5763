package storage

import (
	"context"
	"fmt"
	"sync"
)

// MockDocumentStore is an in-memory DocumentStore for testing.
type MockDocumentStore struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	names map[string]string
	next  int

	// FetchErr, when set, is returned by every FetchBytes call.
	FetchErr error
}

// NewMockDocumentStore creates an in-memory document store.
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		docs:  make(map[string][]byte),
		names: make(map[string]string),
	}
}

// Store persists document bytes under a deterministic id.
func (m *MockDocumentStore) Store(ctx context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("doc-%d", m.next)
	m.docs[id] = append([]byte(nil), data...)
	m.names[id] = name
	return id, nil
}

// FetchBytes retrieves stored bytes.
func (m *MockDocumentStore) FetchBytes(ctx context.Context, documentID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	data, ok := m.docs[documentID]
	if !ok {
		return nil, ErrDocumentNotFound{ID: documentID}
	}
	return append([]byte(nil), data...), nil
}

// MockTemplateStore is an in-memory TemplateStore for testing.
type MockTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*TemplateRef
	order     []string
}

// NewMockTemplateStore creates an in-memory template store.
func NewMockTemplateStore() *MockTemplateStore {
	return &MockTemplateStore{templates: make(map[string]*TemplateRef)}
}

// SaveTemplate persists a template record.
func (m *MockTemplateStore) SaveTemplate(ctx context.Context, ref *TemplateRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ref
	m.templates[ref.ID] = &cp
	m.order = append(m.order, ref.ID)
	return nil
}

// GetTemplate fetches a template record.
func (m *MockTemplateStore) GetTemplate(ctx context.Context, templateID string) (*TemplateRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.templates[templateID]
	if !ok {
		return nil, ErrTemplateNotFound{ID: templateID}
	}
	cp := *ref
	return &cp, nil
}

// ListTemplates returns records in insertion order.
func (m *MockTemplateStore) ListTemplates(ctx context.Context) ([]*TemplateRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs := make([]*TemplateRef, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.templates[id]
		refs = append(refs, &cp)
	}
	return refs, nil
}

// IncrementUsage bumps the usage counter.
func (m *MockTemplateStore) IncrementUsage(ctx context.Context, templateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.templates[templateID]
	if !ok {
		return ErrTemplateNotFound{ID: templateID}
	}
	ref.UsageCount++
	return nil
}

// Close is a no-op for the mock.
func (m *MockTemplateStore) Close() error { return nil }
