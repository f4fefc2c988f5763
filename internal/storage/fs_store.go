package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FSDocumentStore is a filesystem-based DocumentStore. Each document is a
// pair of files under the base directory:
//
//	<base>/
//	  <id>.bin   (the bytes)
//	  <id>.json  (name and bookkeeping metadata)
type FSDocumentStore struct {
	basePath string
	mu       sync.RWMutex
}

type documentMeta struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFSDocumentStore creates a filesystem-based document store.
func NewFSDocumentStore(basePath string) (*FSDocumentStore, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create document store directory: %w", err)
	}
	return &FSDocumentStore{basePath: basePath}, nil
}

// Store persists document bytes and returns the new document id.
func (fs *FSDocumentStore) Store(ctx context.Context, name string, data []byte) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := uuid.NewString()
	if err := os.WriteFile(fs.dataPath(id), data, 0o640); err != nil {
		return "", fmt.Errorf("write document %s: %w", id, err)
	}

	meta := documentMeta{Name: name, Size: int64(len(data)), CreatedAt: time.Now().UTC()}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal document metadata: %w", err)
	}
	if err := os.WriteFile(fs.metaPath(id), metaBytes, 0o640); err != nil {
		_ = os.Remove(fs.dataPath(id))
		return "", fmt.Errorf("write document metadata %s: %w", id, err)
	}
	return id, nil
}

// FetchBytes retrieves a stored document's bytes.
func (fs *FSDocumentStore) FetchBytes(ctx context.Context, documentID string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.dataPath(documentID))
	if os.IsNotExist(err) {
		return nil, ErrDocumentNotFound{ID: documentID}
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", documentID, err)
	}
	return data, nil
}

// Name returns a stored document's display name.
func (fs *FSDocumentStore) Name(documentID string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.metaPath(documentID))
	if os.IsNotExist(err) {
		return "", ErrDocumentNotFound{ID: documentID}
	}
	if err != nil {
		return "", fmt.Errorf("read document metadata %s: %w", documentID, err)
	}
	var meta documentMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("parse document metadata %s: %w", documentID, err)
	}
	return meta.Name, nil
}

func (fs *FSDocumentStore) dataPath(id string) string {
	return filepath.Join(fs.basePath, id+".bin")
}

func (fs *FSDocumentStore) metaPath(id string) string {
	return filepath.Join(fs.basePath, id+".json")
}
