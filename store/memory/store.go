// Package memory provides a fully in-memory checkpoint.Backend.
// Safe for concurrent access. Intended for unit testing and development;
// nothing survives the process.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/checkpoint"
)

// Ensure Store implements checkpoint.Backend at compile time.
var _ checkpoint.Backend = (*Store)(nil)

// Store is a process-local implementation of checkpoint.Backend backed
// by nested maps: collection name → identity → document.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*checkpoint.Document
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]*checkpoint.Document),
	}
}

// EnsureIndex registers the collection. Beyond bookkeeping the known
// collections it is a no-op.
func (m *Store) EnsureIndex(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[string]*checkpoint.Document)
	}
	return nil
}

// Get retrieves a document by identity.
func (m *Store) Get(_ context.Context, collection, identity string) (*checkpoint.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][identity]
	if !ok {
		return nil, checkpoint.ErrNotFound
	}
	return doc.Clone(), nil
}

// Search returns all documents in the collection matching q, ordered by
// identity for determinism.
func (m *Store) Search(_ context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]*checkpoint.Document, 0)
	for _, doc := range m.collections[collection] {
		if q.Matches(doc) {
			docs = append(docs, doc.Clone())
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Identity < docs[j].Identity })
	if q.Size > 0 && len(docs) > q.Size {
		docs = docs[:q.Size]
	}
	return docs, nil
}

// Save upserts the document under identity, creating the collection if
// needed. The stored copy shares no state with the caller's document.
func (m *Store) Save(_ context.Context, collection, identity string, doc *checkpoint.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[string]*checkpoint.Document)
	}
	m.collections[collection][identity] = doc.Clone()
	return nil
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }
