// Package file provides a checkpoint.Backend persisted to a single local
// JSON file: an object keyed by collection name, each value a mapping
// from identity to document. Every save rewrites the file synchronously
// (write to a temp file, fsync, rename), so a save followed by a get
// from a freshly reopened backend returns the identical document.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/xraph/checkpoint"
)

// Ensure Store implements checkpoint.Backend at compile time.
var _ checkpoint.Backend = (*Store)(nil)

// Store is a file-backed implementation of checkpoint.Backend. It keeps
// the full document set in memory and flushes the whole structure on
// every mutation.
type Store struct {
	mu     sync.RWMutex
	path   string
	data   map[string]map[string]*checkpoint.Document
	closed bool
}

// Open opens (or creates) the backend at path. An existing file is
// loaded eagerly so previously recorded progress is visible immediately.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: make(map[string]map[string]*checkpoint.Document),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checkpoint/file: read %s: %w", s.path, checkpoint.ErrBackendUnavailable)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return fmt.Errorf("checkpoint/file: decode %s: %v: %w", s.path, err, checkpoint.ErrBackendUnavailable)
	}
	return nil
}

// flush writes the whole structure to disk synchronously. Callers must
// hold the write lock.
func (s *Store) flush() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint/file: encode: %v: %w", err, checkpoint.ErrBackendUnavailable)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("checkpoint/file: temp file in %s: %v: %w", dir, err, checkpoint.ErrBackendUnavailable)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint/file: write: %v: %w", err, checkpoint.ErrBackendUnavailable)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint/file: sync: %v: %w", err, checkpoint.ErrBackendUnavailable)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint/file: close temp: %v: %w", err, checkpoint.ErrBackendUnavailable)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("checkpoint/file: rename: %v: %w", err, checkpoint.ErrBackendUnavailable)
	}
	return nil
}

// EnsureIndex creates the collection key and persists the file so the
// collection survives reopening. No-op when already present.
func (s *Store) EnsureIndex(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return checkpoint.ErrBackendClosed
	}
	if _, ok := s.data[collection]; ok {
		return nil
	}
	s.data[collection] = make(map[string]*checkpoint.Document)
	return s.flush()
}

// Get retrieves a document by identity.
func (s *Store) Get(_ context.Context, collection, identity string) (*checkpoint.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, checkpoint.ErrBackendClosed
	}
	doc, ok := s.data[collection][identity]
	if !ok {
		return nil, checkpoint.ErrNotFound
	}
	return doc.Clone(), nil
}

// Search returns all documents in the collection matching q, ordered by
// identity for determinism.
func (s *Store) Search(_ context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, checkpoint.ErrBackendClosed
	}

	docs := make([]*checkpoint.Document, 0)
	for _, doc := range s.data[collection] {
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

// Save upserts the document under identity and flushes to disk before
// returning. The write is never buffered across process lifetime.
func (s *Store) Save(_ context.Context, collection, identity string, doc *checkpoint.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return checkpoint.ErrBackendClosed
	}
	if _, ok := s.data[collection]; !ok {
		s.data[collection] = make(map[string]*checkpoint.Document)
	}
	prev, hadPrev := s.data[collection][identity]
	s.data[collection][identity] = doc.Clone()
	if err := s.flush(); err != nil {
		// Keep the in-memory view consistent with what is on disk.
		if hadPrev {
			s.data[collection][identity] = prev
		} else {
			delete(s.data[collection], identity)
		}
		return err
	}
	return nil
}

// Ping checks that the backing file's directory is accessible.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return checkpoint.ErrBackendClosed
	}
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("checkpoint/file: %v: %w", err, checkpoint.ErrBackendUnavailable)
	}
	return nil
}

// Close marks the backend closed. All data is already on disk, so there
// is nothing to flush.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
