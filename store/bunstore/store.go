// Package bunstore provides a checkpoint.Backend over a SQL database
// using the Bun ORM. All collections share one checkpoint_documents
// table keyed by (collection, identity); the dialect (SQLite, Postgres)
// is chosen by the caller, who owns the *bun.DB lifecycle.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/uptrace/bun"

	"github.com/xraph/checkpoint"
)

// Ensure Store implements checkpoint.Backend at compile time.
var _ checkpoint.Backend = (*Store)(nil)

// Store is a Bun implementation of checkpoint.Backend.
type Store struct {
	db     *bun.DB
	logger *slog.Logger

	// migrated is set once the schema is known to exist, so the lazy
	// ensure on each operation is a single atomic load after the first
	// successful Migrate.
	migrated atomic.Bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Bun store. The caller owns the db lifecycle — the
// Store will not close it on Close().
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Migrate creates the documents table and its indexes. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoint_documents (
			collection  TEXT NOT NULL,
			identity    TEXT NOT NULL,
			kind        TEXT NOT NULL,
			parent_ref  TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT '',
			extra       TEXT NOT NULL DEFAULT '{}',
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL,
			PRIMARY KEY (collection, identity)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoint_documents_parent
			ON checkpoint_documents (collection, parent_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoint_documents_status
			ON checkpoint_documents (collection, status)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return unavailable("migrate", err)
		}
	}
	s.migrated.Store(true)
	return nil
}

// ensureSchema lazily creates the schema before the first operation, so
// a Save against a fresh database works without an explicit Migrate,
// matching the other backends.
func (s *Store) ensureSchema(ctx context.Context) error {
	if s.migrated.Load() {
		return nil
	}
	return s.Migrate(ctx)
}

// EnsureIndex guarantees the schema exists. Collections are key
// prefixes within the shared table, so there is nothing per-collection
// to create.
func (s *Store) EnsureIndex(ctx context.Context, _ string) error {
	return s.Migrate(ctx)
}

// Get retrieves a document by identity.
func (s *Store) Get(ctx context.Context, collection, identity string) (*checkpoint.Document, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var m docModel
	err := s.db.NewSelect().
		Model(&m).
		Where("collection = ?", collection).
		Where("identity = ?", identity).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkpoint.ErrNotFound
		}
		return nil, unavailable("get", err)
	}
	return fromModel(&m)
}

// Search applies fixed-attribute terms in SQL and extra-field terms in
// memory after decoding, ordered by identity for determinism.
func (s *Store) Search(ctx context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	sel := s.db.NewSelect().
		Model((*docModel)(nil)).
		Where("collection = ?", collection).
		Order("identity ASC")
	sel, extraTerms := applyTerms(sel, q.Terms)

	var models []docModel
	if err := sel.Scan(ctx, &models); err != nil {
		return nil, unavailable("search", err)
	}

	docs := make([]*checkpoint.Document, 0, len(models))
	for i := range models {
		doc, err := fromModel(&models[i])
		if err != nil {
			return nil, err
		}
		if !(checkpoint.Query{Terms: extraTerms}).Matches(doc) {
			continue
		}
		docs = append(docs, doc)
		if q.Size > 0 && len(docs) == q.Size {
			break
		}
	}
	return docs, nil
}

// applyTerms translates fixed document attributes into WHERE clauses and
// returns the remaining terms, which target flattened extra fields and are
// matched in memory after decoding.
func applyTerms(sel *bun.SelectQuery, terms map[string]any) (*bun.SelectQuery, map[string]any) {
	extra := make(map[string]any)
	for field, value := range terms {
		switch field {
		case "identity", "kind", "parent_ref", "status":
			sel = sel.Where("? = ?", bun.Ident(field), value)
		default:
			extra[field] = value
		}
	}
	return sel, extra
}

// Save upserts the document under (collection, identity).
func (s *Store) Save(ctx context.Context, collection, identity string, doc *checkpoint.Document) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	m, err := toModel(collection, identity, doc)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().
		Model(m).
		On("CONFLICT (collection, identity) DO UPDATE").
		Set("kind = EXCLUDED.kind").
		Set("parent_ref = EXCLUDED.parent_ref").
		Set("status = EXCLUDED.status").
		Set("extra = EXCLUDED.extra").
		Set("created_at = EXCLUDED.created_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return unavailable("save", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close is a no-op because the caller owns the *bun.DB lifecycle.
func (s *Store) Close() error { return nil }

func unavailable(op string, err error) error {
	return fmt.Errorf("checkpoint/bunstore: %s: %v: %w", op, err, checkpoint.ErrBackendUnavailable)
}
