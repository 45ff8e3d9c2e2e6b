// Package mongo provides a checkpoint.Backend over MongoDB using the
// official driver. Each collection maps to a MongoDB collection with
// the identity as _id, so saves are idempotent ReplaceOne upserts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/checkpoint"
)

// Ensure Store implements checkpoint.Backend at compile time.
var _ checkpoint.Backend = (*Store)(nil)

// Store is a MongoDB implementation of checkpoint.Backend. The caller
// owns the client lifecycle; Store never closes it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new MongoDB store around an existing database handle.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndex creates the collection and its secondary indexes. Already
// existing is not an error.
func (s *Store) EnsureIndex(ctx context.Context, collection string) error {
	if err := s.db.CreateCollection(ctx, collection); err != nil {
		var cmdErr mongod.CommandError
		if !errors.As(err, &cmdErr) || cmdErr.Name != "NamespaceExists" {
			return unavailable("create collection", err)
		}
	}

	indexes := []mongod.IndexModel{
		{Keys: bson.D{{Key: "parent_ref", Value: 1}}},
		{Keys: bson.D{{Key: "job", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
		return unavailable("create indexes", err)
	}
	return nil
}

// Get retrieves a document by identity.
func (s *Store) Get(ctx context.Context, collection, identity string) (*checkpoint.Document, error) {
	var m docModel
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": identity}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, checkpoint.ErrNotFound
		}
		return nil, unavailable("get", err)
	}
	return fromModel(&m), nil
}

// Search translates the query terms into a bson filter, ordered by
// identity for determinism.
func (s *Store) Search(ctx context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	filter := bson.M{}
	for field, value := range q.Terms {
		if field == "identity" {
			field = "_id"
		}
		filter[field] = value
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if q.Size > 0 {
		opts = opts.SetLimit(int64(q.Size))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer cursor.Close(ctx)

	docs := make([]*checkpoint.Document, 0)
	for cursor.Next(ctx) {
		var m docModel
		if err := cursor.Decode(&m); err != nil {
			return nil, unavailable("decode search result", err)
		}
		docs = append(docs, fromModel(&m))
	}
	if err := cursor.Err(); err != nil {
		return nil, unavailable("search cursor", err)
	}
	return docs, nil
}

// Save upserts the document under identity.
func (s *Store) Save(ctx context.Context, collection, identity string, doc *checkpoint.Document) error {
	m := toModel(identity, doc)
	_, err := s.db.Collection(collection).ReplaceOne(
		ctx,
		bson.M{"_id": identity},
		m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return unavailable("save", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error { return nil }

func unavailable(op string, err error) error {
	return fmt.Errorf("checkpoint/mongo: %s: %v: %w", op, err, checkpoint.ErrBackendUnavailable)
}
