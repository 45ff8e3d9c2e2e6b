package checkpoint

import "context"

// Backend is the persistence contract every storage medium implements.
// Tracking logic depends only on these operations and never branches on
// the backend kind.
//
// Every operation blocks until durably acknowledged or failed. Native
// backend failures never cross this boundary: implementations translate
// them into the checkpoint error taxonomy (ErrNotFound,
// ErrBackendUnavailable, ...) before returning.
type Backend interface {
	// EnsureIndex idempotently creates the named collection. It is a
	// no-op when the collection already exists and returns
	// ErrBackendUnavailable when the medium cannot be reached or created.
	EnsureIndex(ctx context.Context, collection string) error

	// Get performs a point lookup by exact identity. It returns
	// ErrNotFound when no document with that identity exists.
	Get(ctx context.Context, collection, identity string) (*Document, error)

	// Search returns all documents in the collection matching the query.
	// No matches is an empty slice, not an error.
	Search(ctx context.Context, collection string, q Query) ([]*Document, error)

	// Save upserts the document under the given identity, overwriting any
	// existing document with the same key. Saving identical content
	// repeatedly is safe and has no duplicate side effects.
	Save(ctx context.Context, collection, identity string, doc *Document) error

	// Ping checks that the storage medium is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}
