// Package store groups the storage backends for checkpoint tracking
// documents. Each backend lives in its own subpackage and implements
// the checkpoint.Backend contract over a different medium:
//
//   - memory: process-local map, no persistence. Deterministic testing.
//   - file: a single JSON file, flushed synchronously on every save.
//   - elastic: an Elasticsearch index per collection.
//   - mongo: a MongoDB collection per collection.
//   - bunstore: one SQL table via Bun; dialect chosen by the caller.
//
// Backends are interchangeable: a fixed sequence of operations yields
// identical observable results (same documents, same error kinds)
// against any of them.
package store
