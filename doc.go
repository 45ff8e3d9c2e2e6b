// Package checkpoint provides hierarchical progress tracking for
// long-running batch processes. A Job contains Tasks, each Task contains
// Steps, and every entity persists a structured status document to a
// pluggable storage backend so work can be recorded, queried, and resumed
// across restarts.
//
// Checkpoint is designed as a library, not a service. Import it, configure
// a backend, and bind a Job to it.
//
// # Quick Start
//
//	be := memory.New()
//	j, err := track.NewJob(ctx, be, "reindex-2026")
//	tk, err := j.Task(ctx, "logs-000001")
//	st, err := tk.Step(ctx, "copy-docs")
//	err = st.Begin(ctx)
//	...
//	err = st.End(ctx, true, "all documents copied")
//
// # Architecture
//
// Every backend implements the same four-operation Backend contract
// (EnsureIndex, Get, Search, Save), so tracking logic never branches on
// the storage medium. Backends: Elasticsearch, a single JSON file,
// MongoDB, SQL via Bun, and Memory.
//
// Entity identities are deterministic and derived from the ownership
// chain (job_name, task_job/name, step_job/task/name), which makes every
// Save an idempotent upsert keyed by identity.
package checkpoint
