package track

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/checkpoint"
	"github.com/xraph/checkpoint/id"
)

// Task is a unit of work owned by a Job. Its parent reference is the
// job's identity, fixed at construction and never changed.
type Task struct {
	taskOrStep

	job         *Job
	name        string
	description string
	ordinal     int
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithDescription attaches a human-readable description to the task
// document.
func WithDescription(desc string) TaskOption {
	return func(t *Task) { t.description = desc }
}

// WithOrdinal records the task's position within its job.
func WithOrdinal(n int) TaskOption {
	return func(t *Task) { t.ordinal = n }
}

func newTask(ctx context.Context, j *Job, name string, opts ...TaskOption) (*Task, error) {
	tid, err := id.Task(j.name, name)
	if err != nil {
		return nil, err
	}

	t := &Task{
		taskOrStep: taskOrStep{
			trackable: trackable{
				backend:   j.backend,
				logger:    j.logger,
				identity:  tid,
				kind:      checkpoint.KindTask,
				parentRef: j.identity.String(),
				entity:    checkpoint.NewEntity(),
				dryRun:    j.dryRun,
			},
			status: checkpoint.StatusNotStarted,
		},
		job:  j,
		name: name,
	}
	t.src = t
	for _, opt := range opts {
		opt(t)
	}

	if err := j.backend.EnsureIndex(ctx, checkpoint.CollectionTasks); err != nil {
		return nil, fmt.Errorf("ensure tasks collection: %w", err)
	}

	doc, err := j.backend.Get(ctx, checkpoint.CollectionTasks, tid.String())
	switch {
	case err == nil:
		t.restoreTask(doc)
	case errors.Is(err, checkpoint.ErrNotFound):
		// Fresh task; the document is created on first status write.
	default:
		return nil, fmt.Errorf("load task %s: %w", tid, err)
	}
	return t, nil
}

// Name returns the task's local name.
func (t *Task) Name() string { return t.name }

// Description returns the task's description, possibly restored from a
// previous run.
func (t *Task) Description() string { return t.description }

// Ordinal returns the task's position within its job.
func (t *Task) Ordinal() int { return t.ordinal }

// Step binds a step under this task, restoring its recorded state if
// its document already exists.
func (t *Task) Step(ctx context.Context, name string) (*Step, error) {
	return newStep(ctx, t, name)
}

// extraFields contributes the task-level schema extension. The root job
// name is recorded on every task so job-wide queries are one term match.
func (t *Task) extraFields() map[string]any {
	return map[string]any{
		"job":         t.identity.Root(),
		"name":        t.name,
		"description": t.description,
		"ordinal":     t.ordinal,
	}
}

func (t *Task) restoreTask(doc *checkpoint.Document) {
	t.restore(doc)
	if !t.loaded {
		return
	}
	if desc := asString(doc.Extra["description"]); desc != "" {
		t.description = desc
	}
	if n := asInt64(doc.Extra["ordinal"]); n != 0 {
		t.ordinal = int(n)
	}
}
