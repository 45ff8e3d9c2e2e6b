package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/checkpoint"
	"github.com/xraph/checkpoint/id"
)

// Job is the root of a tracked unit of work. It owns zero or more Tasks
// and the backend they all persist through. A Job stores no status of
// its own: its state is always derived from the task and step documents
// beneath it, so there is no second source of truth to drift.
type Job struct {
	trackable

	name   string
	config map[string]any
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithLogger sets the structured logger for the job and everything
// created under it.
func WithLogger(l *slog.Logger) JobOption {
	return func(j *Job) { j.logger = l }
}

// WithDryRun marks the job as a dry run. The flag is recorded on every
// document, and a later real run ignores the dry run's history.
func WithDryRun() JobOption {
	return func(j *Job) { j.dryRun = true }
}

// WithConfig attaches a config map persisted in the job document and
// restored on resume.
func WithConfig(cfg map[string]any) JobOption {
	return func(j *Job) { j.config = cfg }
}

// NewJob binds a job to a backend. The jobs collection is created if
// needed, and an existing job document restores the job's recorded
// state (timestamps, log trail, stored config) so a restarted process
// resumes instead of starting over. No document is written until the
// first save.
func NewJob(ctx context.Context, backend checkpoint.Backend, name string, opts ...JobOption) (*Job, error) {
	jid, err := id.Job(name)
	if err != nil {
		return nil, err
	}

	j := &Job{
		trackable: trackable{
			backend:  backend,
			logger:   slog.Default(),
			identity: jid,
			kind:     checkpoint.KindJob,
			entity:   checkpoint.NewEntity(),
		},
		name: name,
	}
	j.src = j
	for _, opt := range opts {
		opt(j)
	}

	if err := backend.EnsureIndex(ctx, checkpoint.CollectionJobs); err != nil {
		return nil, fmt.Errorf("ensure jobs collection: %w", err)
	}

	doc, err := backend.Get(ctx, checkpoint.CollectionJobs, jid.String())
	switch {
	case err == nil:
		j.restoreJob(doc)
	case errors.Is(err, checkpoint.ErrNotFound):
		// Fresh job; the document is created on first save.
	default:
		return nil, fmt.Errorf("load job %s: %w", jid, err)
	}
	return j, nil
}

// Name returns the job's human-readable name.
func (j *Job) Name() string { return j.name }

// Config returns the job's config map, either the one supplied at
// construction or the one restored from a previous run.
func (j *Job) Config() map[string]any { return j.config }

// extraFields contributes the job-level schema extension.
func (j *Job) extraFields() map[string]any {
	return map[string]any{
		"name":   j.name,
		"config": j.config,
	}
}

// Register explicitly persists the job document. Jobs carry no status,
// so this is the only way a job document comes into existence.
func (j *Job) Register(ctx context.Context) error {
	return j.save(ctx, j.buildDoc())
}

// Task binds a task under this job, restoring its recorded state if its
// document already exists. The task inherits the job's backend, logger,
// and dry-run flag.
func (j *Job) Task(ctx context.Context, name string, opts ...TaskOption) (*Task, error) {
	return newTask(ctx, j, name, opts...)
}

// restoreJob adopts the state a previous run recorded for this job.
func (j *Job) restoreJob(doc *checkpoint.Document) {
	if !j.restoreBase(doc) {
		return
	}
	if cfg := asMap(doc.Extra["config"]); cfg != nil {
		j.config = cfg
	}
	j.logger.Info("resuming existing job",
		slog.String("identity", j.identity.String()),
		slog.Time("first_seen", j.entity.CreatedAt),
	)
}

// ── derived state ────────────────────────────────────────────────

// Progress queries the backend for every task and step document rooted
// at this job and tallies them by status. It is a read-through
// aggregation reflecting current backend state, never a cached counter.
func (j *Job) Progress(ctx context.Context) (Progress, error) {
	p := Progress{
		Tasks: make(map[checkpoint.Status]int),
		Steps: make(map[checkpoint.Status]int),
	}

	tasks, err := j.backend.Search(ctx, checkpoint.CollectionTasks, checkpoint.ByRoot(j.name))
	if err != nil {
		return Progress{}, fmt.Errorf("search tasks of %s: %w", j.name, err)
	}
	for _, doc := range tasks {
		p.Tasks[statusOf(doc)]++
	}

	steps, err := j.backend.Search(ctx, checkpoint.CollectionSteps, checkpoint.ByRoot(j.name))
	if err != nil {
		return Progress{}, fmt.Errorf("search steps of %s: %w", j.name, err)
	}
	for _, doc := range steps {
		p.Steps[statusOf(doc)]++
	}
	return p, nil
}

// History returns the status-change events recorded under this job,
// ordered by document update time. Callers use it for audit trails and
// resume decisions.
func (j *Job) History(ctx context.Context) ([]Event, error) {
	events := make([]Event, 0)
	for _, collection := range []string{checkpoint.CollectionTasks, checkpoint.CollectionSteps} {
		docs, err := j.backend.Search(ctx, collection, checkpoint.ByRoot(j.name))
		if err != nil {
			return nil, fmt.Errorf("search %s of %s: %w", collection, j.name, err)
		}
		for _, doc := range docs {
			events = append(events, Event{
				Identity: doc.Identity,
				Kind:     doc.Kind,
				Status:   statusOf(doc),
				At:       doc.UpdatedAt,
			})
		}
	}
	sortEvents(events)
	return events, nil
}

func statusOf(doc *checkpoint.Document) checkpoint.Status {
	if doc.Status.Valid() {
		return doc.Status
	}
	return checkpoint.StatusNotStarted
}
