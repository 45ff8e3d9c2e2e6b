package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/checkpoint"
)

// taskOrStep is the shared status-bearing behavior of Task and Step:
// a parent reference, a status field, and the status query/update
// operations that enforce the terminal-status guard.
type taskOrStep struct {
	trackable

	status checkpoint.Status
	// loaded is true once status reflects backend state, either because
	// the constructor found an existing document or because a save
	// succeeded.
	loaded bool
}

// Status returns the entity's current status: the cached value when
// fresh, otherwise re-fetched from the backend by identity. It fails
// with checkpoint.ErrNotFound when no document has ever been saved for
// this entity.
func (ts *taskOrStep) Status(ctx context.Context) (checkpoint.Status, error) {
	if ts.loaded {
		return ts.status, nil
	}
	doc, err := ts.backend.Get(ctx, ts.kind.Collection(), ts.identity.String())
	if err != nil {
		return "", fmt.Errorf("status of %s: %w", ts.identity, err)
	}
	ts.restore(doc)
	return ts.status, nil
}

// UpdateStatus validates next, enforces the terminal-status guard, then
// writes the new status and persists the document. On any failure the
// cached and stored status are left unchanged.
func (ts *taskOrStep) UpdateStatus(ctx context.Context, next checkpoint.Status) error {
	if !next.Valid() {
		return fmt.Errorf("%q: %w", next, checkpoint.ErrInvalidStatus)
	}
	if !checkpoint.CanTransition(ts.status, next) {
		return fmt.Errorf("%s → %s: %w", ts.status, next, checkpoint.ErrIllegalTransition)
	}

	prev := ts.status
	ts.status = next
	if err := ts.Save(ctx); err != nil {
		ts.status = prev
		return err
	}
	ts.loaded = true
	ts.logger.Info("status changed",
		slog.String("identity", ts.identity.String()),
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)
	return nil
}

// Save builds the tracking document, stamps the current status, and
// upserts it through the backend.
func (ts *taskOrStep) Save(ctx context.Context) error {
	doc := ts.buildDoc()
	doc.Status = ts.status
	if err := ts.save(ctx, doc); err != nil {
		return err
	}
	ts.loaded = true
	return nil
}

// Begin marks the entity running. The first Begin creates its document.
func (ts *taskOrStep) Begin(ctx context.Context) error {
	if ts.dryRun {
		ts.AddLog("DRY-RUN: no changes will be made")
	}
	return ts.UpdateStatus(ctx, checkpoint.StatusRunning)
}

// End marks the entity completed (or failed), optionally recording a
// final log message. On failure the appended log line is rolled back
// along with the status, so a retried End does not record it twice.
func (ts *taskOrStep) End(ctx context.Context, completed bool, logmsg string) error {
	if logmsg != "" {
		ts.AddLog(logmsg)
	}
	next := checkpoint.StatusFailed
	if completed {
		next = checkpoint.StatusCompleted
	}
	if err := ts.UpdateStatus(ctx, next); err != nil {
		if logmsg != "" {
			ts.logs = ts.logs[:len(ts.logs)-1]
		}
		return err
	}
	return nil
}

// Finished reports whether a prior run completed this entity. A missing
// document and a previous dry run both count as unfinished.
func (ts *taskOrStep) Finished(ctx context.Context) (bool, error) {
	status, err := ts.Status(ctx)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return status == checkpoint.StatusCompleted, nil
}

// restore adopts the state recorded in doc, unless the prior run was a
// dry run, in which case only that fact is remembered.
func (ts *taskOrStep) restore(doc *checkpoint.Document) {
	if !ts.restoreBase(doc) {
		return
	}
	if doc.Status.Valid() {
		ts.status = doc.Status
	}
	ts.loaded = true
}
