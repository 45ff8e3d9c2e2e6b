package track

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/checkpoint"
	"github.com/xraph/checkpoint/id"
)

// Step is the leaf-level unit of work owned by a Task, and the unit
// updated most frequently: it carries fine-grained progress counters
// and is the primary resume point after a restart.
type Step struct {
	taskOrStep

	task           *Task
	name           string
	itemsProcessed int64
	marker         string
}

func newStep(ctx context.Context, t *Task, name string) (*Step, error) {
	sid, err := id.Step(t.identity.Root(), t.name, name)
	if err != nil {
		return nil, err
	}

	s := &Step{
		taskOrStep: taskOrStep{
			trackable: trackable{
				backend:   t.backend,
				logger:    t.logger,
				identity:  sid,
				kind:      checkpoint.KindStep,
				parentRef: t.identity.String(),
				entity:    checkpoint.NewEntity(),
				dryRun:    t.dryRun,
			},
			status: checkpoint.StatusNotStarted,
		},
		task: t,
		name: name,
	}
	s.src = s

	if err := t.backend.EnsureIndex(ctx, checkpoint.CollectionSteps); err != nil {
		return nil, fmt.Errorf("ensure steps collection: %w", err)
	}

	doc, err := t.backend.Get(ctx, checkpoint.CollectionSteps, sid.String())
	switch {
	case err == nil:
		s.restoreStep(doc)
	case errors.Is(err, checkpoint.ErrNotFound):
		// Fresh step; the document is created on first status write.
	default:
		return nil, fmt.Errorf("load step %s: %w", sid, err)
	}
	return s, nil
}

// Name returns the step's local name.
func (s *Step) Name() string { return s.name }

// ItemsProcessed returns the number of items recorded so far, restored
// from the backend when the step resumed.
func (s *Step) ItemsProcessed() int64 { return s.itemsProcessed }

// Marker returns the last checkpoint marker recorded for this step.
func (s *Step) Marker() string { return s.marker }

// RecordProgress persists the step's progress counters: the total items
// processed so far and an opaque checkpoint marker a resumed run can
// pick up from.
func (s *Step) RecordProgress(ctx context.Context, items int64, marker string) error {
	prevItems, prevMarker := s.itemsProcessed, s.marker
	s.itemsProcessed = items
	s.marker = marker
	if err := s.Save(ctx); err != nil {
		s.itemsProcessed, s.marker = prevItems, prevMarker
		return err
	}
	return nil
}

// extraFields contributes the step-level schema extension. Both the
// root job name and the owning task name are recorded so job-wide and
// task-wide queries are single term matches.
func (s *Step) extraFields() map[string]any {
	fields := map[string]any{
		"job":    s.identity.Root(),
		"task":   s.task.name,
		"name":   s.name,
		"marker": s.marker,
	}
	if s.itemsProcessed > 0 {
		fields["items_processed"] = s.itemsProcessed
	}
	return fields
}

func (s *Step) restoreStep(doc *checkpoint.Document) {
	s.restore(doc)
	if !s.loaded {
		return
	}
	s.itemsProcessed = asInt64(doc.Extra["items_processed"])
	s.marker = asString(doc.Extra["marker"])
}
