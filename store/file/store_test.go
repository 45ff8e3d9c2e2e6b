package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xraph/checkpoint"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracking.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func newDoc(identity string, kind checkpoint.Kind, status checkpoint.Status, extra map[string]any) *checkpoint.Document {
	return &checkpoint.Document{
		Entity:   checkpoint.NewEntity(),
		Identity: identity,
		Kind:     kind,
		Status:   status,
		Extra:    extra,
	}
}

// ──────────────────────────────────────────────────
// Persistence
// ──────────────────────────────────────────────────

func TestNumericTermMatchesAfterReopen(t *testing.T) {
	t.Parallel()
	s, path := tempStore(t)
	ctx := context.Background()

	doc := newDoc("step_j/t/s", checkpoint.KindStep, checkpoint.StatusRunning,
		map[string]any{"job": "j", "items_processed": int64(900)})
	if err := s.Save(ctx, checkpoint.CollectionSteps, doc.Identity, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The reload decodes items_processed as float64; the original int64
	// term must still hit.
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	docs, err := reopened.Search(ctx, checkpoint.CollectionSteps,
		checkpoint.Query{Terms: map[string]any{"items_processed": int64(900)}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 || docs[0].Identity != "step_j/t/s" {
		t.Errorf("numeric search after reopen returned %d docs, want the saved step", len(docs))
	}
}

func TestSaveSurvivesReopen(t *testing.T) {
	t.Parallel()
	s, path := tempStore(t)
	ctx := context.Background()

	doc := newDoc("step_j/t/s", checkpoint.KindStep, checkpoint.StatusCompleted,
		map[string]any{"job": "j", "marker": "batch-7"})
	doc.ParentRef = "task_j/t"
	if err := s.Save(ctx, checkpoint.CollectionSteps, doc.Identity, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, checkpoint.CollectionSteps, "step_j/t/s")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Status != checkpoint.StatusCompleted || got.ParentRef != "task_j/t" {
		t.Errorf("got %+v", got)
	}
	if got.Extra["marker"] != "batch-7" {
		t.Errorf("extra fields lost across reopen: %v", got.Extra)
	}
	if !got.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("created_at drifted: %v vs %v", got.CreatedAt, doc.CreatedAt)
	}
}

func TestOnDiskLayout(t *testing.T) {
	t.Parallel()
	s, path := tempStore(t)
	ctx := context.Background()

	doc := newDoc("job_j", checkpoint.KindJob, "", map[string]any{"name": "j"})
	if err := s.Save(ctx, checkpoint.CollectionJobs, doc.Identity, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var layout map[string]map[string]map[string]any
	if err := json.Unmarshal(raw, &layout); err != nil {
		t.Fatalf("file is not a collection-keyed JSON object: %v", err)
	}

	stored, ok := layout[checkpoint.CollectionJobs]["job_j"]
	if !ok {
		t.Fatalf("document missing from layout: %v", layout)
	}
	// Extra fields are flattened at the top level of the document object.
	if stored["name"] != "j" || stored["kind"] != "job" || stored["identity"] != "job_j" {
		t.Errorf("unexpected document shape: %v", stored)
	}
	if _, nested := stored["extra_fields"]; nested {
		t.Error("extra fields must be flattened, not nested")
	}
}

func TestEnsureIndexPersists(t *testing.T) {
	t.Parallel()
	s, path := tempStore(t)
	ctx := context.Background()

	if err := s.EnsureIndex(ctx, checkpoint.CollectionTasks); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if err := s.EnsureIndex(ctx, checkpoint.CollectionTasks); err != nil {
		t.Fatalf("EnsureIndex (repeat): %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	docs, err := reopened.Search(ctx, checkpoint.CollectionTasks, checkpoint.Query{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("fresh collection should be empty, got %d", len(docs))
	}
}

// ──────────────────────────────────────────────────
// Contract behavior
// ──────────────────────────────────────────────────

func TestGetMissing(t *testing.T) {
	t.Parallel()
	s, _ := tempStore(t)

	if _, err := s.Get(context.Background(), checkpoint.CollectionJobs, "job_missing"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSearchFilters(t *testing.T) {
	t.Parallel()
	s, _ := tempStore(t)
	ctx := context.Background()

	for _, d := range []*checkpoint.Document{
		newDoc("task_j/a", checkpoint.KindTask, checkpoint.StatusRunning, map[string]any{"job": "j"}),
		newDoc("task_j/b", checkpoint.KindTask, checkpoint.StatusCompleted, map[string]any{"job": "j"}),
	} {
		if err := s.Save(ctx, checkpoint.CollectionTasks, d.Identity, d); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	docs, err := s.Search(ctx, checkpoint.CollectionTasks, checkpoint.ByStatus(checkpoint.StatusRunning))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 || docs[0].Identity != "task_j/a" {
		t.Errorf("got %v", docs)
	}
}

func TestClosedBackend(t *testing.T) {
	t.Parallel()
	s, _ := tempStore(t)
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	doc := newDoc("job_j", checkpoint.KindJob, "", nil)
	if err := s.Save(ctx, checkpoint.CollectionJobs, doc.Identity, doc); !errors.Is(err, checkpoint.ErrBackendClosed) {
		t.Errorf("Save after close = %v, want ErrBackendClosed", err)
	}
	if _, err := s.Get(ctx, checkpoint.CollectionJobs, "job_j"); !errors.Is(err, checkpoint.ErrBackendClosed) {
		t.Errorf("Get after close = %v, want ErrBackendClosed", err)
	}
}

func TestOpenUnreachablePath(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "no-such-dir", "tracking.json"))
	if err != nil {
		t.Fatalf("Open with missing dir should defer failure to first write, got %v", err)
	}
	doc := newDoc("job_j", checkpoint.KindJob, "", nil)
	err = s.Save(context.Background(), checkpoint.CollectionJobs, doc.Identity, doc)
	if !errors.Is(err, checkpoint.ErrBackendUnavailable) {
		t.Errorf("Save into missing dir = %v, want ErrBackendUnavailable", err)
	}
}
