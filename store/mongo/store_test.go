//go:build integration

package mongo_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	mongomodule "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/checkpoint"
	mongostore "github.com/xraph/checkpoint/store/mongo"
)

// setupTestStore creates a MongoDB container and returns a connected Store.
func setupTestStore(t *testing.T) *mongostore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := mongomodule.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("start mongodb container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Disconnect(ctx)
	})

	return mongostore.New(client.Database("checkpoint_test"),
		mongostore.WithLogger(slog.Default()))
}

func stepDoc(job, task, name string, status checkpoint.Status) *checkpoint.Document {
	return &checkpoint.Document{
		Entity:    checkpoint.NewEntity(),
		Identity:  fmt.Sprintf("step_%s/%s/%s", job, task, name),
		Kind:      checkpoint.KindStep,
		ParentRef: fmt.Sprintf("task_%s/%s", job, task),
		Status:    status,
		Extra: map[string]any{
			"job":  job,
			"task": task,
			"name": name,
		},
	}
}

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStore_EnsureIndexIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.EnsureIndex(ctx, checkpoint.CollectionSteps); err != nil {
			t.Fatalf("ensure index (round %d): %v", i, err)
		}
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := stepDoc("demo", "load", "batch-1", checkpoint.StatusRunning)
	if err := s.Save(ctx, checkpoint.CollectionSteps, doc.Identity, doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Get(ctx, checkpoint.CollectionSteps, doc.Identity)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Identity != doc.Identity {
		t.Fatalf("identity = %s, want %s", got.Identity, doc.Identity)
	}
	if got.Status != checkpoint.StatusRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}
	if task, ok := got.Field("task"); !ok || task != "load" {
		t.Fatalf("expected extra field task=load, got %v", task)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), checkpoint.CollectionJobs, "job_missing")
	if !errors.Is(err, checkpoint.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestStore_SaveIsUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := stepDoc("demo", "load", "batch-1", checkpoint.StatusNotStarted)
	if err := s.Save(ctx, checkpoint.CollectionSteps, doc.Identity, doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	doc.Status = checkpoint.StatusCompleted
	doc.Touch()
	if err := s.Save(ctx, checkpoint.CollectionSteps, doc.Identity, doc); err != nil {
		t.Fatalf("second save: %v", err)
	}

	all, err := s.Search(ctx, checkpoint.CollectionSteps, checkpoint.Query{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 document after upsert, got %d", len(all))
	}
	if all[0].Status != checkpoint.StatusCompleted {
		t.Fatalf("expected completed, got %s", all[0].Status)
	}
}

func TestStore_SearchByParentAndStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	docs := []*checkpoint.Document{
		stepDoc("demo", "load", "batch-1", checkpoint.StatusCompleted),
		stepDoc("demo", "load", "batch-2", checkpoint.StatusRunning),
		stepDoc("demo", "transform", "batch-1", checkpoint.StatusCompleted),
	}
	for _, doc := range docs {
		if err := s.Save(ctx, checkpoint.CollectionSteps, doc.Identity, doc); err != nil {
			t.Fatalf("save %s: %v", doc.Identity, err)
		}
	}

	under, err := s.Search(ctx, checkpoint.CollectionSteps,
		checkpoint.ByParent("task_demo/load"))
	if err != nil {
		t.Fatalf("search by parent: %v", err)
	}
	if len(under) != 2 {
		t.Fatalf("expected 2 steps under task_demo/load, got %d", len(under))
	}

	done, err := s.Search(ctx, checkpoint.CollectionSteps,
		checkpoint.ByStatus(checkpoint.StatusCompleted))
	if err != nil {
		t.Fatalf("search by status: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("expected 2 completed steps, got %d", len(done))
	}

	all, err := s.Search(ctx, checkpoint.CollectionSteps, checkpoint.ByRoot("demo"))
	if err != nil {
		t.Fatalf("search by root: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 steps for job demo, got %d", len(all))
	}
}

func TestStore_SearchMissingCollection(t *testing.T) {
	s := setupTestStore(t)

	docs, err := s.Search(context.Background(), checkpoint.CollectionTasks, checkpoint.Query{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty result, got %d", len(docs))
	}
}
