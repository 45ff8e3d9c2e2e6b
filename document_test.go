package checkpoint

import (
	"encoding/json"
	"testing"
)

func TestKindCollection(t *testing.T) {
	t.Parallel()
	cases := []struct {
		kind Kind
		want string
	}{
		{KindJob, CollectionJobs},
		{KindTask, CollectionTasks},
		{KindStep, CollectionSteps},
	}
	for _, tc := range cases {
		if got := tc.kind.Collection(); got != tc.want {
			t.Errorf("%s.Collection() = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	t.Parallel()
	for _, s := range []Status{StatusNotStarted, StatusRunning, StatusCompleted, StatusFailed} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range []Status{"", "paused", "done", "RUNNING"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusNotStarted, StatusRunning, true},
		{StatusNotStarted, StatusCompleted, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusCompleted, StatusRunning, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusRunning, false},
		{StatusFailed, StatusNotStarted, false},
		// Re-asserting the current status is always legal.
		{StatusCompleted, StatusCompleted, true},
		{StatusFailed, StatusFailed, true},
		{StatusRunning, StatusRunning, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDocumentMarshalFlattensExtra(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Entity:    NewEntity(),
		Identity:  "task_demo/load",
		Kind:      KindTask,
		ParentRef: "job_demo",
		Status:    StatusRunning,
		Extra: map[string]any{
			"name":    "load",
			"ordinal": 2,
		},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal into map: %v", err)
	}
	// Extra fields sit at the top level, not under a wrapper key.
	if m["name"] != "load" {
		t.Errorf("name = %v, want load", m["name"])
	}
	if _, nested := m["extra"]; nested {
		t.Error("extra fields must not nest under an extra key")
	}
	if m["status"] != "running" {
		t.Errorf("status = %v, want running", m["status"])
	}
	if _, ok := m["created_at"].(string); !ok {
		t.Errorf("created_at should serialize as a string, got %T", m["created_at"])
	}
}

func TestDocumentMarshalRejectsReservedKeys(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Entity:   NewEntity(),
		Identity: "job_demo",
		Kind:     KindJob,
		Extra:    map[string]any{"status": "sneaky"},
	}
	if _, err := json.Marshal(doc); err == nil {
		t.Fatal("expected error for extra field shadowing a reserved key")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Entity:    NewEntity(),
		Identity:  "step_demo/load/batch-1",
		Kind:      KindStep,
		ParentRef: "task_demo/load",
		Status:    StatusCompleted,
		Extra: map[string]any{
			"job":    "demo",
			"task":   "load",
			"marker": "eof",
		},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Document
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.Identity != doc.Identity || back.Kind != doc.Kind ||
		back.ParentRef != doc.ParentRef || back.Status != doc.Status {
		t.Errorf("fixed attributes changed: %+v", back)
	}
	if marker, _ := back.Field("marker"); marker != "eof" {
		t.Errorf("marker = %v, want eof", marker)
	}
	if !back.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("created_at drifted: %v vs %v", back.CreatedAt, doc.CreatedAt)
	}
}

func TestDocumentCloneIsIndependent(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Identity: "job_demo",
		Kind:     KindJob,
		Extra: map[string]any{
			"config": map[string]any{"batch": 100},
			"logs":   []string{"started"},
		},
	}
	c := doc.Clone()

	c.Extra["config"].(map[string]any)["batch"] = 999
	c.Extra["logs"].([]string)[0] = "mutated"

	if doc.Extra["config"].(map[string]any)["batch"] != 100 {
		t.Error("clone shares the config map")
	}
	if doc.Extra["logs"].([]string)[0] != "started" {
		t.Error("clone shares the logs slice")
	}
}

func TestQueryMatches(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Identity:  "task_demo/load",
		Kind:      KindTask,
		ParentRef: "job_demo",
		Status:    StatusRunning,
		Extra: map[string]any{
			"job":     "demo",
			"name":    "load",
			"ordinal": float64(2), // as decoded from JSON
			"logs":    []string{"started"},
		},
	}

	cases := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty query matches all", Query{}, true},
		{"by parent", ByParent("job_demo"), true},
		{"by wrong parent", ByParent("job_other"), false},
		{"by root", ByRoot("demo"), true},
		{"by status", ByStatus(StatusRunning), true},
		{"by wrong status", ByStatus(StatusCompleted), false},
		{"by extra field", Query{Terms: map[string]any{"name": "load"}}, true},
		{"missing field never matches", Query{Terms: map[string]any{"ghost": "x"}}, false},
		{"int term matches decoded float", Query{Terms: map[string]any{"ordinal": 2}}, true},
		{"int64 term matches decoded float", Query{Terms: map[string]any{"ordinal": int64(2)}}, true},
		{"numeric term mismatch", Query{Terms: map[string]any{"ordinal": 3}}, false},
		{"string term never matches a number", Query{Terms: map[string]any{"ordinal": "2"}}, false},
		{"slice-valued field never matches", Query{Terms: map[string]any{"logs": []string{"started"}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.q.Matches(doc); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}
