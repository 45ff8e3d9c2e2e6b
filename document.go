package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the schema variant of a tracking document.
type Kind string

const (
	// KindJob is the root of a tracked unit of work.
	KindJob Kind = "job"
	// KindTask is a unit of work owned by a job.
	KindTask Kind = "task"
	// KindStep is a leaf-level unit owned by a task.
	KindStep Kind = "step"
)

// Collection names, one per entity kind. They are always passed explicitly
// to Backend calls, never inferred by the backend.
const (
	CollectionJobs  = "jobs"
	CollectionTasks = "tasks"
	CollectionSteps = "steps"
)

// Collection returns the collection name documents of this kind live in.
func (k Kind) Collection() string {
	switch k {
	case KindJob:
		return CollectionJobs
	case KindTask:
		return CollectionTasks
	case KindStep:
		return CollectionSteps
	}
	return ""
}

// Status represents the lifecycle state of a task or step.
// Jobs never store a status; their state is derived from children.
type Status string

const (
	// StatusNotStarted means no work has been recorded yet.
	StatusNotStarted Status = "not-started"
	// StatusRunning means work is in progress.
	StatusRunning Status = "running"
	// StatusCompleted means work finished successfully. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means work finished unsuccessfully. Terminal.
	StatusFailed Status = "failed"
)

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status. Terminal statuses
// never transition to another value.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a status change from → to is legal.
// Re-asserting the current status is always legal (saves are idempotent);
// leaving a terminal status is not.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return !from.Terminal()
}

// Entity carries the timestamps shared by every tracking document.
// CreatedAt is set on first write; UpdatedAt is refreshed on every write.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity with both timestamps set to now.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch refreshes UpdatedAt, setting CreatedAt too on first touch.
func (e *Entity) Touch() {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

// Document is the unit persisted by every trackable entity: a fixed
// attribute list plus kind-specific extra fields. On the wire the extra
// fields are flattened into the top-level JSON object.
type Document struct {
	Entity

	Identity  string         `json:"identity"`
	Kind      Kind           `json:"kind"`
	ParentRef string         `json:"parent_ref,omitempty"`
	Status    Status         `json:"status,omitempty"`
	Extra     map[string]any `json:"-"`
}

// Reserved top-level keys that extra fields may not shadow.
var reservedKeys = map[string]struct{}{
	"identity":   {},
	"kind":       {},
	"parent_ref": {},
	"status":     {},
	"created_at": {},
	"updated_at": {},
}

// Field returns the queryable value stored under name: one of the fixed
// attributes or a flattened extra field.
func (d *Document) Field(name string) (any, bool) {
	switch name {
	case "identity":
		return d.Identity, true
	case "kind":
		return string(d.Kind), true
	case "parent_ref":
		return d.ParentRef, true
	case "status":
		return string(d.Status), true
	}
	v, ok := d.Extra[name]
	return v, ok
}

// Clone returns a copy of d that shares no mutable state with the
// original. Backends clone on Save and Get so callers cannot alias
// stored documents.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.Extra != nil {
		c.Extra = make(map[string]any, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = cloneValue(v)
		}
	}
	return &c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	}
	return v
}

// MarshalJSON flattens the extra fields into the top-level object.
func (d *Document) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Extra)+6)
	for k, v := range d.Extra {
		if _, reserved := reservedKeys[k]; reserved {
			return nil, fmt.Errorf("checkpoint: extra field %q shadows a reserved key", k)
		}
		m[k] = v
	}
	m["identity"] = d.Identity
	m["kind"] = d.Kind
	if d.ParentRef != "" {
		m["parent_ref"] = d.ParentRef
	}
	if d.Status != "" {
		m["status"] = d.Status
	}
	m["created_at"] = d.CreatedAt.UTC().Format(time.RFC3339Nano)
	m["updated_at"] = d.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of MarshalJSON: fixed attributes are
// lifted out of the object and everything else lands in Extra.
func (d *Document) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	doc := Document{}
	for k, v := range m {
		switch k {
		case "identity":
			doc.Identity, _ = v.(string)
		case "kind":
			s, _ := v.(string)
			doc.Kind = Kind(s)
		case "parent_ref":
			doc.ParentRef, _ = v.(string)
		case "status":
			s, _ := v.(string)
			doc.Status = Status(s)
		case "created_at":
			t, err := parseTime(v)
			if err != nil {
				return fmt.Errorf("checkpoint: created_at: %w", err)
			}
			doc.CreatedAt = t
		case "updated_at":
			t, err := parseTime(v)
			if err != nil {
				return fmt.Errorf("checkpoint: updated_at: %w", err)
			}
			doc.UpdatedAt = t
		default:
			if doc.Extra == nil {
				doc.Extra = make(map[string]any)
			}
			doc.Extra[k] = v
		}
	}
	*d = doc
	return nil
}

func parseTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected RFC3339 string, got %T", v)
	}
	return time.Parse(time.RFC3339Nano, s)
}
