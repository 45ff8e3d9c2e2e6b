package track

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/checkpoint"
	"github.com/xraph/checkpoint/id"
)

// extraFielder supplies the kind-specific schema extension merged into
// the fixed attribute list when a tracking document is built.
type extraFielder interface {
	extraFields() map[string]any
}

// trackable owns document construction and persistence for one entity.
// Concrete types (Job, Task, Step) embed it and contribute their own
// extra fields.
type trackable struct {
	backend checkpoint.Backend
	logger  *slog.Logger

	identity  id.ID
	kind      checkpoint.Kind
	parentRef string // empty for jobs; immutable once set

	entity     checkpoint.Entity
	logs       []string
	dryRun     bool
	prevDryRun bool

	// src points back at the concrete entity so buildDoc can merge its
	// extra fields. Set once by the constructor.
	src extraFielder
}

// Identity returns the entity's unique key within its collection.
func (t *trackable) Identity() string { return t.identity.String() }

// DryRun reports whether this entity records without real effects.
func (t *trackable) DryRun() bool { return t.dryRun }

// Logs returns the timestamped log trail recorded so far.
func (t *trackable) Logs() []string {
	out := make([]string, len(t.logs))
	copy(out, t.logs)
	return out
}

// AddLog appends a timestamped message to the log trail. The trail is
// persisted with the next save.
func (t *trackable) AddLog(msg string) {
	t.logs = append(t.logs, time.Now().UTC().Format(time.RFC3339)+" "+msg)
}

// buildDoc assembles the tracking document: fixed attributes plus the
// concrete entity's extra fields, with empty values pruned. Deterministic
// for a given entity state aside from updated_at.
func (t *trackable) buildDoc() *checkpoint.Document {
	extra := pruneEmpty(t.src.extraFields())
	if t.dryRun {
		extra["dry_run"] = true
	}
	if len(t.logs) > 0 {
		extra["logs"] = append([]string(nil), t.logs...)
	}
	return &checkpoint.Document{
		Entity:    t.entity,
		Identity:  t.identity.String(),
		Kind:      t.kind,
		ParentRef: t.parentRef,
		Extra:     extra,
	}
}

// save refreshes updated_at and upserts doc through the backend.
func (t *trackable) save(ctx context.Context, doc *checkpoint.Document) error {
	t.entity.Touch()
	doc.Entity = t.entity
	if err := t.backend.Save(ctx, t.kind.Collection(), doc.Identity, doc); err != nil {
		return fmt.Errorf("save %s: %w", doc.Identity, err)
	}
	return nil
}

// restoreBase pulls the shared attributes out of a previously stored
// document. When the prior run was a dry run its recorded state is
// ignored: the entity starts fresh and only remembers that fact.
func (t *trackable) restoreBase(doc *checkpoint.Document) bool {
	t.prevDryRun, _ = doc.Extra["dry_run"].(bool)
	if t.prevDryRun {
		t.logger.Info("ignoring history of previous dry run",
			slog.String("identity", t.identity.String()))
		return false
	}
	t.entity = doc.Entity
	t.logs = asStringSlice(doc.Extra["logs"])
	return true
}

// pruneEmpty drops nil values, empty strings, and empty containers so
// documents carry only meaningful fields.
func pruneEmpty(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if t == "" {
				continue
			}
		case []string:
			if len(t) == 0 {
				continue
			}
		case []any:
			if len(t) == 0 {
				continue
			}
		case map[string]any:
			if len(t) == 0 {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// ── extra-field coercion ─────────────────────────────────────────
//
// Stored values come back as JSON or BSON decoded types depending on
// the backend, so restores coerce instead of asserting exact types.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
