// Package id defines deterministic identity types for checkpoint entities.
//
// Unlike random identifiers, checkpoint identities are derived from the
// entity's kind and its ownership chain, so re-creating the same logical
// entity always yields the same identity and every save is an idempotent
// upsert. Identities are URL-safe strings in the format "prefix_chain",
// where chain joins the names from the root job down with "/":
//
//	job_nightly
//	task_nightly/logs-000001
//	step_nightly/logs-000001/copy-docs
package id

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// Prefix identifies the entity kind encoded in an identity.
type Prefix string

// Prefix constants for all checkpoint entity kinds.
const (
	PrefixJob  Prefix = "job"
	PrefixTask Prefix = "task"
	PrefixStep Prefix = "step"
)

// ErrInvalid is returned when a string cannot be parsed as an identity
// or a name contains reserved characters.
var ErrInvalid = errors.New("id: invalid identity")

// chainLen maps each prefix to the number of chain segments it carries.
var chainLen = map[Prefix]int{
	PrefixJob:  1,
	PrefixTask: 2,
	PrefixStep: 3,
}

// ID is the identifier type for all checkpoint entities. The zero value
// is invalid; construct with Job, Task, Step, or Parse.
type ID struct {
	prefix Prefix
	chain  []string
	valid  bool
}

// Nil is the zero-value ID.
var Nil ID

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if strings.ContainsAny(name, "/_") {
		return fmt.Errorf("%w: name %q contains a reserved character", ErrInvalid, name)
	}
	return nil
}

func build(prefix Prefix, chain ...string) (ID, error) {
	for _, name := range chain {
		if err := checkName(name); err != nil {
			return Nil, err
		}
	}
	return ID{prefix: prefix, chain: chain, valid: true}, nil
}

// Job derives the identity of the named job.
func Job(name string) (ID, error) {
	return build(PrefixJob, name)
}

// Task derives the identity of the named task owned by job.
func Task(job, name string) (ID, error) {
	return build(PrefixTask, job, name)
}

// Step derives the identity of the named step owned by task within job.
func Step(job, task, name string) (ID, error) {
	return build(PrefixStep, job, task, name)
}

// Parse parses an identity string (e.g. "task_nightly/logs-000001")
// into an ID. The prefix must be recognized and the chain must have the
// segment count that prefix requires.
func Parse(s string) (ID, error) {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok || rest == "" {
		return Nil, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	p := Prefix(prefix)
	want, known := chainLen[p]
	if !known {
		return Nil, fmt.Errorf("%w: unknown prefix %q", ErrInvalid, prefix)
	}
	chain := strings.Split(rest, "/")
	if len(chain) != want {
		return Nil, fmt.Errorf("%w: %q needs %d segment(s), got %d", ErrInvalid, prefix, want, len(chain))
	}
	return build(p, chain...)
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// String returns the canonical "prefix_chain" form.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return string(i.prefix) + "_" + strings.Join(i.chain, "/")
}

// IsZero reports whether the ID is the zero value.
func (i ID) IsZero() bool { return !i.valid }

// Prefix returns the entity-kind prefix.
func (i ID) Prefix() Prefix { return i.prefix }

// Name returns the entity's local name, the last chain segment.
func (i ID) Name() string {
	if !i.valid {
		return ""
	}
	return i.chain[len(i.chain)-1]
}

// Root returns the name of the job the ownership chain roots at.
func (i ID) Root() string {
	if !i.valid {
		return ""
	}
	return i.chain[0]
}

// Parent returns the identity of the owning entity and true, or Nil and
// false for jobs, which have no parent.
func (i ID) Parent() (ID, bool) {
	if !i.valid || i.prefix == PrefixJob {
		return Nil, false
	}
	parent := Prefix("")
	switch i.prefix {
	case PrefixTask:
		parent = PrefixJob
	case PrefixStep:
		parent = PrefixTask
	}
	return ID{prefix: parent, chain: i.chain[:len(i.chain)-1], valid: true}, true
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil
	}
	return i.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	}
	return fmt.Errorf("id: cannot scan %T into ID", src)
}
