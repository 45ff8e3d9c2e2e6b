package track

import (
	"sort"
	"time"

	"github.com/xraph/checkpoint"
)

// Progress is the aggregate state of a job, tallied from the task and
// step documents rooted at it.
type Progress struct {
	// Tasks counts task documents by status.
	Tasks map[checkpoint.Status]int
	// Steps counts step documents by status.
	Steps map[checkpoint.Status]int
}

// Combined merges the task and step tallies into one count by status.
func (p Progress) Combined() map[checkpoint.Status]int {
	out := make(map[checkpoint.Status]int, len(p.Tasks)+len(p.Steps))
	for s, n := range p.Tasks {
		out[s] += n
	}
	for s, n := range p.Steps {
		out[s] += n
	}
	return out
}

// Done reports whether every recorded task and step completed. A job
// with no recorded children is not done.
func (p Progress) Done() bool {
	total := 0
	for s, n := range p.Combined() {
		if s != checkpoint.StatusCompleted && n > 0 {
			return false
		}
		total += n
	}
	return total > 0
}

// Event is one status-change observation derived from a tracking
// document, ordered by the document's update time.
type Event struct {
	Identity string
	Kind     checkpoint.Kind
	Status   checkpoint.Status
	At       time.Time
}

// sortEvents orders events by time, breaking ties by identity so the
// order is stable across backends.
func sortEvents(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.Before(events[j].At)
		}
		return events[i].Identity < events[j].Identity
	})
}
