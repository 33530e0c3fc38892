// Package depstate tracks the per-(step, batch) readiness state machine that
// drives the scheduling kernel: started/completed flags with
// timestamps, dependency readiness, batch decomposition, and the
// deterministic tie-break ordering used when several items are ready at once.
package depstate

import (
	"sort"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
)

// Kind is the dependency relationship between two steps.
type Kind string

const (
	// KindFinish requires the depended-on step's same batch to be completed
	// before this step-batch may start.
	KindFinish Kind = "finish"
	// KindStart requires only that the depended-on step's same batch has
	// started.
	KindStart Kind = "start"
)

// Dependency is one BOM-level edge: this step depends on DependsOnStep with
// the given Kind.
type Dependency struct {
	DependsOnStep uint
	Kind          Kind
}

// Key identifies one step-batch's state.
type Key struct {
	StepID uint
	Batch  int
}

// Moment is a (date, minute-of-day) timestamp inside the work calendar.
type Moment struct {
	Date   calendar.Date
	Minute int
}

// Before reports whether m is strictly earlier than o.
func (m Moment) Before(o Moment) bool {
	if c := m.Date.Compare(o.Date); c != 0 {
		return c < 0
	}
	return m.Minute < o.Minute
}

// State is the state of one (step, batch).
type State struct {
	Started     bool
	StartedAt   *Moment
	Completed   bool
	CompletedAt *Moment
}

// Tracker holds the dependency graph (per step) and the live state of every
// (step, batch) touched so far.
type Tracker struct {
	deps   map[uint][]Dependency
	states map[Key]*State
}

// NewTracker builds a tracker from the BOM-level dependency edges, keyed by
// the step that owns each dependency list.
func NewTracker(deps map[uint][]Dependency) *Tracker {
	if deps == nil {
		deps = make(map[uint][]Dependency)
	}
	return &Tracker{
		deps:   deps,
		states: make(map[Key]*State),
	}
}

func (t *Tracker) state(k Key) *State {
	s, ok := t.states[k]
	if !ok {
		s = &State{}
		t.states[k] = s
	}
	return s
}

// Get returns the current state of (stepID, batch), the zero value if never
// touched.
func (t *Tracker) Get(stepID uint, batch int) State {
	return *t.state(Key{StepID: stepID, Batch: batch})
}

// Ready reports whether (stepID, batch) satisfies its readiness rule: every
// finish-dependency is completed, every start-dependency has started, and if
// batch > 1 the previous batch of the same step is completed.
func (t *Tracker) Ready(stepID uint, batch int) bool {
	for _, dep := range t.deps[stepID] {
		depState := t.state(Key{StepID: dep.DependsOnStep, Batch: batch})
		switch dep.Kind {
		case KindFinish:
			if !depState.Completed {
				return false
			}
		case KindStart:
			if !depState.Started {
				return false
			}
		}
	}
	if batch > 1 {
		prev := t.state(Key{StepID: stepID, Batch: batch - 1})
		if !prev.Completed {
			return false
		}
	}
	return true
}

// InProgress reports whether (stepID, batch) has started but not completed —
// the kernel keeps such items in the ready set for continued scheduling even
// once the readiness rule no longer needs re-checking.
func (t *Tracker) InProgress(stepID uint, batch int) bool {
	s := t.state(Key{StepID: stepID, Batch: batch})
	return s.Started && !s.Completed
}

// EarliestStart returns the earliest moment (stepID, batch) may begin: the
// latest of its finish-dependencies' completion moments and the previous
// batch's completion moment. Returns nil if nothing constrains it (as soon
// as the calendar allows).
func (t *Tracker) EarliestStart(stepID uint, batch int) *Moment {
	var latest *Moment
	consider := func(m *Moment) {
		if m == nil {
			return
		}
		if latest == nil || latest.Before(*m) {
			latest = m
		}
	}
	for _, dep := range t.deps[stepID] {
		if dep.Kind != KindFinish {
			continue
		}
		depState := t.state(Key{StepID: dep.DependsOnStep, Batch: batch})
		consider(depState.CompletedAt)
	}
	if batch > 1 {
		prev := t.state(Key{StepID: stepID, Batch: batch - 1})
		consider(prev.CompletedAt)
	}
	return latest
}

// MarkStarted records that (stepID, batch) began at moment m.
func (t *Tracker) MarkStarted(stepID uint, batch int, m Moment) {
	s := t.state(Key{StepID: stepID, Batch: batch})
	s.Started = true
	s.StartedAt = &m
}

// MarkCompleted records that (stepID, batch) finished at moment m.
func (t *Tracker) MarkCompleted(stepID uint, batch int, m Moment) {
	s := t.state(Key{StepID: stepID, Batch: batch})
	s.Completed = true
	s.CompletedAt = &m
}

// BatchPreference is the per-demand batching policy; zero values mean "no
// batching" (an unset max defaults to the demand quantity, an unset min
// means no minimum).
type BatchPreference struct {
	MinBatchSize int
	MaxBatchSize int
}

// DecomposeBatches splits quantity into batches of at most pref.MaxBatchSize,
// coalescing a final remainder smaller than pref.MinBatchSize into the
// previous batch. A zero-value pref yields a single batch of
// the full quantity. An unset MinBatchSize (0) is treated as "no minimum" —
// no coalescing — rather than defaulting to quantity, since defaulting it to
// Q would coalesce every evenly-divisible split back into one batch whenever
// only MaxBatchSize is supplied, defeating the caller's intent.
func DecomposeBatches(quantity int, pref BatchPreference) []int {
	maxSize := pref.MaxBatchSize
	if maxSize <= 0 {
		maxSize = quantity
	}
	minSize := pref.MinBatchSize
	if quantity <= 0 {
		return nil
	}
	if maxSize >= quantity {
		return []int{quantity}
	}

	var batches []int
	remaining := quantity
	for remaining > 0 {
		if remaining <= maxSize {
			batches = append(batches, remaining)
			remaining = 0
			break
		}
		batches = append(batches, maxSize)
		remaining -= maxSize
	}
	if len(batches) >= 2 {
		last := batches[len(batches)-1]
		if last < minSize {
			batches[len(batches)-2] += last
			batches = batches[:len(batches)-1]
		}
	}
	return batches
}

// ReadyItem is a pending-work entry eligible for this round of scheduling,
// carrying the fields the kernel's tie-break rule needs.
type ReadyItem struct {
	StepID         uint
	Batch          int
	Sequence       int
	DemandID       uint
	Priority       int
	PriorityWeight float64
	DueDate        calendar.Date
}

// SortReady orders items with a deterministic tie-break: lower
// BOM sequence first, then higher priority*weight, then earlier due date,
// then lower demand id for full determinism.
func SortReady(items []ReadyItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		aw := float64(a.Priority) * a.PriorityWeight
		bw := float64(b.Priority) * b.PriorityWeight
		if aw != bw {
			return aw > bw
		}
		if c := a.DueDate.Compare(b.DueDate); c != 0 {
			return c < 0
		}
		return a.DemandID < b.DemandID
	})
}
