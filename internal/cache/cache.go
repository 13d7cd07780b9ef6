// Package cache holds the latest metric set of every configured target.
//
// Each target owns one immutable State published through an atomic
// pointer. Writers for one target are serialized by the scheduler, and
// readers take a snapshot without blocking writers.
package cache

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/neox5/ghexporter/internal/clock"
	"github.com/neox5/ghexporter/internal/metric"
	"github.com/neox5/ghexporter/internal/target"
)

// ErrUnknownTarget is returned for targets the cache was not created with.
var ErrUnknownTarget = errors.New("unknown target")

// State is the published view of one target. Values are never mutated
// after publication.
type State struct {
	Samples     []metric.Sample
	LastSuccess time.Time
	LastError   error
	LastErrorAt time.Time
	Stale       bool
}

// Pending reports whether the target has never been fetched.
func (s *State) Pending() bool {
	return s.LastSuccess.IsZero() && s.LastErrorAt.IsZero()
}

type entry struct {
	target target.Target
	state  atomic.Pointer[State]
}

// Cache maps each target to its latest State. The target set is fixed.
type Cache struct {
	clock   clock.Clock
	entries []*entry // sorted by target ID
	index   map[string]*entry
}

// New creates a cache with one empty State per target. Duplicate targets
// are collapsed. Fetch times are read from clk.
func New(targets []target.Target, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.Real()
	}
	sorted := slices.Clone(targets)
	target.Sort(sorted)

	c := &Cache{clock: clk, index: make(map[string]*entry, len(sorted))}
	for _, t := range sorted {
		key := t.String()
		if _, ok := c.index[key]; ok {
			continue
		}
		e := &entry{target: t}
		e.state.Store(&State{})
		c.entries = append(c.entries, e)
		c.index[key] = e
	}
	return c
}

func (c *Cache) lookup(t target.Target) (*entry, error) {
	e, ok := c.index[t.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, t)
	}
	return e, nil
}

// Update replaces the samples of t with a complete successful fetch and
// clears its stale flag. The last error is kept for diagnostics.
func (c *Cache) Update(t target.Target, samples []metric.Sample) error {
	e, err := c.lookup(t)
	if err != nil {
		return err
	}

	owned := make([]metric.Sample, len(samples))
	for i, s := range samples {
		owned[i] = s.Clone()
	}
	sortSamples(owned)

	prev := e.state.Load()
	e.state.Store(&State{
		Samples:     owned,
		LastSuccess: c.clock.Now(),
		LastError:   prev.LastError,
		LastErrorAt: prev.LastErrorAt,
		Stale:       false,
	})
	return nil
}

// UpdateFailure records a failed fetch of t. Previous samples are kept
// unchanged and the target is marked stale.
func (c *Cache) UpdateFailure(t target.Target, fetchErr error) error {
	e, err := c.lookup(t)
	if err != nil {
		return err
	}

	prev := e.state.Load()
	e.state.Store(&State{
		Samples:     prev.Samples,
		LastSuccess: prev.LastSuccess,
		LastError:   fetchErr,
		LastErrorAt: c.clock.Now(),
		Stale:       true,
	})
	return nil
}

// Get returns the current State of t.
func (c *Cache) Get(t target.Target) (*State, error) {
	e, err := c.lookup(t)
	if err != nil {
		return nil, err
	}
	return e.state.Load(), nil
}

// Entry is one target in a Snapshot.
type Entry struct {
	Target target.Target
	State  *State
}

// Snapshot is a consistent per-target view of the cache, ordered by
// target ID. Entries must be treated as read-only.
type Snapshot []Entry

// Snapshot returns the current State of every target.
func (c *Cache) Snapshot() Snapshot {
	out := make(Snapshot, len(c.entries))
	for i, e := range c.entries {
		out[i] = Entry{Target: e.target, State: e.state.Load()}
	}
	return out
}

// Targets returns the configured targets in snapshot order.
func (c *Cache) Targets() []target.Target {
	out := make([]target.Target, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.target
	}
	return out
}

// Summary counts targets by health.
type Summary struct {
	Healthy int
	Stale   int
	Pending int
}

// Summary returns the health counts of the current snapshot.
func (c *Cache) Summary() Summary {
	var s Summary
	for _, e := range c.entries {
		st := e.state.Load()
		switch {
		case st.Stale:
			s.Stale++
		case st.Pending():
			s.Pending++
		default:
			s.Healthy++
		}
	}
	return s
}

func sortSamples(samples []metric.Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].LabelString() < samples[j].LabelString()
	})
}
