/*
PURPOSE:
  Bounded tracker of the most extreme samples by a metric.

REQUIREMENTS:
  User-specified:
  - Append until full, then at most one replacement per insertion.
  - Never exceeds its capacity; sorted only when read.

  Implementation-discovered:
  - Two replacement policies: largest positive delta, or the last entry
    the new sample beats.
*/

package stats

import (
	"fmt"
	"sort"
)

// Order selects which extreme a TopK retains.
type Order int

const (
	Highest Order = iota
	Lowest
)

// Policy selects which retained entry a new sample replaces once full.
type Policy int

const (
	// PolicyBestDelta replaces the entry the new sample beats by the widest margin.
	PolicyBestDelta Policy = iota
	// PolicyLastExceeded replaces the last entry (in slot order) the new sample beats.
	// It can keep a weaker set than PolicyBestDelta depending on insertion order.
	PolicyLastExceeded
)

// ParsePolicy maps a configuration name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "best-delta":
		return PolicyBestDelta, nil
	case "last-exceeded":
		return PolicyLastExceeded, nil
	default:
		return 0, fmt.Errorf("unknown top-k policy %q", name)
	}
}

func (p Policy) String() string {
	if p == PolicyLastExceeded {
		return "last-exceeded"
	}
	return "best-delta"
}

// Entry is one retained sample.
type Entry[T any] struct {
	Item   T
	Metric float64
}

// TopK keeps at most capacity samples of the most extreme metrics seen.
// Entries are only ever replaced in place after the first capacity inserts,
// and are unordered until Sorted is called.
type TopK[T any] struct {
	capacity int
	order    Order
	policy   Policy
	entries  []Entry[T]
}

// NewTopK returns an empty tracker.
func NewTopK[T any](capacity int, order Order, policy Policy) *TopK[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &TopK[T]{
		capacity: capacity,
		order:    order,
		policy:   policy,
		entries:  make([]Entry[T], 0, capacity),
	}
}

// Add offers a sample and reports whether it was retained.
func (t *TopK[T]) Add(item T, metric float64) bool {
	if t.capacity == 0 {
		return false
	}
	if len(t.entries) < t.capacity {
		t.entries = append(t.entries, Entry[T]{Item: item, Metric: metric})
		return true
	}

	best := 0.0
	swap := -1
	for i, e := range t.entries {
		delta := metric - e.Metric
		if t.order == Lowest {
			delta = -delta
		}
		if delta > best {
			swap = i
			if t.policy == PolicyBestDelta {
				best = delta
			}
		}
	}
	if swap < 0 {
		return false
	}
	t.entries[swap] = Entry[T]{Item: item, Metric: metric}
	return true
}

// Len returns the number of retained entries.
func (t *TopK[T]) Len() int {
	return len(t.entries)
}

// Cap returns the configured capacity.
func (t *TopK[T]) Cap() int {
	return t.capacity
}

// Sorted returns a copy of the entries, descending for Highest and ascending for Lowest.
func (t *TopK[T]) Sorted() []Entry[T] {
	out := make([]Entry[T], len(t.entries))
	copy(out, t.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if t.order == Lowest {
			return out[i].Metric < out[j].Metric
		}
		return out[i].Metric > out[j].Metric
	})
	return out
}
