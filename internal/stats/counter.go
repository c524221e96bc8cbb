/*
PURPOSE:
  Tallies string keys: result codes and duplicated operation/path pairs.

IMPLEMENTATION RULES:
  - Sorted output is by count descending, ties by key.
*/

package stats

import (
	"sort"

	"github.com/mfrisbey/scripts/internal/model"
)

// Counter maps a label to the number of times it was seen.
type Counter struct {
	counts map[string]int
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Inc increments the count for key.
func (c *Counter) Inc(key string) {
	c.counts[key]++
}

// Count returns the count for key.
func (c *Counter) Count(key string) int {
	return c.counts[key]
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.counts)
}

// Total returns the sum of all counts.
func (c *Counter) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Sorted returns all entries by descending count; ties are ordered by key.
func (c *Counter) Sorted() []model.CountStat {
	out := make([]model.CountStat, 0, len(c.counts))
	for k, n := range c.counts {
		out = append(out, model.CountStat{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Top returns at most n entries of Sorted.
func (c *Counter) Top(n int) []model.CountStat {
	all := c.Sorted()
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}
