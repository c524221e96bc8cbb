/*
PURPOSE:
  Per-label runtime totals, means and t-digest percentiles.

IMPLEMENTATION RULES:
  - Means depend only on the multiset of runtimes, not their order.
*/

package stats

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/mfrisbey/scripts/internal/model"
)

// digestCompression bounds each label's digest to roughly 100 centroids.
const digestCompression = 100

type runtimeEntry struct {
	total  time.Duration
	count  int
	digest *tdigest.TDigest
}

// RuntimeAccumulator sums runtimes per operation label.
type RuntimeAccumulator struct {
	entries   map[string]*runtimeEntry
	quantiles []float64
}

// NewRuntimeAccumulator returns an empty accumulator that also tracks the
// given quantiles (each in (0,1)) per label.
func NewRuntimeAccumulator(quantiles []float64) *RuntimeAccumulator {
	return &RuntimeAccumulator{
		entries:   make(map[string]*runtimeEntry),
		quantiles: quantiles,
	}
}

// Add folds one runtime into label's totals.
func (r *RuntimeAccumulator) Add(label string, d time.Duration) {
	e, ok := r.entries[label]
	if !ok {
		e = &runtimeEntry{}
		if len(r.quantiles) > 0 {
			e.digest = tdigest.NewWithCompression(digestCompression)
		}
		r.entries[label] = e
	}
	e.total += d
	e.count++
	if e.digest != nil {
		e.digest.Add(durationMs(d), 1)
	}
}

// Count returns the number of runtimes folded into label.
func (r *RuntimeAccumulator) Count(label string) int {
	if e, ok := r.entries[label]; ok {
		return e.count
	}
	return 0
}

// Total returns the summed runtime of label.
func (r *RuntimeAccumulator) Total(label string) time.Duration {
	if e, ok := r.entries[label]; ok {
		return e.total
	}
	return 0
}

// Mean returns total/count for label, or false when label was never seen.
func (r *RuntimeAccumulator) Mean(label string) (time.Duration, bool) {
	e, ok := r.entries[label]
	if !ok || e.count == 0 {
		return 0, false
	}
	return e.total / time.Duration(e.count), true
}

// Len returns the number of labels.
func (r *RuntimeAccumulator) Len() int {
	return len(r.entries)
}

// ByMean returns per-label stats ordered by descending mean runtime.
func (r *RuntimeAccumulator) ByMean() []model.LabelStat {
	out := r.stats()
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanMs != out[j].MeanMs {
			return out[i].MeanMs > out[j].MeanMs
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// ByCount returns per-label stats ordered by descending count.
func (r *RuntimeAccumulator) ByCount() []model.LabelStat {
	out := r.stats()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func (r *RuntimeAccumulator) stats() []model.LabelStat {
	out := make([]model.LabelStat, 0, len(r.entries))
	for label, e := range r.entries {
		s := model.LabelStat{
			Label:  label,
			Count:  e.count,
			MeanMs: int64(math.Round(durationMs(e.total) / float64(e.count))),
		}
		if e.digest != nil {
			s.Percentiles = make(map[string]float64, len(r.quantiles))
			for _, q := range r.quantiles {
				s.Percentiles[QuantileLabel(q)] = e.digest.Quantile(q)
			}
		}
		out = append(out, s)
	}
	return out
}

// QuantileLabel names a quantile the way reports print it, e.g. 0.95 -> "p95".
func QuantileLabel(q float64) string {
	return "p" + strconv.FormatFloat(math.Round(q*1e6)/1e4, 'f', -1, 64)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
