/*
PURPOSE:
  Bandwidth samples of large transfers: mean rate and lowest rates seen.

REQUIREMENTS:
  User-specified:
  - Rate = round(bytes / ms); display as round(rate * 1000 / 1024) KB/s.
  - No samples means unavailable, never a division by zero.
*/

package stats

import (
	"math"
	"strings"

	"github.com/mfrisbey/scripts/internal/model"
)

// BandwidthSampler collects transfer rates (bytes per millisecond) of large,
// non-listing transfers and keeps the slowest ones.
type BandwidthSampler struct {
	threshold int64
	marker    string
	samples   []float64
	lowest    *TopK[model.Operation]
}

// NewBandwidthSampler returns a sampler that accepts transfers of at least
// threshold bytes whose path does not contain marker.
func NewBandwidthSampler(threshold int64, marker string, capacity int, policy Policy) *BandwidthSampler {
	return &BandwidthSampler{
		threshold: threshold,
		marker:    marker,
		lowest:    NewTopK[model.Operation](capacity, Lowest, policy),
	}
}

// Eligible reports whether a transfer of size bytes at path is sampled.
func (b *BandwidthSampler) Eligible(path string, size int64) bool {
	if size < b.threshold {
		return false
	}
	return b.marker == "" || !strings.Contains(path, b.marker)
}

// Offer samples a completed transfer of size bytes. It returns the rate and
// whether it was recorded. Zero-length runtimes carry no usable rate.
func (b *BandwidthSampler) Offer(op model.Operation, size int64) (float64, bool) {
	if !b.Eligible(op.Path, size) {
		return 0, false
	}
	ms := op.RuntimeMs()
	if ms <= 0 {
		return 0, false
	}
	rate := math.Round(float64(size) / ms)
	b.samples = append(b.samples, rate)
	b.lowest.Add(op, rate)
	return rate, true
}

// Count returns the number of samples.
func (b *BandwidthSampler) Count() int {
	return len(b.samples)
}

// Mean returns the mean rate in bytes/ms, or false without samples.
func (b *BandwidthSampler) Mean() (float64, bool) {
	if len(b.samples) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, s := range b.samples {
		sum += s
	}
	return sum / float64(len(b.samples)), true
}

// MeanKBps returns the mean rate in KiB/s, or false without samples.
func (b *BandwidthSampler) MeanKBps() (int64, bool) {
	mean, ok := b.Mean()
	if !ok {
		return 0, false
	}
	return ToKBps(mean), true
}

// Lowest returns the slowest retained transfers, ascending by rate.
func (b *BandwidthSampler) Lowest() []Entry[model.Operation] {
	return b.lowest.Sorted()
}

// Summary renders the sampler for reports.
func (b *BandwidthSampler) Summary() model.BandwidthSummary {
	s := model.BandwidthSummary{
		Samples:   len(b.samples),
		Threshold: b.threshold,
		Lowest:    make([]model.Ranked, 0, b.lowest.Len()),
	}
	s.MeanKBps, s.Available = b.MeanKBps()
	for _, e := range b.Lowest() {
		s.Lowest = append(s.Lowest, model.Ranked{Operation: e.Item, Metric: e.Metric})
	}
	return s
}

// ToKBps converts bytes/ms to rounded KiB/s.
func ToKBps(bytesPerMs float64) int64 {
	return int64(math.Round(bytesPerMs * 1000 / 1024))
}
