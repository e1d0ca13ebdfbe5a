// Package aggregate holds the per-column accumulation state the profiler
// builds while scanning partitions, and the merge logic that folds partial
// states from parallel workers into one aggregate per column.
//
// Every accumulator here is mergeable: combining two states produced from
// disjoint row sets is equivalent to having scanned the union in one pass
// (exact for counts, histograms and numeric sums; within the sketch's error
// bound for distinct estimation). Merge is commutative and associative, so
// the engine may fold partial states in any order and grouping.
package aggregate

import (
	"sort"

	"tableprof/pkg/profile"
)

// DefaultHistogramMaxBins bounds how many distinct values the speculative
// histogram tracks exactly before giving up on the column.
const DefaultHistogramMaxBins = 120

// Histogram tracks exact per-value occurrence counts up to a bound on the
// number of distinct keys. Past the bound it flips to an overflowed state:
// new keys stop being tracked and the final profile reports the histogram as
// unavailable rather than exposing a truncated, misleading distribution.
//
// Keeping counts for already-tracked keys after overflow costs nothing and
// keeps Merge exact for the non-overflowed side.
type Histogram struct {
	counts     map[string]uint64
	maxBins    int
	overflowed bool
}

// NewHistogram returns a histogram bounded to maxBins distinct keys.
// A non-positive bound falls back to DefaultHistogramMaxBins.
func NewHistogram(maxBins int) *Histogram {
	if maxBins <= 0 {
		maxBins = DefaultHistogramMaxBins
	}
	return &Histogram{
		counts:  make(map[string]uint64),
		maxBins: maxBins,
	}
}

// Observe ingests one non-null raw value.
func (h *Histogram) Observe(v string) {
	if c, ok := h.counts[v]; ok {
		h.counts[v] = c + 1
		return
	}
	if h.overflowed || len(h.counts) >= h.maxBins {
		h.overflowed = true
		return
	}
	h.counts[v] = 1
}

// Overflowed reports whether the column exceeded the distinct-key bound.
func (h *Histogram) Overflowed() bool {
	return h.overflowed
}

// Merge unions other into h. If either side overflowed, or the union would
// exceed the bound, the merged histogram is overflowed.
func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	if other.overflowed {
		h.overflowed = true
	}

	for v, c := range other.counts {
		if cur, ok := h.counts[v]; ok {
			h.counts[v] = cur + c
			continue
		}
		if h.overflowed || len(h.counts) >= h.maxBins {
			h.overflowed = true
			continue
		}
		h.counts[v] = c
	}
}

// Entries finalizes the histogram into ordered profile entries. Ordering is
// by descending count with ties broken by ascending value, so report output
// is reproducible. nonNull is the column's non-null count, the denominator
// for ratios.
//
// Entries returns nil when the histogram overflowed or saw no values.
func (h *Histogram) Entries(nonNull uint64) []profile.HistogramEntry {
	if h.overflowed || len(h.counts) == 0 || nonNull == 0 {
		return nil
	}

	out := make([]profile.HistogramEntry, 0, len(h.counts))
	for v, c := range h.counts {
		out = append(out, profile.HistogramEntry{
			Value: v,
			Count: c,
			Ratio: float64(c) / float64(nonNull),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})

	return out
}
