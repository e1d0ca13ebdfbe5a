package aggregate

import (
	"math"

	"tableprof/pkg/profile"
)

// NumericStats is a streaming accumulator over the numerically parsed values
// of a column: count, sum, sum of squares, min, max. Mean and standard
// deviation derive from the sums at finalization, so two accumulators over
// disjoint rows merge exactly by adding their components.
//
// Floating-point summation order varies with partitioning, so the low bits
// of sum/sumSquares (and hence mean/stdDev) can differ across runs with
// different partition counts. That variance is inherent to parallel float
// summation, not a merge bug.
type NumericStats struct {
	count      uint64
	sum        float64
	sumSquares float64
	min        float64
	max        float64
}

// Observe ingests one numeric value.
func (s *NumericStats) Observe(f float64) {
	if s.count == 0 {
		s.min = f
		s.max = f
	} else {
		if f < s.min {
			s.min = f
		}
		if f > s.max {
			s.max = f
		}
	}
	s.count++
	s.sum += f
	s.sumSquares += f * f
}

// Count reports how many values were ingested.
func (s *NumericStats) Count() uint64 {
	return s.count
}

// Merge folds other into s.
func (s *NumericStats) Merge(other *NumericStats) {
	if other == nil || other.count == 0 {
		return
	}
	if s.count == 0 {
		*s = *other
		return
	}
	if other.min < s.min {
		s.min = other.min
	}
	if other.max > s.max {
		s.max = other.max
	}
	s.count += other.count
	s.sum += other.sum
	s.sumSquares += other.sumSquares
}

// Finalize derives the numeric profile. It returns nil when no values were
// ingested: an absent profile is the explicit "undefined" sentinel, never a
// NaN-filled one.
func (s *NumericStats) Finalize() *profile.NumericProfile {
	if s.count == 0 {
		return nil
	}

	n := float64(s.count)
	mean := s.sum / n

	// Population variance via the sum-of-squares identity. Cancellation can
	// push it a hair below zero for near-constant columns; clamp instead of
	// propagating a NaN out of Sqrt.
	variance := s.sumSquares/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	return &profile.NumericProfile{
		Minimum: s.min,
		Maximum: s.max,
		Mean:    mean,
		StdDev:  math.Sqrt(variance),
		Count:   s.count,
		Sum:     s.sum,
	}
}
