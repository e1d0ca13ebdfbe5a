package aggregate

import (
	"fmt"

	"tableprof/internal/parse"
	"tableprof/internal/sketch"
	"tableprof/pkg/profile"
)

// Options configure the accumulators a ColumnState carries.
type Options struct {
	// HistogramMaxBins bounds the speculative exact histogram. Zero means
	// DefaultHistogramMaxBins; negative disables the histogram entirely.
	HistogramMaxBins int

	// DistinctStdError is the relative standard-error target for the
	// distinct-count sketch. Zero means sketch.DefaultStdError.
	DistinctStdError float64
}

// ColumnState is the per-column, per-partition aggregation state: the unit
// of parallel merge. A state is mutated only by the scan of its own
// partition; afterward states are folded pairwise with Merge and consumed
// exactly once by Finalize.
type ColumnState struct {
	Column string

	Total   uint64
	NonNull uint64

	tally    [parse.NumKinds]uint64
	distinct *sketch.Distinct
	hist     *Histogram
	numeric  NumericStats
}

// NewColumnState returns an empty state for one column.
func NewColumnState(column string, opt Options) *ColumnState {
	s := &ColumnState{
		Column:   column,
		distinct: sketch.New(opt.DistinctStdError),
	}
	if opt.HistogramMaxBins >= 0 {
		s.hist = NewHistogram(opt.HistogramMaxBins)
	}
	return s
}

// ObserveNull records a row where this column's value is absent. Rows where
// the column itself is missing from the partition count the same way.
func (s *ColumnState) ObserveNull() {
	s.Total++
	s.tally[parse.KindNull]++
}

// Observe records one present raw value: it is classified, tallied, fed to
// the distinct sketch and the speculative histogram, and, when it parses
// numerically, to the numeric accumulator. Values that fail numeric parsing
// in an otherwise numeric column are simply excluded from the numeric view;
// nothing here ever errors on data.
func (s *ColumnState) Observe(raw string) {
	s.Total++
	s.NonNull++

	kind := parse.Detect(raw)
	s.tally[kind]++

	s.distinct.Insert(raw)
	if s.hist != nil {
		s.hist.Observe(raw)
	}

	if kind == parse.KindInteger || kind == parse.KindFractional {
		if f, ok := parse.Float(raw); ok {
			s.numeric.Observe(f)
		}
	}
}

// Merge folds other into s. Both states must describe the same column and
// come from disjoint row sets. The fold is commutative and associative, so
// the engine may combine partials in any order or grouping.
func (s *ColumnState) Merge(other *ColumnState) error {
	if other == nil {
		return nil
	}
	if other.Column != s.Column {
		return fmt.Errorf("merge column state: column mismatch %q != %q", other.Column, s.Column)
	}

	s.Total += other.Total
	s.NonNull += other.NonNull
	for k := range s.tally {
		s.tally[k] += other.tally[k]
	}

	if err := s.distinct.Merge(other.distinct); err != nil {
		return fmt.Errorf("column %q: %w", s.Column, err)
	}

	switch {
	case s.hist == nil:
		// Histogram disabled for this column; nothing to fold.
	case other.hist == nil:
		// The other side never tracked one; treat as overflowed so we do
		// not report a distribution built from a subset of partitions.
		s.hist.overflowed = true
	default:
		s.hist.Merge(other.hist)
	}

	s.numeric.Merge(&other.numeric)
	return nil
}

// Finalize consumes the fully merged state and builds the immutable Profile.
// Degenerate states (no rows, or all nulls) produce a Profile with
// completeness 0 and all optional sections absent.
func (s *ColumnState) Finalize() *profile.Profile {
	p := &profile.Profile{
		Column:       s.Column,
		TotalCount:   s.Total,
		NonNullCount: s.NonNull,
		DataType:     parse.Dominant(s.tally),
	}

	if s.Total > 0 {
		p.Completeness = float64(s.NonNull) / float64(s.Total)
	}

	if s.NonNull == 0 {
		return p
	}

	p.ApproxDistinct = s.distinct.Estimate()

	if s.hist != nil {
		p.HistogramOverflowed = s.hist.Overflowed()
		p.Histogram = s.hist.Entries(s.NonNull)
	}

	if p.DataType.IsNumeric() {
		p.Numeric = s.numeric.Finalize()
	}

	return p
}
