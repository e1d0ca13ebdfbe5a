// Package sketch provides the bounded-memory approximate distinct counter
// used by the profiler. It wraps a HyperLogLog sketch: memory is fixed by the
// chosen precision and independent of how many values are ingested, and two
// sketches built from disjoint row sets merge into one representing the
// union, which is what makes per-partition profiling states foldable.
package sketch

import (
	"fmt"
	"math"

	"github.com/axiomhq/hyperloglog"
)

const (
	// DefaultStdError is the target relative standard error of the estimate
	// when the caller does not configure one. It maps to precision 12
	// (4096 registers, ~4KB per column).
	DefaultStdError = 0.02

	minPrecision = 4
	maxPrecision = 18
)

// Distinct estimates the number of distinct values inserted into it.
// Insert is idempotent-safe: re-inserting a value never inflates the
// estimate beyond the sketch's error bound.
type Distinct struct {
	sk        *hyperloglog.Sketch
	precision uint8
}

// New returns an estimator sized for the given relative standard-error
// target (e.g. 0.02 for ~2%). Targets outside the representable precision
// range clamp to the nearest bound.
func New(stdError float64) *Distinct {
	p := precisionFor(stdError)

	sk, err := hyperloglog.NewSketch(p, true)
	if err != nil {
		// Unreachable for a clamped precision; fall back to the library
		// default rather than failing the run.
		sk = hyperloglog.New()
		p = 14
	}

	return &Distinct{sk: sk, precision: p}
}

// precisionFor converts a standard-error target into a register-count
// precision using the HyperLogLog error formula err = 1.04/sqrt(2^p).
func precisionFor(stdError float64) uint8 {
	if stdError <= 0 {
		stdError = DefaultStdError
	}

	m := (1.04 / stdError) * (1.04 / stdError)
	p := int(math.Ceil(math.Log2(m)))

	if p < minPrecision {
		p = minPrecision
	}
	if p > maxPrecision {
		p = maxPrecision
	}
	return uint8(p)
}

// StdError returns the theoretical relative standard error of this
// estimator's configuration.
func (d *Distinct) StdError() float64 {
	return 1.04 / math.Sqrt(float64(uint64(1)<<d.precision))
}

// Insert ingests one raw value.
func (d *Distinct) Insert(v string) {
	d.sk.Insert([]byte(v))
}

// Estimate reports the approximate number of distinct values inserted.
func (d *Distinct) Estimate() uint64 {
	return d.sk.Estimate()
}

// Merge folds other into d so that d estimates the cardinality of the union
// of both input sets. Both estimators must share the same precision, which
// holds for any pair created from the same run configuration.
func (d *Distinct) Merge(other *Distinct) error {
	if other == nil {
		return nil
	}
	if other.precision != d.precision {
		return fmt.Errorf("merge distinct sketches: precision mismatch %d != %d", other.precision, d.precision)
	}
	if err := d.sk.Merge(other.sk); err != nil {
		return fmt.Errorf("merge distinct sketches: %w", err)
	}
	return nil
}
