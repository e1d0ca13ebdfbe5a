// Package profile defines the immutable result model produced by a profiling
// run. It is the only package downstream consumers (CLIs, notebooks, report
// generators) need to import.
package profile

import (
	"encoding/json"
	"strings"
	"time"
)

// DataType is the resolved logical type of a column: the most specific type
// that every non-null value in the column satisfies.
type DataType uint8

const (
	UnknownType DataType = iota
	StringType
	IntegerType
	FractionalType
	BooleanType
)

func (t DataType) String() string {
	switch t {
	case StringType:
		return "string"
	case IntegerType:
		return "integer"
	case FractionalType:
		return "fractional"
	case BooleanType:
		return "boolean"
	}
	return "unknown"
}

// IsNumeric reports whether values of this type carry numeric statistics.
func (t DataType) IsNumeric() bool {
	return t == IntegerType || t == FractionalType
}

func (t DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *DataType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	switch strings.ToLower(s) {
	case "string":
		*t = StringType
	case "integer":
		*t = IntegerType
	case "fractional":
		*t = FractionalType
	case "boolean":
		*t = BooleanType
	default:
		*t = UnknownType
	}

	return nil
}

// HistogramEntry is one exact value count for a low-cardinality column.
type HistogramEntry struct {
	// Value is the raw (pre-parse) cell text.
	Value string `json:"value"`

	// Count is the number of non-null occurrences of Value.
	Count uint64 `json:"count"`

	// Ratio is Count divided by the column's non-null count.
	Ratio float64 `json:"ratio"`
}

// NumericProfile carries descriptive statistics over the numerically parsed
// values of a column. Present only when the column's resolved type is numeric
// and at least one value parsed.
type NumericProfile struct {
	Minimum float64 `json:"minimum"`
	Maximum float64 `json:"maximum"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`

	// Count and Sum are retained for auditability: they let a consumer verify
	// the derived mean without re-reading the data.
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
}

// Profile is the immutable per-column result of a profiling run.
type Profile struct {
	// Column is the (lower-cased) column name.
	Column string `json:"column"`

	// TotalCount is the number of rows seen for this column, nulls included.
	TotalCount uint64 `json:"total_count"`

	// NonNullCount is the number of non-null values seen.
	NonNullCount uint64 `json:"non_null_count"`

	// Completeness is NonNullCount/TotalCount, in [0,1]. A column with no
	// rows reports 0, never NaN.
	Completeness float64 `json:"completeness"`

	// ApproxDistinct is the estimated number of distinct non-null values.
	// The estimate carries the relative error bound of the configured sketch
	// precision; it is not exact for high-cardinality columns.
	ApproxDistinct uint64 `json:"approx_distinct"`

	// DataType is the dominant type of the column. A column with zero
	// non-null values resolves to "string".
	DataType DataType `json:"data_type"`

	// Histogram holds exact value counts ordered by descending count (ties
	// broken by ascending value). It is absent, not truncated, when the
	// column's distinct-value count exceeded the configured bound.
	Histogram []HistogramEntry `json:"histogram,omitempty"`

	// HistogramOverflowed reports that a histogram was attempted but the
	// column exceeded the bound. Distinguishes "unavailable" from "disabled".
	HistogramOverflowed bool `json:"histogram_overflowed,omitempty"`

	// Numeric is present when DataType is numeric and at least one value
	// parsed numerically.
	Numeric *NumericProfile `json:"numeric,omitempty"`
}

// Report is the result of one profiling run: the per-column Profiles plus run
// metadata. Columns maps lower-cased column name to its Profile.
type Report struct {
	Columns map[string]*Profile `json:"columns"`

	// RowCount is the total number of rows scanned.
	RowCount uint64 `json:"row_count"`

	// Passes is the number of full traversals of the dataset the scheduler
	// used. The engine computes every statistic speculatively in one pass,
	// so this is always 1 today; it is recorded so consumers and tests do
	// not have to assume it.
	Passes int `json:"passes"`

	// Partitions is the number of partitions that were scanned and merged.
	Partitions int `json:"partitions"`

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// NewReport returns an empty report with an initialized column map.
func NewReport() *Report {
	return &Report{Columns: make(map[string]*Profile)}
}
