package parse

import "tableprof/pkg/profile"

// Dominant resolves a column-level data type from a per-value kind tally.
// The result is the most specific type every non-null value satisfies, under
// the order string > fractional > integer > boolean, where integers also
// satisfy fractional:
//
//   - all values boolean            -> boolean
//   - all values integer            -> integer
//   - all values integer/fractional -> fractional (at least one fractional)
//   - anything else                 -> string
//
// A column with zero non-null values resolves to string; callers surface the
// degenerate case through completeness, not the type.
//
// The resolution depends only on the tally, never on row order, so it is
// stable under any partitioning.
func Dominant(tally [NumKinds]uint64) profile.DataType {
	nonNull := tally[KindInteger] + tally[KindFractional] + tally[KindBoolean] + tally[KindString]
	if nonNull == 0 {
		return profile.StringType
	}

	if tally[KindBoolean] == nonNull {
		return profile.BooleanType
	}

	if tally[KindString] == 0 && tally[KindBoolean] == 0 {
		if tally[KindFractional] > 0 {
			return profile.FractionalType
		}
		return profile.IntegerType
	}

	return profile.StringType
}
