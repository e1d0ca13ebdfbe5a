// Package parse interprets raw cell text as one of a small set of logical
// kinds. Detection is a pure function over the input string: it never
// allocates per call, never fails, and is safe for concurrent use, which lets
// partition workers share nothing while scanning.
package parse

import (
	"strconv"
	"strings"
)

// Kind is the per-value interpretation of a single cell.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindFractional
	KindBoolean
	KindString

	// NumKinds is the size of a dense tally array indexed by Kind.
	NumKinds = int(KindString) + 1
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFractional:
		return "fractional"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	}
	return "unknown"
}

// Detect classifies a non-null raw value. Rules are tried in a fixed order
// and the first match wins:
//
//  1. integer lexeme that round-trips through int64
//  2. fractional lexeme (digits, optional point, optional exponent)
//  3. boolean literal ("true"/"false", case-insensitive)
//  4. anything else is a string
//
// Malformed numeric-looking input ("1.2.3", "--4") falls through to string
// rather than erroring; per-value anomalies are absorbed into the tally.
func Detect(v string) Kind {
	if isIntegerLexeme(v) {
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			return KindInteger
		}
		// Digit strings outside int64 still parse as floats below.
	}

	if isFractionalLexeme(v) {
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return KindFractional
		}
	}

	if _, ok := ParseBool(v); ok {
		return KindBoolean
	}

	return KindString
}

// ParseBool matches the fixed boolean vocabulary: "true" and "false",
// case-insensitive. Looser encodings ("1", "yes") intentionally do not
// qualify; they read as integers or strings.
func ParseBool(v string) (bool, bool) {
	if strings.EqualFold(v, "true") {
		return true, true
	}
	if strings.EqualFold(v, "false") {
		return false, true
	}
	return false, false
}

// Float parses a value of integer or fractional kind to float64 for numeric
// aggregation. ok is false for values of any other kind.
func Float(v string) (float64, bool) {
	if !isIntegerLexeme(v) && !isFractionalLexeme(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// isIntegerLexeme reports whether v matches: [+-]? digit+
func isIntegerLexeme(v string) bool {
	if v == "" {
		return false
	}
	i := 0
	if v[0] == '+' || v[0] == '-' {
		i++
	}
	if i == len(v) {
		return false
	}
	for ; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}

// isFractionalLexeme reports whether v matches:
//
//	[+-]? digit* ('.' digit*)? ([eE] [+-]? digit+)?
//
// with at least one digit in the mantissa. This is deliberately narrower than
// strconv.ParseFloat, which also accepts "inf", "nan" and hex floats; those
// spellings read as strings here.
func isFractionalLexeme(v string) bool {
	if v == "" {
		return false
	}
	i := 0
	if v[0] == '+' || v[0] == '-' {
		i++
	}

	digits := 0
	for i < len(v) && v[i] >= '0' && v[i] <= '9' {
		digits++
		i++
	}
	if i < len(v) && v[i] == '.' {
		i++
		for i < len(v) && v[i] >= '0' && v[i] <= '9' {
			digits++
			i++
		}
	}
	if digits == 0 {
		return false
	}

	if i < len(v) && (v[i] == 'e' || v[i] == 'E') {
		i++
		if i < len(v) && (v[i] == '+' || v[i] == '-') {
			i++
		}
		if i == len(v) {
			return false
		}
		for i < len(v) && v[i] >= '0' && v[i] <= '9' {
			i++
		}
	}

	return i == len(v)
}
