package parse

import (
	"testing"

	"tableprof/pkg/profile"
)

// TestDetect verifies the fixed first-match-wins detection order.
//
// This function is correctness-critical: every downstream statistic (type
// tally, numeric stats eligibility) is keyed off the kind it returns, and
// malformed numeric-looking input must degrade to string, never error.
func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Kind
	}{
		{"plain integer", "42", KindInteger},
		{"negative integer", "-7", KindInteger},
		{"explicit plus", "+3", KindInteger},
		{"leading zeros", "007", KindInteger},
		{"fractional", "13.0", KindFractional},
		{"negative fractional", "-0.5", KindFractional},
		{"bare point mantissa", ".5", KindFractional},
		{"trailing point", "5.", KindFractional},
		{"exponent", "1e3", KindFractional},
		{"signed exponent", "2.5E-2", KindFractional},
		{"int64 overflow reads fractional", "9223372036854775808", KindFractional},
		{"bool true", "true", KindBoolean},
		{"bool mixed case", "TrUe", KindBoolean},
		{"bool false upper", "FALSE", KindBoolean},
		{"plain text", "IN_TRANSIT", KindString},
		{"double decimal point", "1.2.3", KindString},
		{"double sign", "--4", KindString},
		{"sign only", "-", KindString},
		{"empty exponent", "1e", KindString},
		{"inf is a string", "inf", KindString},
		{"nan is a string", "NaN", KindString},
		{"hex float is a string", "0x1p3", KindString},
		{"loose bool is not bool", "yes", KindString},
		{"numeric one is integer", "1", KindInteger},
		{"internal space", "1 2", KindString},
		{"empty value", "", KindString},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Detect(tt.in); got != tt.want {
				t.Fatalf("Detect(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		ok   bool
		want float64
	}{
		{"integer", "20", true, 20},
		{"fractional", "13.0", true, 13},
		{"exponent", "1e2", true, 100},
		{"bool is not numeric", "true", false, 0},
		{"text is not numeric", "DELAYED", false, 0},
		{"inf rejected", "inf", false, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Float(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Float(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// TestDominant verifies column-level type resolution from tallies, including
// the documented zero-non-null edge case (resolves to string).
func TestDominant(t *testing.T) {
	t.Parallel()

	tally := func(ints, fracs, bools, strs uint64) [NumKinds]uint64 {
		var tl [NumKinds]uint64
		tl[KindInteger] = ints
		tl[KindFractional] = fracs
		tl[KindBoolean] = bools
		tl[KindString] = strs
		return tl
	}

	tests := []struct {
		name string
		tl   [NumKinds]uint64
		want profile.DataType
	}{
		{"all integer", tally(5, 0, 0, 0), profile.IntegerType},
		{"all fractional", tally(0, 5, 0, 0), profile.FractionalType},
		{"mixed numeric widens to fractional", tally(3, 3, 0, 0), profile.FractionalType},
		{"all boolean", tally(0, 0, 5, 0), profile.BooleanType},
		{"boolean mixed with integer is string", tally(1, 0, 4, 0), profile.StringType},
		{"one string poisons numerics", tally(4, 4, 0, 1), profile.StringType},
		{"all string", tally(0, 0, 0, 9), profile.StringType},
		{"no non-null values defaults to string", tally(0, 0, 0, 0), profile.StringType},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Dominant(tt.tl); got != tt.want {
				t.Fatalf("Dominant(%v) = %s, want %s", tt.tl, got, tt.want)
			}
		})
	}
}
