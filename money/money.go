/*
Package money provides the numeric primitives shared by every calculation engine.

PURPOSE:
  Report aggregation is forgiving by nature: one malformed price string must
  not blank an entire sales report. This package is the single boundary where
  raw numbers become decimal.Decimal values, and where bad input is coerced
  to zero instead of propagating.

KEY CONCEPTS:
  - Parse / FromFloat: lenient constructors (malformed, NaN, Inf -> 0)
  - Round: rounding to the currency minor unit (Scale = 2)
  - ClampZero: floors a value at zero (discounted prices never go negative)
  - Sum: folds any number of values
  - Lenient: JSON amount that accepts numbers, numeric strings and garbage

PRECISION:
  All money is decimal.Decimal. Float64 only appears at the parsing edge.

USAGE:
  price := money.Parse("12.50")
  bad := money.Parse("12,5O")          // decimal.Zero
  net := money.ClampZero(price.Sub(money.Parse("20")))

SEE ALSO:
  - allocation/allocator.go: session discount redistribution
  - closure/closure.go: cash drawer reconciliation
*/
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits in the base currency unit.
const Scale int32 = 2

// Hundred is used for percentage arithmetic.
var Hundred = decimal.NewFromInt(100)

// =============================================================================
// CONSTRUCTORS - lenient at the boundary
// =============================================================================

// Parse converts a string to a decimal. Malformed input yields zero.
// Surrounding whitespace is ignored and a single decimal comma is accepted.
func Parse(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err == nil {
		return d
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		if d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1)); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// FromFloat converts a float64, mapping NaN and ±Inf to zero.
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// FromInt is a shorthand for whole amounts.
func FromInt(i int64) decimal.Decimal {
	return decimal.NewFromInt(i)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Round rounds half away from zero to the currency minor unit.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// ClampZero returns d, or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Sum adds all values. An empty call returns zero.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Percent returns d × pct / 100.
func Percent(d, pct decimal.Decimal) decimal.Decimal {
	return d.Mul(pct).Div(Hundred)
}

// ApproxEqual reports whether a and b differ by less than tolerance.
func ApproxEqual(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(tolerance)
}
