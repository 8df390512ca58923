// Package format renders parameter values and dates the way the dashboard
// displays them.
package format

import (
	"math"
	"strconv"
	"strings"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/shopspring/decimal"
)

// NotANumber is displayed in place of values that cannot be parsed
const NotANumber = "--"

const (
	exponentialLowerBound = 1e-2
	exponentialUpperBound = 9999
	exponentialDigits     = 2

	// fractional digits kept from the binary value before rounding
	exactBinaryExponent = -30
)

// DecimalsForUnit returns the number of decimals displayed for a unit
func DecimalsForUnit(unit domain.Unit) int {
	switch unit {
	case domain.UnitPercent, domain.UnitMinute:
		return 0
	case domain.UnitGram, domain.UnitKilogram, domain.UnitInsulinUnit,
		domain.UnitMmolPerLiter, domain.UnitMilligramPerDeciliter:
		return 1
	case domain.UnitInsulinUnitPerGram:
		return 3
	default:
		return 2
	}
}

// ParameterValue formats a parameter value with the precision of its unit.
// Text containing a '.' is read as a float, other text as an integer.
// Magnitudes below 1e-2 or above 9999 use exponential notation, zero
// included. Fixed-point output rounds the exact binary value half away from
// zero, so 1.005 with two decimals is 1.00. Infinities render as NotANumber.
func ParameterValue(value domain.NumericInput, unit domain.Unit) string {
	v, ok := toNumber(value)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return NotANumber
	}

	decimals := DecimalsForUnit(unit)
	if decimals == 0 && v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	abs := math.Abs(v)
	if abs < exponentialLowerBound || abs > exponentialUpperBound {
		return exponential(v)
	}
	return decimal.NewFromFloatWithExponent(v, exactBinaryExponent).StringFixed(int32(decimals))
}

func toNumber(value domain.NumericInput) (float64, bool) {
	if !value.IsText() {
		return value.Number(), true
	}

	s := strings.TrimSpace(value.Text())
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	return float64(i), err == nil
}

// exponential renders v like 1.23e+4: two decimals, no zero-padded exponent
func exponential(v float64) string {
	s := strconv.FormatFloat(v, 'e', exponentialDigits, 64)
	mantissa, exp, found := strings.Cut(s, "e")
	if !found || len(exp) < 2 {
		return s
	}
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}
