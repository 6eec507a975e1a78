// Package money holds the 2-place rounding rule shared by every monetary field.
package money

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places kept after every mutation.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to 2 places (10.005 -> 10.01).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Must parses a literal such as "10000.00". It panics on bad input and is meant for constants.
func Must(s string) decimal.Decimal {
	return Round(decimal.RequireFromString(s))
}

// FromFloat converts a float, replacing NaN and infinities with def.
func FromFloat(f float64, def decimal.Decimal) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return Round(decimal.NewFromFloat(f))
}

// Parse converts a string, replacing anything unparsable with def.
func Parse(s string, def decimal.Decimal) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return FromFloat(f, def)
	}
	return Round(d)
}

// Sanitize converts a loosely typed stored value (JSON number, string, nil) into money.
func Sanitize(v any, def decimal.Decimal) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return def
	case decimal.Decimal:
		return Round(x)
	case float64:
		return FromFloat(x, def)
	case float32:
		return FromFloat(float64(x), def)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case json.Number:
		return Parse(x.String(), def)
	case string:
		return Parse(x, def)
	default:
		return def
	}
}

// Float returns d as a float64 for legacy documents that store plain numbers.
func Float(d decimal.Decimal) float64 {
	f, _ := Round(d).Float64()
	return f
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Percent returns amount * pct / 100, rounded.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// String formats with exactly 2 places.
func String(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
