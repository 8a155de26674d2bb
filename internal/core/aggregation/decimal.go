package aggregation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ToDecimal converts a scanned SQL value into an exact decimal.
// lib/pq returns NUMERIC columns as []byte, integer aggregates as int64 and
// double precision expressions as float64. NULL and unrecognized values
// report ok=false and a zero value.
func ToDecimal(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return val, true
	case []byte:
		return parseDecimal(string(val))
	case string:
		return parseDecimal(val)
	case float64:
		return decimal.NewFromFloat(val), true
	case float32:
		return decimal.NewFromFloat32(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case int32:
		return decimal.NewFromInt(int64(val)), true
	case bool:
		if val {
			return decimal.NewFromInt(1), true
		}
		return decimal.Zero, true
	}
	return decimal.Zero, false
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SafeDiv returns num/den, or zero when den is zero.
func SafeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// Percent returns 100*part/whole, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole)
}

var hundred = decimal.NewFromInt(100)
