package aggregation

import (
	"github.com/shopspring/decimal"
)

// Aggregator defines how two partial aggregates for the same group combine.
// Adapters may return the same group twice once values are normalized
// (e.g. "07" and "7" for an hour); Merge folds them together.
type Aggregator interface {
	// Initial returns the aggregate value for a single contributing row.
	Initial(incoming decimal.Decimal) decimal.Decimal

	// Apply folds an incoming value into an existing aggregate.
	Apply(current, incoming decimal.Decimal) decimal.Decimal
}

var one = decimal.NewFromInt(1)

// Operators is the registry of supported measure operators.
// avg merges as a sum because the mean is derived later from sum and count.
var Operators = map[string]Aggregator{
	OpCount: reducer{
		initial: func(decimal.Decimal) decimal.Decimal { return one },
		apply:   func(cur, _ decimal.Decimal) decimal.Decimal { return cur.Add(one) },
	},
	OpSum: reducer{apply: decimal.Decimal.Add},
	OpAvg: reducer{apply: decimal.Decimal.Add},
	OpMin: reducer{apply: func(cur, inc decimal.Decimal) decimal.Decimal { return decimal.Min(cur, inc) }},
	OpMax: reducer{apply: func(cur, inc decimal.Decimal) decimal.Decimal { return decimal.Max(cur, inc) }},
}

// ValidOperator reports whether op is a registered operator.
func ValidOperator(op string) bool {
	_, ok := Operators[op]
	return ok
}

// ValidMeasureOperator reports whether op can be used in a Measure.
// count is implicit on every row and is not a measure.
func ValidMeasureOperator(op string) bool {
	return op != OpCount && ValidOperator(op)
}

// Additive reports whether values of op can be summed into a grand total.
func Additive(op string) bool {
	return op == OpSum || op == OpAvg
}

// reducer adapts a pair of funcs to Aggregator. A nil initial keeps the
// incoming value.
type reducer struct {
	initial func(decimal.Decimal) decimal.Decimal
	apply   func(cur, inc decimal.Decimal) decimal.Decimal
}

func (r reducer) Initial(v decimal.Decimal) decimal.Decimal {
	if r.initial == nil {
		return v
	}
	return r.initial(v)
}

func (r reducer) Apply(cur, inc decimal.Decimal) decimal.Decimal { return r.apply(cur, inc) }
