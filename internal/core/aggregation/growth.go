package aggregation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Growth compares a value across two adjacent windows.
// When Previous is zero the rate is undefined: Rate is nil and Undefined is set.
type Growth struct {
	Current   decimal.Decimal  `json:"current"`
	Previous  decimal.Decimal  `json:"previous"`
	Rate      *decimal.Decimal `json:"rate"`
	Undefined bool             `json:"undefined_growth,omitempty"`
}

// GrowthRate computes (current - previous) / previous.
func GrowthRate(current, previous decimal.Decimal) Growth {
	g := Growth{Current: current, Previous: previous}
	if previous.IsZero() {
		g.Undefined = true
		return g
	}
	rate := current.Sub(previous).Div(previous)
	g.Rate = &rate
	return g
}

// Percent returns the rate as a percentage, nil when undefined.
func (g Growth) Percent() *decimal.Decimal {
	if g.Rate == nil {
		return nil
	}
	pct := g.Rate.Mul(hundred).Round(2)
	return &pct
}

// Above reports whether the rate is defined and strictly greater than threshold.
func (g Growth) Above(threshold decimal.Decimal) bool {
	return g.Rate != nil && g.Rate.GreaterThan(threshold)
}

// RowGrowth is the growth of one group between two windows.
type RowGrowth struct {
	GroupKey []string `json:"group_key"`
	Growth   Growth   `json:"growth"`
}

// CompareRows matches current rows to previous rows by group key and computes
// growth of measure (or "count"). Groups missing from previous compare against
// zero; groups only present in previous are reported with a zero current value.
// Output follows the order of current, then the previous-only groups.
func CompareRows(current, previous []AggregateRow, measure string) []RowGrowth {
	prevByKey := make(map[string]AggregateRow, len(previous))
	for _, row := range previous {
		prevByKey[joinKey(row.GroupKey)] = row
	}

	out := make([]RowGrowth, 0, len(current))
	matched := make(map[string]bool, len(current))
	for _, row := range current {
		key := joinKey(row.GroupKey)
		matched[key] = true
		prev := decimal.Zero
		if p, ok := prevByKey[key]; ok {
			prev = p.Sum(measure)
		}
		out = append(out, RowGrowth{GroupKey: row.GroupKey, Growth: GrowthRate(row.Sum(measure), prev)})
	}
	for _, row := range previous {
		if matched[joinKey(row.GroupKey)] {
			continue
		}
		out = append(out, RowGrowth{GroupKey: row.GroupKey, Growth: GrowthRate(decimal.Zero, row.Sum(measure))})
	}
	return out
}

// TotalOf sums measure (or "count") across rows.
func TotalOf(rows []AggregateRow, measure string) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Sum(measure))
	}
	return total
}

func joinKey(parts []string) string {
	return strings.Join(parts, "\x1f")
}
