package aggregation

import (
	"github.com/shopspring/decimal"
)

// Supported measure operators.
// avg is carried as a sum on the wire; the mean is derived from sum and count.
const (
	OpCount = "count"
	OpSum   = "sum"
	OpAvg   = "avg"
	OpMin   = "min"
	OpMax   = "max"
)

// Filter operators.
const (
	FilterEq = "eq"
	FilterNe = "ne"
)

// Measure names one numeric field of a source and how it is reduced.
type Measure struct {
	Name  string `json:"name" yaml:"name"`
	Field string `json:"field" yaml:"field"`
	Op    string `json:"op" yaml:"op"`
}

// Filter restricts a query to rows whose dimension equals (or differs from) Value.
type Filter struct {
	Field string `json:"field" yaml:"field"`
	Op    string `json:"op" yaml:"op"`
	Value string `json:"value" yaml:"value"`
}

// Ranking orders results by a measure (or "count") descending and keeps the first Limit rows.
type Ranking struct {
	By    string `json:"by" yaml:"by"`
	Limit int    `json:"limit" yaml:"limit"`
}

// MetricSpec describes what to aggregate: the source record type, the numeric
// measures, fixed filters and the default grouping.
type MetricSpec struct {
	Name     string     `json:"name" yaml:"name"`
	Source   SourceType `json:"source" yaml:"source"`
	Measures []Measure  `json:"measures" yaml:"measures"`
	Filters  []Filter   `json:"filters,omitempty" yaml:"filters"`
	GroupBy  []string   `json:"group_by,omitempty" yaml:"group_by"`
	Rank     *Ranking   `json:"rank,omitempty" yaml:"rank"`

	// Fingerprint is a SHA-256 of the definition. Cache keys include it so a
	// redefined metric never serves results computed under the old definition.
	Fingerprint string `json:"-" yaml:"-"`
}

// Measure returns the measure with the given name.
func (s MetricSpec) Measure(name string) (Measure, bool) {
	for _, m := range s.Measures {
		if m.Name == name {
			return m, true
		}
	}
	return Measure{}, false
}

// WithRank returns a copy of the metric ranked by the given measure.
func (s MetricSpec) WithRank(by string, limit int) MetricSpec {
	s.Rank = &Ranking{By: by, Limit: limit}
	return s
}

// WithFilter returns a copy of the metric with an extra filter appended.
func (s MetricSpec) WithFilter(f Filter) MetricSpec {
	filters := make([]Filter, 0, len(s.Filters)+1)
	filters = append(filters, s.Filters...)
	s.Filters = append(filters, f)
	return s
}

// AggregateRow is one group of an aggregation result.
// Derived values are always a function of Sums and Count.
type AggregateRow struct {
	GroupKey []string                   `json:"group_key"`
	Count    int64                      `json:"count"`
	Sums     map[string]decimal.Decimal `json:"sum_fields"`
	Derived  map[string]decimal.Decimal `json:"derived_fields"`
}

// Key returns the i-th group value, or "" when out of range.
func (r AggregateRow) Key(i int) string {
	if i < 0 || i >= len(r.GroupKey) {
		return ""
	}
	return r.GroupKey[i]
}

// Sum returns the raw aggregate for a measure, zero when absent.
func (r AggregateRow) Sum(name string) decimal.Decimal {
	if name == OpCount {
		return decimal.NewFromInt(r.Count)
	}
	return r.Sums[name]
}

// DerivedValue returns a derived field, zero when absent.
func (r AggregateRow) DerivedValue(name string) decimal.Decimal {
	return r.Derived[name]
}

// Avg returns the derived mean for an avg measure.
func (r AggregateRow) Avg(name string) decimal.Decimal {
	return r.Derived[AvgField(name)]
}

// Pct returns the share of the grand total for a measure (or "count").
func (r AggregateRow) Pct(name string) decimal.Decimal {
	return r.Derived[PctField(name)]
}

// AvgField names the derived mean of a measure.
func AvgField(measure string) string { return "avg_" + measure }

// PctField names the derived percentage of a measure.
func PctField(measure string) string { return measure + "_pct" }
