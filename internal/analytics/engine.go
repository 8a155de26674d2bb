package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/aevon-lab/tradepulse/internal/core/storage"
	"github.com/shopspring/decimal"
)

// maxGapFillRows bounds the Cartesian product emitted by gap filling.
const maxGapFillRows = 100000

// Engine turns raw grouped rows from a DataSource into normalized, gap-filled
// aggregate rows with derived averages and percentages. It holds no state.
type Engine struct {
	source storage.DataSource
}

// NewEngine creates an engine reading from source.
func NewEngine(source storage.DataSource) *Engine {
	return &Engine{source: source}
}

// Aggregate computes spec over window grouped by groupBy. An empty groupBy
// yields exactly one total row. Data source errors are returned unchanged.
func (e *Engine) Aggregate(ctx context.Context, spec aggregation.MetricSpec, window aggregation.Window, groupBy []string) ([]aggregation.AggregateRow, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	dims, err := spec.ResolveGroupBy(groupBy)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	raw, err := e.source.Query(ctx, storage.Query{
		Source:   spec.Source,
		Window:   window,
		GroupBy:  groupBy,
		Measures: spec.Measures,
		Filters:  spec.Filters,
	})
	if err != nil {
		return nil, err
	}

	rows := mergeRows(raw, dims, spec.Measures)
	rows, err = gapFill(rows, dims, window, spec.Measures)
	if err != nil {
		return nil, err
	}
	derive(rows, spec.Measures)

	if spec.Rank != nil {
		rows = rank(rows, dims, *spec.Rank)
	} else {
		sortRows(rows, dims)
	}

	slog.Debug("[Engine] Aggregated",
		"metric", spec.Name,
		"group_by", groupBy,
		"raw_rows", len(raw),
		"rows", len(rows),
		"elapsed", time.Since(started))
	return rows, nil
}

type accumulator struct {
	key   []string
	count int64
	sums  map[string]decimal.Decimal
}

// mergeRows normalizes group values and folds rows that collide afterwards.
func mergeRows(raw []storage.RawRow, dims []aggregation.Dimension, measures []aggregation.Measure) []aggregation.AggregateRow {
	merged := make(map[string]*accumulator, len(raw))
	order := make([]string, 0, len(raw))

	for _, r := range raw {
		key := make([]string, len(dims))
		for i, d := range dims {
			var v string
			if i < len(r.Group) {
				v = r.Group[i]
			}
			if d.Normalize != nil {
				v = d.Normalize(v)
			}
			key[i] = v
		}

		id := joinKey(key)
		acc, ok := merged[id]
		if !ok {
			acc = &accumulator{key: key, sums: make(map[string]decimal.Decimal, len(measures))}
			merged[id] = acc
			order = append(order, id)
		}
		acc.count += r.Count

		for _, m := range measures {
			incoming, present := r.Values[m.Name]
			if !present {
				continue
			}
			reducer := aggregation.Operators[m.Op]
			if current, seen := acc.sums[m.Name]; seen {
				acc.sums[m.Name] = reducer.Apply(current, incoming)
			} else {
				acc.sums[m.Name] = reducer.Initial(incoming)
			}
		}
	}

	rows := make([]aggregation.AggregateRow, 0, len(order))
	for _, id := range order {
		acc := merged[id]
		rows = append(rows, newRow(acc.key, acc.count, acc.sums, measures))
	}
	return rows
}

// newRow fills additive measures with zero so every row carries every sum.
func newRow(key []string, count int64, sums map[string]decimal.Decimal, measures []aggregation.Measure) aggregation.AggregateRow {
	row := aggregation.AggregateRow{
		GroupKey: key,
		Count:    count,
		Sums:     make(map[string]decimal.Decimal, len(measures)),
		Derived:  make(map[string]decimal.Decimal),
	}
	for _, m := range measures {
		if v, ok := sums[m.Name]; ok {
			row.Sums[m.Name] = v
		} else if aggregation.Additive(m.Op) {
			row.Sums[m.Name] = decimal.Zero
		}
	}
	return row
}

// gapFill adds zero rows for every missing combination when all grouping
// dimensions are enumerable. Mixed or unbounded groupings are left as is.
func gapFill(rows []aggregation.AggregateRow, dims []aggregation.Dimension, window aggregation.Window, measures []aggregation.Measure) ([]aggregation.AggregateRow, error) {
	if len(dims) == 0 {
		if len(rows) == 0 {
			rows = append(rows, newRow([]string{}, 0, nil, measures))
		}
		return rows, nil
	}

	lists := make([][]string, len(dims))
	total := 1
	for i, d := range dims {
		if !d.Enumerable() {
			return rows, nil
		}
		lists[i] = d.Enumerate(window)
		total *= len(lists[i])
		if total > maxGapFillRows {
			return nil, aggregation.InvalidSpecf("grouping by %s expands to more than %d rows", dimNames(dims), maxGapFillRows)
		}
	}

	present := make(map[string]bool, len(rows))
	for _, r := range rows {
		present[joinKey(r.GroupKey)] = true
	}

	combo := make([]string, len(dims))
	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(dims) {
			if present[joinKey(combo)] {
				return
			}
			key := make([]string, len(combo))
			copy(key, combo)
			rows = append(rows, newRow(key, 0, nil, measures))
			return
		}
		for _, v := range lists[depth] {
			combo[depth] = v
			walk(depth + 1)
		}
	}
	walk(0)
	return rows, nil
}

// derive computes avg_* and *_pct fields from sums and counts.
// Percentages are relative to the full result.
func derive(rows []aggregation.AggregateRow, measures []aggregation.Measure) {
	var grandCount int64
	grand := make(map[string]decimal.Decimal)
	for _, r := range rows {
		grandCount += r.Count
		for _, m := range measures {
			if aggregation.Additive(m.Op) {
				grand[m.Name] = grand[m.Name].Add(r.Sums[m.Name])
			}
		}
	}

	totalCount := decimal.NewFromInt(grandCount)
	for i := range rows {
		r := &rows[i]
		count := decimal.NewFromInt(r.Count)
		r.Derived[aggregation.PctField(aggregation.OpCount)] = aggregation.Percent(count, totalCount)
		for _, m := range measures {
			if m.Op == aggregation.OpAvg {
				r.Derived[aggregation.AvgField(m.Name)] = aggregation.SafeDiv(r.Sums[m.Name], count)
			}
			if aggregation.Additive(m.Op) {
				r.Derived[aggregation.PctField(m.Name)] = aggregation.Percent(r.Sums[m.Name], grand[m.Name])
			}
		}
	}
}

// rank orders rows by the rank measure descending and keeps the first Limit.
func rank(rows []aggregation.AggregateRow, dims []aggregation.Dimension, r aggregation.Ranking) []aggregation.AggregateRow {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Sum(r.By), rows[j].Sum(r.By)
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return compareKeys(rows[i].GroupKey, rows[j].GroupKey, dims) < 0
	})
	if r.Limit > 0 && len(rows) > r.Limit {
		rows = rows[:r.Limit]
	}
	return rows
}

func sortRows(rows []aggregation.AggregateRow, dims []aggregation.Dimension) {
	sort.SliceStable(rows, func(i, j int) bool {
		return compareKeys(rows[i].GroupKey, rows[j].GroupKey, dims) < 0
	})
}

// compareKeys orders group keys position by position: enumerable values by
// their natural rank (unknown values after known ones), everything else by
// numeric-aware string comparison.
func compareKeys(a, b []string, dims []aggregation.Dimension) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareValue(a[i], b[i], dims, i); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareValue(a, b string, dims []aggregation.Dimension, i int) int {
	if a == b {
		return 0
	}
	if i < len(dims) {
		ra, rb := dims[i].Rank(a), dims[i].Rank(b)
		switch {
		case ra >= 0 && rb >= 0:
			return ra - rb
		case ra >= 0:
			return -1
		case rb >= 0:
			return 1
		}
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil && fa != fb {
		if fa < fb {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func joinKey(parts []string) string {
	return strings.Join(parts, "\x1f")
}

func dimNames(dims []aggregation.Dimension) string {
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name
	}
	return fmt.Sprintf("%v", names)
}
