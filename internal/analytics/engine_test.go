package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/aevon-lab/tradepulse/internal/core/storage"
	storagemocks "github.com/aevon-lab/tradepulse/internal/mocks/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	weekStart = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	weekEnd   = weekStart.AddDate(0, 0, 7)
	week      = aggregation.Window{Start: weekStart, End: weekEnd, Granularity: aggregation.GranularityDay}
)

func orderSpec() aggregation.MetricSpec {
	return aggregation.MetricSpec{
		Name:   "orders",
		Source: aggregation.SourceOrder,
		Measures: []aggregation.Measure{
			{Name: "revenue", Field: aggregation.FieldTotalPrice, Op: aggregation.OpSum},
			{Name: "order_value", Field: aggregation.FieldTotalPrice, Op: aggregation.OpAvg},
			{Name: "largest", Field: aggregation.FieldTotalPrice, Op: aggregation.OpMax},
		},
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func raw(group []string, count int64, values map[string]string) storage.RawRow {
	r := storage.RawRow{Group: group, Count: count, Values: make(map[string]decimal.Decimal)}
	for k, v := range values {
		r.Values[k] = dec(v)
	}
	return r
}

func TestEngine_GapFillsEmptyHourWindow(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return(nil, nil).Once()

	rows, err := NewEngine(ds).Aggregate(context.Background(), orderSpec(), week, []string{aggregation.DimHourOfDay})
	require.NoError(t, err)
	require.Len(t, rows, 24)
	for h, row := range rows {
		require.Equal(t, []string{fmt.Sprint(h)}, row.GroupKey)
		require.Zero(t, row.Count)
		require.True(t, row.Sum("revenue").IsZero())
		require.True(t, row.Pct(aggregation.OpCount).IsZero())
		require.True(t, row.Pct("revenue").IsZero())
		require.True(t, row.Avg("order_value").IsZero())
	}
}

func TestEngine_PassesQueryThrough(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	spec := orderSpec().WithFilter(aggregation.Filter{Field: aggregation.DimStatus, Op: aggregation.FilterNe, Value: "CANCELLED"})
	ds.EXPECT().Query(mock.Anything, storage.Query{
		Source:   aggregation.SourceOrder,
		Window:   week,
		GroupBy:  []string{aggregation.DimStatus},
		Measures: spec.Measures,
		Filters:  spec.Filters,
	}).Return([]storage.RawRow{}, nil).Once()

	_, err := NewEngine(ds).Aggregate(context.Background(), spec, week, []string{aggregation.DimStatus})
	require.NoError(t, err)
}

func TestEngine_NormalizesAndMerges(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"07"}, 2, map[string]string{"revenue": "100", "order_value": "100", "largest": "60"}),
		raw([]string{"7"}, 1, map[string]string{"revenue": "50", "order_value": "50", "largest": "80"}),
		raw([]string{"9.0"}, 1, map[string]string{"revenue": "10", "order_value": "10", "largest": "10"}),
	}, nil).Once()

	rows, err := NewEngine(ds).Aggregate(context.Background(), orderSpec(), week, []string{aggregation.DimHourOfDay})
	require.NoError(t, err)
	require.Len(t, rows, 24)

	seven := rows[7]
	require.Equal(t, []string{"7"}, seven.GroupKey)
	require.Equal(t, int64(3), seven.Count)
	require.True(t, dec("150").Equal(seven.Sum("revenue")))
	require.True(t, dec("80").Equal(seven.Sum("largest")), "max keeps the extremum")
	require.True(t, dec("50").Equal(seven.Avg("order_value")))

	require.Equal(t, int64(1), rows[9].Count)
	_, hasLargest := rows[0].Sums["largest"]
	require.False(t, hasLargest, "empty groups carry no min/max")
}

func TestEngine_PercentagesSumToHundred(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"PENDING"}, 1, map[string]string{"revenue": "33.33"}),
		raw([]string{"DELIVERED"}, 1, map[string]string{"revenue": "33.33"}),
		raw([]string{"CANCELLED"}, 1, map[string]string{"revenue": "33.34"}),
	}, nil).Once()

	rows, err := NewEngine(ds).Aggregate(context.Background(), orderSpec(), week, []string{aggregation.DimStatus})
	require.NoError(t, err)
	require.Len(t, rows, len(aggregation.OrderStatuses))

	countPct, revenuePct := decimal.Zero, decimal.Zero
	for i, row := range rows {
		require.Equal(t, aggregation.OrderStatuses[i], row.Key(0))
		countPct = countPct.Add(row.Pct(aggregation.OpCount))
		revenuePct = revenuePct.Add(row.Pct("revenue"))
	}
	epsilon := dec("0.0001")
	require.True(t, countPct.Sub(dec("100")).Abs().LessThan(epsilon), countPct.String())
	require.True(t, revenuePct.Sub(dec("100")).Abs().LessThan(epsilon), revenuePct.String())
}

func TestEngine_EmptyGroupByYieldsTotalRow(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return(nil, nil).Once()

	rows, err := NewEngine(ds).Aggregate(context.Background(), orderSpec(), week, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Empty(t, rows[0].GroupKey)
	require.Zero(t, rows[0].Count)
}

func TestEngine_UnboundedAndMixedGroupingsAreNotFilled(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"p-2", "5"}, 2, nil),
		raw([]string{"p-10", "5"}, 1, nil),
	}, nil).Once()

	rows, err := NewEngine(ds).Aggregate(context.Background(), orderSpec(), week, []string{aggregation.DimProductID, aggregation.DimHourOfDay})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "p-10", rows[0].Key(0), "string order for unbounded values")
}

func TestEngine_NumericAwareOrdering(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"10"}, 1, nil),
		raw([]string{"9"}, 1, nil),
		raw([]string{"abc"}, 1, nil),
	}, nil).Once()

	rows, err := NewEngine(ds).Aggregate(context.Background(), orderSpec(), week, []string{aggregation.DimUserID})
	require.NoError(t, err)
	require.Equal(t, []string{"9", "10", "abc"}, []string{rows[0].Key(0), rows[1].Key(0), rows[2].Key(0)})
}

func TestEngine_UnknownEnumValuesSortLast(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"on_hold"}, 1, nil),
		raw([]string{"delivered"}, 1, nil),
	}, nil).Once()

	rows, err := NewEngine(ds).Aggregate(context.Background(), orderSpec(), week, []string{aggregation.DimStatus})
	require.NoError(t, err)
	require.Len(t, rows, len(aggregation.OrderStatuses)+1)
	require.Equal(t, "ON_HOLD", rows[len(rows)-1].Key(0))
	require.Equal(t, int64(1), rows[4].Count, "DELIVERED is normalized to upper case")
}

func TestEngine_BucketGapFill(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"2026-02-04 00:00:00", "cash"}, 3, map[string]string{"amount": "300"}),
	}, nil).Once()

	spec := aggregation.MetricSpec{
		Name:     "payments",
		Source:   aggregation.SourcePayment,
		Measures: []aggregation.Measure{{Name: "amount", Field: aggregation.FieldAmount, Op: aggregation.OpSum}},
	}
	rows, err := NewEngine(ds).Aggregate(context.Background(), spec, week, []string{aggregation.DimBucket, aggregation.DimPaymentMethod})
	require.NoError(t, err)
	require.Len(t, rows, 7*len(aggregation.PaymentMethods))
	require.Equal(t, []string{"2026-02-02T00:00:00Z", "cash"}, rows[0].GroupKey)

	row := rows[2*len(aggregation.PaymentMethods)]
	require.Equal(t, []string{"2026-02-04T00:00:00Z", "cash"}, row.GroupKey)
	require.Equal(t, int64(3), row.Count)
	require.True(t, dec("100").Equal(row.Pct("amount")))
}

func TestEngine_RankKeepsPercentagesOfFullResult(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"a"}, 5, map[string]string{"revenue": "50"}),
		raw([]string{"b"}, 3, map[string]string{"revenue": "30"}),
		raw([]string{"c"}, 5, map[string]string{"revenue": "10"}),
		raw([]string{"d"}, 7, map[string]string{"revenue": "10"}),
	}, nil).Once()

	spec := orderSpec().WithRank(aggregation.OpCount, 3)
	rows, err := NewEngine(ds).Aggregate(context.Background(), spec, week, []string{aggregation.DimProductID})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"d", "a", "c"}, []string{rows[0].Key(0), rows[1].Key(0), rows[2].Key(0)}, "ties broken by group key")
	require.True(t, dec("35").Equal(rows[0].Pct(aggregation.OpCount)))
}

func TestEngine_InvalidSpecificationNeverQueries(t *testing.T) {
	tests := []struct {
		name    string
		spec    aggregation.MetricSpec
		window  aggregation.Window
		groupBy []string
	}{
		{"unknown grouping field", orderSpec(), week, []string{"colour"}},
		{"grouping field of another source", orderSpec(), week, []string{aggregation.DimServiceName}},
		{"end before start", orderSpec(), aggregation.Window{Start: weekEnd, End: weekStart, Granularity: aggregation.GranularityDay}, nil},
		{"too many buckets", orderSpec(), aggregation.Window{Start: weekStart.AddDate(-5, 0, 0), End: weekEnd, Granularity: aggregation.GranularityHour}, nil},
		{"bad operator", aggregation.MetricSpec{Name: "x", Source: aggregation.SourceOrder, Measures: []aggregation.Measure{{Name: "m", Field: aggregation.FieldTotalPrice, Op: "median"}}}, week, nil},
		{"unknown source", aggregation.MetricSpec{Name: "x", Source: "invoice"}, week, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ds := storagemocks.NewDataSource(t)
			_, err := NewEngine(ds).Aggregate(context.Background(), tc.spec, tc.window, tc.groupBy)
			require.ErrorIs(t, err, aggregation.ErrInvalidSpecification)
		})
	}
}

func TestEngine_PropagatesDataSourceErrors(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).
		Return(nil, storage.Unavailable("query order", context.DeadlineExceeded)).Once()

	_, err := NewEngine(ds).Aggregate(context.Background(), orderSpec(), week, []string{aggregation.DimHourOfDay})
	require.ErrorIs(t, err, storage.ErrDataSourceUnavailable)
}
