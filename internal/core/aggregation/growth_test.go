package aggregation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		name          string
		current       int64
		previous      int64
		wantUndefined bool
		wantRate      string
	}{
		{name: "growth", current: 150, previous: 100, wantRate: "0.5"},
		{name: "decline", current: 75, previous: 100, wantRate: "-0.25"},
		{name: "flat", current: 100, previous: 100, wantRate: "0"},
		{name: "previous zero is undefined", current: 50, previous: 0, wantUndefined: true},
		{name: "both zero is undefined", current: 0, previous: 0, wantUndefined: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := GrowthRate(decimal.NewFromInt(tc.current), decimal.NewFromInt(tc.previous))
			require.Equal(t, tc.wantUndefined, g.Undefined)
			if tc.wantUndefined {
				require.Nil(t, g.Rate)
				require.Nil(t, g.Percent())
				require.False(t, g.Above(decimal.Zero))
				return
			}
			require.NotNil(t, g.Rate)
			require.True(t, decimal.RequireFromString(tc.wantRate).Equal(*g.Rate), "rate=%s", g.Rate)
		})
	}
}

func TestGrowthPercent(t *testing.T) {
	g := GrowthRate(decimal.NewFromInt(4), decimal.NewFromInt(3))
	require.Equal(t, "33.33", g.Percent().String())
	require.True(t, g.Above(decimal.RequireFromString("0.2")))
}

func TestCompareRows(t *testing.T) {
	current := []AggregateRow{
		{GroupKey: []string{"p1"}, Count: 12},
		{GroupKey: []string{"p2"}, Count: 5},
	}
	previous := []AggregateRow{
		{GroupKey: []string{"p1"}, Count: 10},
		{GroupKey: []string{"p3"}, Count: 4},
	}

	got := CompareRows(current, previous, OpCount)
	require.Len(t, got, 3)

	require.Equal(t, []string{"p1"}, got[0].GroupKey)
	require.Equal(t, "20", got[0].Growth.Percent().String())

	require.Equal(t, []string{"p2"}, got[1].GroupKey)
	require.True(t, got[1].Growth.Undefined)

	require.Equal(t, []string{"p3"}, got[2].GroupKey)
	require.Equal(t, "-100", got[2].Growth.Percent().String())
}

func TestTotalOf(t *testing.T) {
	rows := []AggregateRow{
		{Count: 2, Sums: map[string]decimal.Decimal{"revenue": decimal.NewFromInt(40)}},
		{Count: 3, Sums: map[string]decimal.Decimal{"revenue": decimal.NewFromInt(60)}},
		{Count: 0},
	}
	require.True(t, decimal.NewFromInt(100).Equal(TotalOf(rows, "revenue")))
	require.True(t, decimal.NewFromInt(5).Equal(TotalOf(rows, OpCount)))
}
