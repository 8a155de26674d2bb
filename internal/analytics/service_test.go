package analytics

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aevon-lab/tradepulse/internal/cache"
	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/aevon-lab/tradepulse/internal/core/storage"
	storagemocks "github.com/aevon-lab/tradepulse/internal/mocks/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 11, 12, 0, 30, 0, time.UTC)

func newTestService(t *testing.T, ds storage.DataSource) *Service {
	t.Helper()
	catalog, err := aggregation.NewCatalog("")
	require.NoError(t, err)

	c := cache.New(cache.NewMemoryStore(128, 4), cache.Options{Enabled: true})
	svc := NewService(NewEngine(ds), catalog, c, Config{
		DefaultWindow: 7 * 24 * time.Hour,
		AggregateTTL:  5 * time.Minute,
		DefaultLimit:  10,
		MaxLimit:      100,
	})
	svc.nowFn = func() time.Time { return fixedNow }
	return svc
}

func grouped(dim string) any {
	return mock.MatchedBy(func(q storage.Query) bool {
		return len(q.GroupBy) > 0 && q.GroupBy[len(q.GroupBy)-1] == dim
	})
}

func startingAt(start time.Time) any {
	return mock.MatchedBy(func(q storage.Query) bool {
		return q.Window.Start.Equal(start)
	})
}

func TestService_FinanceOverviewIsCached(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, storage.Query{
		Source:   aggregation.SourcePayment,
		Window:   week,
		GroupBy:  []string{aggregation.DimPaymentMethod},
		Measures: []aggregation.Measure{{Name: "amount", Field: aggregation.FieldAmount, Op: aggregation.OpSum}},
		Filters:  []aggregation.Filter{notCancelled},
	}).Return([]storage.RawRow{
		raw([]string{"cash"}, 4, map[string]string{"amount": "4000"}),
		raw([]string{"online"}, 6, map[string]string{"amount": "6000"}),
	}, nil).Once()
	ds.EXPECT().Query(mock.Anything, storage.Query{
		Source:   aggregation.SourcePayment,
		Window:   week,
		GroupBy:  []string{aggregation.DimPaymentMethod},
		Measures: []aggregation.Measure{{Name: "amount", Field: aggregation.FieldAmount, Op: aggregation.OpSum}},
	}).Return([]storage.RawRow{
		raw([]string{"cash"}, 5, map[string]string{"amount": "4500"}),
		raw([]string{"failed"}, 2, map[string]string{"amount": "700"}),
		raw([]string{"refunded"}, 1, map[string]string{"amount": "250.456"}),
	}, nil).Once()

	svc := newTestService(t, ds)
	first, err := svc.FinanceOverview(context.Background(), week)
	require.NoError(t, err)

	require.True(t, dec("10000").Equal(first.TotalRevenue))
	require.True(t, dec("4000").Equal(first.CashRevenue))
	require.True(t, dec("6000").Equal(first.OnlineRevenue))
	require.True(t, dec("40").Equal(first.CashPercentage))
	require.True(t, dec("60").Equal(first.OnlinePercentage))
	require.True(t, dec("4000").Equal(first.PendingCOD))
	require.True(t, dec("700").Equal(first.FailedPaymentsLoss))
	require.True(t, dec("250.46").Equal(first.RefundedAmount))
	require.Equal(t, int64(10), first.OrderCount)

	second, err := svc.FinanceOverview(context.Background(), week)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestService_WarmServesDefaultWindowUntilNextAlignment(t *testing.T) {
	var queries atomic.Int32
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, storage.Query) ([]storage.RawRow, error) {
			queries.Add(1)
			return nil, nil
		})

	svc := newTestService(t, ds)
	require.NoError(t, svc.Warm(context.Background()))
	warmed := queries.Load()
	require.Positive(t, warmed)

	svc.nowFn = func() time.Time { return fixedNow.Add(4 * time.Minute) }
	w, err := svc.ResolveWindow(WindowParams{})
	require.NoError(t, err)
	_, err = svc.FinanceOverview(context.Background(), w)
	require.NoError(t, err)
	_, err = svc.HourlyPatterns(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, warmed, queries.Load(), "requests before the next alignment must hit the warmed entries")

	svc.nowFn = func() time.Time { return fixedNow.Add(5 * time.Minute) }
	w, err = svc.ResolveWindow(WindowParams{})
	require.NoError(t, err)
	_, err = svc.FinanceOverview(context.Background(), w)
	require.NoError(t, err)
	require.Greater(t, queries.Load(), warmed)
}

func TestService_FinanceOverviewPropagatesUnavailable(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).
		Return(nil, storage.Unavailable("query payment", context.DeadlineExceeded)).Twice()

	svc := newTestService(t, ds)
	_, err := svc.FinanceOverview(context.Background(), week)
	require.ErrorIs(t, err, storage.ErrDataSourceUnavailable)

	// failures are not cached
	_, err = svc.FinanceOverview(context.Background(), week)
	require.ErrorIs(t, err, storage.ErrDataSourceUnavailable)
}

func TestService_HourlyPatternsOnEmptyWindow(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return(nil, nil).Once()

	hours, err := newTestService(t, ds).HourlyPatterns(context.Background(), week)
	require.NoError(t, err)
	require.Len(t, hours, 24)
	for h, hour := range hours {
		require.Equal(t, h, hour.Hour)
		require.Zero(t, hour.CashOrders)
		require.True(t, hour.CashAmount.IsZero())
	}
}

func TestService_PeakHoursPercentages(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.MatchedBy(func(q storage.Query) bool {
		return len(q.Filters) == 1 && q.Filters[0] == notCancelled
	})).Return([]storage.RawRow{
		raw([]string{"9"}, 1, map[string]string{"revenue": "100", "order_value": "100"}),
		raw([]string{"18"}, 3, map[string]string{"revenue": "900", "order_value": "900"}),
	}, nil).Once()

	hours, err := newTestService(t, ds).PeakHours(context.Background(), week)
	require.NoError(t, err)
	require.Len(t, hours, 24)
	require.True(t, dec("25").Equal(hours[9].Percentage))
	require.True(t, dec("75").Equal(hours[18].Percentage))
	require.True(t, dec("300").Equal(hours[18].AvgOrderValue))

	total := decimal.Zero
	for _, h := range hours {
		total = total.Add(h.Percentage)
	}
	require.True(t, dec("100").Equal(total))
}

func TestService_DayOfWeekIsoNumbers(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"7"}, 2, nil),
		raw([]string{"monday"}, 1, nil),
	}, nil).Once()

	days, err := newTestService(t, ds).DayOfWeek(context.Background(), week)
	require.NoError(t, err)
	require.Len(t, days, 7)
	require.Equal(t, "Monday", days[0].Day)
	require.Equal(t, 1, days[0].DayNumber)
	require.Equal(t, int64(1), days[0].OrderCount)
	require.Equal(t, "Sunday", days[6].Day)
	require.Equal(t, 7, days[6].DayNumber)
	require.Equal(t, int64(2), days[6].OrderCount)
}

func TestService_Velocity(t *testing.T) {
	thisWeek := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	thisMonth := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	ds := storagemocks.NewDataSource(t)
	for start, count := range map[time.Time]int64{
		thisWeek:                    10,
		thisWeek.AddDate(0, 0, -7):  8,
		thisMonth:                   20,
		thisMonth.AddDate(0, -1, 0): 0,
	} {
		ds.EXPECT().Query(mock.Anything, startingAt(start)).
			Return([]storage.RawRow{{Group: []string{}, Count: count}}, nil).Once()
	}

	v, err := newTestService(t, ds).Velocity(context.Background())
	require.NoError(t, err)

	require.True(t, thisWeek.Equal(v.Weekly.Current.Start))
	require.True(t, fixedNow.Truncate(time.Minute).Equal(v.Weekly.Current.End))
	require.NotNil(t, v.Weekly.GrowthPercent)
	require.True(t, dec("25").Equal(*v.Weekly.GrowthPercent))

	require.True(t, v.Monthly.Growth.Undefined)
	require.Nil(t, v.Monthly.GrowthPercent)
}

func TestService_Funnel(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"DELIVERED"}, 6, nil),
		raw([]string{"CANCELLED"}, 2, nil),
		raw([]string{"PENDING"}, 2, nil),
	}, nil).Once()

	f, err := newTestService(t, ds).Funnel(context.Background(), week)
	require.NoError(t, err)
	require.Len(t, f.Statuses, len(aggregation.OrderStatuses))
	require.Equal(t, int64(10), f.TotalOrders)
	require.True(t, dec("60").Equal(f.ConversionRate))
	require.True(t, dec("20").Equal(f.CancellationRate))
}

func TestService_BestSellersRespectsLimit(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, mock.Anything).Return([]storage.RawRow{
		raw([]string{"p1", "Tea"}, 2, map[string]string{"units": "4", "revenue": "200"}),
		raw([]string{"p2", "Coffee"}, 5, map[string]string{"units": "5", "revenue": "750"}),
		raw([]string{"p3", "Milk"}, 1, map[string]string{"units": "1", "revenue": "30"}),
	}, nil).Once()

	top, err := newTestService(t, ds).BestSellers(context.Background(), week, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "p2", top[0].ProductID)
	require.Equal(t, "Coffee", top[0].ProductName)
	require.True(t, dec("150").Equal(top[0].AvgPrice))
	require.Equal(t, "p1", top[1].ProductID)
}

func TestService_Trending(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, startingAt(week.Start)).Return([]storage.RawRow{
		raw([]string{"a", "Apples"}, 10, nil),
		raw([]string{"b", "Bread"}, 5, nil),
		raw([]string{"c", "Cheese"}, 3, nil),
		raw([]string{"d", "Dates"}, 12, nil),
	}, nil).Once()
	ds.EXPECT().Query(mock.Anything, startingAt(week.Previous().Start)).Return([]storage.RawRow{
		raw([]string{"a", "Apples"}, 5, nil),
		raw([]string{"b", "Bread"}, 5, nil),
		raw([]string{"d", "Dates"}, 4, nil),
	}, nil).Once()

	trending, err := newTestService(t, ds).Trending(context.Background(), week, 10)
	require.NoError(t, err)
	require.Len(t, trending, 3)

	require.Equal(t, "d", trending[0].ProductID)
	require.True(t, dec("200").Equal(*trending[0].GrowthPercent))
	require.Equal(t, "a", trending[1].ProductID)
	require.Equal(t, "c", trending[2].ProductID)
	require.Equal(t, "Cheese", trending[2].ProductName)
	require.True(t, trending[2].New)
	require.Nil(t, trending[2].GrowthPercent)
}

func TestService_CategoryPerformanceGrowth(t *testing.T) {
	ds := storagemocks.NewDataSource(t)
	ds.EXPECT().Query(mock.Anything, startingAt(week.Start)).Return([]storage.RawRow{
		raw([]string{"c1", "Grocery"}, 4, map[string]string{"revenue": "100", "units": "4"}),
		raw([]string{"c2", "Dairy"}, 1, map[string]string{"revenue": "300", "units": "1"}),
	}, nil).Once()
	ds.EXPECT().Query(mock.Anything, startingAt(week.Previous().Start)).Return([]storage.RawRow{
		raw([]string{"c1", "Grocery"}, 2, map[string]string{"revenue": "50", "units": "2"}),
	}, nil).Once()

	perf, err := newTestService(t, ds).CategoryPerformance(context.Background(), week)
	require.NoError(t, err)
	require.Len(t, perf, 2)
	require.Equal(t, "c2", perf[0].CategoryID, "highest revenue first")
	require.True(t, dec("75").Equal(perf[0].RevenueShare))
	require.True(t, perf[0].OrderGrowth.Undefined)
	require.True(t, dec("100").Equal(*perf[1].GrowthPercent))
}

func TestService_Metric(t *testing.T) {
	t.Run("default grouping", func(t *testing.T) {
		ds := storagemocks.NewDataSource(t)
		ds.EXPECT().Query(mock.Anything, grouped(aggregation.DimStatus)).Return(nil, nil).Once()

		res, err := newTestService(t, ds).Metric(context.Background(), aggregation.MetricOrderStatus, week, nil, 0)
		require.NoError(t, err)
		require.Equal(t, []string{aggregation.DimStatus}, res.GroupBy)
		require.Len(t, res.Rows, len(aggregation.OrderStatuses))
	})

	t.Run("grouping override with limit", func(t *testing.T) {
		ds := storagemocks.NewDataSource(t)
		ds.EXPECT().Query(mock.Anything, grouped(aggregation.DimHourOfDay)).Return(nil, nil).Once()

		res, err := newTestService(t, ds).Metric(context.Background(), aggregation.MetricOrderStatus, week, []string{aggregation.DimHourOfDay}, 5)
		require.NoError(t, err)
		require.Len(t, res.Rows, 5)
	})

	t.Run("unknown metric", func(t *testing.T) {
		ds := storagemocks.NewDataSource(t)
		_, err := newTestService(t, ds).Metric(context.Background(), "nope", week, nil, 0)
		require.ErrorIs(t, err, aggregation.ErrInvalidSpecification)
	})
}

func TestService_ResolveWindow(t *testing.T) {
	svc := newTestService(t, storagemocks.NewDataSource(t))
	alignedNow := fixedNow.Truncate(time.Minute)

	tests := []struct {
		name      string
		params    WindowParams
		wantStart time.Time
		wantEnd   time.Time
		wantGran  aggregation.Granularity
		wantErr   bool
	}{
		{
			name:      "default window ends now",
			wantStart: alignedNow.Add(-7 * 24 * time.Hour),
			wantEnd:   alignedNow,
			wantGran:  aggregation.GranularityDay,
		},
		{
			name:      "days",
			params:    WindowParams{Days: 30, Granularity: "week"},
			wantStart: alignedNow.AddDate(0, 0, -30),
			wantEnd:   alignedNow,
			wantGran:  aggregation.GranularityWeek,
		},
		{
			name:      "explicit dates",
			params:    WindowParams{Start: "2026-01-01", End: "2026-01-02T06:00:00+05:30"},
			wantStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 1, 2, 0, 30, 0, 0, time.UTC),
			wantGran:  aggregation.GranularityDay,
		},
		{name: "bad granularity", params: WindowParams{Granularity: "year"}, wantErr: true},
		{name: "bad start", params: WindowParams{Start: "yesterday"}, wantErr: true},
		{name: "end before start", params: WindowParams{Start: "2026-02-01", End: "2026-01-01"}, wantErr: true},
		{name: "negative days", params: WindowParams{Days: -1}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, err := svc.ResolveWindow(tc.params)
			if tc.wantErr {
				require.ErrorIs(t, err, aggregation.ErrInvalidSpecification)
				return
			}
			require.NoError(t, err)
			require.True(t, tc.wantStart.Equal(w.Start), "start %s", w.Start)
			require.True(t, tc.wantEnd.Equal(w.End), "end %s", w.End)
			require.Equal(t, tc.wantGran, w.Granularity)
		})
	}
}

func TestService_ResolveLimit(t *testing.T) {
	svc := newTestService(t, storagemocks.NewDataSource(t))

	limit, err := svc.ResolveLimit(0)
	require.NoError(t, err)
	require.Equal(t, 10, limit)

	limit, err = svc.ResolveLimit(500)
	require.NoError(t, err)
	require.Equal(t, 100, limit)

	_, err = svc.ResolveLimit(-1)
	require.ErrorIs(t, err, aggregation.ErrInvalidSpecification)
}
