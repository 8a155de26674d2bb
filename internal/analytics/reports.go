package analytics

import (
	"context"
	"sort"
	"strconv"

	"github.com/aevon-lab/tradepulse/internal/cache"
	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	methodCash     = "cash"
	methodOnline   = "online"
	methodFailed   = "failed"
	methodRefunded = "refunded"
)

var (
	notCancelled   = aggregation.Filter{Field: aggregation.DimStatus, Op: aggregation.FilterNe, Value: "CANCELLED"}
	trendThreshold = decimal.RequireFromString("0.2")
)

func money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func (s *Service) run(ctx context.Context, name string, w aggregation.Window, groupBy ...string) ([]aggregation.AggregateRow, error) {
	spec, err := s.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return s.engine.Aggregate(ctx, spec, w, groupBy)
}

// FinanceOverview splits the window's revenue by payment method.
func (s *Service) FinanceOverview(ctx context.Context, w aggregation.Window) (FinanceOverview, error) {
	key := cache.NewKey("report.finance_overview").Window(w)
	return report(ctx, s, key, func(ctx context.Context) (FinanceOverview, error) {
		return s.financeOverview(ctx, w)
	})
}

func (s *Service) financeOverview(ctx context.Context, w aggregation.Window) (FinanceOverview, error) {
	rows, err := s.run(ctx, aggregation.MetricPaymentBreakdown, w, aggregation.DimPaymentMethod)
	if err != nil {
		return FinanceOverview{}, err
	}
	losses, err := s.run(ctx, aggregation.MetricPaymentLosses, w, aggregation.DimPaymentMethod)
	if err != nil {
		return FinanceOverview{}, err
	}

	out := FinanceOverview{Window: w, TotalRevenue: money(aggregation.TotalOf(rows, "amount"))}
	for _, row := range rows {
		out.OrderCount += row.Count
		amount := money(row.Sum("amount"))
		switch row.Key(0) {
		case methodCash:
			out.CashRevenue = amount
			out.PendingCOD = amount
			out.CashPercentage = money(row.Pct("amount"))
		case methodOnline:
			out.OnlineRevenue = amount
			out.OnlinePercentage = money(row.Pct("amount"))
		}
	}
	for _, row := range losses {
		switch row.Key(0) {
		case methodFailed:
			out.FailedPaymentsLoss = money(row.Sum("amount"))
		case methodRefunded:
			out.RefundedAmount = money(row.Sum("amount"))
		}
	}
	return out, nil
}

// FinanceTrends returns cash and online revenue per bucket with a summary.
func (s *Service) FinanceTrends(ctx context.Context, w aggregation.Window) (FinanceTrends, error) {
	key := cache.NewKey("report.finance_trends").Window(w)
	return report(ctx, s, key, func(ctx context.Context) (FinanceTrends, error) {
		var (
			rows    []aggregation.AggregateRow
			summary FinanceOverview
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			rows, err = s.run(gctx, aggregation.MetricPaymentTrend, w, aggregation.DimBucket, aggregation.DimPaymentMethod)
			return err
		})
		g.Go(func() error {
			var err error
			summary, err = s.financeOverview(gctx, w)
			return err
		})
		if err := g.Wait(); err != nil {
			return FinanceTrends{}, err
		}

		points := make([]PaymentTrendPoint, 0, len(rows)/len(aggregation.PaymentMethods)+1)
		index := make(map[string]int)
		for _, row := range rows {
			bucket := row.Key(0)
			i, ok := index[bucket]
			if !ok {
				i = len(points)
				index[bucket] = i
				points = append(points, PaymentTrendPoint{Bucket: bucket})
			}
			amount := money(row.Sum("amount"))
			p := &points[i]
			p.TotalAmount = p.TotalAmount.Add(amount)
			switch row.Key(1) {
			case methodCash:
				p.CashAmount = amount
			case methodOnline:
				p.OnlineAmount = amount
			}
		}
		return FinanceTrends{Trends: points, Summary: summary}, nil
	})
}

// HourlyPatterns returns cash and online activity for each hour of day.
func (s *Service) HourlyPatterns(ctx context.Context, w aggregation.Window) ([]HourlyPayment, error) {
	key := cache.NewKey("report.hourly_patterns").Window(w)
	return report(ctx, s, key, func(ctx context.Context) ([]HourlyPayment, error) {
		rows, err := s.run(ctx, aggregation.MetricHourlyPayments, w, aggregation.DimHourOfDay, aggregation.DimPaymentMethod)
		if err != nil {
			return nil, err
		}
		out := make([]HourlyPayment, 24)
		for h := range out {
			out[h] = HourlyPayment{Hour: h, CashAmount: decimal.Zero, OnlineAmount: decimal.Zero}
		}
		for _, row := range rows {
			h, err := strconv.Atoi(row.Key(0))
			if err != nil || h < 0 || h > 23 {
				continue
			}
			switch row.Key(1) {
			case methodCash:
				out[h].CashOrders = row.Count
				out[h].CashAmount = money(row.Sum("amount"))
			case methodOnline:
				out[h].OnlineOrders = row.Count
				out[h].OnlineAmount = money(row.Sum("amount"))
			}
		}
		return out, nil
	})
}

// PeakHours returns order volume for each hour of day, cancelled orders excluded.
func (s *Service) PeakHours(ctx context.Context, w aggregation.Window) ([]HourActivity, error) {
	key := cache.NewKey("report.peak_hours").Window(w)
	return report(ctx, s, key, func(ctx context.Context) ([]HourActivity, error) {
		spec, err := s.catalog.Get(aggregation.MetricOrderActivity)
		if err != nil {
			return nil, err
		}
		rows, err := s.engine.Aggregate(ctx, spec.WithFilter(notCancelled), w, []string{aggregation.DimHourOfDay})
		if err != nil {
			return nil, err
		}
		out := make([]HourActivity, 0, len(rows))
		for _, row := range rows {
			h, err := strconv.Atoi(row.Key(0))
			if err != nil {
				continue
			}
			out = append(out, HourActivity{
				Hour:          h,
				OrderCount:    row.Count,
				Revenue:       money(row.Sum("revenue")),
				AvgOrderValue: money(row.Avg("order_value")),
				Percentage:    money(row.Pct(aggregation.OpCount)),
			})
		}
		return out, nil
	})
}

// DayOfWeek returns order volume for each weekday, Monday first.
func (s *Service) DayOfWeek(ctx context.Context, w aggregation.Window) ([]DayActivity, error) {
	key := cache.NewKey("report.day_of_week").Window(w)
	return report(ctx, s, key, func(ctx context.Context) ([]DayActivity, error) {
		spec, err := s.catalog.Get(aggregation.MetricOrderActivity)
		if err != nil {
			return nil, err
		}
		rows, err := s.engine.Aggregate(ctx, spec.WithFilter(notCancelled), w, []string{aggregation.DimDayOfWeek})
		if err != nil {
			return nil, err
		}
		out := make([]DayActivity, 0, len(rows))
		for _, row := range rows {
			out = append(out, DayActivity{
				Day:           row.Key(0),
				DayNumber:     weekdayNumber(row.Key(0)),
				OrderCount:    row.Count,
				Revenue:       money(row.Sum("revenue")),
				AvgOrderValue: money(row.Avg("order_value")),
				Percentage:    money(row.Pct(aggregation.OpCount)),
			})
		}
		return out, nil
	})
}

// Velocity compares week-to-date and month-to-date order counts with the
// same span of the previous week and month.
func (s *Service) Velocity(ctx context.Context) (Velocity, error) {
	now := s.Now()
	weekStart := aggregation.Truncate(now, aggregation.GranularityWeek)
	monthStart := aggregation.Truncate(now, aggregation.GranularityMonth)

	periods := []struct {
		current, previous aggregation.Window
	}{
		{
			current:  aggregation.Window{Start: weekStart, End: now, Granularity: aggregation.GranularityDay},
			previous: aggregation.Window{Start: weekStart.AddDate(0, 0, -7), End: weekStart, Granularity: aggregation.GranularityDay},
		},
		{
			current:  aggregation.Window{Start: monthStart, End: now, Granularity: aggregation.GranularityDay},
			previous: aggregation.Window{Start: monthStart.AddDate(0, -1, 0), End: monthStart, Granularity: aggregation.GranularityDay},
		},
	}

	key := cache.NewKey("report.velocity").Window(periods[0].current).Window(periods[1].current)
	return report(ctx, s, key, func(ctx context.Context) (Velocity, error) {
		counts := make([]int64, 4)
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range periods {
			for j, w := range []aggregation.Window{p.current, p.previous} {
				slot := i*2 + j
				g.Go(func() error {
					rows, err := s.run(gctx, aggregation.MetricOrderStatus, w)
					if err != nil {
						return err
					}
					counts[slot] = rows[0].Count
					return nil
				})
			}
		}
		if err := g.Wait(); err != nil {
			return Velocity{}, err
		}

		growth := func(i int) PeriodGrowth {
			gr := aggregation.GrowthRate(decimal.NewFromInt(counts[i*2]), decimal.NewFromInt(counts[i*2+1]))
			return PeriodGrowth{Current: periods[i].current, Previous: periods[i].previous, Growth: gr, GrowthPercent: gr.Percent()}
		}
		return Velocity{Weekly: growth(0), Monthly: growth(1)}, nil
	})
}

// Funnel returns the order status distribution with conversion rates.
func (s *Service) Funnel(ctx context.Context, w aggregation.Window) (Funnel, error) {
	key := cache.NewKey("report.funnel").Window(w)
	return report(ctx, s, key, func(ctx context.Context) (Funnel, error) {
		rows, err := s.run(ctx, aggregation.MetricOrderStatus, w, aggregation.DimStatus)
		if err != nil {
			return Funnel{}, err
		}
		out := Funnel{Statuses: statusCounts(rows)}
		for _, row := range rows {
			out.TotalOrders += row.Count
			switch row.Key(0) {
			case "DELIVERED":
				out.Delivered = row.Count
			case "CANCELLED":
				out.Cancelled = row.Count
			}
		}
		total := decimal.NewFromInt(out.TotalOrders)
		out.ConversionRate = money(aggregation.Percent(decimal.NewFromInt(out.Delivered), total))
		out.CancellationRate = money(aggregation.Percent(decimal.NewFromInt(out.Cancelled), total))
		return out, nil
	})
}

// BestSellers returns the products with the most orders.
func (s *Service) BestSellers(ctx context.Context, w aggregation.Window, limit int) ([]ProductSales, error) {
	key := cache.NewKey("report.best_sellers").Window(w).Int("limit", limit)
	return report(ctx, s, key, func(ctx context.Context) ([]ProductSales, error) {
		spec, err := s.catalog.Get(aggregation.MetricProductSales)
		if err != nil {
			return nil, err
		}
		rows, err := s.engine.Aggregate(ctx, spec.WithRank(aggregation.OpCount, limit), w, spec.GroupBy)
		if err != nil {
			return nil, err
		}
		out := make([]ProductSales, 0, len(rows))
		for _, row := range rows {
			out = append(out, ProductSales{
				ProductID:   row.Key(0),
				ProductName: row.Key(1),
				OrderCount:  row.Count,
				Units:       row.Sum("units"),
				Revenue:     money(row.Sum("revenue")),
				AvgPrice:    money(aggregation.SafeDiv(row.Sum("revenue"), decimal.NewFromInt(row.Count))),
			})
		}
		return out, nil
	})
}

// CategoryPerformance returns revenue share and order growth per category,
// highest revenue first.
func (s *Service) CategoryPerformance(ctx context.Context, w aggregation.Window) ([]CategoryPerformance, error) {
	key := cache.NewKey("report.category_performance").Window(w)
	return report(ctx, s, key, func(ctx context.Context) ([]CategoryPerformance, error) {
		spec, err := s.catalog.Get(aggregation.MetricCategorySales)
		if err != nil {
			return nil, err
		}
		spec = spec.WithRank("revenue", 0)

		current, previous, err := s.compareWindows(ctx, spec, w)
		if err != nil {
			return nil, err
		}
		growth := growthByKey(current, previous)

		out := make([]CategoryPerformance, 0, len(current))
		for _, row := range current {
			gr := growth[joinKey(row.GroupKey)]
			out = append(out, CategoryPerformance{
				CategoryID:    row.Key(0),
				CategoryName:  row.Key(1),
				OrderCount:    row.Count,
				Units:         row.Sum("units"),
				Revenue:       money(row.Sum("revenue")),
				RevenueShare:  money(row.Pct("revenue")),
				OrderGrowth:   gr,
				GrowthPercent: gr.Percent(),
			})
		}
		return out, nil
	})
}

// Trending returns products whose orders grew more than 20% against the
// previous window, plus products new in this window.
func (s *Service) Trending(ctx context.Context, w aggregation.Window, limit int) ([]TrendingProduct, error) {
	key := cache.NewKey("report.trending").Window(w).Int("limit", limit)
	return report(ctx, s, key, func(ctx context.Context) ([]TrendingProduct, error) {
		spec, err := s.catalog.Get(aggregation.MetricProductSales)
		if err != nil {
			return nil, err
		}
		spec = spec.WithRank(aggregation.OpCount, 0)

		current, previous, err := s.compareWindows(ctx, spec, w)
		if err != nil {
			return nil, err
		}
		names := make(map[string]string, len(current))
		for _, row := range current {
			names[joinKey(row.GroupKey)] = row.Key(1)
		}

		out := make([]TrendingProduct, 0)
		for _, rg := range aggregation.CompareRows(current, previous, aggregation.OpCount) {
			isNew := rg.Growth.Undefined && rg.Growth.Current.IsPositive()
			if !isNew && !rg.Growth.Above(trendThreshold) {
				continue
			}
			out = append(out, TrendingProduct{
				ProductID:      rg.GroupKey[0],
				ProductName:    names[joinKey(rg.GroupKey)],
				CurrentOrders:  rg.Growth.Current.IntPart(),
				PreviousOrders: rg.Growth.Previous.IntPart(),
				Growth:         rg.Growth,
				GrowthPercent:  rg.Growth.Percent(),
				New:            isNew,
			})
		}

		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.New != b.New {
				return !a.New
			}
			if !a.New && !a.Growth.Rate.Equal(*b.Growth.Rate) {
				return a.Growth.Rate.GreaterThan(*b.Growth.Rate)
			}
			if a.CurrentOrders != b.CurrentOrders {
				return a.CurrentOrders > b.CurrentOrders
			}
			return a.ProductID < b.ProductID
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	})
}

// Geographic returns the cities with the most orders.
func (s *Service) Geographic(ctx context.Context, w aggregation.Window, limit int) ([]Region, error) {
	key := cache.NewKey("report.geographic").Window(w).Int("limit", limit)
	return report(ctx, s, key, func(ctx context.Context) ([]Region, error) {
		spec, err := s.catalog.Get(aggregation.MetricGeography)
		if err != nil {
			return nil, err
		}
		spec = spec.WithFilter(notCancelled).WithRank(aggregation.OpCount, limit)
		rows, err := s.engine.Aggregate(ctx, spec, w, spec.GroupBy)
		if err != nil {
			return nil, err
		}
		out := make([]Region, 0, len(rows))
		for _, row := range rows {
			out = append(out, Region{
				City:       row.Key(0),
				State:      row.Key(1),
				OrderCount: row.Count,
				Revenue:    money(row.Sum("revenue")),
				Percentage: money(row.Pct(aggregation.OpCount)),
			})
		}
		return out, nil
	})
}

// BookingTrends returns bookings per bucket and per status.
func (s *Service) BookingTrends(ctx context.Context, w aggregation.Window) (BookingTrends, error) {
	key := cache.NewKey("report.booking_trends").Window(w)
	return report(ctx, s, key, func(ctx context.Context) (BookingTrends, error) {
		var buckets, statuses []aggregation.AggregateRow
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			buckets, err = s.run(gctx, aggregation.MetricBookingActivity, w, aggregation.DimBucket)
			return err
		})
		g.Go(func() error {
			var err error
			statuses, err = s.run(gctx, aggregation.MetricBookingActivity, w, aggregation.DimStatus)
			return err
		})
		if err := g.Wait(); err != nil {
			return BookingTrends{}, err
		}

		out := BookingTrends{Buckets: make([]BookingBucket, 0, len(buckets)), Statuses: statusCounts(statuses)}
		for _, row := range buckets {
			out.Buckets = append(out.Buckets, BookingBucket{
				Bucket:   row.Key(0),
				Bookings: row.Count,
				Revenue:  money(row.Sum("revenue")),
			})
		}
		return out, nil
	})
}

// Metric evaluates a catalog metric. groupBy overrides the metric's default
// grouping; limit > 0 ranks by the metric's rank measure (or count).
func (s *Service) Metric(ctx context.Context, name string, w aggregation.Window, groupBy []string, limit int) (MetricResult, error) {
	spec, err := s.catalog.Get(name)
	if err != nil {
		return MetricResult{}, err
	}
	if groupBy == nil {
		groupBy = spec.GroupBy
	}
	if limit > 0 {
		by := aggregation.OpCount
		if spec.Rank != nil {
			by = spec.Rank.By
		}
		spec = spec.WithRank(by, limit)
	}

	rows, err := s.Aggregate(ctx, spec, w, groupBy)
	if err != nil {
		return MetricResult{}, err
	}
	return MetricResult{Metric: name, Window: w, GroupBy: groupBy, Rows: rows}, nil
}

// compareWindows aggregates spec over w and the window before it.
func (s *Service) compareWindows(ctx context.Context, spec aggregation.MetricSpec, w aggregation.Window) (current, previous []aggregation.AggregateRow, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.engine.Aggregate(gctx, spec, w, spec.GroupBy)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.engine.Aggregate(gctx, spec, w.Previous(), spec.GroupBy)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return current, previous, nil
}

func growthByKey(current, previous []aggregation.AggregateRow) map[string]aggregation.Growth {
	out := make(map[string]aggregation.Growth, len(current))
	for _, rg := range aggregation.CompareRows(current, previous, aggregation.OpCount) {
		out[joinKey(rg.GroupKey)] = rg.Growth
	}
	return out
}

// weekdayNumber is the ISO number of a normalized day name, 0 when unknown.
func weekdayNumber(day string) int {
	for i, d := range aggregation.Weekdays {
		if d == day {
			return i + 1
		}
	}
	return 0
}

func statusCounts(rows []aggregation.AggregateRow) []StatusCount {
	out := make([]StatusCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, StatusCount{
			Status:     row.Key(0),
			Count:      row.Count,
			Percentage: money(row.Pct(aggregation.OpCount)),
		})
	}
	return out
}

// Warm precomputes the default-window reports.
func (s *Service) Warm(ctx context.Context) error {
	w := s.DefaultWindow()
	limit := s.cfg.DefaultLimit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { _, err := s.FinanceOverview(gctx, w); return err })
	g.Go(func() error { _, err := s.FinanceTrends(gctx, w); return err })
	g.Go(func() error { _, err := s.HourlyPatterns(gctx, w); return err })
	g.Go(func() error { _, err := s.PeakHours(gctx, w); return err })
	g.Go(func() error { _, err := s.DayOfWeek(gctx, w); return err })
	g.Go(func() error { _, err := s.Velocity(gctx); return err })
	g.Go(func() error { _, err := s.Funnel(gctx, w); return err })
	g.Go(func() error { _, err := s.BestSellers(gctx, w, limit); return err })
	g.Go(func() error { _, err := s.CategoryPerformance(gctx, w); return err })
	return g.Wait()
}
