package recommend

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/aevon-lab/tradepulse/internal/cache"
	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/shopspring/decimal"
)

const (
	// analysisDays is the window of the hour, pricing and operations analyses.
	analysisDays = 30
	// minPricingOrders excludes products with too few orders to judge.
	minPricingOrders = 5
	retentionLimit   = 50
	segmentLimit     = 50
	maxHorizon       = 90
)

var notCancelled = aggregation.Filter{Field: aggregation.DimStatus, Op: aggregation.FilterNe, Value: "CANCELLED"}

// Aggregator computes aggregate rows. analytics.Service satisfies it with
// cached results.
type Aggregator interface {
	Aggregate(ctx context.Context, spec aggregation.MetricSpec, window aggregation.Window, groupBy []string) ([]aggregation.AggregateRow, error)
}

// Config holds the recommendation thresholds. LookbackDays bounds the
// customer history read for segmentation and retention and must exceed
// InactivityDays.
type Config struct {
	TopN              int
	ForecastHorizon   int
	LeadTimeDays      int
	SupplyDays        int
	MinHistoryDays    int
	InactivityDays    int
	SegmentPercentile int
	HistoryDays       int
	LookbackDays      int
	TTL               time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TopN:              DefaultTopN,
		ForecastHorizon:   7,
		LeadTimeDays:      7,
		SupplyDays:        30,
		MinHistoryDays:    7,
		InactivityDays:    30,
		SegmentPercentile: 80,
		HistoryDays:       60,
		LookbackDays:      1095,
		TTL:               10 * time.Minute,
	}
}

// Service derives recommendations from cached aggregates and caches the
// results with its own TTL.
type Service struct {
	agg     Aggregator
	catalog *aggregation.Catalog
	cache   *cache.Cache
	cfg     Config
	nowFn   func() time.Time
}

// NewService creates the recommendation service. c may be nil.
func NewService(agg Aggregator, catalog *aggregation.Catalog, c *cache.Cache, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.ForecastHorizon <= 0 {
		cfg.ForecastHorizon = def.ForecastHorizon
	}
	if cfg.LeadTimeDays <= 0 {
		cfg.LeadTimeDays = def.LeadTimeDays
	}
	if cfg.SupplyDays <= 0 {
		cfg.SupplyDays = def.SupplyDays
	}
	if cfg.InactivityDays <= 0 {
		cfg.InactivityDays = def.InactivityDays
	}
	if cfg.SegmentPercentile <= 0 {
		cfg.SegmentPercentile = def.SegmentPercentile
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = def.HistoryDays
	}
	if cfg.LookbackDays <= cfg.InactivityDays {
		cfg.LookbackDays = max(def.LookbackDays, 2*cfg.InactivityDays)
	}
	return &Service{
		agg:     agg,
		catalog: catalog,
		cache:   c,
		cfg:     cfg,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// analysisWindow covers the last 30 days up to the current hour.
func (s *Service) analysisWindow() aggregation.Window {
	end := s.nowFn().UTC().Truncate(time.Hour)
	return aggregation.Window{Start: end.AddDate(0, 0, -analysisDays), End: end, Granularity: aggregation.GranularityDay}
}

// historyWindow covers the configured number of whole days before today.
func (s *Service) historyWindow() aggregation.Window {
	end := aggregation.Truncate(s.nowFn(), aggregation.GranularityDay)
	return aggregation.Window{Start: end.AddDate(0, 0, -s.cfg.HistoryDays), End: end, Granularity: aggregation.GranularityDay}
}

// lookbackWindow covers the customer history used for segmentation and
// retention, ending at the start of today.
func (s *Service) lookbackWindow() aggregation.Window {
	end := aggregation.Truncate(s.nowFn(), aggregation.GranularityDay)
	return aggregation.Window{Start: end.AddDate(0, 0, -s.cfg.LookbackDays), End: end, Granularity: aggregation.GranularityDay}
}

func (s *Service) fetch(ctx context.Context, metric string, w aggregation.Window, filters []aggregation.Filter, groupBy ...string) ([]aggregation.AggregateRow, error) {
	spec, err := s.catalog.Get(metric)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		spec = spec.WithFilter(f)
	}
	if groupBy == nil {
		groupBy = spec.GroupBy
	}
	return s.agg.Aggregate(ctx, spec, w, groupBy)
}

func remember[V any](ctx context.Context, s *Service, key *cache.KeyBuilder, compute func(context.Context) (V, error)) (V, error) {
	return cache.GetOrCompute(ctx, s.cache, key.String(), s.cfg.TTL, compute)
}

// BestOrderTime recommends the topN hours with the best delivery record.
// topN <= 0 uses the configured default.
func (s *Service) BestOrderTime(ctx context.Context, topN int) (BestTime, error) {
	if topN <= 0 {
		topN = s.cfg.TopN
	}
	w := s.analysisWindow()
	key := cache.NewKey("recommend.best_order_time").Window(w).Int("top_n", topN)
	return remember(ctx, s, key, func(ctx context.Context) (BestTime, error) {
		rows, err := s.fetch(ctx, aggregation.MetricOrderFulfilment, w, nil, aggregation.DimHourOfDay)
		if err != nil {
			return BestTime{}, err
		}
		return BestOrderTime(rows, topN), nil
	})
}

// DemandForecast predicts daily non-cancelled orders for the next horizon
// days. History starts at the first day with an order.
func (s *Service) DemandForecast(ctx context.Context, horizon int) (Forecast, error) {
	if horizon == 0 {
		horizon = s.cfg.ForecastHorizon
	}
	if horizon < 1 || horizon > maxHorizon {
		return Forecast{}, aggregation.InvalidSpecf("horizon must be between 1 and %d", maxHorizon)
	}
	w := s.historyWindow()
	key := cache.NewKey("recommend.demand_forecast").Window(w).Int("horizon", horizon)
	return remember(ctx, s, key, func(ctx context.Context) (Forecast, error) {
		rows, err := s.fetch(ctx, aggregation.MetricOrderStatus, w, []aggregation.Filter{notCancelled}, aggregation.DimBucket)
		if err != nil {
			return Forecast{}, err
		}
		return ForecastDemand(dailySeries(rows), horizon, w.End)
	})
}

// dailySeries returns the per-bucket counts with leading empty days removed.
func dailySeries(rows []aggregation.AggregateRow) []decimal.Decimal {
	series := make([]decimal.Decimal, 0, len(rows))
	started := false
	for _, row := range rows {
		if !started && row.Count == 0 {
			continue
		}
		started = true
		series = append(series, decimal.NewFromInt(row.Count))
	}
	return series
}

// Restock predicts stockouts for every catalog product, or only productID
// when it is set.
func (s *Service) Restock(ctx context.Context, productID string) ([]Recommendation, error) {
	w := s.historyWindow()
	key := cache.NewKey("recommend.restock").Window(w).Str("product_id", productID)
	return remember(ctx, s, key, func(ctx context.Context) ([]Recommendation, error) {
		var filters []aggregation.Filter
		if productID != "" {
			filters = append(filters, aggregation.Filter{Field: aggregation.DimProductID, Op: aggregation.FilterEq, Value: productID})
		}

		products, err := s.fetch(ctx, aggregation.MetricProductCatalog, w, filters)
		if err != nil {
			return nil, err
		}
		daily, err := s.fetch(ctx, aggregation.MetricProductDailyDemand, w, filters)
		if err != nil {
			return nil, err
		}

		type demand struct {
			units  decimal.Decimal
			active int
		}
		byProduct := make(map[string]*demand)
		for _, row := range daily {
			if row.Count == 0 {
				continue
			}
			d, ok := byProduct[row.Key(0)]
			if !ok {
				d = &demand{}
				byProduct[row.Key(0)] = d
			}
			d.units = d.units.Add(row.Sum("units"))
			d.active++
		}

		inputs := make([]ProductDemand, 0, len(products))
		for _, row := range products {
			in := ProductDemand{ProductID: row.Key(0), ProductName: row.Key(1), Stock: row.Sum("stock")}
			if d, ok := byProduct[in.ProductID]; ok {
				in.TotalQuantity = d.units
				in.ActiveDays = d.active
			}
			inputs = append(inputs, in)
		}
		return PredictRestock(inputs, RestockOptions{
			LeadTimeDays:   s.cfg.LeadTimeDays,
			SupplyDays:     s.cfg.SupplyDays,
			MinHistoryDays: s.cfg.MinHistoryDays,
			WindowDays:     w.Days(),
		}), nil
	})
}

// CustomerSegments segments the customers active in the lookback window.
func (s *Service) CustomerSegments(ctx context.Context) (SegmentReport, error) {
	w := s.lookbackWindow()
	key := cache.NewKey("recommend.customer_segments").Window(w)
	return remember(ctx, s, key, func(ctx context.Context) (SegmentReport, error) {
		stats, err := s.customerStats(ctx, w)
		if err != nil {
			return SegmentReport{}, err
		}
		return SegmentCustomers(stats, s.nowFn(), SegmentOptions{
			Percentile:     s.cfg.SegmentPercentile,
			InactivityDays: s.cfg.InactivityDays,
			Limit:          segmentLimit,
		}), nil
	})
}

func (s *Service) customerStats(ctx context.Context, w aggregation.Window) ([]CustomerStats, error) {
	rows, err := s.fetch(ctx, aggregation.MetricCustomerValue, w, nil)
	if err != nil {
		return nil, err
	}
	payments, err := s.fetch(ctx, aggregation.MetricCustomerPayments, w, nil)
	if err != nil {
		return nil, err
	}

	type mix struct{ cash, online int64 }
	methods := make(map[string]mix)
	for _, row := range payments {
		m := methods[row.Key(0)]
		switch row.Key(1) {
		case "cash":
			m.cash += row.Count
		case "online":
			m.online += row.Count
		}
		methods[row.Key(0)] = m
	}

	out := make([]CustomerStats, 0, len(rows))
	for _, row := range rows {
		m := methods[row.Key(0)]
		out = append(out, CustomerStats{
			UserID:        row.Key(0),
			Orders:        row.Count,
			Spent:         row.Sum("spent"),
			AvgOrderValue: row.Avg("order_value"),
			FirstOrder:    epoch(row.Sum("first_order")),
			LastOrder:     epoch(row.Sum("last_order")),
			CashOrders:    m.cash,
			OnlineOrders:  m.online,
		})
	}
	return out, nil
}

func epoch(d decimal.Decimal) time.Time {
	return time.Unix(d.IntPart(), 0).UTC()
}

// Pricing flags mispriced products and shrinking categories.
func (s *Service) Pricing(ctx context.Context) ([]Recommendation, error) {
	w := s.analysisWindow()
	key := cache.NewKey("recommend.pricing").Window(w)
	return remember(ctx, s, key, func(ctx context.Context) ([]Recommendation, error) {
		catalogRows, err := s.fetch(ctx, aggregation.MetricProductCatalog, w, nil)
		if err != nil {
			return nil, err
		}
		salesSpec, err := s.catalog.Get(aggregation.MetricProductSales)
		if err != nil {
			return nil, err
		}
		salesSpec.Rank = nil
		sales, err := s.agg.Aggregate(ctx, salesSpec, w, salesSpec.GroupBy)
		if err != nil {
			return nil, err
		}

		orders := make(map[string]int64, len(sales))
		for _, row := range sales {
			orders[row.Key(0)] = row.Count
		}
		products := make([]ProductPricing, 0, len(catalogRows))
		for _, row := range catalogRows {
			n := orders[row.Key(0)]
			if n <= minPricingOrders {
				continue
			}
			products = append(products, ProductPricing{
				ProductID:   row.Key(0),
				ProductName: row.Key(1),
				Price:       row.Sum("price"),
				Orders:      n,
			})
		}

		spec, err := s.catalog.Get(aggregation.MetricCategorySales)
		if err != nil {
			return nil, err
		}
		current, err := s.agg.Aggregate(ctx, spec, w, spec.GroupBy)
		if err != nil {
			return nil, err
		}
		previous, err := s.agg.Aggregate(ctx, spec, w.Previous(), spec.GroupBy)
		if err != nil {
			return nil, err
		}
		growth := aggregation.CompareRows(current, previous, aggregation.OpCount)
		categories := make([]CategoryTrend, 0, len(current))
		for i, row := range current {
			categories = append(categories, CategoryTrend{
				CategoryID:   row.Key(0),
				CategoryName: row.Key(1),
				RevenueShare: row.Pct("revenue"),
				Growth:       growth[i].Growth,
			})
		}

		out := Evaluate(PricingProductRules, products...)
		return append(out, Evaluate(PricingCategoryRules, categories...)...), nil
	})
}

// Retention lists inactive customers, highest lifetime value first.
func (s *Service) Retention(ctx context.Context) ([]Recommendation, error) {
	w := s.lookbackWindow()
	key := cache.NewKey("recommend.retention").Window(w).Int("inactivity_days", s.cfg.InactivityDays)
	return remember(ctx, s, key, func(ctx context.Context) ([]Recommendation, error) {
		rows, err := s.fetch(ctx, aggregation.MetricCustomerValue, w, nil)
		if err != nil {
			return nil, err
		}
		now := s.nowFn()
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := rows[i].Sum("spent"), rows[j].Sum("spent")
			if !a.Equal(b) {
				return a.GreaterThan(b)
			}
			return rows[i].Key(0) < rows[j].Key(0)
		})

		customers := make([]CustomerActivity, 0, len(rows))
		for _, row := range rows {
			customers = append(customers, CustomerActivity{
				UserID:             row.Key(0),
				LifetimeValue:      row.Sum("spent"),
				DaysSinceLastOrder: int(now.Sub(epoch(row.Sum("last_order"))) / day),
			})
		}
		out := Evaluate(RetentionRules(s.cfg.InactivityDays), customers...)
		if len(out) > retentionLimit {
			out = out[:retentionLimit]
		}
		return out, nil
	})
}

// Operations recommends staffing and promotions from order timing and
// payment mix.
func (s *Service) Operations(ctx context.Context) ([]Recommendation, error) {
	w := s.analysisWindow()
	key := cache.NewKey("recommend.operations").Window(w)
	return remember(ctx, s, key, func(ctx context.Context) ([]Recommendation, error) {
		hours, err := s.fetch(ctx, aggregation.MetricOrderActivity, w, nil, aggregation.DimHourOfDay)
		if err != nil {
			return nil, err
		}
		payments, err := s.fetch(ctx, aggregation.MetricPaymentBreakdown, w, nil, aggregation.DimPaymentMethod)
		if err != nil {
			return nil, err
		}

		in := OperationsInput{Hours: make([]HourCount, 0, len(hours))}
		for _, row := range hours {
			h, err := strconv.Atoi(row.Key(0))
			if err != nil {
				continue
			}
			in.Hours = append(in.Hours, HourCount{Hour: h, Orders: row.Count})
		}
		for _, row := range payments {
			switch row.Key(0) {
			case "cash":
				in.CashOrders = row.Count
			case "online":
				in.OnlineOrders = row.Count
			}
		}
		return Evaluate(OperationsRules, in), nil
	})
}
