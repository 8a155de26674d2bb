package recommend

import (
	"sort"
	"time"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

var (
	daysPerMonth   = decimal.NewFromInt(30)
	monthsPerYear  = decimal.NewFromInt(12)
	defaultPercent = 80
)

// CustomerStats is one customer's order history.
type CustomerStats struct {
	UserID        string
	Orders        int64
	Spent         decimal.Decimal
	AvgOrderValue decimal.Decimal
	FirstOrder    time.Time
	LastOrder     time.Time
	CashOrders    int64
	OnlineOrders  int64
}

// SegmentOptions tunes SegmentCustomers.
type SegmentOptions struct {
	// Percentile of spend and order count a customer must reach to be
	// high-value or frequent.
	Percentile     int
	InactivityDays int
	// Limit caps the customers listed, highest predicted value first. The
	// counts always cover the whole population.
	Limit int
}

// SegmentCustomers assigns each customer to the high-value, frequent, at-risk
// and new segments and predicts an annual lifetime value from the average
// order value and the monthly order frequency over the active span.
func SegmentCustomers(customers []CustomerStats, now time.Time, opts SegmentOptions) SegmentReport {
	if opts.Percentile <= 0 || opts.Percentile > 100 {
		opts.Percentile = defaultPercent
	}
	inactivity := time.Duration(opts.InactivityDays) * day

	spend := make([]decimal.Decimal, 0, len(customers))
	orders := make([]decimal.Decimal, 0, len(customers))
	for _, c := range customers {
		if c.Orders <= 0 {
			continue
		}
		spend = append(spend, c.Spent)
		orders = append(orders, decimal.NewFromInt(c.Orders))
	}

	spendCut := Percentile(spend, opts.Percentile)
	ordersCut := Percentile(orders, opts.Percentile)
	report := SegmentReport{
		Customers:          make([]CustomerProfile, 0, len(customers)),
		Counts:             make(map[string]int, len(Segments)),
		SpendThreshold:     spendCut.Round(2),
		FrequencyThreshold: ordersCut.Round(2),
	}
	for _, s := range Segments {
		report.Counts[s] = 0
	}
	if len(spend) == 0 {
		return report
	}

	for _, c := range customers {
		if c.Orders <= 0 {
			continue
		}
		p := profile(c, now)

		if c.Spent.GreaterThanOrEqual(spendCut) {
			p.Segments = append(p.Segments, SegmentHighValue)
		}
		if decimal.NewFromInt(c.Orders).GreaterThanOrEqual(ordersCut) {
			p.Segments = append(p.Segments, SegmentFrequent)
		}
		if now.Sub(c.LastOrder) > inactivity {
			p.Segments = append(p.Segments, SegmentAtRisk)
		}
		if now.Sub(c.FirstOrder) <= inactivity {
			p.Segments = append(p.Segments, SegmentNew)
		}
		for _, s := range p.Segments {
			report.Counts[s]++
		}
		if p.CashOnly {
			report.CashOnlyCustomers++
		}
		if p.OnlineOnly {
			report.OnlineOnly++
		}
		report.Customers = append(report.Customers, p)
	}

	sort.SliceStable(report.Customers, func(i, j int) bool {
		a, b := report.Customers[i], report.Customers[j]
		if !a.PredictedAnnualValue.Equal(b.PredictedAnnualValue) {
			return a.PredictedAnnualValue.GreaterThan(b.PredictedAnnualValue)
		}
		return a.UserID < b.UserID
	})
	if opts.Limit > 0 && len(report.Customers) > opts.Limit {
		report.Customers = report.Customers[:opts.Limit]
	}
	return report
}

func profile(c CustomerStats, now time.Time) CustomerProfile {
	activeDays := int64(c.LastOrder.Sub(c.FirstOrder) / day)
	if activeDays < 1 {
		activeDays = 1
	}
	frequency := decimal.NewFromInt(c.Orders).Mul(daysPerMonth).Div(decimal.NewFromInt(activeDays))
	avg := c.AvgOrderValue
	if avg.IsZero() {
		avg = aggregation.SafeDiv(c.Spent, decimal.NewFromInt(c.Orders))
	}

	return CustomerProfile{
		UserID:               c.UserID,
		Segments:             []string{},
		TotalSpent:           c.Spent.Round(2),
		OrderCount:           c.Orders,
		AvgOrderValue:        avg.Round(2),
		FrequencyPerMonth:    frequency.Round(2),
		PredictedAnnualValue: avg.Mul(frequency).Mul(monthsPerYear).Round(2),
		DaysSinceLastOrder:   int(now.Sub(c.LastOrder) / day),
		CashOnly:             c.CashOrders > 0 && c.OnlineOrders == 0,
		OnlineOnly:           c.OnlineOrders > 0 && c.CashOrders == 0,
	}
}

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks. Empty input yields zero.
func Percentile(values []decimal.Decimal, p int) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	rank := decimal.NewFromInt(int64(p)).Div(hundred).Mul(decimal.NewFromInt(int64(len(sorted) - 1)))
	lo := int(rank.IntPart())
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank.Sub(decimal.NewFromInt(int64(lo)))
	return sorted[lo].Add(sorted[lo+1].Sub(sorted[lo]).Mul(frac))
}
