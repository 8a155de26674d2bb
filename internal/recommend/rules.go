package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/shopspring/decimal"
)

// Rule turns one input into a recommendation when its condition holds.
type Rule[T any] struct {
	Name  string
	Apply func(T) (Recommendation, bool)
}

// Evaluate runs every rule against every input, in order.
func Evaluate[T any](rules []Rule[T], inputs ...T) []Recommendation {
	out := make([]Recommendation, 0)
	for _, in := range inputs {
		for _, r := range rules {
			rec, ok := r.Apply(in)
			if !ok {
				continue
			}
			rec.Rule = r.Name
			out = append(out, rec)
		}
	}
	return out
}

// ProductPricing is a product's price and its order volume in the window.
type ProductPricing struct {
	ProductID   string
	ProductName string
	Price       decimal.Decimal
	Orders      int64
}

// CategoryTrend is a category's revenue share and order growth.
type CategoryTrend struct {
	CategoryID   string
	CategoryName string
	RevenueShare decimal.Decimal
	Growth       aggregation.Growth
}

// CustomerActivity is a customer's lifetime value and recency.
type CustomerActivity struct {
	UserID             string
	LifetimeValue      decimal.Decimal
	DaysSinceLastOrder int
}

// HourCount is the number of orders placed within an hour of day.
type HourCount struct {
	Hour   int
	Orders int64
}

// OperationsInput summarizes order timing and payment mix.
type OperationsInput struct {
	Hours        []HourCount
	CashOrders   int64
	OnlineOrders int64
}

var (
	premiumPrice      = decimal.NewFromInt(2000)
	budgetPrice       = decimal.NewFromInt(500)
	decliningShare    = decimal.NewFromInt(5)
	highLifetimeValue = decimal.NewFromInt(1000)
	cashHeavyShare    = decimal.NewFromInt(50)
	lowDemandFraction = decimal.RequireFromString("0.5")
	premiumLowOrders  = int64(10)
	budgetHighOrders  = int64(50)
	peakHourCount     = 3
	maxLowDemandHours = 5
)

// PricingProductRules flag products whose price and demand look mismatched.
var PricingProductRules = []Rule[ProductPricing]{
	{Name: "premium_low_demand", Apply: premiumLowDemand},
	{Name: "budget_high_demand", Apply: budgetHighDemand},
}

// PricingCategoryRules flag shrinking categories.
var PricingCategoryRules = []Rule[CategoryTrend]{
	{Name: "declining_category", Apply: decliningCategory},
}

// OperationsRules look at order timing and payment mix.
var OperationsRules = []Rule[OperationsInput]{
	{Name: "peak_staffing", Apply: peakStaffing},
	{Name: "cash_heavy", Apply: cashHeavy},
	{Name: "low_demand_hours", Apply: lowDemandHours},
}

// RetentionRules target customers inactive for more than inactivityDays.
func RetentionRules(inactivityDays int) []Rule[CustomerActivity] {
	inactive := func(c CustomerActivity) bool { return c.DaysSinceLastOrder > inactivityDays }
	return []Rule[CustomerActivity]{
		{
			Name: "win_back_high_value",
			Apply: func(c CustomerActivity) (Recommendation, bool) {
				if !inactive(c) || !c.LifetimeValue.GreaterThan(highLifetimeValue) {
					return Recommendation{}, false
				}
				return retention(c, PriorityHigh, "Send win-back offer (15% discount)"), true
			},
		},
		{
			Name: "re_engage",
			Apply: func(c CustomerActivity) (Recommendation, bool) {
				if !inactive(c) || c.LifetimeValue.GreaterThan(highLifetimeValue) {
					return Recommendation{}, false
				}
				return retention(c, PriorityMedium, "Send re-engagement email"), true
			},
		},
	}
}

func retention(c CustomerActivity, p Priority, action string) Recommendation {
	return Recommendation{
		Kind:      KindRetention,
		SubjectID: c.UserID,
		Priority:  p,
		Payload: map[string]any{
			"days_since_last_order": c.DaysSinceLastOrder,
			"lifetime_value":        c.LifetimeValue.Round(2),
			"action":                action,
		},
		Rationale: fmt.Sprintf("No order for %d days after spending %s", c.DaysSinceLastOrder, c.LifetimeValue.StringFixed(2)),
	}
}

func premiumLowDemand(p ProductPricing) (Recommendation, bool) {
	if !p.Price.GreaterThan(premiumPrice) || p.Orders >= premiumLowOrders {
		return Recommendation{}, false
	}
	return pricing(p, PriorityMedium, "Consider 10-15% discount to boost demand", "High price point with low conversion"), true
}

func budgetHighDemand(p ProductPricing) (Recommendation, bool) {
	if !p.Price.LessThan(budgetPrice) || p.Orders <= budgetHighOrders {
		return Recommendation{}, false
	}
	return pricing(p, PriorityLow, "Consider slight price increase (5-10%)", "High demand suggests room for margin improvement"), true
}

func pricing(p ProductPricing, priority Priority, action, reason string) Recommendation {
	return Recommendation{
		Kind:      KindPricing,
		SubjectID: p.ProductID,
		Priority:  priority,
		Payload: map[string]any{
			"product_name":  p.ProductName,
			"current_price": p.Price.Round(2),
			"order_count":   p.Orders,
			"action":        action,
		},
		Rationale: reason,
	}
}

func decliningCategory(c CategoryTrend) (Recommendation, bool) {
	if !c.RevenueShare.LessThan(decliningShare) || c.Growth.Rate == nil || !c.Growth.Rate.IsNegative() {
		return Recommendation{}, false
	}
	return Recommendation{
		Kind:      KindPricing,
		SubjectID: c.CategoryID,
		Priority:  PriorityMedium,
		Payload: map[string]any{
			"category_name": c.CategoryName,
			"revenue_share": c.RevenueShare.Round(2),
			"growth_rate":   c.Growth.Percent(),
			"action":        "Review category pricing and promotions",
		},
		Rationale: fmt.Sprintf("%s holds %s%% of revenue and orders fell %s%%",
			c.CategoryName, c.RevenueShare.StringFixed(1), c.Growth.Percent().Abs().StringFixed(1)),
	}, true
}

func peakStaffing(in OperationsInput) (Recommendation, bool) {
	hours := make([]HourCount, 0, len(in.Hours))
	for _, h := range in.Hours {
		if h.Orders > 0 {
			hours = append(hours, h)
		}
	}
	if len(hours) == 0 {
		return Recommendation{}, false
	}
	sort.SliceStable(hours, func(i, j int) bool {
		if hours[i].Orders != hours[j].Orders {
			return hours[i].Orders > hours[j].Orders
		}
		return hours[i].Hour < hours[j].Hour
	})
	if len(hours) > peakHourCount {
		hours = hours[:peakHourCount]
	}
	peak := hourList(hours)
	return Recommendation{
		Kind:     KindOperations,
		Priority: PriorityHigh,
		Payload: map[string]any{
			"type":            "staffing",
			"hours":           hourNumbers(hours),
			"action":          "Ensure adequate delivery staff during these hours",
			"expected_impact": "Reduce delivery delays",
		},
		Rationale: "Peak order hours: " + peak,
	}, true
}

func cashHeavy(in OperationsInput) (Recommendation, bool) {
	total := in.CashOrders + in.OnlineOrders
	if total == 0 {
		return Recommendation{}, false
	}
	share := aggregation.Percent(decimal.NewFromInt(in.CashOrders), decimal.NewFromInt(total))
	if !share.GreaterThan(cashHeavyShare) {
		return Recommendation{}, false
	}
	return Recommendation{
		Kind:     KindOperations,
		Priority: PriorityMedium,
		Payload: map[string]any{
			"type":            "promotion",
			"cash_percentage": share.Round(2),
			"action":          "Promote online payment with 5-10% discount",
			"expected_impact": "Increase online payments, reduce COD handling costs",
		},
		Rationale: fmt.Sprintf("%s%% of orders are cash-based", share.Round(0).String()),
	}, true
}

func lowDemandHours(in OperationsInput) (Recommendation, bool) {
	if len(in.Hours) == 0 {
		return Recommendation{}, false
	}
	var total int64
	for _, h := range in.Hours {
		total += h.Orders
	}
	if total == 0 {
		return Recommendation{}, false
	}
	cutoff := decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(len(in.Hours)))).Mul(lowDemandFraction)

	low := make([]HourCount, 0, maxLowDemandHours)
	for _, h := range in.Hours {
		if decimal.NewFromInt(h.Orders).LessThan(cutoff) {
			low = append(low, h)
			if len(low) == maxLowDemandHours {
				break
			}
		}
	}
	if len(low) == 0 {
		return Recommendation{}, false
	}
	return Recommendation{
		Kind:     KindOperations,
		Priority: PriorityLow,
		Payload: map[string]any{
			"type":            "promotion",
			"hours":           hourNumbers(low),
			"action":          "Run flash sales or discounts during these hours",
			"expected_impact": "Increase off-peak orders",
		},
		Rationale: "Low-demand hours: " + hourList(low),
	}, true
}

func hourNumbers(hours []HourCount) []int {
	out := make([]int, len(hours))
	for i, h := range hours {
		out[i] = h.Hour
	}
	return out
}

func hourList(hours []HourCount) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = fmt.Sprintf("%d:00", h.Hour)
	}
	return strings.Join(parts, ", ")
}
