package recommend

import (
	"fmt"
	"sort"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/shopspring/decimal"
)

// Restock statuses.
const (
	StockNoRecentDemand = "no recent demand"
	StockLow            = "LOW"
	StockWatch          = "WATCH"
	StockOK             = "OK"
)

// ProductDemand is one product's stock and its demand over the history window.
type ProductDemand struct {
	ProductID     string
	ProductName   string
	Stock         decimal.Decimal
	TotalQuantity decimal.Decimal
	// ActiveDays counts the days of the window with at least one order.
	ActiveDays int
}

// RestockOptions tunes PredictRestock.
type RestockOptions struct {
	LeadTimeDays   int
	SupplyDays     int
	MinHistoryDays int
	// WindowDays is the length of the demand window.
	WindowDays int
}

// PredictRestock estimates when each product runs out of stock and how much
// to reorder. Products with demand but fewer than MinHistoryDays active days
// are skipped. Results are ordered by urgency.
func PredictRestock(products []ProductDemand, opts RestockOptions) []Recommendation {
	if opts.WindowDays < 1 {
		opts.WindowDays = 1
	}
	leadTime := decimal.NewFromInt(int64(opts.LeadTimeDays))
	windowDays := decimal.NewFromInt(int64(opts.WindowDays))

	out := make([]Recommendation, 0, len(products))
	urgency := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		demand := aggregation.SafeDiv(p.TotalQuantity, windowDays)
		payload := map[string]any{
			"product_name":     p.ProductName,
			"current_stock":    p.Stock,
			"avg_daily_demand": demand.Round(2),
		}

		if !demand.IsPositive() {
			payload["status"] = StockNoRecentDemand
			out = append(out, Recommendation{
				Kind:      KindRestock,
				SubjectID: p.ProductID,
				Priority:  PriorityLow,
				Payload:   payload,
				Rationale: fmt.Sprintf("%s had no orders in the last %d days", p.ProductName, opts.WindowDays),
			})
			continue
		}
		if p.ActiveDays < opts.MinHistoryDays {
			continue
		}

		daysLeft := p.Stock.Div(demand)
		if daysLeft.IsNegative() {
			daysLeft = decimal.Zero
		}
		reorder := demand.Mul(decimal.NewFromInt(int64(opts.SupplyDays))).Ceil().Sub(p.Stock)
		if reorder.IsNegative() {
			reorder = decimal.Zero
		}

		priority, status := PriorityLow, StockOK
		switch {
		case daysLeft.LessThan(leadTime):
			priority, status = PriorityHigh, StockLow
		case daysLeft.LessThan(leadTime.Add(leadTime)):
			priority, status = PriorityMedium, StockWatch
		}

		payload["status"] = status
		payload["predicted_days_until_stockout"] = daysLeft.Round(1)
		payload["recommended_restock_quantity"] = reorder
		urgency[p.ProductID] = daysLeft
		out = append(out, Recommendation{
			Kind:      KindRestock,
			SubjectID: p.ProductID,
			Priority:  priority,
			Payload:   payload,
			Rationale: fmt.Sprintf("%s sells %s units a day and runs out in %s days; reorder %s units for %d days of supply",
				p.ProductName, demand.StringFixed(2), daysLeft.StringFixed(1), reorder.String(), opts.SupplyDays),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, aok := urgency[out[i].SubjectID]
		b, bok := urgency[out[j].SubjectID]
		switch {
		case aok && bok && !a.Equal(b):
			return a.LessThan(b)
		case aok != bok:
			return aok
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out
}
