package analytics

import (
	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/shopspring/decimal"
)

// FinanceOverview splits revenue of non-cancelled orders by payment method.
// Orders still PENDING payment are collected in cash on delivery; PAID orders
// were settled online.
type FinanceOverview struct {
	Window             aggregation.Window `json:"window"`
	TotalRevenue       decimal.Decimal    `json:"total_revenue"`
	CashRevenue        decimal.Decimal    `json:"cash_revenue"`
	OnlineRevenue      decimal.Decimal    `json:"online_revenue"`
	CashPercentage     decimal.Decimal    `json:"cash_percentage"`
	OnlinePercentage   decimal.Decimal    `json:"online_percentage"`
	FailedPaymentsLoss decimal.Decimal    `json:"failed_payments_loss"`
	RefundedAmount     decimal.Decimal    `json:"refunded_amount"`
	PendingCOD         decimal.Decimal    `json:"pending_cod"`
	OrderCount         int64              `json:"order_count"`
}

// PaymentTrendPoint is one bucket of the payment trend series.
type PaymentTrendPoint struct {
	Bucket       string          `json:"bucket"`
	CashAmount   decimal.Decimal `json:"cash_amount"`
	OnlineAmount decimal.Decimal `json:"online_amount"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// FinanceTrends is the bucketed payment series plus the window summary.
type FinanceTrends struct {
	Trends  []PaymentTrendPoint `json:"trends"`
	Summary FinanceOverview     `json:"summary"`
}

// HourlyPayment is cash versus online activity within one hour of day.
type HourlyPayment struct {
	Hour         int             `json:"hour"`
	CashOrders   int64           `json:"cash_orders"`
	OnlineOrders int64           `json:"online_orders"`
	CashAmount   decimal.Decimal `json:"cash_amount"`
	OnlineAmount decimal.Decimal `json:"online_amount"`
}

// HourActivity is order volume within one hour of day.
type HourActivity struct {
	Hour          int             `json:"hour"`
	OrderCount    int64           `json:"order_count"`
	Revenue       decimal.Decimal `json:"total_revenue"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
	Percentage    decimal.Decimal `json:"percentage"`
}

// DayActivity is order volume on one weekday. DayNumber is ISO (1 = Monday).
type DayActivity struct {
	Day           string          `json:"day"`
	DayNumber     int             `json:"day_number"`
	OrderCount    int64           `json:"order_count"`
	Revenue       decimal.Decimal `json:"total_revenue"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
	Percentage    decimal.Decimal `json:"percentage"`
}

// PeriodGrowth compares order counts of a period to-date with the previous one.
type PeriodGrowth struct {
	Current       aggregation.Window `json:"current_window"`
	Previous      aggregation.Window `json:"previous_window"`
	Growth        aggregation.Growth `json:"growth"`
	GrowthPercent *decimal.Decimal   `json:"growth_rate"`
}

// Velocity is week-to-date and month-to-date order growth.
type Velocity struct {
	Weekly  PeriodGrowth `json:"weekly"`
	Monthly PeriodGrowth `json:"monthly"`
}

// StatusCount is the number of records in one status.
type StatusCount struct {
	Status     string          `json:"status"`
	Count      int64           `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Funnel is the order status distribution of a window.
type Funnel struct {
	Statuses         []StatusCount   `json:"statuses"`
	TotalOrders      int64           `json:"total_orders"`
	Delivered        int64           `json:"delivered"`
	Cancelled        int64           `json:"cancelled"`
	ConversionRate   decimal.Decimal `json:"conversion_rate"`
	CancellationRate decimal.Decimal `json:"cancellation_rate"`
}

// ProductSales is one product ranked by orders.
type ProductSales struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	OrderCount  int64           `json:"order_count"`
	Units       decimal.Decimal `json:"total_quantity"`
	Revenue     decimal.Decimal `json:"total_revenue"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
}

// CategoryPerformance is revenue and order growth of one category.
type CategoryPerformance struct {
	CategoryID    string             `json:"category_id"`
	CategoryName  string             `json:"category_name"`
	OrderCount    int64              `json:"order_count"`
	Units         decimal.Decimal    `json:"total_quantity"`
	Revenue       decimal.Decimal    `json:"revenue"`
	RevenueShare  decimal.Decimal    `json:"revenue_share"`
	OrderGrowth   aggregation.Growth `json:"order_growth"`
	GrowthPercent *decimal.Decimal   `json:"growth_rate"`
}

// TrendingProduct is a product whose orders grew against the previous window.
// New is set when the product had no orders in the previous window.
type TrendingProduct struct {
	ProductID      string             `json:"product_id"`
	ProductName    string             `json:"product_name"`
	CurrentOrders  int64              `json:"current_orders"`
	PreviousOrders int64              `json:"previous_orders"`
	Growth         aggregation.Growth `json:"growth"`
	GrowthPercent  *decimal.Decimal   `json:"growth_rate"`
	New            bool               `json:"new"`
}

// Region is order volume in one city.
type Region struct {
	City       string          `json:"city"`
	State      string          `json:"state"`
	OrderCount int64           `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
	Percentage decimal.Decimal `json:"percentage"`
}

// BookingBucket is booking volume in one bucket.
type BookingBucket struct {
	Bucket   string          `json:"bucket"`
	Bookings int64           `json:"bookings"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// BookingTrends is the bucketed booking series plus its status breakdown.
type BookingTrends struct {
	Buckets  []BookingBucket `json:"buckets"`
	Statuses []StatusCount   `json:"statuses"`
}

// MetricResult is the generic output of a catalog metric.
type MetricResult struct {
	Metric  string                     `json:"metric"`
	Window  aggregation.Window         `json:"window"`
	GroupBy []string                   `json:"group_by"`
	Rows    []aggregation.AggregateRow `json:"rows"`
}
