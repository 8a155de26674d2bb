package recommend

import (
	"github.com/shopspring/decimal"
)

// Kind names a recommendation family.
type Kind string

const (
	KindBestOrderTime  Kind = "best-order-time"
	KindRestock        Kind = "restock"
	KindDemandForecast Kind = "demand-forecast"
	KindPricing        Kind = "pricing"
	KindRetention      Kind = "retention"
	KindOperations     Kind = "operations"
	KindSegmentation   Kind = "segmentation"
)

// Priority of a recommendation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Recommendation is one actionable insight derived from aggregated data.
type Recommendation struct {
	Kind      Kind           `json:"kind"`
	Rule      string         `json:"rule,omitempty"`
	SubjectID string         `json:"subject_id,omitempty"`
	Priority  Priority       `json:"priority"`
	Payload   map[string]any `json:"payload"`
	Rationale string         `json:"rationale"`
}

// ForecastPoint is the predicted value for one future day.
type ForecastPoint struct {
	Date           string          `json:"date"`
	PredictedValue decimal.Decimal `json:"predicted_value"`
	LowerBound     decimal.Decimal `json:"lower_bound"`
	UpperBound     decimal.Decimal `json:"upper_bound"`
}

// Skipped marks a recommendation kind that produced nothing and why.
type Skipped struct {
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
}

// HourScore is the best-order-time evaluation of one hour of day.
type HourScore struct {
	Hour               int             `json:"hour"`
	Orders             int64           `json:"orders"`
	SuccessRate        decimal.Decimal `json:"success_rate"`
	AvgCompletionHours decimal.Decimal `json:"avg_completion_hours"`
	Score              decimal.Decimal `json:"score"`
}

// BestTime is the best-order-time recommendation.
type BestTime struct {
	RecommendedHours []int           `json:"recommended_hours"`
	Hours            []HourScore     `json:"hours"`
	AvgDeliveryHours decimal.Decimal `json:"avg_delivery_time"`
	SuccessRate      decimal.Decimal `json:"success_rate"`
	Rationale        string          `json:"reason"`
}

// Forecast is a demand forecast with the history summary it was built from.
type Forecast struct {
	Horizon       int             `json:"horizon"`
	HistoryDays   int             `json:"history_days"`
	MovingAverage decimal.Decimal `json:"moving_average"`
	Slope         decimal.Decimal `json:"slope"`
	StdDev        decimal.Decimal `json:"std_dev"`
	Points        []ForecastPoint `json:"points"`
}

// Customer segments. A customer may belong to several.
const (
	SegmentHighValue = "high-value"
	SegmentFrequent  = "frequent"
	SegmentAtRisk    = "at-risk"
	SegmentNew       = "new"
)

// Segments lists every segment in display order.
var Segments = []string{SegmentHighValue, SegmentFrequent, SegmentAtRisk, SegmentNew}

// CustomerProfile is one customer's segments and predicted lifetime value.
type CustomerProfile struct {
	UserID               string          `json:"user_id"`
	Segments             []string        `json:"segments"`
	TotalSpent           decimal.Decimal `json:"total_spent"`
	OrderCount           int64           `json:"order_count"`
	AvgOrderValue        decimal.Decimal `json:"avg_order_value"`
	FrequencyPerMonth    decimal.Decimal `json:"order_frequency_per_month"`
	PredictedAnnualValue decimal.Decimal `json:"predicted_annual_value"`
	DaysSinceLastOrder   int             `json:"days_since_last_order"`
	CashOnly             bool            `json:"cash_only,omitempty"`
	OnlineOnly           bool            `json:"online_only,omitempty"`
}

// SegmentReport groups the customer population into segments.
type SegmentReport struct {
	Customers          []CustomerProfile `json:"customers"`
	Counts             map[string]int    `json:"counts"`
	SpendThreshold     decimal.Decimal   `json:"spend_threshold"`
	FrequencyThreshold decimal.Decimal   `json:"frequency_threshold"`
	CashOnlyCustomers  int               `json:"cash_only_customers"`
	OnlineOnly         int               `json:"online_only_customers"`
}

// Overview bundles every recommendation kind. Kinds that could not be
// computed are listed in Skipped and left empty.
type Overview struct {
	BestOrderTime *BestTime        `json:"best_order_time,omitempty"`
	Forecast      *Forecast        `json:"demand_forecast,omitempty"`
	Restock       []Recommendation `json:"restock"`
	Pricing       []Recommendation `json:"pricing"`
	Retention     []Recommendation `json:"retention"`
	Operations    []Recommendation `json:"operations"`
	Segments      *SegmentReport   `json:"customer_segments,omitempty"`
	Skipped       []Skipped        `json:"skipped"`
}
