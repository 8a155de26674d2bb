package recommend

import (
	"math"
	"time"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ForecastDemand projects a daily series horizon days ahead. The last
// 2*horizon points form the trailing window: the moving average of its last
// horizon points plus its least-squares slope times the days ahead gives the
// prediction, banded by one standard deviation of the window. start is the
// first forecast day.
func ForecastDemand(series []decimal.Decimal, horizon int, start time.Time) (Forecast, error) {
	if horizon < 1 {
		return Forecast{}, aggregation.InvalidSpecf("forecast horizon must be at least 1, got %d", horizon)
	}
	required := 2 * horizon
	if len(series) < required {
		return Forecast{}, &aggregation.InsufficientHistoryError{Required: required, Actual: len(series)}
	}

	window := series[len(series)-required:]
	ma := mean(window[horizon:])
	slope := leastSquaresSlope(window)
	band := stdDev(window)

	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	points := make([]ForecastPoint, horizon)
	for d := 1; d <= horizon; d++ {
		predicted := ma.Add(slope.Mul(decimal.NewFromInt(int64(d))))
		if predicted.IsNegative() {
			predicted = decimal.Zero
		}
		lower := predicted.Sub(band)
		if lower.IsNegative() {
			lower = decimal.Zero
		}
		points[d-1] = ForecastPoint{
			Date:           start.AddDate(0, 0, d-1).Format(dateLayout),
			PredictedValue: predicted.Round(2),
			LowerBound:     lower.Round(2),
			UpperBound:     predicted.Add(band).Round(2),
		}
	}

	return Forecast{
		Horizon:       horizon,
		HistoryDays:   len(series),
		MovingAverage: ma.Round(4),
		Slope:         slope.Round(4),
		StdDev:        band.Round(4),
		Points:        points,
	}, nil
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values))))
}

// leastSquaresSlope fits y = a + b*x with x = 0..n-1 and returns b.
func leastSquaresSlope(values []decimal.Decimal) decimal.Decimal {
	n := len(values)
	if n < 2 {
		return decimal.Zero
	}
	xMean := decimal.NewFromInt(int64(n - 1)).Div(decimal.NewFromInt(2))
	yMean := mean(values)

	var num, den decimal.Decimal
	for i, y := range values {
		dx := decimal.NewFromInt(int64(i)).Sub(xMean)
		num = num.Add(dx.Mul(y.Sub(yMean)))
		den = den.Add(dx.Mul(dx))
	}
	return aggregation.SafeDiv(num, den)
}

// stdDev is the population standard deviation.
func stdDev(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	m := mean(values)
	var sq decimal.Decimal
	for _, v := range values {
		d := v.Sub(m)
		sq = sq.Add(d.Mul(d))
	}
	variance := sq.Div(decimal.NewFromInt(int64(len(values))))
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}
