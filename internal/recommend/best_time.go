package recommend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/shopspring/decimal"
)

// DefaultTopN is the number of hours BestOrderTime recommends by default.
const DefaultTopN = 3

var (
	hoursPerDay   = decimal.NewFromInt(24)
	hundred       = decimal.NewFromInt(100)
	successWeight = decimal.RequireFromString("0.7")
	speedWeight   = decimal.RequireFromString("0.3")
)

// BestOrderTime ranks hours of day by delivery success and processing speed.
// rows are grouped by hour_of_day and carry the delivered sum and the
// completion_hours average. Hours without orders are ignored.
func BestOrderTime(rows []aggregation.AggregateRow, topN int) BestTime {
	if topN <= 0 {
		topN = DefaultTopN
	}

	scores := make([]HourScore, 0, len(rows))
	for _, row := range rows {
		if row.Count <= 0 {
			continue
		}
		hour, err := strconv.Atoi(row.Key(0))
		if err != nil {
			continue
		}
		orders := decimal.NewFromInt(row.Count)

		avgHours := hoursPerDay
		if _, ok := row.Sums["completion_hours"]; ok {
			avgHours = row.Avg("completion_hours")
		}
		success := aggregation.SafeDiv(row.Sum("delivered").Mul(hundred), orders)
		speed := hoursPerDay.Sub(decimal.Min(avgHours, hoursPerDay)).Div(hoursPerDay).Mul(hundred)

		scores = append(scores, HourScore{
			Hour:               hour,
			Orders:             row.Count,
			SuccessRate:        success.Round(2),
			AvgCompletionHours: avgHours.Round(2),
			Score:              success.Mul(successWeight).Add(speed.Mul(speedWeight)).Round(4),
		})
	}

	if len(scores) == 0 {
		return BestTime{
			RecommendedHours: []int{},
			Hours:            []HourScore{},
			Rationale:        "Not enough data",
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if !scores[i].Score.Equal(scores[j].Score) {
			return scores[i].Score.GreaterThan(scores[j].Score)
		}
		return scores[i].Hour < scores[j].Hour
	})
	if len(scores) > topN {
		scores = scores[:topN]
	}

	out := BestTime{RecommendedHours: make([]int, 0, len(scores)), Hours: scores}
	parts := make([]string, 0, len(scores))
	var success, delivery decimal.Decimal
	for _, s := range scores {
		out.RecommendedHours = append(out.RecommendedHours, s.Hour)
		success = success.Add(s.SuccessRate)
		delivery = delivery.Add(s.AvgCompletionHours)
		parts = append(parts, fmt.Sprintf("%02d:00 (%s%% delivered, %sh avg processing)", s.Hour, s.SuccessRate.StringFixed(1), s.AvgCompletionHours.StringFixed(1)))
	}
	n := decimal.NewFromInt(int64(len(scores)))
	out.SuccessRate = success.Div(n).Round(2)
	out.AvgDeliveryHours = delivery.Div(n).Round(2)
	out.Rationale = "Best delivery success and fastest processing at " + strings.Join(parts, ", ")
	return out
}
