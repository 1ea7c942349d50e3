package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"retail-sim-lab/internal/domain"
)

// Lift quantifies a treatment effect by comparing a factual sales stream
// against its counterfactual twin.
type Lift struct {
	FactualRevenue        decimal.Decimal `json:"factual_revenue"`
	CounterfactualRevenue decimal.Decimal `json:"counterfactual_revenue"`
	RevenueLift           decimal.Decimal `json:"revenue_lift"`
	RevenueLiftPercent    decimal.Decimal `json:"revenue_lift_percent"` // zero when counterfactual revenue is zero
	FactualUnits          int64           `json:"factual_units"`
	CounterfactualUnits   int64           `json:"counterfactual_units"`
	UnitsLift             int64           `json:"units_lift"`
}

// ComputeLift totals both streams and reports the absolute and relative
// revenue difference.
func ComputeLift(factual, counterfactual []domain.SaleRecord) Lift {
	lift := Lift{
		FactualRevenue:        decimal.Zero,
		CounterfactualRevenue: decimal.Zero,
		RevenueLiftPercent:    decimal.Zero,
	}
	for _, rec := range factual {
		lift.FactualRevenue = lift.FactualRevenue.Add(rec.Revenue)
		lift.FactualUnits += rec.Quantity
	}
	for _, rec := range counterfactual {
		lift.CounterfactualRevenue = lift.CounterfactualRevenue.Add(rec.Revenue)
		lift.CounterfactualUnits += rec.Quantity
	}
	lift.RevenueLift = lift.FactualRevenue.Sub(lift.CounterfactualRevenue)
	lift.UnitsLift = lift.FactualUnits - lift.CounterfactualUnits
	if !lift.CounterfactualRevenue.IsZero() {
		lift.RevenueLiftPercent = lift.RevenueLift.
			Div(lift.CounterfactualRevenue).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return lift
}

// DailyLift holds one day of the factual versus counterfactual comparison.
type DailyLift struct {
	Date                  domain.Date     `json:"date"`
	FactualRevenue        decimal.Decimal `json:"factual_revenue"`
	CounterfactualRevenue decimal.Decimal `json:"counterfactual_revenue"`
	RevenueLift           decimal.Decimal `json:"revenue_lift"`
}

// ComputeDailyLift compares the two streams day by day, date ascending.
// Days present in either stream appear in the result.
func ComputeDailyLift(factual, counterfactual []domain.SaleRecord) []DailyLift {
	byDay := make(map[domain.Date]*DailyLift)
	row := func(d domain.Date) *DailyLift {
		r, ok := byDay[d]
		if !ok {
			r = &DailyLift{
				Date:                  d,
				FactualRevenue:        decimal.Zero,
				CounterfactualRevenue: decimal.Zero,
			}
			byDay[d] = r
		}
		return r
	}
	for _, rec := range factual {
		r := row(rec.Date)
		r.FactualRevenue = r.FactualRevenue.Add(rec.Revenue)
	}
	for _, rec := range counterfactual {
		r := row(rec.Date)
		r.CounterfactualRevenue = r.CounterfactualRevenue.Add(rec.Revenue)
	}

	out := make([]DailyLift, 0, len(byDay))
	for _, r := range byDay {
		r.RevenueLift = r.FactualRevenue.Sub(r.CounterfactualRevenue)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
