package effect

import (
	"fmt"
	"math"

	"retail-sim-lab/internal/domain"
)

// Built-in effect names.
const (
	NameQuantityBoost    = "quantity_boost"
	NameProbabilityBoost = "probability_boost"
	NameCombinedBoost    = "combined_boost"
)

// Built-in parameter defaults.
const (
	DefaultEffectSize = 0.5
	DefaultRampDays   = 7.0
)

// QuantityBoost scales each record's quantity by (1 + effect_size), rounded
// to the nearest whole unit with a floor of one, and recomputes revenue.
// A quantity of 4 with effect_size 0.5 becomes 6.
func QuantityBoost(records []domain.SaleRecord, args Args) ([]domain.SaleRecord, error) {
	size, err := effectSize(args.Params)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SaleRecord, len(records))
	for i, rec := range records {
		out[i] = boostQuantity(rec, size)
	}
	return out, nil
}

// ProbabilityBoost models a lift in sale likelihood. The Bernoulli trials
// already happened by the time enrichment runs, so the lift is applied as
// an expected-value multiplier on quantity, making it equivalent to
// QuantityBoost of the same size.
func ProbabilityBoost(records []domain.SaleRecord, args Args) ([]domain.SaleRecord, error) {
	return QuantityBoost(records, args)
}

// CombinedBoost ramps the quantity boost linearly over ramp_days after the
// enrichment start, then holds it at full strength. On the start day itself
// the multiplier is zero; from day ramp_days on it equals effect_size.
func CombinedBoost(records []domain.SaleRecord, args Args) ([]domain.SaleRecord, error) {
	size, err := effectSize(args.Params)
	if err != nil {
		return nil, err
	}
	rampDays, err := args.Params.Float("ramp_days", DefaultRampDays)
	if err != nil {
		return nil, err
	}
	if rampDays <= 0 {
		return nil, fmt.Errorf("%w: ramp_days %v must be positive", domain.ErrInvalidParameter, rampDays)
	}

	out := make([]domain.SaleRecord, len(records))
	for i, rec := range records {
		days := float64(rec.Date.DaysSince(args.Start))
		factor := math.Min(math.Max(days, 0)/rampDays, 1)
		out[i] = boostQuantity(rec, size*factor)
	}
	return out, nil
}

func effectSize(p Params) (float64, error) {
	size, err := p.Float("effect_size", DefaultEffectSize)
	if err != nil {
		return 0, err
	}
	// The quantity multiplier (1 + effect_size) must stay positive.
	if size <= -1 {
		return 0, fmt.Errorf("%w: effect_size %v must be greater than -1", domain.ErrInvalidParameter, size)
	}
	return size, nil
}

func boostQuantity(rec domain.SaleRecord, delta float64) domain.SaleRecord {
	boosted := int64(math.Round(float64(rec.Quantity) * (1 + delta)))
	if boosted < 1 {
		boosted = 1
	}
	return rec.WithQuantity(boosted)
}
