package enrichment

import (
	"fmt"
	"slices"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/effect"
)

// Apply produces the factual dataset: the effect named by spec applied to
// every record whose product is in the treatment cohort and whose date is
// on or after start. The cohort is selected from the distinct product IDs
// present in sales. The input slice is never mutated; records outside the
// treatment scope are returned unchanged. On any error the returned
// dataset is nil, never partially treated.
func Apply(reg *effect.Registry, sales []domain.SaleRecord, spec domain.EffectSpec, start domain.Date, fraction float64, seed int64) ([]domain.SaleRecord, error) {
	if _, err := reg.Lookup(spec.Function); err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: enrichment start date is required", domain.ErrInvalidParameter)
	}
	if err := validateFraction(fraction); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return []domain.SaleRecord{}, nil
	}
	cohort, err := SelectCohort(distinctProductIDs(sales), fraction, seed)
	if err != nil {
		return nil, err
	}
	return ApplyWithCohort(reg, sales, spec, start, cohort)
}

// ApplyWithCohort is Apply with an externally selected cohort, for callers
// that already assigned treatment over a catalog and need the applied
// cohort to match that assignment exactly.
//
// Steps:
//  1. Resolve the effect function.
//  2. Partition records into in-scope (cohort member, dated on or after
//     start) and untouched.
//  3. Invoke the effect once over a copy of the in-scope batch.
//  4. Verify the structure-preserving contract and splice the treated
//     records back into their original positions.
func ApplyWithCohort(reg *effect.Registry, sales []domain.SaleRecord, spec domain.EffectSpec, start domain.Date, cohort map[string]struct{}) ([]domain.SaleRecord, error) {
	fn, err := reg.Lookup(spec.Function)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: enrichment start date is required", domain.ErrInvalidParameter)
	}
	if len(cohort) == 0 {
		return nil, fmt.Errorf("%w: treatment cohort must not be empty", domain.ErrInvalidParameter)
	}

	var inScope []domain.SaleRecord
	var positions []int
	for i, rec := range sales {
		if _, treated := cohort[rec.ProductID]; !treated {
			continue
		}
		if rec.Date.Before(start) {
			continue
		}
		inScope = append(inScope, rec)
		positions = append(positions, i)
	}

	// The effect always runs, even on an empty batch, so parameter errors
	// surface regardless of how many records qualify.
	treated, err := fn(slices.Clone(inScope), effect.Args{Start: start, Params: effect.Params(spec.Params)})
	if err != nil {
		return nil, err
	}
	if len(treated) != len(inScope) {
		return nil, fmt.Errorf("%w: effect %q returned %d records for %d in-scope",
			domain.ErrEffectContractViolation, spec.Function, len(treated), len(inScope))
	}

	// Match treated records back to their originals by transaction ID,
	// which the contract forbids changing. This pins every returned record
	// to exactly one input record whatever order the effect used.
	byTxn := make(map[string]int, len(inScope))
	for i, rec := range inScope {
		byTxn[rec.TransactionID] = i
	}
	out := slices.Clone(sales)
	for _, rec := range treated {
		i, ok := byTxn[rec.TransactionID]
		if !ok {
			return nil, fmt.Errorf("%w: effect %q returned unknown or duplicated transaction %q",
				domain.ErrEffectContractViolation, spec.Function, rec.TransactionID)
		}
		delete(byTxn, rec.TransactionID)
		if err := verifyTreatedRecord(spec.Function, inScope[i], rec); err != nil {
			return nil, err
		}
		out[positions[i]] = rec
	}
	return out, nil
}

func verifyTreatedRecord(effectName string, original, treated domain.SaleRecord) error {
	if treated.Key() != original.Key() {
		return fmt.Errorf("%w: effect %q moved transaction %q from %s/%s to %s/%s",
			domain.ErrEffectContractViolation, effectName, original.TransactionID,
			original.ProductID, original.Date, treated.ProductID, treated.Date)
	}
	if treated.ProductName != original.ProductName || treated.Category != original.Category {
		return fmt.Errorf("%w: effect %q changed catalog fields of transaction %q",
			domain.ErrEffectContractViolation, effectName, original.TransactionID)
	}
	if treated.Quantity < 1 {
		return fmt.Errorf("%w: effect %q set quantity %d on transaction %q",
			domain.ErrEffectContractViolation, effectName, treated.Quantity, original.TransactionID)
	}
	if !treated.ConsistentRevenue() {
		return fmt.Errorf("%w: effect %q left revenue %s inconsistent with %s x %d on transaction %q",
			domain.ErrEffectContractViolation, effectName, treated.Revenue, treated.UnitPrice,
			treated.Quantity, original.TransactionID)
	}
	return nil
}

func distinctProductIDs(sales []domain.SaleRecord) []string {
	ids := make([]string, 0, len(sales))
	for _, rec := range sales {
		ids = append(ids, rec.ProductID)
	}
	return ids
}
