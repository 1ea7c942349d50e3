// Package enrichment selects treatment cohorts and applies registered
// effect functions to sales datasets, producing factual streams next to
// untouched counterfactuals.
package enrichment

import (
	"fmt"
	"math"
	"slices"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/rng"
)

// selectorTag names the cohort draw stream. It is distinct from the
// catalog and sales tags, so enrollment never shifts when generation
// parameters change.
const selectorTag = "cohort"

// SelectCohort deterministically picks round(fraction x n) distinct product
// IDs, at least one, from productIDs. Duplicates in the input collapse
// first and IDs are ranked in sorted order, so the outcome depends only on
// the ID set, the fraction and the seed.
func SelectCohort(productIDs []string, fraction float64, seed int64) (map[string]struct{}, error) {
	if err := validateFraction(fraction); err != nil {
		return nil, err
	}
	unique := dedupeSorted(productIDs)
	if len(unique) == 0 {
		return nil, fmt.Errorf("%w: no product ids to select from", domain.ErrInvalidParameter)
	}

	k := int(math.Round(fraction * float64(len(unique))))
	if k < 1 {
		k = 1
	}
	if k > len(unique) {
		k = len(unique)
	}

	// Partial Fisher-Yates: the first k slots end up holding the sample.
	r := rng.New(seed).Stream(selectorTag)
	for i := 0; i < k; i++ {
		j := i + r.IntN(len(unique)-i)
		unique[i], unique[j] = unique[j], unique[i]
	}

	cohort := make(map[string]struct{}, k)
	for _, id := range unique[:k] {
		cohort[id] = struct{}{}
	}
	return cohort, nil
}

// AssignedProduct pairs a catalog entry with its treatment flag for the
// enriched-catalog output.
type AssignedProduct struct {
	domain.Product
	Enriched bool `json:"enriched"`
}

// Assign tags every product with its cohort membership, preserving catalog
// order.
func Assign(products []domain.Product, cohort map[string]struct{}) []AssignedProduct {
	out := make([]AssignedProduct, len(products))
	for i, p := range products {
		_, enriched := cohort[p.ProductID]
		out[i] = AssignedProduct{Product: p, Enriched: enriched}
	}
	return out
}

func validateFraction(fraction float64) error {
	if math.IsNaN(fraction) || fraction <= 0 || fraction > 1 {
		return fmt.Errorf("%w: enrichment fraction %v outside (0, 1]", domain.ErrInvalidParameter, fraction)
	}
	return nil
}

func dedupeSorted(ids []string) []string {
	unique := slices.Clone(ids)
	slices.Sort(unique)
	return slices.Compact(unique)
}
