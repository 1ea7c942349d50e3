package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/storage"
)

// ErrNoSales is returned when no sales are available for aggregation.
var ErrNoSales = errors.New("no sales available for aggregation")

// Aggregator computes run-level aggregates from persisted datasets.
type Aggregator struct {
	productStore storage.ProductStore
	saleStore    storage.SaleStore

	// OrphanProducts tracks product_ids referenced by sales but absent from
	// the run's catalog (for data quality reporting).
	// Key: product_id, Value: count of sales referencing it.
	OrphanProducts map[string]int
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(productStore storage.ProductStore, saleStore storage.SaleStore) *Aggregator {
	return &Aggregator{
		productStore:   productStore,
		saleStore:      saleStore,
		OrphanProducts: make(map[string]int),
	}
}

// ComputeSummary loads one (run, variant) sales stream plus the run's catalog
// and computes dataset totals. Returns ErrNoSales when the variant holds no
// records.
func (a *Aggregator) ComputeSummary(ctx context.Context, runID, variant string) (*RunSummary, error) {
	products, err := a.productStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	sales, err := a.saleStore.GetByRunVariant(ctx, runID, variant)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, ErrNoSales
	}

	a.trackOrphans(products, sales)

	summary := Summarize(products, sales)
	return &summary, nil
}

// ComputeRunLift loads the factual and counterfactual streams of a run and
// compares them. Returns ErrNoSales when the run has neither stream, which is
// the case for runs that were never enriched.
func (a *Aggregator) ComputeRunLift(ctx context.Context, runID string) (*Lift, error) {
	factual, err := a.saleStore.GetByRunVariant(ctx, runID, domain.VariantFactual)
	if err != nil {
		return nil, err
	}
	counterfactual, err := a.saleStore.GetByRunVariant(ctx, runID, domain.VariantCounterfactual)
	if err != nil {
		return nil, err
	}
	if len(factual) == 0 && len(counterfactual) == 0 {
		return nil, ErrNoSales
	}

	lift := ComputeLift(factual, counterfactual)
	return &lift, nil
}

// trackOrphans records sales that reference products missing from the catalog
// (don't silently skip).
func (a *Aggregator) trackOrphans(products []domain.Product, sales []domain.SaleRecord) {
	for productID, count := range CountOrphans(products, sales) {
		a.OrphanProducts[productID] += count
	}
}

// GetOrphanProductErrors returns data quality errors for orphaned sales.
// Returns slice of error messages sorted by product_id for deterministic output.
func (a *Aggregator) GetOrphanProductErrors() []string {
	return FormatOrphanErrors(a.OrphanProducts)
}

// CountOrphans counts sales whose product_id is absent from the catalog.
// Key: product_id, Value: count of sales referencing it.
func CountOrphans(products []domain.Product, sales []domain.SaleRecord) map[string]int {
	known := make(map[string]struct{}, len(products))
	for _, p := range products {
		known[p.ProductID] = struct{}{}
	}
	orphans := make(map[string]int)
	for _, rec := range sales {
		if _, ok := known[rec.ProductID]; !ok {
			orphans[rec.ProductID]++
		}
	}
	return orphans
}

// FormatOrphanErrors renders an orphan count map as error messages sorted by
// product_id for deterministic output.
func FormatOrphanErrors(orphans map[string]int) []string {
	if len(orphans) == 0 {
		return nil
	}

	keys := make([]string, 0, len(orphans))
	for k := range orphans {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, len(keys))
	for i, productID := range keys {
		msgs[i] = fmt.Sprintf("missing product %s referenced by %d sale(s)", productID, orphans[productID])
	}
	return msgs
}
