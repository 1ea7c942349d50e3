package reporting

import (
	"context"
	"fmt"
	"time"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/metrics"
	"retail-sim-lab/internal/observability"
	"retail-sim-lab/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	runStore     storage.RunStore
	productStore storage.ProductStore
	saleStore    storage.SaleStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	runStore storage.RunStore,
	productStore storage.ProductStore,
	saleStore storage.SaleStore,
) *Generator {
	return &Generator{
		runStore:     runStore,
		productStore: productStore,
		saleStore:    saleStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report for one run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %q: %w", runID, err)
	}

	products, err := g.productStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load catalog for run %q: %w", runID, err)
	}

	counts, err := g.saleStore.CountByVariant(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("count sales for run %q: %w", runID, err)
	}

	// The factual stream describes the run once enrichment has happened;
	// before that the baseline stream is the dataset.
	variant := domain.VariantBaseline
	if counts[domain.VariantFactual] > 0 {
		variant = domain.VariantFactual
	}

	sales, err := g.saleStore.GetByRunVariant(ctx, runID, variant)
	if err != nil {
		return nil, fmt.Errorf("load %s sales for run %q: %w", variant, runID, err)
	}

	report := &Report{
		GeneratedAt: g.now(),
		Run:         *run,
		Variant:     variant,
		Summary:     metrics.Summarize(products, sales),
		Daily:       metrics.SummarizeDaily(sales),
		Categories:  metrics.SummarizeCategories(sales),
	}

	orphans := metrics.FormatOrphanErrors(metrics.CountOrphans(products, sales))
	report.DataQuality = DataQualitySection{
		OrphanProducts: orphans,
		Clean:          len(orphans) == 0,
	}

	if counts[domain.VariantFactual] > 0 && counts[domain.VariantCounterfactual] > 0 {
		counterfactual, err := g.saleStore.GetByRunVariant(ctx, runID, domain.VariantCounterfactual)
		if err != nil {
			return nil, fmt.Errorf("load counterfactual sales for run %q: %w", runID, err)
		}
		lift := metrics.ComputeLift(sales, counterfactual)
		report.Lift = &lift
		report.DailyLift = metrics.ComputeDailyLift(sales, counterfactual)
	}

	observability.RecordReportGenerated()
	return report, nil
}
