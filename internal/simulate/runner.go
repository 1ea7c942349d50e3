package simulate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"retail-sim-lab/internal/config"
	"retail-sim-lab/internal/details"
	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/effect"
	"retail-sim-lab/internal/enrichment"
	"retail-sim-lab/internal/idhash"
	"retail-sim-lab/internal/observability"
	"retail-sim-lab/internal/storage"
)

// Runner coordinates a full simulation run.
// Flow: catalog → details → sales → enrichment → integrity → persistence
type Runner struct {
	runStore     storage.RunStore
	productStore storage.ProductStore
	saleStore    storage.SaleStore
	historyStore storage.SaleStore

	backends *BackendRegistry
	effects  *effect.Registry

	now     func() time.Time
	verbose bool
}

// Options for creating a Runner.
type Options struct {
	// Required stores
	RunStore     storage.RunStore
	ProductStore storage.ProductStore
	SaleStore    storage.SaleStore

	// HistoryStore, when set, mirrors sale streams into an analytical
	// store after the primary write succeeds. Mirror failures do not fail
	// the run.
	HistoryStore storage.SaleStore

	// Backends defaults to the rule-only registry.
	Backends *BackendRegistry

	// Effects defaults to the built-in effect registry.
	Effects *effect.Registry

	Verbose bool
}

// New creates a new Runner.
func New(opts Options) *Runner {
	backends := opts.Backends
	if backends == nil {
		backends = NewBackendRegistry()
	}
	effects := opts.Effects
	if effects == nil {
		effects = effect.NewRegistry()
	}
	return &Runner{
		runStore:     opts.RunStore,
		productStore: opts.ProductStore,
		saleStore:    opts.SaleStore,
		historyStore: opts.HistoryStore,
		backends:     backends,
		effects:      effects,
		now:          time.Now,
		verbose:      opts.Verbose,
	}
}

// WithClock overrides the timestamp source used for run identity.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// RunResult contains the datasets and metadata of one completed run.
type RunResult struct {
	Run            *domain.RunMetadata
	Products       []domain.Product
	Details        []details.DetailedProduct    // nil unless the details phase ran
	Assigned       []enrichment.AssignedProduct // nil unless enriched
	Cohort         []string                     // sorted, nil unless enriched
	Baseline       []domain.SaleRecord
	Factual        []domain.SaleRecord // nil unless enriched
	Counterfactual []domain.SaleRecord // nil unless enriched
	Integrity      *IntegrityResult
	Errors         []string // non-fatal errors (analytical mirror)
}

// Run executes a full simulation run.
// Phases:
//  1. Generate catalog
//  2. Generate product details (optional)
//  3. Generate baseline sales
//  4. Apply enrichment (optional)
//  5. Check integrity
//  6. Persist run
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*RunResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config must not be nil", domain.ErrInvalidParameter)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := r.backends.Lookup(cfg.Mode)
	if err != nil {
		return nil, err
	}

	runID := idhash.ComputeRunID(r.now())
	result := &RunResult{}
	r.log("Run %s: mode=%s seed=%d", runID, cfg.Mode, cfg.Seed)

	// Phase 1: Catalog
	r.log("Phase 1: Generating catalog...")
	phaseStart := time.Now()
	products, err := backend.GenerateCatalog(ctx, cfg, cfg.Seed)
	if err != nil {
		return nil, r.fail(cfg.Mode, 1, "catalog", err)
	}
	result.Products = products
	observability.RecordCatalogGenerated(len(products))
	observability.RecordPhase("catalog", time.Since(phaseStart).Seconds())
	r.log("  Generated %d products", len(products))

	// Phase 2: Product details
	if cfg.ProductDetails.Enabled {
		r.log("Phase 2: Generating product details...")
		phaseStart = time.Now()
		result.Details = details.Generate(products, cfg.Seed)
		observability.RecordDetailsGenerated(len(result.Details))
		observability.RecordPhase("details", time.Since(phaseStart).Seconds())
		r.log("  Generated %d detail entries", len(result.Details))
	} else {
		r.log("Phase 2: Skipping product details (disabled)")
	}

	// Phase 3: Baseline sales
	r.log("Phase 3: Generating baseline sales...")
	phaseStart = time.Now()
	baseline, err := backend.GenerateSales(ctx, cfg, products, cfg.Seed)
	if err != nil {
		return nil, r.fail(cfg.Mode, 3, "sales", err)
	}
	result.Baseline = baseline
	observability.RecordSalesGenerated(len(baseline))
	observability.RecordPhase("sales", time.Since(phaseStart).Seconds())
	r.log("  Generated %d sale records", len(baseline))

	// Phase 4: Enrichment
	enriched := cfg.Enrichment.Enabled()
	if enriched {
		r.log("Phase 4: Applying enrichment...")
		phaseStart = time.Now()
		if err := r.enrich(cfg, result); err != nil {
			return nil, r.fail(cfg.Mode, 4, "enrichment", err)
		}
		observability.RecordPhase("enrichment", time.Since(phaseStart).Seconds())
		r.log("  Treated cohort of %d products", len(result.Cohort))
	} else {
		r.log("Phase 4: Skipping enrichment (no start date)")
	}

	// Phase 5: Integrity
	r.log("Phase 5: Checking integrity...")
	start, end, err := cfg.Baseline.DateRange()
	if err != nil {
		return nil, r.fail(cfg.Mode, 5, "integrity", err)
	}
	streams := map[string][]domain.SaleRecord{domain.VariantBaseline: result.Baseline}
	if enriched {
		streams[domain.VariantFactual] = result.Factual
	}
	result.Integrity = CheckIntegrity(products, streams, start, end)
	if !result.Integrity.AllPass {
		return nil, r.fail(cfg.Mode, 5, "integrity",
			fmt.Errorf("%s", strings.Join(result.Integrity.Errors, "; ")))
	}
	r.log("  All %d checks passed", len(result.Integrity.Checks))

	// Phase 6: Persistence
	r.log("Phase 6: Persisting run %s...", runID)
	phaseStart = time.Now()
	snapshot, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, r.fail(cfg.Mode, 6, "persist", fmt.Errorf("marshal config snapshot: %w", err))
	}
	createdAt := r.now().UTC()
	run := &domain.RunMetadata{
		RunID:        runID,
		CreatedAt:    createdAt,
		Mode:         cfg.Mode,
		Seed:         cfg.Seed,
		NumProducts:  len(products),
		NumSales:     len(result.Baseline),
		Enriched:     enriched,
		ProductsHash: idhash.ProductsFingerprint(products),
		SalesHash:    idhash.SalesFingerprint(result.Baseline),
		Config:       string(snapshot),
	}
	if err := r.persist(ctx, run, result); err != nil {
		return nil, r.fail(cfg.Mode, 6, "persist", err)
	}
	result.Run = run
	observability.RecordPhase("persist", time.Since(phaseStart).Seconds())

	r.mirror(ctx, run, result)

	observability.RecordRun(cfg.Mode, "success", createdAt.Unix())
	r.log("Run %s completed: %d products, %d sales, enriched=%t",
		runID, len(products), len(result.Baseline), enriched)
	return result, nil
}

// enrich selects the treatment cohort over the catalog and produces the
// factual stream next to the untouched counterfactual.
func (r *Runner) enrich(cfg *config.Config, result *RunResult) error {
	spec, err := cfg.Enrichment.Effect.Spec()
	if err != nil {
		return err
	}
	start, err := cfg.Enrichment.Start()
	if err != nil {
		return err
	}
	ids := make([]string, len(result.Products))
	for i, p := range result.Products {
		ids[i] = p.ProductID
	}
	cohort, err := enrichment.SelectCohort(ids, cfg.Enrichment.Fraction, cfg.Seed)
	if err != nil {
		return err
	}
	factual, err := enrichment.ApplyWithCohort(r.effects, result.Baseline, spec, start, cohort)
	if err != nil {
		return err
	}

	treated := 0
	for _, rec := range result.Baseline {
		if _, ok := cohort[rec.ProductID]; ok && !rec.Date.Before(start) {
			treated++
		}
	}

	result.Assigned = enrichment.Assign(result.Products, cohort)
	result.Cohort = make([]string, 0, len(cohort))
	for id := range cohort {
		result.Cohort = append(result.Cohort, id)
	}
	sort.Strings(result.Cohort)
	result.Factual = factual
	result.Counterfactual = result.Baseline
	observability.RecordEnrichment(spec.Function, len(cohort), treated)
	return nil
}

// persist writes the run and all its datasets to the primary stores.
func (r *Runner) persist(ctx context.Context, run *domain.RunMetadata, result *RunResult) error {
	if err := r.runStore.Insert(ctx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := r.productStore.InsertBatch(ctx, run.RunID, result.Products); err != nil {
		return fmt.Errorf("insert products: %w", err)
	}
	if err := r.saleStore.InsertBatch(ctx, run.RunID, domain.VariantBaseline, result.Baseline); err != nil {
		return fmt.Errorf("insert baseline sales: %w", err)
	}
	if !run.Enriched {
		return nil
	}
	if err := r.productStore.MarkEnriched(ctx, run.RunID, result.Cohort); err != nil {
		return fmt.Errorf("mark cohort: %w", err)
	}
	if err := r.saleStore.InsertBatch(ctx, run.RunID, domain.VariantFactual, result.Factual); err != nil {
		return fmt.Errorf("insert factual sales: %w", err)
	}
	if err := r.saleStore.InsertBatch(ctx, run.RunID, domain.VariantCounterfactual, result.Counterfactual); err != nil {
		return fmt.Errorf("insert counterfactual sales: %w", err)
	}
	return nil
}

// mirror copies sale streams into the analytical store. Mirror failures are
// collected into result.Errors instead of failing the run.
func (r *Runner) mirror(ctx context.Context, run *domain.RunMetadata, result *RunResult) {
	if r.historyStore == nil {
		return
	}
	streams := map[string][]domain.SaleRecord{domain.VariantBaseline: result.Baseline}
	if run.Enriched {
		streams[domain.VariantFactual] = result.Factual
		streams[domain.VariantCounterfactual] = result.Counterfactual
	}
	variants := make([]string, 0, len(streams))
	for v := range streams {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	for _, variant := range variants {
		if err := r.historyStore.InsertBatch(ctx, run.RunID, variant, streams[variant]); err != nil {
			msg := fmt.Sprintf("mirror %s sales: %v", variant, err)
			result.Errors = append(result.Errors, msg)
			r.log("  WARNING: %s", msg)
		}
	}
}

// fail records the failed phase and wraps err with phase context.
func (r *Runner) fail(mode string, phase int, name string, err error) error {
	observability.RecordGenerationError(name)
	observability.RecordRun(mode, "error", r.now().Unix())
	return fmt.Errorf("phase %d (%s) failed: %w", phase, name, err)
}

func (r *Runner) log(format string, args ...interface{}) {
	if r.verbose {
		log.Printf("[simulate] "+format, args...)
	}
}
