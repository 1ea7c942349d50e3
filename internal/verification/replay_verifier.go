package verification

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"retail-sim-lab/internal/catalog"
	"retail-sim-lab/internal/config"
	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/effect"
	"retail-sim-lab/internal/enrichment"
	"retail-sim-lab/internal/idhash"
	"retail-sim-lab/internal/sales"
	"retail-sim-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when the run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoConfigSnapshot is returned when a run carries no config snapshot
	// to replay from.
	ErrNoConfigSnapshot = errors.New("run has no config snapshot")
)

// ReplayVerifier implements the Verifier interface by re-generating every
// dataset from the run's recorded seed and config snapshot.
type ReplayVerifier struct {
	runStore     storage.RunStore
	productStore storage.ProductStore
	saleStore    storage.SaleStore

	// registry resolves effect functions during enrichment replay. Runs
	// recorded with custom effects verify only against a registry carrying
	// the same registrations.
	registry *effect.Registry
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore     storage.RunStore
	ProductStore storage.ProductStore
	SaleStore    storage.SaleStore

	// Registry is optional; the built-in registry is used when nil.
	Registry *effect.Registry
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	reg := opts.Registry
	if reg == nil {
		reg = effect.NewRegistry()
	}
	return &ReplayVerifier{
		runStore:     opts.RunStore,
		productStore: opts.ProductStore,
		saleStore:    opts.SaleStore,
		registry:     reg,
	}
}

// VerifyRun verifies a single run by replaying generation.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*RunResult, error) {
	// 1. Load run metadata
	run, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	// 2. Replay generation with the stored parameters
	replayed, err := v.replayRun(run)
	if err != nil {
		return nil, err
	}

	// 3. Compare each stored dataset against its replay
	result := &RunResult{RunID: runID}

	storedProducts, err := v.productStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	result.Datasets = append(result.Datasets,
		compareProductDataset(storedProducts, replayed.Products, run.ProductsHash))

	storedBaseline, err := v.saleStore.GetByRunVariant(ctx, runID, domain.VariantBaseline)
	if err != nil {
		return nil, err
	}
	result.Datasets = append(result.Datasets,
		compareSaleDataset(domain.VariantBaseline, storedBaseline, replayed.Baseline, run.SalesHash))

	if run.Enriched {
		storedCohort, err := v.productStore.GetEnriched(ctx, runID)
		if err != nil {
			return nil, err
		}
		result.Datasets = append(result.Datasets,
			compareCohortDataset(storedCohort, replayed.Cohort))

		storedFactual, err := v.saleStore.GetByRunVariant(ctx, runID, domain.VariantFactual)
		if err != nil {
			return nil, err
		}
		result.Datasets = append(result.Datasets,
			compareSaleDataset(domain.VariantFactual, storedFactual, replayed.Factual, ""))

		storedCounterfactual, err := v.saleStore.GetByRunVariant(ctx, runID, domain.VariantCounterfactual)
		if err != nil {
			return nil, err
		}
		result.Datasets = append(result.Datasets,
			compareSaleDataset(domain.VariantCounterfactual, storedCounterfactual, replayed.Counterfactual, ""))
	}

	result.Match = true
	for _, ds := range result.Datasets {
		if !ds.Match {
			result.Match = false
			break
		}
	}
	return result, nil
}

// VerifyAll verifies all stored runs.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	runs, err := v.runStore.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]RunResult, 0, len(runs)),
	}

	for _, run := range runs {
		result, err := v.VerifyRun(ctx, run.RunID)
		if err != nil {
			// Record error as divergence
			report.Results = append(report.Results, RunResult{
				RunID: run.RunID,
				Match: false,
				Datasets: []DatasetResult{{
					Dataset: "run",
					Divergences: []FieldDivergence{
						{Field: "Error", Expected: nil, Actual: err.Error()},
					},
				}},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

// replayedRun holds the datasets regenerated from a run's parameters.
type replayedRun struct {
	Products       []domain.Product
	Cohort         []string
	Baseline       []domain.SaleRecord
	Factual        []domain.SaleRecord
	Counterfactual []domain.SaleRecord
}

// replayRun re-executes generation with the stored run's parameters.
func (v *ReplayVerifier) replayRun(run *domain.RunMetadata) (*replayedRun, error) {
	if run.Mode != domain.RunModeRule {
		return nil, fmt.Errorf("run %s uses mode %q; only rule runs can be replayed", run.RunID, run.Mode)
	}

	// 1. Recover the run config from its snapshot
	if strings.TrimSpace(run.Config) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoConfigSnapshot, run.RunID)
	}
	cfg := config.Default()
	if err := yaml.Unmarshal([]byte(run.Config), cfg); err != nil {
		return nil, fmt.Errorf("parse config snapshot of run %s: %w", run.RunID, err)
	}

	// 2. Regenerate catalog and baseline sales
	products, err := catalog.Generate(cfg.Baseline.NumProducts, run.Seed)
	if err != nil {
		return nil, fmt.Errorf("replay catalog: %w", err)
	}
	start, end, err := cfg.Baseline.DateRange()
	if err != nil {
		return nil, err
	}
	baseline, err := sales.Generate(products, start, end, cfg.Baseline.SaleProbability, run.Seed)
	if err != nil {
		return nil, fmt.Errorf("replay sales: %w", err)
	}

	replayed := &replayedRun{Products: products, Baseline: baseline}
	if !run.Enriched {
		return replayed, nil
	}

	// 3. Regenerate the treatment cohort and factual stream
	if !cfg.Enrichment.Enabled() {
		return nil, fmt.Errorf("run %s is marked enriched but its config snapshot has no enrichment start date", run.RunID)
	}
	spec, err := cfg.Enrichment.Effect.Spec()
	if err != nil {
		return nil, err
	}
	enrichStart, err := cfg.Enrichment.Start()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ProductID
	}
	cohort, err := enrichment.SelectCohort(ids, cfg.Enrichment.Fraction, run.Seed)
	if err != nil {
		return nil, fmt.Errorf("replay cohort: %w", err)
	}
	factual, err := enrichment.ApplyWithCohort(v.registry, baseline, spec, enrichStart, cohort)
	if err != nil {
		return nil, fmt.Errorf("replay enrichment: %w", err)
	}

	replayed.Cohort = make([]string, 0, len(cohort))
	for id := range cohort {
		replayed.Cohort = append(replayed.Cohort, id)
	}
	slices.Sort(replayed.Cohort)
	replayed.Factual = factual
	replayed.Counterfactual = baseline
	return replayed, nil
}

// compareProductDataset matches stored and replayed catalogs by product ID.
// recordedHash is the fingerprint written into run metadata at generation
// time, empty when the run predates fingerprinting.
func compareProductDataset(stored, replayed []domain.Product, recordedHash string) DatasetResult {
	result := DatasetResult{
		Dataset:             DatasetProducts,
		Records:             len(stored),
		StoredFingerprint:   idhash.ProductsFingerprint(stored),
		ReplayedFingerprint: idhash.ProductsFingerprint(replayed),
	}

	byID := make(map[string]domain.Product, len(replayed))
	for _, p := range replayed {
		byID[p.ProductID] = p
	}
	for _, sp := range stored {
		rp, ok := byID[sp.ProductID]
		if !ok {
			result.Divergences = append(result.Divergences, FieldDivergence{
				Record: sp.ProductID, Field: "Record", Expected: sp, Actual: nil,
			})
			continue
		}
		delete(byID, sp.ProductID)
		result.Divergences = append(result.Divergences, CompareProducts(sp, rp)...)
	}
	surplus := make([]string, 0, len(byID))
	for id := range byID {
		surplus = append(surplus, id)
	}
	slices.Sort(surplus)
	for _, id := range surplus {
		result.Divergences = append(result.Divergences, FieldDivergence{
			Record: id, Field: "Record", Expected: nil, Actual: byID[id],
		})
	}

	result.Divergences = append(result.Divergences,
		fingerprintDivergences(result.StoredFingerprint, result.ReplayedFingerprint, recordedHash)...)
	result.Match = len(result.Divergences) == 0
	return result
}

// compareSaleDataset matches a stored sales stream against its replay by
// transaction ID.
func compareSaleDataset(variant string, stored, replayed []domain.SaleRecord, recordedHash string) DatasetResult {
	result := DatasetResult{
		Dataset:             variant,
		Records:             len(stored),
		StoredFingerprint:   idhash.SalesFingerprint(stored),
		ReplayedFingerprint: idhash.SalesFingerprint(replayed),
	}

	byTxn := make(map[string]domain.SaleRecord, len(replayed))
	for _, rec := range replayed {
		byTxn[rec.TransactionID] = rec
	}
	for _, sr := range stored {
		rr, ok := byTxn[sr.TransactionID]
		if !ok {
			result.Divergences = append(result.Divergences, FieldDivergence{
				Record: sr.TransactionID, Field: "Record", Expected: sr, Actual: nil,
			})
			continue
		}
		delete(byTxn, sr.TransactionID)
		result.Divergences = append(result.Divergences, CompareSaleRecords(sr, rr)...)
	}
	surplus := make([]string, 0, len(byTxn))
	for id := range byTxn {
		surplus = append(surplus, id)
	}
	slices.Sort(surplus)
	for _, id := range surplus {
		result.Divergences = append(result.Divergences, FieldDivergence{
			Record: id, Field: "Record", Expected: nil, Actual: byTxn[id],
		})
	}

	result.Divergences = append(result.Divergences,
		fingerprintDivergences(result.StoredFingerprint, result.ReplayedFingerprint, recordedHash)...)
	result.Match = len(result.Divergences) == 0
	return result
}

// compareCohortDataset matches the stored treatment cohort against the
// replayed selection. Both inputs are sorted ascending.
func compareCohortDataset(stored, replayed []string) DatasetResult {
	result := DatasetResult{Dataset: DatasetCohort, Records: len(stored)}

	replayedSet := make(map[string]struct{}, len(replayed))
	for _, id := range replayed {
		replayedSet[id] = struct{}{}
	}
	storedSet := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		storedSet[id] = struct{}{}
		if _, ok := replayedSet[id]; !ok {
			result.Divergences = append(result.Divergences, FieldDivergence{
				Record: id, Field: "Enriched", Expected: true, Actual: false,
			})
		}
	}
	for _, id := range replayed {
		if _, ok := storedSet[id]; !ok {
			result.Divergences = append(result.Divergences, FieldDivergence{
				Record: id, Field: "Enriched", Expected: false, Actual: true,
			})
		}
	}

	result.Match = len(result.Divergences) == 0
	return result
}

// fingerprintDivergences reports dataset-level fingerprint findings: the
// stored dataset must reproduce the hash recorded at generation time, and
// the replay must reproduce the stored dataset.
func fingerprintDivergences(storedFP, replayedFP, recordedHash string) []FieldDivergence {
	var divergences []FieldDivergence
	if recordedHash != "" && storedFP != recordedHash {
		divergences = append(divergences, FieldDivergence{
			Field: "RecordedFingerprint", Expected: recordedHash, Actual: storedFP,
		})
	}
	if storedFP != replayedFP {
		divergences = append(divergences, FieldDivergence{
			Field: "Fingerprint", Expected: storedFP, Actual: replayedFP,
		})
	}
	return divergences
}
