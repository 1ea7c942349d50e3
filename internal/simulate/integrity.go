package simulate

import (
	"fmt"
	"sort"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/metrics"
)

// IntegrityCheck represents one dataset integrity criterion.
type IntegrityCheck struct {
	Name     string
	Expected string
	Actual   string
	Pass     bool
}

// IntegrityResult contains all checks for a run's generated datasets.
type IntegrityResult struct {
	Checks  []IntegrityCheck
	AllPass bool
	Errors  []string // one line per finding
}

func (r *IntegrityResult) add(check IntegrityCheck, findings []string) {
	r.Checks = append(r.Checks, check)
	if !check.Pass {
		r.AllPass = false
		r.Errors = append(r.Errors, findings...)
	}
}

// CheckIntegrity validates generated datasets before persistence. streams
// maps variant names to their records; every stream is held to the same
// criteria. The bundled rule backend always passes; the gate exists for
// registered external backends and custom effects.
func CheckIntegrity(products []domain.Product, streams map[string][]domain.SaleRecord, start, end domain.Date) *IntegrityResult {
	result := &IntegrityResult{AllPass: true}

	variants := make([]string, 0, len(streams))
	for name := range streams {
		variants = append(variants, name)
	}
	sort.Strings(variants)

	// Check 1: duplicate product IDs == 0
	dupProducts := duplicateProductFindings(products)
	result.add(IntegrityCheck{
		Name:     "Duplicate product IDs",
		Expected: "== 0",
		Actual:   fmt.Sprintf("%d", len(dupProducts)),
		Pass:     len(dupProducts) == 0,
	}, dupProducts)

	// Check 2: duplicate transaction IDs == 0
	var dupTxns []string
	for _, variant := range variants {
		dupTxns = append(dupTxns, duplicateTransactionFindings(variant, streams[variant])...)
	}
	result.add(IntegrityCheck{
		Name:     "Duplicate transaction IDs",
		Expected: "== 0",
		Actual:   fmt.Sprintf("%d", len(dupTxns)),
		Pass:     len(dupTxns) == 0,
	}, dupTxns)

	// Check 3: orphan sales == 0
	var orphanFindings []string
	for _, variant := range variants {
		for _, msg := range metrics.FormatOrphanErrors(metrics.CountOrphans(products, streams[variant])) {
			orphanFindings = append(orphanFindings, fmt.Sprintf("%s: %s", variant, msg))
		}
	}
	result.add(IntegrityCheck{
		Name:     "Orphan sales",
		Expected: "== 0",
		Actual:   fmt.Sprintf("%d", len(orphanFindings)),
		Pass:     len(orphanFindings) == 0,
	}, orphanFindings)

	// Check 4: inconsistent revenue records == 0
	var revenueFindings []string
	for _, variant := range variants {
		for _, rec := range streams[variant] {
			if !rec.ConsistentRevenue() {
				revenueFindings = append(revenueFindings, fmt.Sprintf("%s: %s revenue %s != %s x %d",
					variant, rec.TransactionID, rec.Revenue, rec.UnitPrice, rec.Quantity))
			}
		}
	}
	result.add(IntegrityCheck{
		Name:     "Inconsistent revenue records",
		Expected: "== 0",
		Actual:   fmt.Sprintf("%d", len(revenueFindings)),
		Pass:     len(revenueFindings) == 0,
	}, revenueFindings)

	// Check 5: records outside the run window == 0
	var windowFindings []string
	for _, variant := range variants {
		for _, rec := range streams[variant] {
			if rec.Date.Before(start) || rec.Date.After(end) {
				windowFindings = append(windowFindings, fmt.Sprintf("%s: %s dated %s outside %s..%s",
					variant, rec.TransactionID, rec.Date, start, end))
			}
		}
	}
	result.add(IntegrityCheck{
		Name:     "Records outside run window",
		Expected: "== 0",
		Actual:   fmt.Sprintf("%d", len(windowFindings)),
		Pass:     len(windowFindings) == 0,
	}, windowFindings)

	// Check 6: non-positive quantities == 0
	var quantityFindings []string
	for _, variant := range variants {
		for _, rec := range streams[variant] {
			if rec.Quantity < 1 {
				quantityFindings = append(quantityFindings, fmt.Sprintf("%s: %s quantity %d",
					variant, rec.TransactionID, rec.Quantity))
			}
		}
	}
	result.add(IntegrityCheck{
		Name:     "Non-positive quantities",
		Expected: "== 0",
		Actual:   fmt.Sprintf("%d", len(quantityFindings)),
		Pass:     len(quantityFindings) == 0,
	}, quantityFindings)

	return result
}

func duplicateProductFindings(products []domain.Product) []string {
	seen := make(map[string]struct{}, len(products))
	var findings []string
	for _, p := range products {
		if _, dup := seen[p.ProductID]; dup {
			findings = append(findings, fmt.Sprintf("catalog: duplicate product id %s", p.ProductID))
			continue
		}
		seen[p.ProductID] = struct{}{}
	}
	return findings
}

func duplicateTransactionFindings(variant string, records []domain.SaleRecord) []string {
	seen := make(map[string]struct{}, len(records))
	var findings []string
	for _, rec := range records {
		if _, dup := seen[rec.TransactionID]; dup {
			findings = append(findings, fmt.Sprintf("%s: duplicate transaction %s", variant, rec.TransactionID))
			continue
		}
		seen[rec.TransactionID] = struct{}{}
	}
	return findings
}
