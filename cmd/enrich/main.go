// Package main applies a treatment effect to an existing sales dataset,
// producing the factual/counterfactual file pair without re-generating the
// baseline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"retail-sim-lab/internal/config"
	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/effect"
	"retail-sim-lab/internal/enrichment"
	"retail-sim-lab/internal/export"
)

func main() {
	// Parse flags
	salesPath := flag.String("sales", "", "Baseline sales JSON file (required)")
	productsPath := flag.String("products", "", "Catalog JSON file; cohort is selected over it when given")
	effectSpec := flag.String("effect", "quantity_boost:0.5", "Effect in shorthand notation name:size")
	fraction := flag.Float64("fraction", 0.5, "Fraction of products assigned to the treatment cohort")
	startDate := flag.String("start-date", "", "First treated date YYYY-MM-DD (required)")
	seed := flag.Int64("seed", 42, "Seed for cohort selection")
	outputDir := flag.String("output", "output", "Output directory for generated files")
	outputJSON := flag.Bool("json", false, "Output the summary as JSON")
	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[enrich] ", log.LstdFlags)

	// Validate required flags
	if *salesPath == "" {
		logger.Fatal("--sales is required")
	}
	if *startDate == "" {
		logger.Fatal("--start-date is required")
	}

	var sales []domain.SaleRecord
	if err := readJSON(*salesPath, &sales); err != nil {
		logger.Fatalf("read sales: %v", err)
	}
	if len(sales) == 0 {
		logger.Fatalf("sales file %s holds no records", *salesPath)
	}

	var products []domain.Product
	if *productsPath != "" {
		if err := readJSON(*productsPath, &products); err != nil {
			logger.Fatalf("read products: %v", err)
		}
	}

	spec, err := enrichment.ParseSpec(*effectSpec)
	if err != nil {
		logger.Fatalf("parse effect: %v", err)
	}
	start, err := domain.ParseDate(*startDate)
	if err != nil {
		logger.Fatalf("parse start date: %v", err)
	}

	// The cohort comes from the catalog when one was given, otherwise from
	// the products present in the sales records.
	var ids []string
	if len(products) > 0 {
		for _, p := range products {
			ids = append(ids, p.ProductID)
		}
	} else {
		for _, rec := range sales {
			ids = append(ids, rec.ProductID)
		}
	}
	cohort, err := enrichment.SelectCohort(ids, *fraction, *seed)
	if err != nil {
		logger.Fatalf("select cohort: %v", err)
	}

	factual, err := enrichment.ApplyWithCohort(effect.NewRegistry(), sales, spec, start, cohort)
	if err != nil {
		logger.Fatalf("apply enrichment: %v", err)
	}

	treated := 0
	for _, rec := range sales {
		if _, ok := cohort[rec.ProductID]; ok && !rec.Date.Before(start) {
			treated++
		}
	}

	names := config.Default().Enrichment
	var files []string
	if len(products) > 0 {
		path := filepath.Join(*outputDir, names.ProductsFile)
		if err := export.WriteJSON(path, enrichment.Assign(products, cohort)); err != nil {
			logger.Fatalf("write enriched catalog: %v", err)
		}
		files = append(files, path)
	}
	factualPath := filepath.Join(*outputDir, names.SalesFactualFile)
	if err := export.WriteJSON(factualPath, factual); err != nil {
		logger.Fatalf("write factual sales: %v", err)
	}
	counterfactualPath := filepath.Join(*outputDir, names.SalesCounterfactualFile)
	if err := export.WriteJSON(counterfactualPath, sales); err != nil {
		logger.Fatalf("write counterfactual sales: %v", err)
	}
	files = append(files, factualPath, counterfactualPath)

	cohortIDs := make([]string, 0, len(cohort))
	for id := range cohort {
		cohortIDs = append(cohortIDs, id)
	}
	sort.Strings(cohortIDs)

	// Output summary
	if *outputJSON {
		output, _ := json.MarshalIndent(EnrichStats{
			Effect:     spec.String(),
			Records:    len(sales),
			CohortSize: len(cohortIDs),
			Treated:    treated,
			Cohort:     cohortIDs,
			Files:      files,
		}, "", "  ")
		fmt.Println(string(output))
		return
	}
	fmt.Printf("\n=== Enrichment Summary ===\n")
	fmt.Printf("Effect:       %s\n", spec)
	fmt.Printf("Records:      %d\n", len(sales))
	fmt.Printf("Cohort Size:  %d\n", len(cohortIDs))
	fmt.Printf("Treated:      %d\n", treated)
	fmt.Println("Files written:")
	for _, path := range files {
		fmt.Printf("  - %s\n", path)
	}
}

// EnrichStats holds enrichment statistics for the JSON summary.
type EnrichStats struct {
	Effect     string   `json:"effect"`
	Records    int      `json:"records"`
	CohortSize int      `json:"cohort_size"`
	Treated    int      `json:"treated"`
	Cohort     []string `json:"cohort"`
	Files      []string `json:"files"`
}

// readJSON reads one dataset file.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
