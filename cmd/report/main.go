// Package main generates the report for a stored run: dataset summary,
// daily and category breakdowns and the factual-vs-counterfactual lift
// tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"retail-sim-lab/internal/config"
	"retail-sim-lab/internal/reporting"
	"retail-sim-lab/internal/simulate"
	"retail-sim-lab/internal/storage"
	"retail-sim-lab/internal/storage/memory"
	"retail-sim-lab/internal/storage/migrations"
	pgstore "retail-sim-lab/internal/storage/postgres"
)

func main() {
	// Parse flags (env vars as defaults)
	runID := flag.String("run-id", "", "Run to report on (required unless -demo)")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("RETAIL_SIM_POSTGRES_DSN"), "PostgreSQL connection string")
	demo := flag.Bool("demo", false, "Report on a freshly generated in-memory demo run")
	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	// Validate flags
	if !*demo && *runID == "" {
		logger.Fatal("--run-id is required (use --demo for a generated demo run)")
	}
	if !*demo && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required when not running the demo")
	}

	ctx := context.Background()

	var (
		runStore     storage.RunStore
		productStore storage.ProductStore
		saleStore    storage.SaleStore
	)
	target := *runID

	if *demo {
		runs := memory.NewRunStore()
		products := memory.NewProductStore()
		sales := memory.NewSaleStore()
		id, err := generateDemoRun(ctx, runs, products, sales)
		if err != nil {
			logger.Fatalf("generate demo run: %v", err)
		}
		runStore, productStore, saleStore = runs, products, sales
		target = id
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("apply postgres migrations: %v", err)
		}
		runStore = pgstore.NewRunStore(pool)
		productStore = pgstore.NewProductStore(pool)
		saleStore = pgstore.NewSaleStore(pool)
	}

	generator := reporting.NewGenerator(runStore, productStore, saleStore)
	if *demo {
		// Fixed clock for deterministic demo output
		fixedTime := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
		generator = generator.WithClock(func() time.Time { return fixedTime })
	}

	report, err := generator.Generate(ctx, target)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}

	type outputFile struct {
		name    string
		content string
	}
	files := []outputFile{
		{"RUN_REPORT.md", reporting.RenderMarkdown(report)},
		{"daily_summary.csv", reporting.RenderSummaryCSV(report.Daily)},
		{"category_summary.csv", reporting.RenderCategoryCSV(report.Categories)},
	}
	if report.Lift != nil {
		files = append(files, outputFile{"daily_lift.csv", reporting.RenderLiftCSV(report.DailyLift)})
	}

	fmt.Printf("Run report for %s generated successfully:\n", target)
	for _, f := range files {
		path := filepath.Join(*outputDir, f.name)
		if err := writeFile(path, f.content); err != nil {
			logger.Fatalf("write %s: %v", f.name, err)
		}
		fmt.Printf("  - %s\n", path)
	}
}

// generateDemoRun stores one enriched run in the given memory stores and
// returns its ID.
func generateDemoRun(ctx context.Context, runs storage.RunStore, products storage.ProductStore, sales storage.SaleStore) (string, error) {
	cfg := config.Default()
	cfg.Baseline.NumProducts = 12
	cfg.Baseline.DateStart = "2024-03-01"
	cfg.Baseline.DateEnd = "2024-03-14"
	cfg.Enrichment.StartDate = "2024-03-08"

	runner := simulate.New(simulate.Options{
		RunStore:     runs,
		ProductStore: products,
		SaleStore:    sales,
	})
	// Fixed clock so the demo report carries a stable created-at
	fixedTime := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	result, err := runner.WithClock(func() time.Time { return fixedTime }).Run(ctx, cfg)
	if err != nil {
		return "", err
	}
	return result.Run.RunID, nil
}

// writeFile writes one report file, creating the directory as needed.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
