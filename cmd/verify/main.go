// Package main verifies stored runs by regenerating their datasets from
// the recorded seed and config snapshot and diffing against what the
// database holds.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"retail-sim-lab/internal/storage/migrations"
	pgstore "retail-sim-lab/internal/storage/postgres"
	"retail-sim-lab/internal/verification"
)

func main() {
	// Parse flags (env vars as defaults)
	runID := flag.String("run-id", "", "Run to verify (default: every stored run)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("RETAIL_SIM_POSTGRES_DSN"), "PostgreSQL connection string")
	outputJSON := flag.Bool("json", false, "Output results as JSON")
	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[verify] ", log.LstdFlags)

	// Validate flags
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("apply postgres migrations: %v", err)
	}

	verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		RunStore:     pgstore.NewRunStore(pool),
		ProductStore: pgstore.NewProductStore(pool),
		SaleStore:    pgstore.NewSaleStore(pool),
	})

	// Single-run verification
	if *runID != "" {
		result, err := verifier.VerifyRun(ctx, *runID)
		if err != nil {
			logger.Fatalf("verify run %s: %v", *runID, err)
		}
		if *outputJSON {
			printJSON(result)
		} else {
			fmt.Printf("\n=== Verification Summary ===\n")
			printRunResult(*result)
		}
		if !result.Match {
			os.Exit(1)
		}
		return
	}

	// Batch verification over every stored run
	report, err := verifier.VerifyAll(ctx)
	if err != nil {
		logger.Fatalf("verify runs: %v", err)
	}
	if *outputJSON {
		printJSON(report)
	} else {
		fmt.Printf("\n=== Verification Summary ===\n")
		fmt.Printf("Total Runs:     %d\n", report.TotalRuns)
		fmt.Printf("Matched Runs:   %d\n", report.MatchedRuns)
		fmt.Printf("Divergent Runs: %d\n", report.DivergentRuns)
		for _, result := range report.Results {
			fmt.Println()
			printRunResult(result)
		}
	}
	if report.DivergentRuns > 0 {
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal results: %v", err)
	}
	fmt.Println(string(output))
}

func printRunResult(result verification.RunResult) {
	status := "MATCH"
	if !result.Match {
		status = "DIVERGED"
	}
	fmt.Printf("%s: %s\n", result.RunID, status)
	for _, ds := range result.Datasets {
		note := "ok"
		if !ds.Match {
			note = fmt.Sprintf("%d divergences", len(ds.Divergences))
		}
		fmt.Printf("  %-16s %6d records  %s\n", ds.Dataset, ds.Records, note)
		for _, d := range ds.Divergences {
			fmt.Printf("    %s %s: stored %v, replayed %v\n", d.Record, d.Field, d.Expected, d.Actual)
		}
	}
}
