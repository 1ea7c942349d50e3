// Package main provides the one-shot simulation pipeline:
// catalog → details → sales → enrichment → integrity → persistence → files.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"retail-sim-lab/internal/config"
	"retail-sim-lab/internal/export"
	"retail-sim-lab/internal/simulate"
	"retail-sim-lab/internal/storage"
	chstore "retail-sim-lab/internal/storage/clickhouse"
	"retail-sim-lab/internal/storage/memory"
	"retail-sim-lab/internal/storage/migrations"
	pgstore "retail-sim-lab/internal/storage/postgres"
)

func main() {
	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("RETAIL_SIM_CONFIG"), "Config file (YAML or JSON)")
	startDate := flag.String("start", "", "First sale date YYYY-MM-DD (without -config)")
	endDate := flag.String("end", "", "Last sale date YYYY-MM-DD (without -config)")
	enrichStart := flag.String("enrich-start", "", "First treated date YYYY-MM-DD; enables enrichment (without -config)")
	noFiles := flag.Bool("no-files", false, "Skip writing dataset files")
	outputJSON := flag.Bool("json", false, "Print run metadata as JSON instead of the text summary")
	verbose := flag.Bool("verbose", false, "Verbose phase logging")
	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	cfg, err := loadConfig(*configPath, *startDate, *endDate, *enrichStart)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
		cancel()
	}()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	runner := simulate.New(simulate.Options{
		RunStore:     stores.runs,
		ProductStore: stores.products,
		SaleStore:    stores.sales,
		HistoryStore: stores.history,
		Verbose:      *verbose,
	})

	result, err := runner.Run(ctx, cfg)
	if err != nil {
		logger.Fatalf("simulation failed: %v", err)
	}
	for _, warn := range result.Errors {
		logger.Printf("WARNING: %s", warn)
	}

	if !*noFiles {
		files, err := export.WriteRunFiles(cfg.Output, cfg, export.Datasets{
			Products:            result.Products,
			DetailedProducts:    result.Details,
			AssignedProducts:    result.Assigned,
			Sales:               result.Baseline,
			SalesFactual:        result.Factual,
			SalesCounterfactual: result.Counterfactual,
			Metadata:            result.Run,
		})
		if err != nil {
			logger.Fatalf("write dataset files: %v", err)
		}
		fmt.Println("Files written:")
		for _, path := range files.Paths() {
			fmt.Printf("  - %s\n", path)
		}
	}

	// Output summary
	run := result.Run
	if *outputJSON {
		output, _ := json.MarshalIndent(run, "", "  ")
		fmt.Println(string(output))
		return
	}
	fmt.Printf("\n=== Run Summary ===\n")
	fmt.Printf("Run ID:        %s\n", run.RunID)
	fmt.Printf("Mode:          %s\n", run.Mode)
	fmt.Printf("Seed:          %d\n", run.Seed)
	fmt.Printf("Products:      %d\n", run.NumProducts)
	fmt.Printf("Sales:         %d\n", run.NumSales)
	fmt.Printf("Enriched:      %t\n", run.Enriched)
	if run.Enriched {
		fmt.Printf("Cohort Size:   %d\n", len(result.Cohort))
	}
	fmt.Printf("Products Hash: %s\n", run.ProductsHash)
	fmt.Printf("Sales Hash:    %s\n", run.SalesHash)
}

// loadConfig resolves the run configuration: a config file when given,
// otherwise the package defaults completed by the date flags. The date
// flags never override a config file; a file is expected to be complete.
func loadConfig(path, startDate, endDate, enrichStart string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if startDate == "" || endDate == "" {
		return nil, fmt.Errorf("either -config or both -start and -end are required")
	}
	cfg := config.Default()
	cfg.Baseline.DateStart = startDate
	cfg.Baseline.DateEnd = endDate
	cfg.Enrichment.StartDate = enrichStart
	config.ApplyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runStores holds the stores one run writes to.
type runStores struct {
	runs     storage.RunStore
	products storage.ProductStore
	sales    storage.SaleStore
	history  storage.SaleStore // nil without a ClickHouse DSN
}

// createStores builds the stores the config names and applies pending
// migrations. The returned cleanup closes any database connections.
func createStores(ctx context.Context, cfg *config.Config) (*runStores, func(), error) {
	var (
		pool *pgstore.Pool
		conn *chstore.Conn
	)

	stores := &runStores{}
	if cfg.Storage.Driver == config.DriverPostgres {
		var err error
		pool, err = pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
		stores.runs = pgstore.NewRunStore(pool)
		stores.products = pgstore.NewProductStore(pool)
		stores.sales = pgstore.NewSaleStore(pool)
	} else {
		stores.runs = memory.NewRunStore()
		stores.products = memory.NewProductStore()
		stores.sales = memory.NewSaleStore()
	}

	if cfg.Storage.ClickhouseDSN != "" {
		var err error
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.history = chstore.NewSaleHistoryStore(conn)
	}

	cleanup := func() {
		if conn != nil {
			conn.Close()
		}
		if pool != nil {
			pool.Close()
		}
	}
	return stores, cleanup, nil
}
