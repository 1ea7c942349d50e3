// Package main provides the HTTP API server. It exposes run creation,
// dataset reads, summaries, lift, replay verification and the WebSocket
// preview feed over one listener.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"retail-sim-lab/internal/api"
	"retail-sim-lab/internal/simulate"
	"retail-sim-lab/internal/storage"
	chstore "retail-sim-lab/internal/storage/clickhouse"
	"retail-sim-lab/internal/storage/memory"
	"retail-sim-lab/internal/storage/migrations"
	pgstore "retail-sim-lab/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	runStore     storage.RunStore
	productStore storage.ProductStore
	saleStore    storage.SaleStore
	historyStore storage.SaleStore // nil without a ClickHouse DSN
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("RETAIL_SIM_POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("RETAIL_SIM_CLICKHOUSE_DSN"), "ClickHouse connection string for the analytical mirror")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	verbose := flag.Bool("verbose", false, "Log per-phase progress for each run")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx := context.Background()

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	if *useMemory {
		logger.Println("Storage: in-memory")
	} else {
		logger.Println("Storage: postgres")
	}
	if stores.historyStore != nil {
		logger.Println("Analytical mirror: clickhouse")
	}

	runner := simulate.New(simulate.Options{
		RunStore:     stores.runStore,
		ProductStore: stores.productStore,
		SaleStore:    stores.saleStore,
		HistoryStore: stores.historyStore,
		Verbose:      *verbose,
	})

	apiServer := api.New(api.Options{
		RunStore:     stores.runStore,
		ProductStore: stores.productStore,
		SaleStore:    stores.saleStore,
		Runner:       runner,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: apiServer.Handler(),
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

		// Wait for second signal for immediate shutdown
		go func() {
			select {
			case sig := <-sigCh:
				logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
				os.Exit(1)
			case <-done:
				// Normal shutdown completed
			}
		}()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Graceful shutdown failed: %v", err)
		}
		close(done)
	}()

	logger.Printf("Starting HTTP server on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	<-done
	logger.Println("Shutdown complete")
}

// createStores creates all required stores and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			runStore:     memory.NewRunStore(),
			productStore: memory.NewProductStore(),
			saleStore:    memory.NewSaleStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	stores := &allStores{
		runStore:     pgstore.NewRunStore(pool),
		productStore: pgstore.NewProductStore(pool),
		saleStore:    pgstore.NewSaleStore(pool),
	}

	// ClickHouse mirror (optional)
	var chConn *chstore.Conn
	if clickhouseDSN != "" {
		chConn, err = migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
		}
		stores.historyStore = chstore.NewSaleHistoryStore(chConn)
	}

	cleanup := func() {
		if chConn != nil {
			chConn.Close()
		}
		pool.Close()
	}

	return stores, cleanup, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
