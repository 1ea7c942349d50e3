package storage

import (
	"context"

	"retail-sim-lab/internal/domain"
)

// RunStore provides access to runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.RunMetadata) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunMetadata, error)

	// List retrieves all runs, ordered by created_at DESC with run_id ASC
	// as tie-breaker.
	List(ctx context.Context) ([]*domain.RunMetadata, error)
}

// ProductStore provides access to products storage. Each run owns its own
// catalog; products of different runs never mix.
type ProductStore interface {
	// InsertBatch adds a run's catalog atomically. Fails entire batch on any
	// duplicate (run_id, product_id).
	InsertBatch(ctx context.Context, runID string, products []domain.Product) error

	// GetByRun retrieves a run's catalog, ordered by product_id ASC.
	GetByRun(ctx context.Context, runID string) ([]domain.Product, error)

	// MarkEnriched flags the cohort members of a run. Unknown product IDs
	// return ErrNotFound without flagging anything.
	MarkEnriched(ctx context.Context, runID string, productIDs []string) error

	// GetEnriched retrieves the cohort product IDs of a run, sorted ASC.
	GetEnriched(ctx context.Context, runID string) ([]string, error)
}

// SaleStore provides access to sales storage. Sales are keyed by
// (run_id, variant, transaction_id) so baseline, factual and counterfactual
// streams of one run live side by side.
type SaleStore interface {
	// InsertBatch adds one variant's stream atomically. Fails entire batch on
	// any duplicate (run_id, variant, transaction_id).
	InsertBatch(ctx context.Context, runID, variant string, sales []domain.SaleRecord) error

	// GetByRunVariant retrieves a stream, ordered by transaction_id ASC.
	GetByRunVariant(ctx context.Context, runID, variant string) ([]domain.SaleRecord, error)

	// GetByProduct retrieves one product's records within a stream, ordered
	// by transaction_id ASC.
	GetByProduct(ctx context.Context, runID, variant, productID string) ([]domain.SaleRecord, error)

	// CountByVariant reports how many records each variant of a run holds.
	// Variants without records are absent from the map.
	CountByVariant(ctx context.Context, runID string) (map[string]int, error)
}
