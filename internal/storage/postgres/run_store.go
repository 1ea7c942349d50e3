package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.RunMetadata) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO runs (
			run_id, created_at, mode, seed,
			num_products, num_sales, enriched,
			products_hash, sales_hash, config
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10
		)
	`

	_, err := s.pool.Exec(ctx, query,
		run.RunID, run.CreatedAt, run.Mode, run.Seed,
		run.NumProducts, run.NumSales, run.Enriched,
		run.ProductsHash, run.SalesHash, run.Config,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunMetadata, error) {
	query := `
		SELECT
			run_id, created_at, mode, seed,
			num_products, num_sales, enriched,
			products_hash, sales_hash, config
		FROM runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	run, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return run, nil
}

// List retrieves all runs, ordered by created_at DESC with run_id ASC as tie-breaker.
func (s *RunStore) List(ctx context.Context) ([]*domain.RunMetadata, error) {
	query := `
		SELECT
			run_id, created_at, mode, seed,
			num_products, num_sales, enriched,
			products_hash, sales_hash, config
		FROM runs
		ORDER BY created_at DESC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunMetadata
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

// scanRun scans a single row into a RunMetadata.
func scanRun(row pgx.Row) (*domain.RunMetadata, error) {
	var run domain.RunMetadata

	err := row.Scan(
		&run.RunID, &run.CreatedAt, &run.Mode, &run.Seed,
		&run.NumProducts, &run.NumSales, &run.Enriched,
		&run.ProductsHash, &run.SalesHash, &run.Config,
	)
	if err != nil {
		return nil, err
	}

	return &run, nil
}
