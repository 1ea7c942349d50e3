package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/storage"
)

// SaleStore implements storage.SaleStore using PostgreSQL.
type SaleStore struct {
	pool *Pool
}

// NewSaleStore creates a new SaleStore.
func NewSaleStore(pool *Pool) *SaleStore {
	return &SaleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SaleStore = (*SaleStore)(nil)

var saleColumns = []string{
	"run_id", "variant", "transaction_id",
	"product_id", "product_name", "category",
	"quantity", "unit_price", "revenue", "sale_date",
}

// InsertBatch adds one variant's stream atomically via COPY. A full stream can
// hold tens of thousands of records, so row-by-row INSERT is not an option.
// Fails entire batch on any duplicate (run_id, variant, transaction_id).
func (s *SaleStore) InsertBatch(ctx context.Context, runID, variant string, sales []domain.SaleRecord) error {
	if runID == "" || variant == "" {
		return storage.ErrInvalidInput
	}
	if len(sales) == 0 {
		return nil
	}
	for _, rec := range sales {
		if rec.TransactionID == "" {
			return storage.ErrInvalidInput
		}
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"sales"},
		saleColumns,
		pgx.CopyFromSlice(len(sales), func(i int) ([]any, error) {
			rec := sales[i]
			return []any{
				runID, variant, rec.TransactionID,
				rec.ProductID, rec.ProductName, rec.Category,
				rec.Quantity, rec.UnitPrice, rec.Revenue, rec.Date.Time(),
			}, nil
		}),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy sales batch: %w", err)
	}

	return nil
}

// GetByRunVariant retrieves a stream, ordered by transaction_id ASC.
func (s *SaleStore) GetByRunVariant(ctx context.Context, runID, variant string) ([]domain.SaleRecord, error) {
	query := `
		SELECT transaction_id, product_id, product_name, category,
		       quantity, unit_price, revenue, sale_date
		FROM sales
		WHERE run_id = $1 AND variant = $2
		ORDER BY transaction_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, variant)
	if err != nil {
		return nil, fmt.Errorf("get sales by run/variant: %w", err)
	}
	defer rows.Close()

	return scanSaleRecords(rows)
}

// GetByProduct retrieves one product's records within a stream, ordered by
// transaction_id ASC.
func (s *SaleStore) GetByProduct(ctx context.Context, runID, variant, productID string) ([]domain.SaleRecord, error) {
	query := `
		SELECT transaction_id, product_id, product_name, category,
		       quantity, unit_price, revenue, sale_date
		FROM sales
		WHERE run_id = $1 AND variant = $2 AND product_id = $3
		ORDER BY transaction_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, variant, productID)
	if err != nil {
		return nil, fmt.Errorf("get sales by product: %w", err)
	}
	defer rows.Close()

	return scanSaleRecords(rows)
}

// CountByVariant reports how many records each variant of a run holds.
func (s *SaleStore) CountByVariant(ctx context.Context, runID string) (map[string]int, error) {
	query := `
		SELECT variant, count(*)
		FROM sales
		WHERE run_id = $1
		GROUP BY variant
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("count sales by variant: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var variant string
		var count int64
		if err := rows.Scan(&variant, &count); err != nil {
			return nil, fmt.Errorf("scan variant count row: %w", err)
		}
		counts[variant] = int(count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant count rows: %w", err)
	}

	return counts, nil
}

// scanSaleRecords scans multiple rows into a slice of SaleRecord.
func scanSaleRecords(rows pgx.Rows) ([]domain.SaleRecord, error) {
	var sales []domain.SaleRecord

	for rows.Next() {
		var rec domain.SaleRecord
		var saleDate time.Time

		err := rows.Scan(
			&rec.TransactionID, &rec.ProductID, &rec.ProductName, &rec.Category,
			&rec.Quantity, &rec.UnitPrice, &rec.Revenue, &saleDate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale row: %w", err)
		}

		rec.Date = domain.DateOf(saleDate)
		sales = append(sales, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale rows: %w", err)
	}

	return sales, nil
}
