package clickhouse

import (
	"context"
	"fmt"
	"time"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/metrics"
	"retail-sim-lab/internal/observability"
	"retail-sim-lab/internal/storage"
)

// recordQuery reports one query's duration and outcome to the metrics
// registry. Pass the named return so the deferred call sees the final error.
func recordQuery(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), *err)
}

// SaleHistoryStore implements storage.SaleStore using ClickHouse. It serves
// as the analytical mirror of a run's sales streams; aggregation queries run
// inside the database instead of pulling rows out.
type SaleHistoryStore struct {
	conn *Conn
}

// NewSaleHistoryStore creates a new SaleHistoryStore.
func NewSaleHistoryStore(conn *Conn) *SaleHistoryStore {
	return &SaleHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SaleStore = (*SaleHistoryStore)(nil)

// InsertBatch adds one variant's stream. MergeTree does not enforce
// uniqueness, so duplicates are rejected at stream granularity: a
// (run_id, variant) pair is written exactly once.
func (s *SaleHistoryStore) InsertBatch(ctx context.Context, runID, variant string, sales []domain.SaleRecord) (err error) {
	if runID == "" || variant == "" {
		return storage.ErrInvalidInput
	}
	if len(sales) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(sales))
	for _, rec := range sales {
		if rec.TransactionID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[rec.TransactionID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[rec.TransactionID] = struct{}{}
	}
	defer recordQuery("insert", time.Now(), &err)

	// Check whether this stream was already written
	exists, err := s.exists(ctx, runID, variant)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO sales_history (
			run_id, variant, transaction_id,
			product_id, product_name, category,
			quantity, unit_price, revenue, sale_date
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, rec := range sales {
		err = batch.Append(
			runID, variant, rec.TransactionID,
			rec.ProductID, rec.ProductName, rec.Category,
			rec.Quantity, rec.UnitPrice, rec.Revenue, rec.Date.Time(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunVariant retrieves a stream, ordered by transaction_id ASC.
func (s *SaleHistoryStore) GetByRunVariant(ctx context.Context, runID, variant string) (_ []domain.SaleRecord, err error) {
	defer recordQuery("select", time.Now(), &err)
	query := `
		SELECT transaction_id, product_id, product_name, category,
		       quantity, unit_price, revenue, sale_date
		FROM sales_history
		WHERE run_id = ? AND variant = ?
		ORDER BY transaction_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, variant)
	if err != nil {
		return nil, fmt.Errorf("query by run/variant: %w", err)
	}
	defer rows.Close()

	return scanSaleRecords(rows)
}

// GetByProduct retrieves one product's records within a stream, ordered by
// transaction_id ASC.
func (s *SaleHistoryStore) GetByProduct(ctx context.Context, runID, variant, productID string) (_ []domain.SaleRecord, err error) {
	defer recordQuery("select", time.Now(), &err)
	query := `
		SELECT transaction_id, product_id, product_name, category,
		       quantity, unit_price, revenue, sale_date
		FROM sales_history
		WHERE run_id = ? AND variant = ? AND product_id = ?
		ORDER BY transaction_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, variant, productID)
	if err != nil {
		return nil, fmt.Errorf("query by product: %w", err)
	}
	defer rows.Close()

	return scanSaleRecords(rows)
}

// CountByVariant reports how many records each variant of a run holds.
func (s *SaleHistoryStore) CountByVariant(ctx context.Context, runID string) (_ map[string]int, err error) {
	defer recordQuery("select", time.Now(), &err)
	query := `
		SELECT variant, count(*)
		FROM sales_history
		WHERE run_id = ?
		GROUP BY variant
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("count by variant: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var variant string
		var count uint64
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

// GetDailySummaries aggregates one stream per calendar day inside ClickHouse,
// date ascending.
func (s *SaleHistoryStore) GetDailySummaries(ctx context.Context, runID, variant string) (_ []metrics.DailySummary, err error) {
	defer recordQuery("select", time.Now(), &err)
	query := `
		SELECT sale_date, count(*), sum(quantity), sum(revenue)
		FROM sales_history
		WHERE run_id = ? AND variant = ?
		GROUP BY sale_date
		ORDER BY sale_date ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, variant)
	if err != nil {
		return nil, fmt.Errorf("query daily summaries: %w", err)
	}
	defer rows.Close()

	var out []metrics.DailySummary
	for rows.Next() {
		var day metrics.DailySummary
		var saleDate time.Time
		var transactions uint64

		if err := rows.Scan(&saleDate, &transactions, &day.Units, &day.Revenue); err != nil {
			return nil, fmt.Errorf("scan daily summary row: %w", err)
		}

		day.Date = domain.DateOf(saleDate)
		day.Transactions = int(transactions)
		out = append(out, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily summary rows: %w", err)
	}

	return out, nil
}

// exists checks if a (run_id, variant) stream was already written.
func (s *SaleHistoryStore) exists(ctx context.Context, runID, variant string) (bool, error) {
	query := `
		SELECT count(*) FROM sales_history
		WHERE run_id = ? AND variant = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID, variant).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSaleRecords scans multiple rows into a slice of SaleRecord.
func scanSaleRecords(rows chRows) ([]domain.SaleRecord, error) {
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
