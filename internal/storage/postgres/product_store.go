package postgres

import (
	"context"
	"fmt"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/storage"
)

// ProductStore implements storage.ProductStore using PostgreSQL.
type ProductStore struct {
	pool *Pool
}

// NewProductStore creates a new ProductStore.
func NewProductStore(pool *Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProductStore = (*ProductStore)(nil)

// InsertBatch adds a run's catalog atomically. Fails entire batch on any
// duplicate (run_id, product_id).
func (s *ProductStore) InsertBatch(ctx context.Context, runID string, products []domain.Product) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(products) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO products (
			run_id, product_id, name, category, price
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	for _, p := range products {
		if p.ProductID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query, runID, p.ProductID, p.Name, p.Category, p.Price)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert product in batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRun retrieves a run's catalog, ordered by product_id ASC.
func (s *ProductStore) GetByRun(ctx context.Context, runID string) ([]domain.Product, error) {
	query := `
		SELECT product_id, name, category, price
		FROM products
		WHERE run_id = $1
		ORDER BY product_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get products by run: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Category, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// MarkEnriched flags the cohort members of a run. Unknown product IDs return
// ErrNotFound without flagging anything.
func (s *ProductStore) MarkEnriched(ctx context.Context, runID string, productIDs []string) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(productIDs) == 0 {
		return nil
	}

	unique := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE products SET enriched = TRUE
		WHERE run_id = $1 AND product_id = ANY($2)
	`, runID, unique)
	if err != nil {
		return fmt.Errorf("mark enriched: %w", err)
	}

	// All requested IDs must exist; a partial match aborts the update.
	if tag.RowsAffected() != int64(len(unique)) {
		return storage.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetEnriched retrieves the cohort product IDs of a run, sorted ASC.
func (s *ProductStore) GetEnriched(ctx context.Context, runID string) ([]string, error) {
	query := `
		SELECT product_id
		FROM products
		WHERE run_id = $1 AND enriched
		ORDER BY product_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get enriched products: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enriched product row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enriched product rows: %w", err)
	}

	return ids, nil
}
