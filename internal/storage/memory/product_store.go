package memory

import (
	"context"
	"sort"
	"sync"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/storage"
)

type productKey struct {
	runID     string
	productID string
}

// ProductStore is an in-memory implementation of storage.ProductStore.
type ProductStore struct {
	mu       sync.RWMutex
	data     map[productKey]domain.Product
	enriched map[productKey]bool
}

// NewProductStore creates a new in-memory product store.
func NewProductStore() *ProductStore {
	return &ProductStore{
		data:     make(map[productKey]domain.Product),
		enriched: make(map[productKey]bool),
	}
}

// InsertBatch adds a run's catalog atomically. Fails entire batch on any
// duplicate (run_id, product_id).
func (s *ProductStore) InsertBatch(_ context.Context, runID string, products []domain.Product) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(products) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[productKey]struct{}, len(products))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range products {
		if p.ProductID == "" {
			return storage.ErrInvalidInput
		}
		key := productKey{runID: runID, productID: p.ProductID}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range products {
		s.data[productKey{runID: runID, productID: p.ProductID}] = p
	}

	return nil
}

// GetByRun retrieves a run's catalog, ordered by product_id ASC.
func (s *ProductStore) GetByRun(_ context.Context, runID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Product
	for key, p := range s.data {
		if key.runID == runID {
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ProductID < result[j].ProductID
	})

	return result, nil
}

// MarkEnriched flags the cohort members of a run. Unknown product IDs return
// ErrNotFound without flagging anything.
func (s *ProductStore) MarkEnriched(_ context.Context, runID string, productIDs []string) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: verify all IDs exist
	for _, id := range productIDs {
		if _, exists := s.data[productKey{runID: runID, productID: id}]; !exists {
			return storage.ErrNotFound
		}
	}

	// Second pass: flag all
	for _, id := range productIDs {
		s.enriched[productKey{runID: runID, productID: id}] = true
	}

	return nil
}

// GetEnriched retrieves the cohort product IDs of a run, sorted ASC.
func (s *ProductStore) GetEnriched(_ context.Context, runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []string
	for key, flagged := range s.enriched {
		if key.runID == runID && flagged {
			result = append(result, key.productID)
		}
	}

	sort.Strings(result)
	return result, nil
}

var _ storage.ProductStore = (*ProductStore)(nil)
