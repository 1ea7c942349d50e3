package memory

import (
	"context"
	"sort"
	"sync"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/storage"
)

type saleKey struct {
	runID         string
	variant       string
	transactionID string
}

// SaleStore is an in-memory implementation of storage.SaleStore.
type SaleStore struct {
	mu   sync.RWMutex
	data map[saleKey]domain.SaleRecord
}

// NewSaleStore creates a new in-memory sale store.
func NewSaleStore() *SaleStore {
	return &SaleStore{
		data: make(map[saleKey]domain.SaleRecord),
	}
}

// InsertBatch adds one variant's stream atomically. Fails entire batch on any
// duplicate (run_id, variant, transaction_id).
func (s *SaleStore) InsertBatch(_ context.Context, runID, variant string, sales []domain.SaleRecord) error {
	if runID == "" || variant == "" {
		return storage.ErrInvalidInput
	}
	if len(sales) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[saleKey]struct{}, len(sales))

	// First pass: check for duplicates (existing + intra-batch)
	for _, rec := range sales {
		if rec.TransactionID == "" {
			return storage.ErrInvalidInput
		}
		key := saleKey{runID: runID, variant: variant, transactionID: rec.TransactionID}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, rec := range sales {
		s.data[saleKey{runID: runID, variant: variant, transactionID: rec.TransactionID}] = rec
	}

	return nil
}

// GetByRunVariant retrieves a stream, ordered by transaction_id ASC.
func (s *SaleStore) GetByRunVariant(_ context.Context, runID, variant string) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.SaleRecord
	for key, rec := range s.data {
		if key.runID == runID && key.variant == variant {
			result = append(result, rec)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TransactionID < result[j].TransactionID
	})

	return result, nil
}

// GetByProduct retrieves one product's records within a stream, ordered by
// transaction_id ASC.
func (s *SaleStore) GetByProduct(_ context.Context, runID, variant, productID string) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.SaleRecord
	for key, rec := range s.data {
		if key.runID == runID && key.variant == variant && rec.ProductID == productID {
			result = append(result, rec)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TransactionID < result[j].TransactionID
	})

	return result, nil
}

// CountByVariant reports how many records each variant of a run holds.
func (s *SaleStore) CountByVariant(_ context.Context, runID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for key := range s.data {
		if key.runID == runID {
			counts[key.variant]++
		}
	}

	return counts, nil
}

var _ storage.SaleStore = (*SaleStore)(nil)
