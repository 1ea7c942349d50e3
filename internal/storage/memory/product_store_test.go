package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/storage"
)

func makeProduct(id, category string, price string) domain.Product {
	return domain.Product{
		ProductID: id,
		Name:      "Item " + id,
		Category:  category,
		Price:     decimal.RequireFromString(price),
	}
}

func TestProductStore_InsertBatchAndGet(t *testing.T) {
	store := NewProductStore()
	ctx := context.Background()

	products := []domain.Product{
		makeProduct("PROD0002", "Books", "12.50"),
		makeProduct("PROD0001", "Electronics", "99.99"),
	}
	if err := store.InsertBatch(ctx, "run-1", products); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 products, got %d", len(got))
	}
	// Ordered by product_id ASC regardless of insert order.
	if got[0].ProductID != "PROD0001" || got[1].ProductID != "PROD0002" {
		t.Errorf("Order = [%s, %s], want [PROD0001, PROD0002]", got[0].ProductID, got[1].ProductID)
	}
	if !got[0].Price.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("Price mismatch: got %s", got[0].Price)
	}
}

func TestProductStore_RunsIsolated(t *testing.T) {
	store := NewProductStore()
	ctx := context.Background()

	if err := store.InsertBatch(ctx, "run-1", []domain.Product{makeProduct("PROD0001", "Books", "10.00")}); err != nil {
		t.Fatalf("InsertBatch run-1 failed: %v", err)
	}
	// Same product_id under another run is not a duplicate.
	if err := store.InsertBatch(ctx, "run-2", []domain.Product{makeProduct("PROD0001", "Toys", "20.00")}); err != nil {
		t.Fatalf("InsertBatch run-2 failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Toys" {
		t.Errorf("run-2 catalog = %+v, want single Toys product", got)
	}
}

func TestProductStore_DuplicateKey(t *testing.T) {
	store := NewProductStore()
	ctx := context.Background()

	if err := store.InsertBatch(ctx, "run-1", []domain.Product{makeProduct("PROD0001", "Books", "10.00")}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	// Existing duplicate fails the entire batch.
	err := store.InsertBatch(ctx, "run-1", []domain.Product{
		makeProduct("PROD0002", "Books", "11.00"),
		makeProduct("PROD0001", "Books", "10.00"),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	got, err := store.GetByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Failed batch leaked records: %d products", len(got))
	}

	// Intra-batch duplicate also fails.
	err = store.InsertBatch(ctx, "run-3", []domain.Product{
		makeProduct("PROD0009", "Books", "10.00"),
		makeProduct("PROD0009", "Books", "10.00"),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}

func TestProductStore_InvalidInput(t *testing.T) {
	store := NewProductStore()
	ctx := context.Background()

	if err := store.InsertBatch(ctx, "", []domain.Product{makeProduct("PROD0001", "Books", "10.00")}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty run, got %v", err)
	}
	if err := store.InsertBatch(ctx, "run-1", []domain.Product{{ProductID: ""}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty product_id, got %v", err)
	}
}

func TestProductStore_MarkEnriched(t *testing.T) {
	store := NewProductStore()
	ctx := context.Background()

	products := []domain.Product{
		makeProduct("PROD0001", "Books", "10.00"),
		makeProduct("PROD0002", "Books", "11.00"),
		makeProduct("PROD0003", "Books", "12.00"),
	}
	if err := store.InsertBatch(ctx, "run-1", products); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	if err := store.MarkEnriched(ctx, "run-1", []string{"PROD0003", "PROD0001"}); err != nil {
		t.Fatalf("MarkEnriched failed: %v", err)
	}

	got, err := store.GetEnriched(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetEnriched failed: %v", err)
	}
	if len(got) != 2 || got[0] != "PROD0001" || got[1] != "PROD0003" {
		t.Errorf("GetEnriched = %v, want [PROD0001 PROD0003]", got)
	}

	// Other runs are unaffected.
	other, err := store.GetEnriched(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetEnriched failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("run-2 cohort = %v, want empty", other)
	}
}

func TestProductStore_MarkEnrichedUnknownID(t *testing.T) {
	store := NewProductStore()
	ctx := context.Background()

	if err := store.InsertBatch(ctx, "run-1", []domain.Product{makeProduct("PROD0001", "Books", "10.00")}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	err := store.MarkEnriched(ctx, "run-1", []string{"PROD0001", "PROD9999"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	// Nothing was flagged.
	got, err := store.GetEnriched(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetEnriched failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Failed MarkEnriched leaked flags: %v", got)
	}
}
