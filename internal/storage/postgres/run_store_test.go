package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/storage"
)

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	run := &domain.RunMetadata{
		RunID:        "run-20240601-abc12345",
		CreatedAt:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Mode:         domain.RunModeRule,
		Seed:         42,
		NumProducts:  10,
		NumSales:     70,
		Enriched:     true,
		ProductsHash: "3vQB7B6MdGQZ",
		SalesHash:    "7bWpTW9Vz1fR",
		Config:       "seed: 42\n",
	}

	err := store.Insert(ctx, run)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "run-20240601-abc12345")
	require.NoError(t, err)

	assert.Equal(t, run.RunID, retrieved.RunID)
	assert.True(t, run.CreatedAt.Equal(retrieved.CreatedAt))
	assert.Equal(t, run.Mode, retrieved.Mode)
	assert.Equal(t, run.Seed, retrieved.Seed)
	assert.Equal(t, run.NumProducts, retrieved.NumProducts)
	assert.Equal(t, run.NumSales, retrieved.NumSales)
	assert.Equal(t, run.Enriched, retrieved.Enriched)
	assert.Equal(t, run.ProductsHash, retrieved.ProductsHash)
	assert.Equal(t, run.SalesHash, retrieved.SalesHash)
	assert.Equal(t, run.Config, retrieved.Config)
}

func TestRunStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	run := &domain.RunMetadata{
		RunID:     "run-dup",
		CreatedAt: time.Now().UTC(),
		Mode:      domain.RunModeRule,
	}

	err := store.Insert(ctx, run)
	require.NoError(t, err)

	err = store.Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_ListOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := []*domain.RunMetadata{
		{RunID: "run-b", CreatedAt: base, Mode: domain.RunModeRule},
		{RunID: "run-c", CreatedAt: base.Add(time.Hour), Mode: domain.RunModeRule},
		{RunID: "run-a", CreatedAt: base, Mode: domain.RunModeRule},
	}
	for _, r := range runs {
		require.NoError(t, store.Insert(ctx, r))
	}

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first, then run_id ASC for equal timestamps.
	assert.Equal(t, "run-c", got[0].RunID)
	assert.Equal(t, "run-a", got[1].RunID)
	assert.Equal(t, "run-b", got[2].RunID)
}
