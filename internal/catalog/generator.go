// Package catalog generates deterministic synthetic product catalogs.
package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/rng"
)

// streamTag names the catalog draw stream within a run's seed space.
const streamTag = "catalog"

// Generate produces count products for the given seed. Per product it draws
// a category, a name from the category pool, and a unit price uniform over
// the category's range in whole cents. All draws come from one sequential
// stream, so a catalog is prefix-stable: growing count appends products
// without changing earlier ones.
func Generate(count int, seed int64) ([]domain.Product, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: product count must be positive, got %d", domain.ErrInvalidParameter, count)
	}

	r := rng.New(seed).Stream(streamTag)
	products := make([]domain.Product, 0, count)
	for i := 0; i < count; i++ {
		category := domain.Categories[r.IntN(len(domain.Categories))]
		names := domain.ProductNames[category]
		bounds := domain.PriceRanges[category]
		cents := bounds.Min*100 + r.Int64N((bounds.Max-bounds.Min)*100+1)

		products = append(products, domain.Product{
			ProductID: fmt.Sprintf(domain.ProductIDFormat, i+1),
			Name:      names[r.IntN(len(names))],
			Category:  category,
			Price:     decimal.New(cents, -2),
		})
	}
	return products, nil
}
