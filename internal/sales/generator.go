// Package sales generates deterministic daily sales transactions from a
// product catalog.
package sales

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/rng"
)

// streamTag prefixes every (product, day) cell stream.
const streamTag = "sales"

// Quantity distribution for a successful sale, cumulative percent:
// P(1)=50, P(2)=25, P(3)=15, P(4)=7, P(5)=3.
var quantityCumWeights = [5]int{50, 75, 90, 97, 100}

// Generate runs one Bernoulli sale trial per product per day over the
// inclusive date range and returns the successful transactions in emission
// order (day ascending, then product ID).
//
// Every (product, day) cell draws from its own seed-derived stream, so
// adding products or extending the range never changes the outcome of
// other cells. Probability 1 yields a record for every cell, probability 0
// yields none.
func Generate(products []domain.Product, start, end domain.Date, saleProbability float64, seed int64) ([]domain.SaleRecord, error) {
	var out []domain.SaleRecord
	err := ForEachDay(products, start, end, saleProbability, seed, func(_ domain.Date, day []domain.SaleRecord) error {
		out = append(out, day...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ForEachDay is the streaming form of Generate: fn receives each simulated
// day's records as soon as the day is complete. Returning an error from fn
// stops the run and propagates the error.
func ForEachDay(products []domain.Product, start, end domain.Date, saleProbability float64, seed int64, fn func(day domain.Date, records []domain.SaleRecord) error) error {
	if err := validate(products, start, end, saleProbability); err != nil {
		return err
	}

	// Trial order is fixed: day ascending, then product ID ascending.
	ordered := slices.Clone(products)
	slices.SortFunc(ordered, func(a, b domain.Product) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	ctx := rng.New(seed)
	counter := 0
	for day := start; !day.After(end); day = day.AddDays(1) {
		dayTag := day.String()
		var records []domain.SaleRecord
		for _, p := range ordered {
			r := ctx.Stream(streamTag, dayTag, p.ProductID)
			if r.Float64() >= saleProbability {
				continue
			}
			quantity := drawQuantity(r)
			counter++
			records = append(records, domain.SaleRecord{
				TransactionID: fmt.Sprintf(domain.TransactionIDFormat, counter),
				ProductID:     p.ProductID,
				ProductName:   p.Name,
				Category:      p.Category,
				Quantity:      quantity,
				UnitPrice:     p.Price,
				Revenue:       p.Price.Mul(decimal.NewFromInt(quantity)),
				Date:          day,
			})
		}
		if err := fn(day, records); err != nil {
			return err
		}
	}
	return nil
}

func drawQuantity(r *rand.Rand) int64 {
	draw := r.IntN(100)
	for i, cum := range quantityCumWeights {
		if draw < cum {
			return int64(i + 1)
		}
	}
	return int64(len(quantityCumWeights))
}

func validate(products []domain.Product, start, end domain.Date, saleProbability float64) error {
	if len(products) == 0 {
		return fmt.Errorf("%w: product catalog must not be empty", domain.ErrInvalidParameter)
	}
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if p.ProductID == "" {
			return fmt.Errorf("%w: product with empty id", domain.ErrInvalidParameter)
		}
		if _, dup := seen[p.ProductID]; dup {
			return fmt.Errorf("%w: duplicate product id %q", domain.ErrInvalidParameter, p.ProductID)
		}
		seen[p.ProductID] = struct{}{}
	}
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", domain.ErrInvalidParameter)
	}
	if start.After(end) {
		return fmt.Errorf("%w: date range %s to %s is inverted", domain.ErrInvalidParameter, start, end)
	}
	if math.IsNaN(saleProbability) || saleProbability < 0 || saleProbability > 1 {
		return fmt.Errorf("%w: sale probability %v outside [0, 1]", domain.ErrInvalidParameter, saleProbability)
	}
	return nil
}
