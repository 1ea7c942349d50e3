// Package effect holds the registry of treatment effect functions applied
// to sales data during enrichment.
package effect

import (
	"retail-sim-lab/internal/domain"
)

// Args is the invocation context handed to every effect function.
type Args struct {
	// Start is the enrichment start date. In-scope records are never dated
	// before it, so effects can derive days-since-start timing from it.
	Start domain.Date

	// Params are the named parameters from the resolved effect spec.
	Params Params
}

// Func transforms a batch of in-scope sale records and returns the treated
// batch. Implementations must preserve cardinality and (product, date)
// keys, may reorder records, and may only change Quantity, UnitPrice and
// Revenue (kept consistent, e.g. via SaleRecord.WithQuantity). The
// applicator verifies the contract and rejects violations.
type Func func(records []domain.SaleRecord, args Args) ([]domain.SaleRecord, error)
