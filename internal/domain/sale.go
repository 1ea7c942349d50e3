package domain

import "github.com/shopspring/decimal"

// SaleRecord is one captured transaction: a product sold on a calendar day.
//
// Revenue always equals UnitPrice multiplied by Quantity. Change quantity or
// price only through WithQuantity / WithUnitPrice, which recompute Revenue,
// so the three fields are never observable out of sync.
type SaleRecord struct {
	TransactionID string          `json:"transaction_id"` // "TXN%06d", emission order
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"` // denormalized from the catalog
	Category      string          `json:"category"`     // denormalized from the catalog
	Quantity      int64           `json:"quantity"`     // >= 1
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Revenue       decimal.Decimal `json:"revenue"`
	Date          Date            `json:"date"`
}

// SaleKey identifies the (product, day) cell a record belongs to. Enrichment
// effects may change quantities and prices but never keys.
type SaleKey struct {
	ProductID string
	Date      Date
}

// Key returns the record's (product, day) cell key.
func (s SaleRecord) Key() SaleKey {
	return SaleKey{ProductID: s.ProductID, Date: s.Date}
}

// WithQuantity returns a copy with Quantity set and Revenue recomputed.
func (s SaleRecord) WithQuantity(quantity int64) SaleRecord {
	s.Quantity = quantity
	s.Revenue = s.UnitPrice.Mul(decimal.NewFromInt(quantity))
	return s
}

// WithUnitPrice returns a copy with UnitPrice set and Revenue recomputed.
func (s SaleRecord) WithUnitPrice(price decimal.Decimal) SaleRecord {
	s.UnitPrice = price
	s.Revenue = price.Mul(decimal.NewFromInt(s.Quantity))
	return s
}

// ConsistentRevenue reports whether Revenue equals UnitPrice x Quantity.
func (s SaleRecord) ConsistentRevenue() bool {
	return s.Revenue.Equal(s.UnitPrice.Mul(decimal.NewFromInt(s.Quantity)))
}
