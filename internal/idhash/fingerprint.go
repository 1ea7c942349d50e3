// Package idhash derives deterministic identifiers and dataset fingerprints.
package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"retail-sim-lab/internal/domain"
)

// ProductsFingerprint computes a deterministic catalog fingerprint using SHA256.
// Formula: SHA256 over "product_id|name|category|price" lines in slice order.
// Returns base58-encoded hash.
func ProductsFingerprint(products []domain.Product) string {
	h := sha256.New()
	for _, p := range products {
		fmt.Fprintf(h, "%s|%s|%s|%s\n", p.ProductID, p.Name, p.Category, p.Price.StringFixed(2))
	}
	return base58.Encode(h.Sum(nil))
}

// SalesFingerprint computes a deterministic sales stream fingerprint using SHA256.
// Formula: SHA256 over
// "transaction_id|product_id|product_name|category|quantity|unit_price|revenue|date"
// lines in slice order.
// Returns base58-encoded hash.
func SalesFingerprint(sales []domain.SaleRecord) string {
	h := sha256.New()
	for _, rec := range sales {
		fmt.Fprintf(h, "%s|%s|%s|%s|%d|%s|%s|%s\n",
			rec.TransactionID,
			rec.ProductID,
			rec.ProductName,
			rec.Category,
			rec.Quantity,
			rec.UnitPrice.StringFixed(2),
			rec.Revenue.StringFixed(2),
			rec.Date,
		)
	}
	return base58.Encode(h.Sum(nil))
}
