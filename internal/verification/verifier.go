// Package verification implements run replay verification. It re-generates
// a run's datasets from the stored seed and config snapshot and checks that
// the stored records match the replay exactly.
package verification

import (
	"context"

	"retail-sim-lab/internal/domain"
)

// Dataset labels used in results next to the sales variant names.
const (
	DatasetProducts = "products"
	DatasetCohort   = "cohort"
)

// FieldDivergence represents a mismatch between stored and replayed values.
// Record names the owning record; it is empty for dataset-level findings
// such as fingerprint mismatches.
type FieldDivergence struct {
	Record   string      `json:"record,omitempty"`
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"` // stored value
	Actual   interface{} `json:"actual"`   // replayed value
}

// DatasetResult contains the result of verifying one dataset of a run:
// the catalog, the treatment cohort, or one sales stream.
type DatasetResult struct {
	Dataset             string            `json:"dataset"`
	Records             int               `json:"records"` // stored record count
	Match               bool              `json:"match"`
	Divergences         []FieldDivergence `json:"divergences,omitempty"`
	StoredFingerprint   string            `json:"stored_fingerprint,omitempty"`
	ReplayedFingerprint string            `json:"replayed_fingerprint,omitempty"`
}

// RunResult contains the result of verifying a single run.
type RunResult struct {
	RunID    string          `json:"run_id"`
	Match    bool            `json:"match"` // true if every dataset matches
	Datasets []DatasetResult `json:"datasets"`
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int         `json:"total_runs"`
	MatchedRuns   int         `json:"matched_runs"`
	DivergentRuns int         `json:"divergent_runs"`
	Results       []RunResult `json:"results"`
}

// Verifier interface for run replay verification.
type Verifier interface {
	// VerifyRun verifies a single run by ID. It loads the stored datasets,
	// re-generates them from the run's seed and config snapshot, and
	// compares record by record and by fingerprint.
	VerifyRun(ctx context.Context, runID string) (*RunResult, error)

	// VerifyAll verifies all stored runs.
	// Returns a report with individual results.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareProducts compares a stored catalog entry against its replayed
// counterpart and returns divergences. Prices compare by decimal equality,
// everything else exactly.
func CompareProducts(stored, replayed domain.Product) []FieldDivergence {
	var divergences []FieldDivergence
	record := stored.ProductID

	if stored.ProductID != replayed.ProductID {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "ProductID",
			Expected: stored.ProductID,
			Actual:   replayed.ProductID,
		})
	}

	if stored.Name != replayed.Name {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "Name",
			Expected: stored.Name,
			Actual:   replayed.Name,
		})
	}

	if stored.Category != replayed.Category {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "Category",
			Expected: stored.Category,
			Actual:   replayed.Category,
		})
	}

	if !stored.Price.Equal(replayed.Price) {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "Price",
			Expected: stored.Price,
			Actual:   replayed.Price,
		})
	}

	return divergences
}

// CompareSaleRecords compares a stored sale against its replayed
// counterpart and returns divergences. Money fields compare by decimal
// equality, everything else exactly. There is no float tolerance: quantity
// draws are integers and revenue is quantity times a decimal price.
func CompareSaleRecords(stored, replayed domain.SaleRecord) []FieldDivergence {
	var divergences []FieldDivergence
	record := stored.TransactionID

	if stored.TransactionID != replayed.TransactionID {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "TransactionID",
			Expected: stored.TransactionID,
			Actual:   replayed.TransactionID,
		})
	}

	if stored.ProductID != replayed.ProductID {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "ProductID",
			Expected: stored.ProductID,
			Actual:   replayed.ProductID,
		})
	}

	if stored.ProductName != replayed.ProductName {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "ProductName",
			Expected: stored.ProductName,
			Actual:   replayed.ProductName,
		})
	}

	if stored.Category != replayed.Category {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "Category",
			Expected: stored.Category,
			Actual:   replayed.Category,
		})
	}

	if stored.Quantity != replayed.Quantity {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "Quantity",
			Expected: stored.Quantity,
			Actual:   replayed.Quantity,
		})
	}

	if !stored.UnitPrice.Equal(replayed.UnitPrice) {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "UnitPrice",
			Expected: stored.UnitPrice,
			Actual:   replayed.UnitPrice,
		})
	}

	if !stored.Revenue.Equal(replayed.Revenue) {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "Revenue",
			Expected: stored.Revenue,
			Actual:   replayed.Revenue,
		})
	}

	if stored.Date != replayed.Date {
		divergences = append(divergences, FieldDivergence{
			Record:   record,
			Field:    "Date",
			Expected: stored.Date,
			Actual:   replayed.Date,
		})
	}

	return divergences
}
