package domain

import "time"

// Generation backend modes.
const (
	RunModeRule        = "rule"
	RunModeSynthesizer = "synthesizer" // external ML backend, dispatched but not bundled
)

// Dataset variants stored per run. Counterfactual sales are the baseline
// stream kept unmodified next to the factual (treated) stream.
const (
	VariantBaseline       = "baseline"
	VariantFactual        = "factual"
	VariantCounterfactual = "counterfactual"
)

// RunMetadata describes one completed simulation run.
type RunMetadata struct {
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	Mode         string    `json:"mode"`
	Seed         int64     `json:"seed"`
	NumProducts  int       `json:"num_products"`
	NumSales     int       `json:"num_sales"`
	Enriched     bool      `json:"enriched"`
	ProductsHash string    `json:"products_hash"` // base58 dataset fingerprint
	SalesHash    string    `json:"sales_hash"`
	Config       string    `json:"config,omitempty"` // YAML snapshot of the run config
}
