// Package config provides unified configuration loading for simulation runs.
// It supports YAML and JSON files plus environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/enrichment"
)

// Config contains all settings for one simulation run.
type Config struct {
	// Seed drives every random draw of the run. Equal seeds reproduce
	// datasets bit for bit.
	Seed int64 `yaml:"seed" json:"seed"`

	// Mode selects the generation backend: "rule" or "synthesizer".
	Mode string `yaml:"mode" json:"mode"`

	// Output is the directory dataset files are written to.
	Output string `yaml:"output" json:"output"`

	// Baseline configures catalog and sales generation.
	Baseline BaselineConfig `yaml:"baseline" json:"baseline"`

	// Enrichment configures the treatment phase. Providing start_date
	// turns it on.
	Enrichment EnrichmentConfig `yaml:"enrichment" json:"enrichment"`

	// ProductDetails configures the optional catalog details phase.
	ProductDetails ProductDetailsConfig `yaml:"product_details" json:"product_details"`

	// Storage configures run persistence.
	Storage StorageConfig `yaml:"storage" json:"storage"`
}

// BaselineConfig configures catalog and sales generation.
type BaselineConfig struct {
	NumProducts int `yaml:"num_products" json:"num_products"`

	// DateStart and DateEnd bound the generation range, both inclusive,
	// formatted YYYY-MM-DD. Both are required.
	DateStart string `yaml:"date_start" json:"date_start"`
	DateEnd   string `yaml:"date_end" json:"date_end"`

	// SaleProbability is the chance of a sale per product-day cell.
	SaleProbability float64 `yaml:"sale_probability" json:"sale_probability"`

	ProductsFile string `yaml:"products_file" json:"products_file"`
	SalesFile    string `yaml:"sales_file" json:"sales_file"`
}

// DateRange returns the parsed inclusive generation range.
func (b BaselineConfig) DateRange() (start, end domain.Date, err error) {
	start, err = domain.ParseDate(b.DateStart)
	if err != nil {
		return domain.Date{}, domain.Date{}, fmt.Errorf("baseline.date_start: %w", err)
	}
	end, err = domain.ParseDate(b.DateEnd)
	if err != nil {
		return domain.Date{}, domain.Date{}, fmt.Errorf("baseline.date_end: %w", err)
	}
	return start, end, nil
}

// EnrichmentConfig configures the treatment phase.
type EnrichmentConfig struct {
	// StartDate is the first treated day, formatted YYYY-MM-DD. Empty
	// disables enrichment.
	StartDate string `yaml:"start_date" json:"start_date"`

	// Fraction of the catalog assigned to the treatment cohort.
	Fraction float64 `yaml:"fraction" json:"fraction"`

	// Effect selects the treatment effect, in either notation.
	Effect EffectConfig `yaml:"effect" json:"effect"`

	ProductsFile            string `yaml:"products_file" json:"products_file"`
	SalesFactualFile        string `yaml:"sales_factual_file" json:"sales_factual_file"`
	SalesCounterfactualFile string `yaml:"sales_counterfactual_file" json:"sales_counterfactual_file"`
}

// Enabled reports whether the enrichment phase runs.
func (e EnrichmentConfig) Enabled() bool {
	return e.StartDate != ""
}

// Start returns the parsed first treated day.
func (e EnrichmentConfig) Start() (domain.Date, error) {
	start, err := domain.ParseDate(e.StartDate)
	if err != nil {
		return domain.Date{}, fmt.Errorf("enrichment.start_date: %w", err)
	}
	return start, nil
}

// EffectConfig accepts both effect notations: the shorthand string
// "name:size" and the structured {function, params} block.
type EffectConfig struct {
	Shorthand string
	Function  string
	Params    map[string]any
}

// UnmarshalYAML decodes either a scalar shorthand or a structured block.
func (e *EffectConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&e.Shorthand)
	}
	var structured struct {
		Function string         `yaml:"function"`
		Params   map[string]any `yaml:"params"`
	}
	if err := value.Decode(&structured); err != nil {
		return err
	}
	e.Shorthand = ""
	e.Function = structured.Function
	e.Params = structured.Params
	return nil
}

// MarshalYAML re-encodes the effect in the notation it was configured with.
func (e EffectConfig) MarshalYAML() (any, error) {
	if e.Shorthand != "" {
		return e.Shorthand, nil
	}
	return struct {
		Function string         `yaml:"function"`
		Params   map[string]any `yaml:"params,omitempty"`
	}{Function: e.Function, Params: e.Params}, nil
}

// Spec resolves the configured effect into its canonical form.
func (e EffectConfig) Spec() (domain.EffectSpec, error) {
	if e.Shorthand != "" {
		return enrichment.ParseSpec(e.Shorthand)
	}
	if e.Function == "" {
		return domain.EffectSpec{}, fmt.Errorf("%w: enrichment.effect requires a function name", domain.ErrInvalidParameter)
	}
	return domain.EffectSpec{Function: e.Function, Params: e.Params}, nil
}

// ProductDetailsConfig configures the optional catalog details phase.
type ProductDetailsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Function names the details backend. Only "mock" is bundled; the
	// ollama backend lives outside this module.
	Function string `yaml:"function" json:"function"`
}

// StorageConfig configures run persistence.
type StorageConfig struct {
	// Driver selects the run store backend: "memory" or "postgres".
	Driver      string `yaml:"driver" json:"driver"`
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`

	// ClickhouseDSN, when set, mirrors sale streams into ClickHouse for
	// analytical queries.
	ClickhouseDSN string `yaml:"clickhouse_dsn" json:"clickhouse_dsn"`
}

// Storage driver names.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Default returns a Config with the stock defaults. Date ranges have no
// default and must come from the user.
func Default() *Config {
	return &Config{
		Seed:   42,
		Mode:   domain.RunModeRule,
		Output: "output",
		Baseline: BaselineConfig{
			NumProducts:     100,
			SaleProbability: 0.7,
			ProductsFile:    "products.json",
			SalesFile:       "sales.json",
		},
		Enrichment: EnrichmentConfig{
			Fraction:                0.5,
			Effect:                  EffectConfig{Shorthand: "quantity_boost:0.5"},
			ProductsFile:            "products_enriched.json",
			SalesFactualFile:        "sales_factual.json",
			SalesCounterfactualFile: "sales_counterfactual.json",
		},
		ProductDetails: ProductDetailsConfig{
			Enabled:  false,
			Function: "mock",
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
		},
	}
}

// Load reads a YAML or JSON config file over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and in range.
func (c *Config) Validate() error {
	if c.Mode != domain.RunModeRule && c.Mode != domain.RunModeSynthesizer {
		return fmt.Errorf("%w: mode %q (valid: rule, synthesizer)", domain.ErrInvalidParameter, c.Mode)
	}

	if c.Baseline.NumProducts <= 0 {
		return fmt.Errorf("%w: baseline.num_products %d must be positive", domain.ErrInvalidParameter, c.Baseline.NumProducts)
	}
	if c.Baseline.DateStart == "" {
		return fmt.Errorf("%w: baseline.date_start is required", domain.ErrInvalidParameter)
	}
	if c.Baseline.DateEnd == "" {
		return fmt.Errorf("%w: baseline.date_end is required", domain.ErrInvalidParameter)
	}
	start, end, err := c.Baseline.DateRange()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: baseline.date_end %s is before baseline.date_start %s", domain.ErrInvalidParameter, end, start)
	}
	if c.Baseline.SaleProbability < 0 || c.Baseline.SaleProbability > 1 {
		return fmt.Errorf("%w: baseline.sale_probability %v must be within [0, 1]", domain.ErrInvalidParameter, c.Baseline.SaleProbability)
	}

	if c.Enrichment.Enabled() {
		enrichStart, err := c.Enrichment.Start()
		if err != nil {
			return err
		}
		if enrichStart.Before(start) {
			return fmt.Errorf("%w: enrichment.start_date %s is before baseline.date_start %s", domain.ErrInvalidParameter, enrichStart, start)
		}
		if enrichStart.After(end) {
			return fmt.Errorf("%w: enrichment.start_date %s is after baseline.date_end %s", domain.ErrInvalidParameter, enrichStart, end)
		}
		if c.Enrichment.Fraction < 0 || c.Enrichment.Fraction > 1 {
			return fmt.Errorf("%w: enrichment.fraction %v must be within [0, 1]", domain.ErrInvalidParameter, c.Enrichment.Fraction)
		}
		if _, err := c.Enrichment.Effect.Spec(); err != nil {
			return err
		}
	}

	if c.ProductDetails.Enabled && c.ProductDetails.Function != "mock" {
		return fmt.Errorf("%w: product_details.function %q (only mock is bundled)", domain.ErrInvalidParameter, c.ProductDetails.Function)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.postgres_dsn is required for the postgres driver", domain.ErrInvalidParameter)
		}
	default:
		return fmt.Errorf("%w: storage.driver %q (valid: memory, postgres)", domain.ErrInvalidParameter, c.Storage.Driver)
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Load calls it after the file merge; callers that assemble a Config without
// a file apply it themselves before validating.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RETAIL_SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if v := os.Getenv("RETAIL_SIM_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("RETAIL_SIM_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("RETAIL_SIM_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("RETAIL_SIM_CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
}
