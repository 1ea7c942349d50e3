// Package export writes generated datasets to disk as JSON and CSV files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"retail-sim-lab/internal/config"
	"retail-sim-lab/internal/details"
	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/enrichment"
)

// WriteJSON writes v as indented JSON, creating parent directories as needed.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ProductsCSV renders a catalog as CSV string.
func ProductsCSV(products []domain.Product) string {
	var sb strings.Builder

	sb.WriteString("product_id,name,category,price\n")
	for _, p := range products {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s\n",
			p.ProductID, p.Name, p.Category, p.Price.StringFixed(2)))
	}

	return sb.String()
}

// SalesCSV renders a sales stream as CSV string.
func SalesCSV(sales []domain.SaleRecord) string {
	var sb strings.Builder

	sb.WriteString("transaction_id,product_id,product_name,category,quantity,unit_price,revenue,date\n")
	for _, rec := range sales {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%s,%s,%s\n",
			rec.TransactionID,
			rec.ProductID,
			rec.ProductName,
			rec.Category,
			rec.Quantity,
			rec.UnitPrice.StringFixed(2),
			rec.Revenue.StringFixed(2),
			rec.Date,
		))
	}

	return sb.String()
}

// Datasets collects the in-memory outputs of one run.
type Datasets struct {
	Products []domain.Product

	// DetailedProducts, when present, replaces Products as the catalog
	// file content.
	DetailedProducts []details.DetailedProduct

	// AssignedProducts is the catalog with treatment flags, present after
	// enrichment.
	AssignedProducts []enrichment.AssignedProduct

	Sales               []domain.SaleRecord // baseline stream
	SalesFactual        []domain.SaleRecord
	SalesCounterfactual []domain.SaleRecord

	Metadata *domain.RunMetadata
}

// RunFiles lists the dataset files one run produced. Fields for files that
// were not written stay empty.
type RunFiles struct {
	Products            string
	Sales               string
	ProductsEnriched    string
	SalesFactual        string
	SalesCounterfactual string
	Metadata            string
}

// Paths returns the non-empty file paths in write order.
func (f *RunFiles) Paths() []string {
	var out []string
	for _, p := range []string{f.Products, f.Sales, f.ProductsEnriched, f.SalesFactual, f.SalesCounterfactual, f.Metadata} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WriteRunFiles writes the run's datasets into dir using the configured file
// names. Enrichment files are written only when the datasets carry them.
func WriteRunFiles(dir string, cfg *config.Config, ds Datasets) (*RunFiles, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	files := &RunFiles{}

	files.Products = filepath.Join(dir, cfg.Baseline.ProductsFile)
	var catalog any = ds.Products
	if len(ds.DetailedProducts) > 0 {
		catalog = ds.DetailedProducts
	}
	if err := WriteJSON(files.Products, catalog); err != nil {
		return nil, err
	}

	files.Sales = filepath.Join(dir, cfg.Baseline.SalesFile)
	if err := WriteJSON(files.Sales, ds.Sales); err != nil {
		return nil, err
	}

	if len(ds.AssignedProducts) > 0 {
		files.ProductsEnriched = filepath.Join(dir, cfg.Enrichment.ProductsFile)
		if err := WriteJSON(files.ProductsEnriched, ds.AssignedProducts); err != nil {
			return nil, err
		}
	}
	if len(ds.SalesFactual) > 0 {
		files.SalesFactual = filepath.Join(dir, cfg.Enrichment.SalesFactualFile)
		if err := WriteJSON(files.SalesFactual, ds.SalesFactual); err != nil {
			return nil, err
		}
	}
	if len(ds.SalesCounterfactual) > 0 {
		files.SalesCounterfactual = filepath.Join(dir, cfg.Enrichment.SalesCounterfactualFile)
		if err := WriteJSON(files.SalesCounterfactual, ds.SalesCounterfactual); err != nil {
			return nil, err
		}
	}
	if ds.Metadata != nil {
		files.Metadata = filepath.Join(dir, "metadata.json")
		if err := WriteJSON(files.Metadata, ds.Metadata); err != nil {
			return nil, err
		}
	}

	return files, nil
}
