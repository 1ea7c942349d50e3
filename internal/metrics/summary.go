// Package metrics computes summary aggregates over generated datasets.
package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"retail-sim-lab/internal/domain"
)

// RunSummary captures dataset-level totals for one sales stream.
type RunSummary struct {
	TotalProducts     int             `json:"total_products"`
	ProductCategories int             `json:"product_categories"`
	TotalTransactions int             `json:"total_transactions"`
	DaysWithSales     int             `json:"days_with_sales"`
	TotalUnits        int64           `json:"total_units"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"` // zero when there are no transactions
}

// Summarize computes dataset totals over a catalog and its sales stream.
func Summarize(products []domain.Product, sales []domain.SaleRecord) RunSummary {
	categories := make(map[string]struct{}, len(products))
	for _, p := range products {
		categories[p.Category] = struct{}{}
	}
	days := make(map[domain.Date]struct{})
	var units int64
	revenue := decimal.Zero
	for _, rec := range sales {
		days[rec.Date] = struct{}{}
		units += rec.Quantity
		revenue = revenue.Add(rec.Revenue)
	}

	summary := RunSummary{
		TotalProducts:     len(products),
		ProductCategories: len(categories),
		TotalTransactions: len(sales),
		DaysWithSales:     len(days),
		TotalUnits:        units,
		TotalRevenue:      revenue,
		AverageOrderValue: decimal.Zero,
	}
	if len(sales) > 0 {
		summary.AverageOrderValue = revenue.Div(decimal.NewFromInt(int64(len(sales)))).Round(2)
	}
	return summary
}

// DailySummary aggregates one calendar day of a sales stream.
type DailySummary struct {
	Date         domain.Date     `json:"date"`
	Transactions int             `json:"transactions"`
	Units        int64           `json:"units"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// SummarizeDaily groups sales by day, date ascending. Days without sales do
// not appear.
func SummarizeDaily(sales []domain.SaleRecord) []DailySummary {
	byDay := make(map[domain.Date]*DailySummary)
	for _, rec := range sales {
		day, ok := byDay[rec.Date]
		if !ok {
			day = &DailySummary{Date: rec.Date, Revenue: decimal.Zero}
			byDay[rec.Date] = day
		}
		day.Transactions++
		day.Units += rec.Quantity
		day.Revenue = day.Revenue.Add(rec.Revenue)
	}

	out := make([]DailySummary, 0, len(byDay))
	for _, day := range byDay {
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// CategorySummary aggregates one product category of a sales stream.
type CategorySummary struct {
	Category     string          `json:"category"`
	Transactions int             `json:"transactions"`
	Units        int64           `json:"units"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// SummarizeCategories groups sales by category, name ascending.
func SummarizeCategories(sales []domain.SaleRecord) []CategorySummary {
	byCategory := make(map[string]*CategorySummary)
	for _, rec := range sales {
		cat, ok := byCategory[rec.Category]
		if !ok {
			cat = &CategorySummary{Category: rec.Category, Revenue: decimal.Zero}
			byCategory[rec.Category] = cat
		}
		cat.Transactions++
		cat.Units += rec.Quantity
		cat.Revenue = cat.Revenue.Add(rec.Revenue)
	}

	out := make([]CategorySummary, 0, len(byCategory))
	for _, cat := range byCategory {
		out = append(out, *cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
