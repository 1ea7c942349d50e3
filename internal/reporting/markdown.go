package reporting

import (
	"fmt"
	"strings"
	"time"

	"retail-sim-lab/internal/metrics"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Run Report: %s\n\n", r.Run.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Mode: %s | Seed: %d | Enriched: %t\n\n", r.Run.Mode, r.Run.Seed, r.Run.Enriched))

	// Run Metadata
	sb.WriteString("## Run Metadata\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Created At | %s |\n", r.Run.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Products | %d |\n", r.Run.NumProducts))
	sb.WriteString(fmt.Sprintf("| Sales | %d |\n", r.Run.NumSales))
	if r.Run.ProductsHash != "" {
		sb.WriteString(fmt.Sprintf("| Products Fingerprint | %s |\n", r.Run.ProductsHash))
	}
	if r.Run.SalesHash != "" {
		sb.WriteString(fmt.Sprintf("| Sales Fingerprint | %s |\n", r.Run.SalesHash))
	}
	sb.WriteString("\n")

	// Summary
	sb.WriteString(fmt.Sprintf("## Summary (%s stream)\n\n", r.Variant))
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Products | %d |\n", r.Summary.TotalProducts))
	sb.WriteString(fmt.Sprintf("| Product Categories | %d |\n", r.Summary.ProductCategories))
	sb.WriteString(fmt.Sprintf("| Total Transactions | %d |\n", r.Summary.TotalTransactions))
	sb.WriteString(fmt.Sprintf("| Days With Sales | %d |\n", r.Summary.DaysWithSales))
	sb.WriteString(fmt.Sprintf("| Total Units | %d |\n", r.Summary.TotalUnits))
	sb.WriteString(fmt.Sprintf("| Total Revenue | %s |\n", r.Summary.TotalRevenue.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Average Order Value | %s |\n", r.Summary.AverageOrderValue.StringFixed(2)))
	sb.WriteString("\n")

	// Daily Breakdown
	sb.WriteString("## Daily Breakdown\n\n")
	if len(r.Daily) > 0 {
		sb.WriteString("| Date | Transactions | Units | Revenue |\n")
		sb.WriteString("|------|--------------|-------|--------|\n")
		for _, d := range r.Daily {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s |\n",
				d.Date, d.Transactions, d.Units, d.Revenue.StringFixed(2)))
		}
	} else {
		sb.WriteString("No sales recorded.\n")
	}
	sb.WriteString("\n")

	// Category Breakdown
	sb.WriteString("## Category Breakdown\n\n")
	if len(r.Categories) > 0 {
		sb.WriteString("| Category | Transactions | Units | Revenue |\n")
		sb.WriteString("|----------|--------------|-------|--------|\n")
		for _, c := range r.Categories {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s |\n",
				c.Category, c.Transactions, c.Units, c.Revenue.StringFixed(2)))
		}
	} else {
		sb.WriteString("No sales recorded.\n")
	}
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if r.DataQuality.Clean {
		sb.WriteString("**All integrity checks passed.**\n\n")
	} else {
		sb.WriteString("### Integrity Errors\n\n")
		for _, err := range r.DataQuality.OrphanProducts {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}

	// Enrichment Lift
	sb.WriteString("## Enrichment Lift\n\n")
	if r.Lift != nil {
		sb.WriteString(RenderLiftMarkdown(r.Lift, r.DailyLift))
	} else {
		sb.WriteString("Run has not been enriched. No lift to report.\n\n")
	}

	return sb.String()
}

// RenderLiftMarkdown renders the factual-vs-counterfactual comparison as
// Markdown tables. It is the lift section of the full report and is also
// rendered standalone after an enrichment pass.
func RenderLiftMarkdown(l *metrics.Lift, daily []metrics.DailyLift) string {
	var sb strings.Builder

	sb.WriteString("| Metric | Factual | Counterfactual | Lift |\n")
	sb.WriteString("|--------|---------|----------------|------|\n")
	sb.WriteString(fmt.Sprintf("| Revenue | %s | %s | %s |\n",
		l.FactualRevenue.StringFixed(2),
		l.CounterfactualRevenue.StringFixed(2),
		l.RevenueLift.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Units | %d | %d | %d |\n",
		l.FactualUnits, l.CounterfactualUnits, l.UnitsLift))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Revenue lift: %s (%s%%)\n\n",
		l.RevenueLift.StringFixed(2), l.RevenueLiftPercent.StringFixed(2)))

	if len(daily) > 0 {
		sb.WriteString("### Daily Lift\n\n")
		sb.WriteString("| Date | Factual Revenue | Counterfactual Revenue | Lift |\n")
		sb.WriteString("|------|-----------------|------------------------|------|\n")
		for _, d := range daily {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				d.Date,
				d.FactualRevenue.StringFixed(2),
				d.CounterfactualRevenue.StringFixed(2),
				d.RevenueLift.StringFixed(2)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
