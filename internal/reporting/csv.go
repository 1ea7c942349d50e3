package reporting

import (
	"fmt"
	"strings"

	"retail-sim-lab/internal/metrics"
)

// RenderSummaryCSV renders per-day sales totals as a CSV string.
func RenderSummaryCSV(days []metrics.DailySummary) string {
	var sb strings.Builder

	// Header
	sb.WriteString("sale_date,transactions,units,revenue\n")

	// Rows
	for _, d := range days {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%s\n",
			d.Date,
			d.Transactions,
			d.Units,
			d.Revenue.StringFixed(2),
		))
	}

	return sb.String()
}

// RenderCategoryCSV renders per-category sales totals as a CSV string.
func RenderCategoryCSV(categories []metrics.CategorySummary) string {
	var sb strings.Builder

	sb.WriteString("category,transactions,units,revenue\n")

	for _, c := range categories {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%s\n",
			c.Category,
			c.Transactions,
			c.Units,
			c.Revenue.StringFixed(2),
		))
	}

	return sb.String()
}

// RenderLiftCSV renders the day-by-day factual-vs-counterfactual comparison
// as a CSV string.
func RenderLiftCSV(days []metrics.DailyLift) string {
	var sb strings.Builder

	sb.WriteString("sale_date,factual_revenue,counterfactual_revenue,revenue_lift\n")

	for _, d := range days {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s\n",
			d.Date,
			d.FactualRevenue.StringFixed(2),
			d.CounterfactualRevenue.StringFixed(2),
			d.RevenueLift.StringFixed(2),
		))
	}

	return sb.String()
}
