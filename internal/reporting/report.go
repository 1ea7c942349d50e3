package reporting

import (
	"time"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/metrics"
)

// Report is the rendered view of one stored simulation run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Run         domain.RunMetadata

	// Variant names the stream the summary tables describe: factual once
	// the run is enriched, baseline otherwise.
	Variant string

	// Dataset totals
	Summary metrics.RunSummary

	// Breakdowns (date ASC, category ASC)
	Daily      []metrics.DailySummary
	Categories []metrics.CategorySummary

	// Data Quality (catalog/stream integrity findings)
	DataQuality DataQualitySection

	// Enrichment Lift, present only when the run stores both the factual
	// and the counterfactual stream.
	Lift      *metrics.Lift
	DailyLift []metrics.DailyLift
}

// DataQualitySection contains integrity findings discovered while aggregating.
type DataQualitySection struct {
	OrphanProducts []string // sales referencing products absent from the run's catalog
	Clean          bool
}
