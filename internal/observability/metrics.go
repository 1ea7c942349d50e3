// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Generation metrics
	ProductsGenerated prometheus.Counter
	SalesGenerated    prometheus.Counter
	DetailsGenerated  prometheus.Counter
	GenerationErrors  *prometheus.CounterVec

	// Enrichment metrics
	RunsEnriched       prometheus.Counter
	RecordsTreated     prometheus.Counter
	EffectApplications *prometheus.CounterVec
	LastCohortSize     prometheus.Gauge

	// Run metrics
	RunsTotal          *prometheus.CounterVec
	PhaseDuration      *prometheus.HistogramVec
	ReportsGenerated   prometheus.Counter
	VerificationsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	HTTPRequestDuration *prometheus.HistogramVec
	WSStreamsActive     prometheus.Gauge

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	UptimeSeconds     prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "retail_sim"
	}

	return &Metrics{
		// Generation metrics
		ProductsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "products_generated_total",
			Help:      "Total number of catalog products generated",
		}),
		SalesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "sales_generated_total",
			Help:      "Total number of sale records generated",
		}),
		DetailsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "details_generated_total",
			Help:      "Total number of product detail entries generated",
		}),
		GenerationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "errors_total",
			Help:      "Total number of generation errors by phase",
		}, []string{"phase"}),

		// Enrichment metrics
		RunsEnriched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "runs_enriched_total",
			Help:      "Total number of runs enriched with a treatment effect",
		}),
		RecordsTreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "records_treated_total",
			Help:      "Total number of sale records in effect scope (cohort product, on or after the start date)",
		}),
		EffectApplications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "effect_applications_total",
			Help:      "Total number of effect applications by effect name",
		}, []string{"effect"}),
		LastCohortSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "last_cohort_size",
			Help:      "Treatment cohort size of the most recent enrichment",
		}),

		// Run metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of simulation runs by mode and status",
		}, []string{"mode", "status"}),
		PhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "phase_duration_seconds",
			Help:      "Run phase execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"phase"}),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "reports_generated_total",
			Help:      "Total number of run reports generated",
		}),
		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "verifications_total",
			Help:      "Total number of replay verifications by result",
		}, []string{"result"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// API metrics
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		WSStreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_streams_active",
			Help:      "Number of WebSocket sale streams currently open",
		}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful simulation run",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCatalogGenerated increments the products generated counter.
func RecordCatalogGenerated(products int) {
	DefaultMetrics.ProductsGenerated.Add(float64(products))
}

// RecordSalesGenerated increments the sales generated counter.
func RecordSalesGenerated(records int) {
	DefaultMetrics.SalesGenerated.Add(float64(records))
}

// RecordDetailsGenerated increments the details generated counter.
func RecordDetailsGenerated(entries int) {
	DefaultMetrics.DetailsGenerated.Add(float64(entries))
}

// RecordGenerationError records a generation error for a phase.
func RecordGenerationError(phase string) {
	DefaultMetrics.GenerationErrors.WithLabelValues(phase).Inc()
}

// RecordEnrichment records one enrichment application.
func RecordEnrichment(effect string, cohortSize, treated int) {
	DefaultMetrics.RunsEnriched.Inc()
	DefaultMetrics.RecordsTreated.Add(float64(treated))
	DefaultMetrics.EffectApplications.WithLabelValues(effect).Inc()
	DefaultMetrics.LastCohortSize.Set(float64(cohortSize))
}

// RecordRun records a completed simulation run. Successful runs update the
// last-successful-run timestamp.
func RecordRun(mode, status string, unixTime int64) {
	DefaultMetrics.RunsTotal.WithLabelValues(mode, status).Inc()
	if status == "success" {
		DefaultMetrics.LastSuccessfulRun.Set(float64(unixTime))
	}
}

// RecordPhase records a run phase duration.
func RecordPhase(phase string, seconds float64) {
	DefaultMetrics.PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordReportGenerated increments the reports generated counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordVerification records a replay verification outcome.
func RecordVerification(match bool) {
	result := "match"
	if !match {
		result = "divergent"
	}
	DefaultMetrics.VerificationsTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.
		WithLabelValues(method, route, strconv.Itoa(status)).
		Observe(seconds)
}

// WSStreamOpened increments the active WebSocket stream gauge.
func WSStreamOpened() {
	DefaultMetrics.WSStreamsActive.Inc()
}

// WSStreamClosed decrements the active WebSocket stream gauge.
func WSStreamClosed() {
	DefaultMetrics.WSStreamsActive.Dec()
}
