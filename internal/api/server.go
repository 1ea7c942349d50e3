// Package api exposes simulation runs over HTTP: run creation, dataset and
// aggregate queries, replay verification and live dataset streaming over
// WebSocket.
package api

import (
	"errors"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/effect"
	"retail-sim-lab/internal/metrics"
	"retail-sim-lab/internal/observability"
	"retail-sim-lab/internal/simulate"
	"retail-sim-lab/internal/storage"
	"retail-sim-lab/internal/verification"
)

// Server serves the run API over the stores it was built with.
type Server struct {
	runStore     storage.RunStore
	productStore storage.ProductStore
	saleStore    storage.SaleStore

	runner     *simulate.Runner
	verifier   verification.Verifier
	effects    *effect.Registry
	aggregator *metrics.Aggregator

	logger  *log.Logger
	started time.Time

	mu          sync.Mutex
	runsCreated int
}

// Options for creating a Server.
type Options struct {
	// Required stores
	RunStore     storage.RunStore
	ProductStore storage.ProductStore
	SaleStore    storage.SaleStore

	// Runner defaults to a rule-only runner over the same stores.
	Runner *simulate.Runner

	// Verifier defaults to a replay verifier over the same stores.
	Verifier verification.Verifier

	// Effects defaults to the built-in effect registry.
	Effects *effect.Registry

	Logger *log.Logger
}

// New creates a Server. Omitted components are built over the given stores.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[api] ", log.LstdFlags)
	}
	effects := opts.Effects
	if effects == nil {
		effects = effect.NewRegistry()
	}
	runner := opts.Runner
	if runner == nil {
		runner = simulate.New(simulate.Options{
			RunStore:     opts.RunStore,
			ProductStore: opts.ProductStore,
			SaleStore:    opts.SaleStore,
			Effects:      effects,
		})
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			RunStore:     opts.RunStore,
			ProductStore: opts.ProductStore,
			SaleStore:    opts.SaleStore,
			Registry:     effects,
		})
	}
	return &Server{
		runStore:     opts.RunStore,
		productStore: opts.ProductStore,
		saleStore:    opts.SaleStore,
		runner:       runner,
		verifier:     verifier,
		effects:      effects,
		aggregator:   metrics.NewAggregator(opts.ProductStore, opts.SaleStore),
		logger:       logger,
		started:      time.Now(),
	}
}

// Handler returns the route table wrapped with request instrumentation.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /effects", s.handleEffects)

	mux.HandleFunc("POST /runs", s.handleCreateRun)
	mux.HandleFunc("POST /enrich", s.handleEnrich)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/products", s.handleGetProducts)
	mux.HandleFunc("GET /runs/{id}/sales", s.handleGetSales)
	mux.HandleFunc("GET /runs/{id}/summary", s.handleGetSummary)
	mux.HandleFunc("GET /runs/{id}/lift", s.handleGetLift)
	mux.HandleFunc("POST /runs/{id}/verify", s.handleVerifyRun)

	mux.HandleFunc("GET /ws/preview", s.handlePreview)

	return s.instrument(mux)
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records method, matched route pattern, status and duration for
// every request. WebSocket upgrades bypass the recorder because the upgrade
// hijacks the underlying connection.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		observability.ObserveHTTPRequest(r.Method, route, rec.status, time.Since(start).Seconds())
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, verification.ErrRunNotFound),
		errors.Is(err, metrics.ErrNoSales):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrUnknownEffect),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, simulate.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, verification.ErrNoConfigSnapshot):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
