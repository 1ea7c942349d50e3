// Package simulate coordinates full simulation runs: backend-driven
// generation, optional details and enrichment phases, integrity checks and
// persistence.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"retail-sim-lab/internal/catalog"
	"retail-sim-lab/internal/config"
	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/sales"
)

// ErrUnknownMode is returned when no backend is registered for a run mode.
var ErrUnknownMode = errors.New("unknown run mode")

// Backend produces the catalog and baseline sales of a run. The bundled
// rule backend is pure and deterministic; external backends (the ML
// synthesizer) may reach out over the network, hence the contexts.
type Backend interface {
	// GenerateCatalog produces the product catalog for a run.
	GenerateCatalog(ctx context.Context, cfg *config.Config, seed int64) ([]domain.Product, error)

	// GenerateSales produces the baseline sales stream over the catalog.
	GenerateSales(ctx context.Context, cfg *config.Config, products []domain.Product, seed int64) ([]domain.SaleRecord, error)
}

// RuleBackend is the bundled deterministic backend.
type RuleBackend struct{}

// GenerateCatalog implements Backend.
func (RuleBackend) GenerateCatalog(_ context.Context, cfg *config.Config, seed int64) ([]domain.Product, error) {
	return catalog.Generate(cfg.Baseline.NumProducts, seed)
}

// GenerateSales implements Backend.
func (RuleBackend) GenerateSales(_ context.Context, cfg *config.Config, products []domain.Product, seed int64) ([]domain.SaleRecord, error) {
	start, end, err := cfg.Baseline.DateRange()
	if err != nil {
		return nil, err
	}
	return sales.Generate(products, start, end, cfg.Baseline.SaleProbability, seed)
}

// BackendRegistry maps run modes to backends. The rule backend is always
// registered; the synthesizer mode is dispatched through here but its
// backend ships separately and must be registered by the caller.
type BackendRegistry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewBackendRegistry returns a registry pre-populated with the rule backend.
func NewBackendRegistry() *BackendRegistry {
	return &BackendRegistry{
		backends: map[string]Backend{domain.RunModeRule: RuleBackend{}},
	}
}

// Register binds mode to b, replacing any existing binding.
func (r *BackendRegistry) Register(mode string, b Backend) error {
	if strings.TrimSpace(mode) == "" {
		return fmt.Errorf("%w: backend mode must not be empty", domain.ErrInvalidParameter)
	}
	if b == nil {
		return fmt.Errorf("%w: backend for mode %q must not be nil", domain.ErrInvalidParameter, mode)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[mode] = b
	return nil
}

// Lookup resolves the backend for a mode.
func (r *BackendRegistry) Lookup(mode string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[mode]
	if !ok {
		if mode == domain.RunModeSynthesizer {
			return nil, fmt.Errorf("%w: %q ships separately and must be registered first", ErrUnknownMode, mode)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return b, nil
}

// Modes lists the registered run modes sorted.
func (r *BackendRegistry) Modes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modes := make([]string, 0, len(r.backends))
	for mode := range r.backends {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}
