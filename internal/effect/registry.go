package effect

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"retail-sim-lab/internal/domain"
)

// Registry maps effect names to functions. There is no package-global
// instance: callers construct their own, which keeps custom registrations
// scoped to a run and lets concurrent runs layer different effects.
//
// The intended discipline is populate at startup, then read-only during a
// run; the mutex makes stray concurrent registration safe regardless.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns a registry pre-populated with the built-in effects
// (quantity_boost, probability_boost, combined_boost).
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.funcs[NameQuantityBoost] = QuantityBoost
	r.funcs[NameProbabilityBoost] = ProbabilityBoost
	r.funcs[NameCombinedBoost] = CombinedBoost
	return r
}

// Register binds name to fn, replacing any existing binding. Built-ins may
// be overridden the same way as custom effects.
func (r *Registry) Register(name string, fn Func) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: effect name must not be empty", domain.ErrInvalidParameter)
	}
	if fn == nil {
		return fmt.Errorf("%w: effect %q function must not be nil", domain.ErrInvalidParameter, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
	return nil
}

// RegisterStrict binds name to fn, failing with ErrDuplicateRegistration
// when the name is already taken.
func (r *Registry) RegisterStrict(name string, fn Func) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: effect name must not be empty", domain.ErrInvalidParameter)
	}
	if fn == nil {
		return fmt.Errorf("%w: effect %q function must not be nil", domain.ErrInvalidParameter, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("%w: effect %q", domain.ErrDuplicateRegistration, name)
	}
	r.funcs[name] = fn
	return nil
}

// RegisterModule registers every exported method of module whose signature
// matches Func, under the snake_case form of the method name. Methods with
// other signatures are skipped. Returns the registered names sorted.
func (r *Registry) RegisterModule(module any) ([]string, error) {
	if module == nil {
		return nil, fmt.Errorf("%w: module must not be nil", domain.ErrInvalidParameter)
	}
	v := reflect.ValueOf(module)
	t := v.Type()

	var names []string
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() {
			continue
		}
		bound, ok := v.Method(i).Interface().(func([]domain.SaleRecord, Args) ([]domain.SaleRecord, error))
		if !ok {
			continue
		}
		name := snakeCase(m.Name)
		if err := r.Register(name, Func(bound)); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Lookup resolves a registered effect, returning ErrUnknownEffect on miss.
func (r *Registry) Lookup(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEffect, name)
	}
	return fn, nil
}

// Names lists the registered effect names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snakeCase converts an exported Go method name to its registry form:
// "QuantityBoost" becomes "quantity_boost".
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
