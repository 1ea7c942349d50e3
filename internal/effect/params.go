package effect

import (
	"fmt"
	"math"

	"retail-sim-lab/internal/domain"
)

// Params carries an effect's named parameters. Values arrive through YAML
// or JSON decoding, so numbers may be any of the numeric types those
// decoders produce; the typed accessors normalize them.
type Params map[string]any

// Float returns the named parameter as a float64, or def when absent.
// Non-numeric or non-finite values return ErrInvalidParameter.
func (p Params) Float(name string, def float64) (float64, error) {
	raw, ok := p[name]
	if !ok {
		return def, nil
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint64:
		v = float64(n)
	default:
		return 0, fmt.Errorf("%w: parameter %q must be a number, got %T", domain.ErrInvalidParameter, name, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: parameter %q must be finite", domain.ErrInvalidParameter, name)
	}
	return v, nil
}

// Strings returns the named parameter as a string slice, or nil when
// absent. Accepts []string and the []any form produced by decoders.
func (p Params) Strings(name string) ([]string, error) {
	raw, ok := p[name]
	if !ok {
		return nil, nil
	}
	switch vs := raw.(type) {
	case []string:
		return vs, nil
	case []any:
		out := make([]string, len(vs))
		for i, v := range vs {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: parameter %q element %d must be a string, got %T", domain.ErrInvalidParameter, name, i, v)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: parameter %q must be a string list, got %T", domain.ErrInvalidParameter, name, raw)
	}
}
