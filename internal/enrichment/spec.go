package enrichment

import (
	"fmt"
	"strconv"
	"strings"

	"retail-sim-lab/internal/domain"
)

// ParseSpec parses the shorthand effect notation "name" or "name:size"
// into a spec; the value after the colon is the effect_size parameter.
// The structured {function, params} form decodes directly into
// domain.EffectSpec and does not pass through here.
func ParseSpec(shorthand string) (domain.EffectSpec, error) {
	name, sizeText, hasSize := strings.Cut(strings.TrimSpace(shorthand), ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.EffectSpec{}, fmt.Errorf("%w: empty effect specification", domain.ErrInvalidParameter)
	}
	if !hasSize {
		return domain.EffectSpec{Function: name}, nil
	}
	size, err := strconv.ParseFloat(strings.TrimSpace(sizeText), 64)
	if err != nil {
		return domain.EffectSpec{}, fmt.Errorf("%w: effect size %q is not a number", domain.ErrInvalidParameter, sizeText)
	}
	return domain.EffectSpec{
		Function: name,
		Params:   map[string]any{"effect_size": size},
	}, nil
}
