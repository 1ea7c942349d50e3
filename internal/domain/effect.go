package domain

import (
	"fmt"
	"sort"
	"strings"
)

// EffectSpec names a registered treatment effect and its parameters. It is
// the resolved form of both accepted shapes: the shorthand string
// "name:size" and the structured {function, params} block.
type EffectSpec struct {
	Function string         `json:"function" yaml:"function"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// String renders the spec for logs and run metadata, with parameters in
// stable order.
func (e EffectSpec) String() string {
	if len(e.Params) == 0 {
		return e.Function
	}
	keys := make([]string, 0, len(e.Params))
	for k := range e.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(e.Function)
	b.WriteByte('(')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, e.Params[k])
	}
	b.WriteByte(')')
	return b.String()
}
