package registry

import (
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Variant is one concrete, runnable expansion of a step spec: the spec name
// plus one bound value per declared parameter.
type Variant struct {
	// Key is the canonical node key: the spec name, suffixed with the
	// bound values of every multi-valued parameter in declaration order,
	// e.g. "pytest[3.9]" or "test[3.9,django==4.0]".
	Key    string
	Params map[string]cty.Value
}

// Expand produces the ordered variant list for a spec: the cartesian
// product of its parameter value lists, iterated in declaration order with
// the first parameter varying slowest. The result is identical across calls
// for the same declarations; this ordering is an observable contract.
//
// A spec whose product is a single combination (including the zero
// parameter case) expands to exactly one variant keyed by the bare name.
func Expand(spec *StepSpec) []*Variant {
	combos := [][]cty.Value{nil}
	for _, param := range spec.Parameters {
		next := make([][]cty.Value, 0, len(combos)*len(param.Values))
		for _, combo := range combos {
			for _, value := range param.Values {
				grown := make([]cty.Value, len(combo), len(combo)+1)
				copy(grown, combo)
				next = append(next, append(grown, value))
			}
		}
		combos = next
	}

	variants := make([]*Variant, 0, len(combos))
	for _, combo := range combos {
		params := make(map[string]cty.Value, len(spec.Parameters))
		var idParts []string
		for i, param := range spec.Parameters {
			params[param.Name] = combo[i]
			// Single-valued parameters carry no information in the key;
			// leaving them out keeps "pytest[3.9]" instead of
			// "pytest[3.9,always-on]".
			if len(param.Values) > 1 {
				idParts = append(idParts, RenderValue(combo[i]))
			}
		}

		key := spec.Name
		if len(idParts) > 0 {
			key = spec.Name + "[" + strings.Join(idParts, ",") + "]"
		}
		variants = append(variants, &Variant{Key: key, Params: params})
	}
	return variants
}

// RenderValue converts a parameter value to its canonical string form, as
// used in node keys and exported environment variables.
func RenderValue(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	default:
		return v.GoString()
	}
}
