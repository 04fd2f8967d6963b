package hclconf

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/dwasgo/internal/config"
)

// translateStep converts the HCL step schema into the agnostic model.
func (l *Loader) translateStep(s *stepBlock) (*config.Step, error) {
	params, err := l.translateParameters(s.Name, s.Parameters)
	if err != nil {
		return nil, err
	}

	step := &config.Step{
		Name:         s.Name,
		Description:  s.Description,
		Requires:     s.Requires,
		Dependencies: s.Dependencies,
		Parameters:   params,
		RunByDefault: s.RunByDefault,
		Env:          s.Env,
		Cwd:          s.Cwd,
	}
	if isExprDefined(s.Run) {
		step.Run = s.Run
	}
	return step, nil
}

// translateGroup converts the HCL group schema into the agnostic model.
func (l *Loader) translateGroup(g *groupBlock) *config.Group {
	return &config.Group{
		Name:         g.Name,
		Description:  g.Description,
		Requires:     g.Requires,
		RunByDefault: g.RunByDefault,
	}
}

// translateParameters recovers the declared parameters in source order.
// Each attribute of the block is one parameter whose value must be a list
// or tuple of candidate values; the order of attributes in the file is the
// order the cartesian expansion varies them in.
func (l *Loader) translateParameters(stepName string, block *parametersBlock) ([]*config.Parameter, error) {
	if block == nil || block.Body == nil {
		return nil, nil
	}

	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("step %q: reading parameters: %w", stepName, diags)
	}

	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	params := make([]*config.Parameter, 0, len(ordered))
	for _, attr := range ordered {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("step %q: parameter %q: %w", stepName, attr.Name, diags)
		}
		if !val.CanIterateElements() {
			return nil, fmt.Errorf("step %q: parameter %q must be a list of values, got %s",
				stepName, attr.Name, val.Type().FriendlyName())
		}

		param := &config.Parameter{Name: attr.Name}
		for it := val.ElementIterator(); it.Next(); {
			_, element := it.Element()
			param.Values = append(param.Values, element)
		}
		params = append(params, param)
	}
	return params, nil
}
