package hclconf

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/dwasgo/internal/config"
	"github.com/vk/dwasgo/internal/registry"
)

// Populate registers every step and group of the model. Steps carrying a
// run expression get a command body that evaluates it per expanded node.
func Populate(model *config.Model, reg *registry.Registry) error {
	for _, step := range model.Steps {
		spec := &registry.StepSpec{
			Name:         step.Name,
			Description:  step.Description,
			Requires:     step.Requires,
			Dependencies: step.Dependencies,
			RunByDefault: step.RunByDefault,
			Env:          step.Env,
		}
		for _, p := range step.Parameters {
			spec.Parameters = append(spec.Parameters, registry.Parameter{
				Name:   p.Name,
				Values: p.Values,
			})
		}
		if step.Run != nil {
			spec.Body = commandBody(step)
		}
		if err := reg.Register(spec); err != nil {
			return err
		}
	}

	for _, group := range model.Groups {
		spec := &registry.GroupSpec{
			Name:         group.Name,
			Description:  group.Description,
			Requires:     group.Requires,
			RunByDefault: group.RunByDefault,
		}
		if err := reg.RegisterGroup(spec); err != nil {
			return err
		}
	}
	return nil
}

// commandBody binds a step's run expression to an executable body. The
// expression is evaluated at run time, once per expanded node, with that
// node's parameter values in scope as `params`.
func commandBody(step *config.Step) registry.Body {
	return registry.BodyFunc(func(ctx context.Context, rc *registry.RunContext) error {
		argv, err := evalArgv(step.Run, rc.Params)
		if err != nil {
			return fmt.Errorf("step %q: %w", rc.Name, err)
		}
		argv = append(argv, rc.UserArgs...)
		return rc.Run(ctx, argv, &registry.RunOptions{
			Cwd: step.Cwd,
			Env: stepEnv(step, rc.Params),
		})
	})
}

// stepEnv merges the step's declared environment with one variable per
// bound parameter, so the spawned process can see which combination it is.
func stepEnv(step *config.Step, params map[string]cty.Value) map[string]string {
	if len(step.Env) == 0 && len(params) == 0 {
		return nil
	}
	env := make(map[string]string, len(step.Env)+len(params))
	for k, v := range step.Env {
		env[k] = v
	}
	for name, val := range params {
		env["DWASGO_PARAM_"+strings.ToUpper(name)] = registry.RenderValue(val)
	}
	return env
}

// evalArgv evaluates a run expression to a command line. The result must
// be a list or tuple whose elements convert to strings.
func evalArgv(expr hcl.Expression, params map[string]cty.Value) ([]string, error) {
	scope := params
	if scope == nil {
		scope = map[string]cty.Value{}
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"params": cty.ObjectVal(scope),
		},
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating run expression: %w", diags)
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("run expression must produce a list of strings, got %s",
			val.Type().FriendlyName())
	}

	var argv []string
	for it := val.ElementIterator(); it.Next(); {
		_, element := it.Element()
		str, err := convert.Convert(element, cty.String)
		if err != nil || str.IsNull() {
			return nil, fmt.Errorf("run expression element is not a string: %s",
				element.Type().FriendlyName())
		}
		argv = append(argv, str.AsString())
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("run expression produced an empty command line")
	}
	return argv, nil
}
