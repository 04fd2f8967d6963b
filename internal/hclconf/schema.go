package hclconf

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot is the top-level decode target for one workflow file.
type fileRoot struct {
	Steps  []*stepBlock  `hcl:"step,block"`
	Groups []*groupBlock `hcl:"group,block"`
	Remain hcl.Body      `hcl:",remain"`
}

// stepBlock is the HCL shape of a `step` block.
type stepBlock struct {
	Name         string            `hcl:"name,label"`
	Description  string            `hcl:"description,optional"`
	Requires     []string          `hcl:"requires,optional"`
	Dependencies []string          `hcl:"dependencies,optional"`
	RunByDefault *bool             `hcl:"run_by_default,optional"`
	Env          map[string]string `hcl:"env,optional"`
	Cwd          string            `hcl:"cwd,optional"`
	// Run stays an unevaluated expression: parameter values are only in
	// scope once the step has been expanded into nodes.
	Run        hcl.Expression   `hcl:"run,optional"`
	Parameters *parametersBlock `hcl:"parameters,block"`
}

// parametersBlock keeps the raw body so declaration order can be recovered
// from the source ranges. gohcl would hand the attributes back as a map.
type parametersBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// groupBlock is the HCL shape of a `group` block.
type groupBlock struct {
	Name         string   `hcl:"name,label"`
	Description  string   `hcl:"description,optional"`
	Requires     []string `hcl:"requires"`
	RunByDefault *bool    `hcl:"run_by_default,optional"`
}

// isExprDefined reports whether an expression was actually present in the
// source. The decoder populates omitted optional attributes with non-nil,
// zero-width expression objects, so a nil check is insufficient.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}
