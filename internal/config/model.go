package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified representation of everything declared in the
// workflow files: concrete steps and the groups aggregating them.
type Model struct {
	Steps  []*Step
	Groups []*Group
}

// Step is the format-agnostic representation of a `step` block.
type Step struct {
	Name         string
	Description  string
	Requires     []string
	Dependencies []string
	// Parameters preserves declaration order; expansion order is an
	// observable contract.
	Parameters []*Parameter
	// RunByDefault is nil when the workflow file did not set it.
	RunByDefault *bool
	// Env is extra environment applied to the step's run phase.
	Env map[string]string
	// Run is the argv expression for the run phase. It is evaluated per
	// expanded node with the bound parameter values in scope as `params`.
	Run hcl.Expression
	// Cwd is the working directory for the run phase, relative to the
	// project root. Empty means the project root itself.
	Cwd string
}

// Parameter is one declared parameter and its ordered candidate values.
type Parameter struct {
	Name   string
	Values []cty.Value
}

// Group is the format-agnostic representation of a `group` block.
type Group struct {
	Name         string
	Description  string
	Requires     []string
	RunByDefault *bool
}
