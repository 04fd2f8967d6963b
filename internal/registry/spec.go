package registry

import (
	"context"
	"io"

	"github.com/zclconf/go-cty/cty"
)

// Body is the capability every runnable step provides: accept a run
// context, do the work, report success or failure. How a body came to be
// (workflow file, Go code, closure) is invisible to the rest of the system.
type Body interface {
	Run(ctx context.Context, rc *RunContext) error
}

// BodyFunc adapts a plain function to the Body interface.
type BodyFunc func(ctx context.Context, rc *RunContext) error

// Run implements Body.
func (f BodyFunc) Run(ctx context.Context, rc *RunContext) error {
	return f(ctx, rc)
}

// StepSpec is one user-declared unit of work, as registered before any run.
type StepSpec struct {
	// Name must be unique across all registered steps and groups.
	Name        string
	Description string
	// Requires names the steps or groups this step depends on.
	Requires []string
	// Dependencies is the opaque external package requirement list. It is
	// forwarded to the environment cache untouched; the graph never
	// interprets it.
	Dependencies []string
	// Parameters, in declaration order. The cartesian product of their
	// value lists defines the expanded node set.
	Parameters []Parameter
	// RunByDefault is nil for the default (run). A step registered with a
	// false value only runs when named explicitly.
	RunByDefault *bool
	// Env is extra environment merged into the run phase.
	Env map[string]string
	// Body executes the step. Group aggregators have no body.
	Body Body
}

// Parameter is a named, ordered list of candidate values.
type Parameter struct {
	Name   string
	Values []cty.Value
}

// GroupSpec declares a named aggregator over other steps or groups.
type GroupSpec struct {
	Name         string
	Description  string
	Requires     []string
	RunByDefault *bool
}

// runByDefault resolves the tri-state flag; unset means true.
func runByDefault(v *bool) bool {
	return v == nil || *v
}

// RunsByDefault reports whether the step is part of the default selection.
func (s *StepSpec) RunsByDefault() bool { return runByDefault(s.RunByDefault) }

// RunsByDefault reports whether the group is part of the default selection.
func (g *GroupSpec) RunsByDefault() bool { return runByDefault(g.RunByDefault) }

// RunOptions controls a single command run inside an environment.
type RunOptions struct {
	// Cwd is the working directory. Empty means the process inherits it.
	Cwd string
	// Env is merged over the environment's base environment.
	Env map[string]string
	// Output receives the combined stdout and stderr of the command.
	Output io.Writer
}

// Environment is the handle to one node's isolated, cached execution
// environment, as provided by the environment cache.
type Environment interface {
	// Path is the on-disk root of the environment.
	Path() string
	// Run executes argv inside the environment.
	Run(ctx context.Context, argv []string, opts *RunOptions) error
}

// RunContext is what a step body receives: its identity, its bound
// parameters, the passthrough user arguments and the environment handle.
type RunContext struct {
	// Name is the canonical node key, e.g. "pytest[3.9]".
	Name string
	// Params holds the bound parameter values for this node.
	Params map[string]cty.Value
	// UserArgs are the arguments given after the `--` separator,
	// forwarded verbatim.
	UserArgs []string
	// Env is the node's isolated environment.
	Env Environment
	// Output is the node's attributed output stream. Everything a body
	// writes or runs through it is reported as one atomic unit.
	Output io.Writer
}

// Run executes argv inside the node's environment, with output attributed
// to this node.
func (rc *RunContext) Run(ctx context.Context, argv []string, opts *RunOptions) error {
	if opts == nil {
		opts = &RunOptions{}
	}
	if opts.Output == nil {
		opts.Output = rc.Output
	}
	return rc.Env.Run(ctx, argv, opts)
}
