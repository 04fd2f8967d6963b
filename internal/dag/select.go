package dag

import (
	"context"

	"github.com/vk/dwasgo/internal/ctxlog"
)

// Phase says which halves of a node's lifecycle an invocation executes.
type Phase int

const (
	// PhaseFull runs environment setup and the step body.
	PhaseFull Phase = iota
	// PhaseSetupOnly prepares environments without running bodies.
	PhaseSetupOnly
	// PhaseRunOnly skips setup, assuming environments already exist.
	PhaseRunOnly
)

func (p Phase) String() string {
	switch p {
	case PhaseSetupOnly:
		return "setup-only"
	case PhaseRunOnly:
		return "run-only"
	default:
		return "full"
	}
}

// Options are the CLI-level selection filters.
type Options struct {
	// Only restricts the plan to the named nodes plus their transitive
	// requirements. Mutually exclusive with Except.
	Only []string
	// Except removes the named nodes (groups expanded to members) from
	// the default selection. Dependency integrity takes precedence: a
	// removed node still required by a selected one is re-included.
	Except    []string
	SetupOnly bool
	NoSetup   bool
}

// PlanItem is one selected node, annotated for execution.
type PlanItem struct {
	Key   string
	Phase Phase
	// ExcludedButRequired is set when the node was named by --except but
	// remains a transitive requirement of a selected node.
	ExcludedButRequired bool
}

// Plan is the dependency-ordered list of nodes to execute. Every
// requirement of a plan member is itself a plan member.
type Plan struct {
	Items []*PlanItem
	index map[string]*PlanItem
}

// Keys returns the plan's node keys in plan order.
func (p *Plan) Keys() []string {
	keys := make([]string, len(p.Items))
	for i, item := range p.Items {
		keys[i] = item.Key
	}
	return keys
}

// Item returns the plan item for key, or nil when the key is unselected.
func (p *Plan) Item(key string) *PlanItem { return p.index[key] }

// Select applies the CLI selection filters to the graph and produces the
// execution plan, topologically ordered.
func Select(ctx context.Context, g *Graph, opts Options) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	if len(opts.Only) > 0 && len(opts.Except) > 0 {
		return nil, &ConflictingSelectionError{First: "--only", Second: "--except"}
	}
	if opts.SetupOnly && opts.NoSetup {
		return nil, &ConflictingSelectionError{First: "--setup-only", Second: "--no-setup"}
	}

	phase := PhaseFull
	switch {
	case opts.SetupOnly:
		phase = PhaseSetupOnly
	case opts.NoSetup:
		phase = PhaseRunOnly
	}

	var roots []*Node
	excluded := make(map[string]bool)

	if len(opts.Only) > 0 {
		named, err := resolveNames(g, opts.Only)
		if err != nil {
			return nil, err
		}
		roots = named
	} else {
		if len(opts.Except) > 0 {
			named, err := resolveNames(g, opts.Except)
			if err != nil {
				return nil, err
			}
			excluded = expandGroups(named)
		}
		for _, key := range g.order {
			node := g.Nodes[key]
			if node.RunByDefault && !excluded[node.Key] {
				roots = append(roots, node)
			}
		}
	}

	// Close the root set over requires. Dependencies of included nodes
	// are always included, regardless of their own default-run flag or
	// an exclusion by name.
	selected := make(map[string]*PlanItem)
	queue := make([]*Node, 0, len(roots))
	for _, root := range roots {
		if _, ok := selected[root.Key]; ok {
			continue
		}
		selected[root.Key] = &PlanItem{Key: root.Key, Phase: phase}
		queue = append(queue, root)
	}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, depKey := range sortedKeys(node.Requires) {
			dep := node.Requires[depKey]
			if _, ok := selected[dep.Key]; ok {
				continue
			}
			item := &PlanItem{Key: dep.Key, Phase: phase}
			if excluded[dep.Key] {
				item.ExcludedButRequired = true
				logger.Warn("Step was excluded but is still required; keeping it.",
					"step", dep.Key, "required_by", node.Key)
			}
			selected[dep.Key] = item
			queue = append(queue, dep)
		}
	}

	plan := &Plan{index: selected}
	for _, key := range orderSelection(g, selected) {
		plan.Items = append(plan.Items, selected[key])
	}
	return plan, nil
}

// resolveNames maps user-supplied names to nodes, failing on the first
// unknown one.
func resolveNames(g *Graph, names []string) ([]*Node, error) {
	nodes := make([]*Node, 0, len(names))
	for _, name := range names {
		node := g.Resolve(name)
		if node == nil {
			return nil, &UnknownStepError{Name: name}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// expandGroups widens a named set over group membership only: excluding a
// group excludes its members, but never the requirements of those members.
func expandGroups(nodes []*Node) map[string]bool {
	out := make(map[string]bool)
	queue := append([]*Node(nil), nodes...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if out[node.Key] {
			continue
		}
		out[node.Key] = true
		if node.Group {
			for _, dep := range node.Requires {
				queue = append(queue, dep)
			}
		}
	}
	return out
}
