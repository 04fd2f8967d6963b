package dag

import (
	"github.com/vk/dwasgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Node is a single vertex in the execution graph: either one concrete step
// variant or a group aggregator.
type Node struct {
	// Key is the unique identifier, e.g. "package" or "pytest[3.9]".
	Key string
	// Spec is the originating step spec. It is nil for group nodes.
	Spec *registry.StepSpec
	// Params holds the bound parameter values of an expanded variant.
	Params map[string]cty.Value
	// Group marks aggregator nodes. Running a group is a no-op; its only
	// effect is that it becomes terminal once all its members have.
	Group bool
	// Members lists the keys a group aggregates. Empty for step nodes.
	Members []string

	Description  string
	RunByDefault bool

	// Requires holds the nodes this node depends on (predecessors).
	Requires map[string]*Node
	// Dependents holds the nodes depending on this node (successors).
	Dependents map[string]*Node
}

// Graph is the validated dependency graph for one invocation. It is
// immutable after Build returns.
type Graph struct {
	// Nodes maps node key to node.
	Nodes map[string]*Node
	// order preserves node creation order, which follows registration
	// order and keeps every derived listing deterministic.
	order []string
	// byName maps a bare spec or group name to the node selection should
	// resolve it to: the single variant for unparametrized specs, the
	// group aggregator for multi-variant ones.
	byName map[string]*Node
}

// Keys returns all node keys in creation order.
func (g *Graph) Keys() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Resolve maps a user-supplied name to a node: an exact node key first
// (so "pytest[3.9]" addresses one variant), then a bare spec or group
// name. It returns nil when nothing matches.
func (g *Graph) Resolve(name string) *Node {
	if n, ok := g.Nodes[name]; ok {
		return n
	}
	return g.byName[name]
}

func (g *Graph) add(n *Node) {
	n.Requires = make(map[string]*Node)
	n.Dependents = make(map[string]*Node)
	g.Nodes[n.Key] = n
	g.order = append(g.order, n.Key)
}

// link records that `from` requires `to`. Duplicate links collapse.
func link(from, to *Node) {
	if _, exists := from.Requires[to.Key]; exists {
		return
	}
	from.Requires[to.Key] = to
	to.Dependents[from.Key] = from
}
