package dag

import (
	"context"
	"sort"

	"github.com/vk/dwasgo/internal/ctxlog"
	"github.com/vk/dwasgo/internal/registry"
)

// Build constructs a complete, validated dependency graph from the
// registered specs. It fails with UnknownStepError when a requires entry
// names a step that was never registered, and with CyclicGraphError when
// the requires relation contains a cycle.
func Build(ctx context.Context, reg *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	graph := &Graph{
		Nodes:  make(map[string]*Node),
		byName: make(map[string]*Node),
	}

	// First pass: create step variant nodes and group aggregators.
	createNodes(ctx, reg, graph)
	logger.Debug("Node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: link requires edges.
	if err := linkNodes(reg, graph); err != nil {
		return nil, err
	}
	logger.Debug("Node linking complete.")

	if err := graph.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Cycle detection passed.")

	return graph, nil
}

// createNodes performs the first pass of graph creation. Registration
// already guarantees unique names, so node keys cannot collide here.
func createNodes(ctx context.Context, reg *registry.Registry, graph *Graph) {
	logger := ctxlog.FromContext(ctx)

	for _, spec := range reg.Steps() {
		variants := registry.Expand(spec)
		memberKeys := make([]string, 0, len(variants))
		for _, v := range variants {
			node := &Node{
				Key:          v.Key,
				Spec:         spec,
				Params:       v.Params,
				Description:  spec.Description,
				RunByDefault: spec.RunsByDefault(),
			}
			graph.add(node)
			memberKeys = append(memberKeys, v.Key)
		}

		switch len(variants) {
		case 0:
			logger.Warn("Step expanded to no variants, it will never run.", "step", spec.Name)
		case 1:
			graph.byName[spec.Name] = graph.Nodes[memberKeys[0]]
		default:
			// One aggregator per multi-variant spec: naming the spec means
			// "all of its variants".
			group := &Node{
				Key:          spec.Name,
				Group:        true,
				Members:      memberKeys,
				Description:  spec.Description,
				RunByDefault: spec.RunsByDefault(),
			}
			graph.add(group)
			graph.byName[spec.Name] = group
		}
	}

	for _, gspec := range reg.Groups() {
		group := &Node{
			Key:          gspec.Name,
			Group:        true,
			Members:      append([]string(nil), gspec.Requires...),
			Description:  gspec.Description,
			RunByDefault: gspec.RunsByDefault(),
		}
		graph.add(group)
		graph.byName[gspec.Name] = group
	}
}

// linkNodes performs the second pass, establishing dependency links.
func linkNodes(reg *registry.Registry, graph *Graph) error {
	for _, key := range graph.order {
		node := graph.Nodes[key]

		if node.Group {
			// A group requires every node it aggregates. For synthesized
			// groups the members are concrete variant keys; for declared
			// groups they are user-written names. A member that is itself a
			// group is flattened to its concrete members, one level deep.
			for _, member := range node.Members {
				dep := graph.Resolve(member)
				if dep == nil {
					return &UnknownStepError{Name: member, RequiredBy: node.Key}
				}
				if !dep.Group {
					link(node, dep)
					continue
				}
				for _, inner := range dep.Members {
					innerDep := graph.Resolve(inner)
					if innerDep == nil {
						return &UnknownStepError{Name: inner, RequiredBy: dep.Key}
					}
					if innerDep.Group {
						return &NestedGroupError{Group: node.Key, Inner: dep.Key, Member: innerDep.Key}
					}
					link(node, innerDep)
				}
			}
			continue
		}

		for _, req := range node.Spec.Requires {
			dep := graph.Resolve(req)
			if dep == nil {
				return &UnknownStepError{Name: req, RequiredBy: node.Key}
			}
			link(node, dep)
		}
	}
	return nil
}

// detectCycles runs a depth-first check over the requires relation,
// recording the full cycle path for diagnostics.
func (g *Graph) detectCycles() error {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var visit func(n *Node) *CyclicGraphError
	visit = func(n *Node) *CyclicGraphError {
		visited[n.Key] = true
		onStack[n.Key] = true
		stack = append(stack, n.Key)

		for _, depKey := range sortedKeys(n.Requires) {
			dep := n.Requires[depKey]
			if onStack[dep.Key] {
				return &CyclicGraphError{Path: cyclePath(stack, dep.Key)}
			}
			if !visited[dep.Key] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[n.Key] = false
		return nil
	}

	for _, key := range g.order {
		if !visited[key] {
			if err := visit(g.Nodes[key]); err != nil {
				return err
			}
		}
	}
	return nil
}

// cyclePath trims the DFS stack to the cycle itself and closes the loop.
func cyclePath(stack []string, start string) []string {
	for i, key := range stack {
		if key == start {
			path := append([]string(nil), stack[i:]...)
			return append(path, start)
		}
	}
	return append([]string(nil), start)
}

func sortedKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
