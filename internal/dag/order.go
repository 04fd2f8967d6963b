package dag

import "sort"

// orderSelection returns the selected keys in a deterministic topological
// order: requirements before dependents, ties broken by the number of
// transitive dependents inside the selection (heavier first, so long
// chains start early) and then by name. Any requires-consistent order
// would be correct; determinism keeps listings and logs stable.
func orderSelection(g *Graph, selected map[string]*PlanItem) []string {
	weights := selectionWeights(g, selected)

	indegree := make(map[string]int, len(selected))
	for key := range selected {
		n := 0
		for depKey := range g.Nodes[key].Requires {
			if _, ok := selected[depKey]; ok {
				n++
			}
		}
		indegree[key] = n
	}

	var ready []string
	for key, n := range indegree {
		if n == 0 {
			ready = append(ready, key)
		}
	}

	less := func(a, b string) bool {
		if weights[a] != weights[b] {
			return weights[a] > weights[b]
		}
		return a < b
	}

	order := make([]string, 0, len(selected))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		key := ready[0]
		ready = ready[1:]
		order = append(order, key)

		for depKey := range g.Nodes[key].Dependents {
			if _, ok := selected[depKey]; !ok {
				continue
			}
			indegree[depKey]--
			if indegree[depKey] == 0 {
				ready = append(ready, depKey)
			}
		}
	}
	return order
}

// selectionWeights counts, per selected node, how many selected nodes
// transitively depend on it.
func selectionWeights(g *Graph, selected map[string]*PlanItem) map[string]int {
	weights := make(map[string]int, len(selected))
	reach := make(map[string]map[string]bool, len(selected))

	var visit func(key string) map[string]bool
	visit = func(key string) map[string]bool {
		if r, ok := reach[key]; ok {
			return r
		}
		r := make(map[string]bool)
		// Build already rejected cycles, so this terminates.
		reach[key] = r
		for depKey := range g.Nodes[key].Dependents {
			if _, ok := selected[depKey]; !ok {
				continue
			}
			r[depKey] = true
			for k := range visit(depKey) {
				r[k] = true
			}
		}
		return r
	}

	for key := range selected {
		weights[key] = len(visit(key))
	}
	return weights
}
