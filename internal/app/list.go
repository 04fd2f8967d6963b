package app

import (
	"fmt"
	"sort"
	"strings"
)

// list prints every known step with its selection marker: `*` for steps in
// the plan, in execution order, followed by `-` for the rest. Descriptions
// are added in verbose mode, requirements in dependency mode.
func (a *App) list() {
	selected := a.plan.Keys()
	inPlan := make(map[string]bool, len(selected))
	for _, key := range selected {
		inPlan[key] = true
	}

	var rest []string
	for _, key := range a.graph.Keys() {
		if !inPlan[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)

	width := 0
	for _, key := range append(append([]string{}, selected...), rest...) {
		if len(key) > width {
			width = len(key)
		}
	}

	fmt.Fprintln(a.outW, "Available steps (* selected, - skipped):")
	for _, key := range selected {
		a.listEntry("*", key, width)
	}
	for _, key := range rest {
		a.listEntry("-", key, width)
	}
}

func (a *App) listEntry(marker, key string, width int) {
	node := a.graph.Nodes[key]

	line := fmt.Sprintf(" %s %-*s", marker, width, key)
	if a.cfg.Verbose && node.Description != "" {
		line += "  " + node.Description
	}
	if a.cfg.ListDependencies && len(node.Requires) > 0 {
		reqs := make([]string, 0, len(node.Requires))
		for req := range node.Requires {
			reqs = append(reqs, req)
		}
		sort.Strings(reqs)
		line += "  --> " + strings.Join(reqs, ", ")
	}
	fmt.Fprintln(a.outW, strings.TrimRight(line, " "))
}
