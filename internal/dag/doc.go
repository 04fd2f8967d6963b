// Package dag builds the dependency graph for one invocation and selects
// the subset of it to execute.
//
// The graph is derived fresh from the registry every run: step specs are
// expanded to their concrete variants, every multi-variant spec gets a
// synthetic group aggregator, and `requires` entries are linked into
// edges. Validation (unresolved references, cycles) happens here, before
// anything runs. The graph is read-only once built.
package dag
