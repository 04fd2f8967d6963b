package dag

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/dwasgo/internal/registry"
)

func mustSelect(t *testing.T, g *Graph, opts Options) *Plan {
	t.Helper()
	plan, err := Select(context.Background(), g, opts)
	require.NoError(t, err)
	return plan
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

// ciGraph is the running example: package feeds pytest and coverage, lint
// is independent, and "ci" aggregates lint and pytest.
func ciGraph(t *testing.T) *Graph {
	t.Helper()
	reg := newRegistry(t, []*registry.StepSpec{
		{Name: "package"},
		{Name: "pytest", Requires: []string{"package"}},
		{Name: "coverage", Requires: []string{"pytest"}},
		{Name: "lint"},
	}, &registry.GroupSpec{Name: "ci", Requires: []string{"lint", "pytest"}})
	return mustBuild(t, reg)
}

func TestSelectDefaultTakesEverything(t *testing.T) {
	plan := mustSelect(t, ciGraph(t), Options{})

	assert.ElementsMatch(t,
		[]string{"package", "pytest", "coverage", "lint", "ci"},
		plan.Keys())
	for _, item := range plan.Items {
		assert.Equal(t, PhaseFull, item.Phase)
		assert.False(t, item.ExcludedButRequired)
	}
}

func TestSelectSkipsNonDefaultSteps(t *testing.T) {
	off := false
	reg := newRegistry(t, []*registry.StepSpec{
		{Name: "lint"},
		{Name: "release", RunByDefault: &off},
	})
	plan := mustSelect(t, mustBuild(t, reg), Options{})

	assert.Equal(t, []string{"lint"}, plan.Keys())
}

func TestSelectNonDefaultIncludedWhenRequired(t *testing.T) {
	off := false
	reg := newRegistry(t, []*registry.StepSpec{
		{Name: "package", RunByDefault: &off},
		{Name: "pytest", Requires: []string{"package"}},
	})
	plan := mustSelect(t, mustBuild(t, reg), Options{})

	assert.ElementsMatch(t, []string{"package", "pytest"}, plan.Keys())
	// Required dependencies are ordinary plan members, not flagged ones.
	assert.False(t, plan.Item("package").ExcludedButRequired)
}

func TestSelectOnly(t *testing.T) {
	plan := mustSelect(t, ciGraph(t), Options{Only: []string{"pytest"}})

	keys := plan.Keys()
	assert.ElementsMatch(t, []string{"package", "pytest"}, keys)
	assert.Less(t, indexOf(keys, "package"), indexOf(keys, "pytest"))
}

func TestSelectOnlyNonDefaultByName(t *testing.T) {
	off := false
	reg := newRegistry(t, []*registry.StepSpec{
		{Name: "lint"},
		{Name: "release", RunByDefault: &off},
	})
	plan := mustSelect(t, mustBuild(t, reg), Options{Only: []string{"release"}})

	assert.Equal(t, []string{"release"}, plan.Keys())
}

func TestSelectOnlyUnknown(t *testing.T) {
	_, err := Select(context.Background(), ciGraph(t), Options{Only: []string{"nope"}})

	var unknown *UnknownStepError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Name)
}

func TestSelectConflicts(t *testing.T) {
	t.Run("only with except", func(t *testing.T) {
		_, err := Select(context.Background(), ciGraph(t), Options{
			Only:   []string{"pytest"},
			Except: []string{"lint"},
		})
		var conflict *ConflictingSelectionError
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("setup-only with no-setup", func(t *testing.T) {
		_, err := Select(context.Background(), ciGraph(t), Options{
			SetupOnly: true,
			NoSetup:   true,
		})
		var conflict *ConflictingSelectionError
		require.ErrorAs(t, err, &conflict)
	})
}

func TestSelectExcept(t *testing.T) {
	plan := mustSelect(t, ciGraph(t), Options{Except: []string{"coverage"}})

	assert.NotContains(t, plan.Keys(), "coverage")
	assert.Contains(t, plan.Keys(), "pytest")
}

func TestSelectExceptKeepsRequiredNodes(t *testing.T) {
	// pytest is excluded, but ci and coverage still require it. Dependency
	// integrity wins over the exclusion.
	plan := mustSelect(t, ciGraph(t), Options{Except: []string{"pytest"}})

	item := plan.Item("pytest")
	require.NotNil(t, item)
	assert.True(t, item.ExcludedButRequired)
}

func TestSelectExceptGroupExcludesMembers(t *testing.T) {
	reg := newRegistry(t, []*registry.StepSpec{
		{Name: "lint"},
		{Name: "docs"},
	}, &registry.GroupSpec{Name: "checks", Requires: []string{"lint"}})
	plan := mustSelect(t, mustBuild(t, reg), Options{Except: []string{"checks"}})

	assert.Equal(t, []string{"docs"}, plan.Keys())
}

func TestSelectPhases(t *testing.T) {
	t.Run("setup only", func(t *testing.T) {
		plan := mustSelect(t, ciGraph(t), Options{SetupOnly: true})
		for _, item := range plan.Items {
			assert.Equal(t, PhaseSetupOnly, item.Phase)
		}
	})

	t.Run("no setup", func(t *testing.T) {
		plan := mustSelect(t, ciGraph(t), Options{NoSetup: true})
		for _, item := range plan.Items {
			assert.Equal(t, PhaseRunOnly, item.Phase)
		}
	})
}

func TestPlanOrderRespectsDependencies(t *testing.T) {
	plan := mustSelect(t, ciGraph(t), Options{})
	keys := plan.Keys()

	assert.Less(t, indexOf(keys, "package"), indexOf(keys, "pytest"))
	assert.Less(t, indexOf(keys, "pytest"), indexOf(keys, "coverage"))
	assert.Less(t, indexOf(keys, "pytest"), indexOf(keys, "ci"))
	assert.Less(t, indexOf(keys, "lint"), indexOf(keys, "ci"))
}

func TestPlanOrderPrefersHeavilyDependedNodes(t *testing.T) {
	// package unlocks three dependents, lint none. Among equally ready
	// nodes the one with more transitive dependents goes first.
	reg := newRegistry(t, []*registry.StepSpec{
		{Name: "lint"},
		{Name: "package"},
		{Name: "a", Requires: []string{"package"}},
		{Name: "b", Requires: []string{"package"}},
		{Name: "c", Requires: []string{"package"}},
	})
	plan := mustSelect(t, mustBuild(t, reg), Options{})
	keys := plan.Keys()

	assert.Less(t, indexOf(keys, "package"), indexOf(keys, "lint"))
}

func TestPlanOrderIsDeterministic(t *testing.T) {
	first := mustSelect(t, ciGraph(t), Options{}).Keys()
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, mustSelect(t, ciGraph(t), Options{}).Keys()); diff != "" {
			t.Fatalf("plan order changed between runs (-first +now):\n%s", diff)
		}
	}
}
