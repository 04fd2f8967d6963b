package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	reg := New()

	require.NoError(t, reg.Register(&StepSpec{Name: "lint"}))
	require.NoError(t, reg.Register(&StepSpec{Name: "pytest"}))
	require.NoError(t, reg.RegisterGroup(&GroupSpec{Name: "ci", Requires: []string{"lint", "pytest"}}))

	assert.Equal(t, 3, reg.Len())
	require.NotNil(t, reg.Step("lint"))
	assert.Equal(t, "lint", reg.Step("lint").Name)
	require.NotNil(t, reg.Group("ci"))
	assert.Nil(t, reg.Step("ci"))
	assert.Nil(t, reg.Group("lint"))
}

func TestRegisterDuplicate(t *testing.T) {
	t.Run("step then step", func(t *testing.T) {
		reg := New()
		require.NoError(t, reg.Register(&StepSpec{Name: "lint"}))

		err := reg.Register(&StepSpec{Name: "lint"})
		require.Error(t, err)
		var dup *DuplicateStepError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "lint", dup.Name)
	})

	t.Run("group shares the step namespace", func(t *testing.T) {
		reg := New()
		require.NoError(t, reg.Register(&StepSpec{Name: "lint"}))

		err := reg.RegisterGroup(&GroupSpec{Name: "lint"})
		var dup *DuplicateStepError
		require.ErrorAs(t, err, &dup)
	})
}

func TestStepsPreserveRegistrationOrder(t *testing.T) {
	reg := New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(&StepSpec{Name: name}))
	}

	var names []string
	for _, spec := range reg.Steps() {
		names = append(names, spec.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
}

func TestRunsByDefault(t *testing.T) {
	off := false
	on := true

	assert.True(t, (&StepSpec{Name: "a"}).RunsByDefault())
	assert.True(t, (&StepSpec{Name: "a", RunByDefault: &on}).RunsByDefault())
	assert.False(t, (&StepSpec{Name: "a", RunByDefault: &off}).RunsByDefault())
	assert.True(t, (&GroupSpec{Name: "g"}).RunsByDefault())
	assert.False(t, (&GroupSpec{Name: "g", RunByDefault: &off}).RunsByDefault())
}
