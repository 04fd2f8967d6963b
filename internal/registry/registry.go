package registry

import "fmt"

// DuplicateStepError reports a name collision between registrations.
type DuplicateStepError struct {
	Name string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("a step with the name %q has already been registered", e.Name)
}

// Registry holds all step and group specs for one invocation, in
// registration order. It is not safe for concurrent registration, which is
// fine: registration happens once, up front, on one goroutine.
type Registry struct {
	steps  map[string]*StepSpec
	groups map[string]*GroupSpec
	order  []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		steps:  make(map[string]*StepSpec),
		groups: make(map[string]*GroupSpec),
	}
}

// Register adds a step spec. It fails with DuplicateStepError when the name
// is already taken by any registration.
func (r *Registry) Register(spec *StepSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("cannot register a step without a name")
	}
	if r.has(spec.Name) {
		return &DuplicateStepError{Name: spec.Name}
	}
	r.steps[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// RegisterGroup adds a group spec, under the same namespace as steps.
func (r *Registry) RegisterGroup(group *GroupSpec) error {
	if group.Name == "" {
		return fmt.Errorf("cannot register a group without a name")
	}
	if r.has(group.Name) {
		return &DuplicateStepError{Name: group.Name}
	}
	r.groups[group.Name] = group
	r.order = append(r.order, group.Name)
	return nil
}

func (r *Registry) has(name string) bool {
	if _, ok := r.steps[name]; ok {
		return true
	}
	_, ok := r.groups[name]
	return ok
}

// Step returns the step spec registered under name, or nil.
func (r *Registry) Step(name string) *StepSpec { return r.steps[name] }

// Group returns the group spec registered under name, or nil.
func (r *Registry) Group(name string) *GroupSpec { return r.groups[name] }

// Steps returns all step specs in registration order.
func (r *Registry) Steps() []*StepSpec {
	out := make([]*StepSpec, 0, len(r.steps))
	for _, name := range r.order {
		if s, ok := r.steps[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Groups returns all group specs in registration order.
func (r *Registry) Groups() []*GroupSpec {
	out := make([]*GroupSpec, 0, len(r.groups))
	for _, name := range r.order {
		if g, ok := r.groups[name]; ok {
			out = append(out, g)
		}
	}
	return out
}

// Len returns the number of registrations.
func (r *Registry) Len() int { return len(r.order) }
