package dag

import (
	"fmt"
	"strings"
)

// UnknownStepError reports a reference to a step that was never registered,
// either from a `requires` entry or from a CLI selection filter.
type UnknownStepError struct {
	Name string
	// RequiredBy is the node whose requires entry named it, or empty when
	// the name came from a selection filter.
	RequiredBy string
}

func (e *UnknownStepError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("step %q requires unknown step %q", e.RequiredBy, e.Name)
	}
	return fmt.Sprintf("unknown step: %q", e.Name)
}

// CyclicGraphError reports a dependency cycle. Path holds the full cycle,
// with the offending node repeated at both ends.
type CyclicGraphError struct {
	Path []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("cyclic dependencies between steps: %s", strings.Join(e.Path, " --> "))
}

// NestedGroupError reports a group hierarchy deeper than one level: a
// group may aggregate other groups directly, but those may only contain
// concrete steps.
type NestedGroupError struct {
	Group  string
	Inner  string
	Member string
}

func (e *NestedGroupError) Error() string {
	return fmt.Sprintf("group %q groups %q, whose member %q is itself a group: groups may nest one level only",
		e.Group, e.Inner, e.Member)
}

// ConflictingSelectionError reports mutually exclusive selection inputs.
type ConflictingSelectionError struct {
	First, Second string
}

func (e *ConflictingSelectionError) Error() string {
	return fmt.Sprintf("%s and %s are mutually exclusive", e.First, e.Second)
}
