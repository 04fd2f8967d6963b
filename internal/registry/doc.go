// Package registry holds the step specifications declared for one
// invocation. Specs are registered once, before anything runs, and the
// registry is read-only from then on. Parameter expansion lives here too,
// because the expansion order of a spec is part of its declared identity.
package registry
