// Package config defines the format-agnostic workflow model produced by
// configuration loaders. The rest of the system depends only on this model,
// never on how a workflow file was written.
package config
