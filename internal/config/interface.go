package config

import "context"

// Loader turns configuration files found under the given paths into the
// unified model. Implementations own the concrete file format.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, error)
}
