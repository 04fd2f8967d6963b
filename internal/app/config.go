package app

import (
	"fmt"
)

// DefaultPaths is where workflow files are looked for when no --file is
// given: the conventional single file first, then the directory form.
var DefaultPaths = []string{"dwasfile.hcl", ".dwas"}

// Config holds everything one invocation needs to run.
type Config struct {
	// Paths are the workflow files or directories to load. Empty means
	// DefaultPaths.
	Paths []string
	// CachePath is the root under which environments and logs live.
	CachePath string

	// Only restricts the run to the named steps and their requirements.
	Only []string
	// Except removes the named steps from the default selection.
	Except []string
	// SetupOnly runs only the environment preparation phase of each
	// selected step.
	SetupOnly bool
	// NoSetup skips environment preparation and assumes a previous run
	// performed it.
	NoSetup bool

	// FailFast cancels everything not yet started after the first failure.
	FailFast bool
	// Jobs bounds concurrently running steps. Zero means the CPU count.
	Jobs int
	// Clean rebuilds every environment instead of reusing cached ones.
	Clean bool

	// List prints the known steps and the current selection, then exits.
	List bool
	// ListDependencies additionally prints each step's requirements.
	ListDependencies bool
	// Verbose adds step descriptions to the listing.
	Verbose bool

	// UserArgs are forwarded verbatim to every executed step.
	UserArgs []string

	LogFormat string
	LogLevel  string

	// pathsDefaulted records that Paths was filled from DefaultPaths. A
	// missing default path is merely not there; a missing path the user
	// named is an error.
	pathsDefaulted bool
}

// PathsDefaulted reports whether Paths came from DefaultPaths rather than
// the user.
func (c *Config) PathsDefaulted() bool { return c.pathsDefaulted }

// NewConfig validates and defaults a Config.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		cfg.Paths = append([]string(nil), DefaultPaths...)
		cfg.pathsDefaulted = true
	}
	if cfg.CachePath == "" {
		cfg.CachePath = ".dwasgo"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Jobs < 0 {
		return nil, fmt.Errorf("invalid jobs value %d: must be zero or positive", cfg.Jobs)
	}
	if cfg.SetupOnly && cfg.NoSetup {
		return nil, fmt.Errorf("--setup-only and --no-setup are mutually exclusive")
	}

	return &cfg, nil
}
