package envcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/vk/dwasgo/internal/ctxlog"
	"github.com/vk/dwasgo/internal/registry"
	"github.com/vk/dwasgo/internal/subproc"
)

const fingerprintFile = ".fingerprint"

// passthroughEnv is the allowlist of host environment variables visible
// inside step environments. Everything else is withheld for isolation.
var passthroughEnv = []string{
	"PATH",
	"HOME",
	"LANG",
	"LANGUAGE",
	"LD_LIBRARY_PATH",
	"TMPDIR",
	"SSL_CERT_FILE",
	"http_proxy",
	"https_proxy",
	"no_proxy",
}

// Cache manages the on-disk environments under one cache root.
type Cache struct {
	root  string
	procs *subproc.Manager
	base  map[string]string

	// rebuild bypasses the reuse policy, forcing every Ensure to rebuild
	// (--clean).
	rebuild bool

	group singleflight.Group
}

// New creates a Cache rooted at root. The base environment is captured
// once, at construction.
func New(root string, procs *subproc.Manager) *Cache {
	base := make(map[string]string, len(passthroughEnv))
	for _, key := range passthroughEnv {
		if val, ok := os.LookupEnv(key); ok {
			base[key] = val
		}
	}
	return &Cache{root: root, procs: procs, base: base}
}

// ForceRebuild disables environment reuse for this invocation. Must be
// set before execution starts.
func (c *Cache) ForceRebuild() { c.rebuild = true }

// LogDir is where per-node log files live.
func (c *Cache) LogDir() string { return filepath.Join(c.root, "logs") }

func (c *Cache) envDir(identity string) string {
	return filepath.Join(c.root, "envs", sanitizeIdentity(identity))
}

// Ensure returns the environment for the given node identity, building or
// rebuilding its directory when the dependency spec's fingerprint differs
// from the last applied one. It is idempotent and safe under concurrent
// invocation: different identities proceed independently, while concurrent
// calls for the same identity are collapsed into one build.
func (c *Cache) Ensure(ctx context.Context, identity string, deps []string) (registry.Environment, error) {
	env, err, _ := c.group.Do(identity, func() (any, error) {
		return c.ensure(ctx, identity, deps)
	})
	if err != nil {
		return nil, err
	}
	return env.(registry.Environment), nil
}

func (c *Cache) ensure(ctx context.Context, identity string, deps []string) (registry.Environment, error) {
	logger := ctxlog.FromContext(ctx).With("identity", identity)
	dir := c.envDir(identity)
	want := Fingerprint(deps)

	if !c.rebuild {
		have, err := os.ReadFile(filepath.Join(dir, fingerprintFile))
		if err == nil && strings.TrimSpace(string(have)) == want {
			logger.Debug("Environment up to date, reusing.", "dir", dir)
			return c.open(identity), nil
		}
		if err == nil {
			logger.Debug("Dependency spec changed, rebuilding environment.", "dir", dir)
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clearing environment for %s: %w", identity, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "bin"), 0o755); err != nil {
		return nil, fmt.Errorf("creating environment for %s: %w", identity, err)
	}
	if err := os.WriteFile(filepath.Join(dir, fingerprintFile), []byte(want+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("recording fingerprint for %s: %w", identity, err)
	}
	logger.Debug("Environment built.", "dir", dir)
	return c.open(identity), nil
}

// Open returns a handle to an identity's environment without touching it.
// Used for run-only invocations, where a previous run did the setup.
func (c *Cache) Open(identity string) registry.Environment {
	return c.open(identity)
}

func (c *Cache) open(identity string) *Env {
	return &Env{identity: identity, dir: c.envDir(identity), cache: c}
}

// Env is the concrete environment handle backed by one cache directory.
type Env struct {
	identity string
	dir      string
	cache    *Cache
}

// Path returns the environment's root directory.
func (e *Env) Path() string { return e.dir }

// Run executes argv with the environment's variables: the minimal host
// passthrough, the environment's own bin directory prepended to PATH, and
// DWASGO_ENV/DWASGO_STEP identifying the environment to the process.
func (e *Env) Run(ctx context.Context, argv []string, opts *registry.RunOptions) error {
	if opts == nil {
		opts = &registry.RunOptions{}
	}

	merged := make(map[string]string, len(e.cache.base)+len(opts.Env)+3)
	for k, v := range e.cache.base {
		merged[k] = v
	}
	merged["DWASGO_ENV"] = e.dir
	merged["DWASGO_STEP"] = e.identity
	bin := filepath.Join(e.dir, "bin")
	if path, ok := merged["PATH"]; ok && path != "" {
		merged["PATH"] = bin + string(os.PathListSeparator) + path
	} else {
		merged["PATH"] = bin
	}
	for k, v := range opts.Env {
		merged[k] = v
	}

	flat := make([]string, 0, len(merged))
	for k, v := range merged {
		flat = append(flat, k+"="+v)
	}

	return e.cache.procs.Run(ctx, subproc.Command{
		Argv:   argv,
		Cwd:    opts.Cwd,
		Env:    flat,
		Output: opts.Output,
	})
}
