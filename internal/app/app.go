package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/vk/dwasgo/internal/config"
	"github.com/vk/dwasgo/internal/ctxlog"
	"github.com/vk/dwasgo/internal/dag"
	"github.com/vk/dwasgo/internal/hclconf"
	"github.com/vk/dwasgo/internal/registry"
)

// App encapsulates one fully resolved invocation: the loaded workflow, the
// built graph and the selected plan.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config

	registry *registry.Registry
	graph    *dag.Graph
	plan     *dag.Plan
}

// NewApp loads the workflow files, builds the step graph and resolves the
// selection. Any error at this stage is a configuration error: nothing has
// been executed yet. Step output goes to outW, logs to errW.
func NewApp(outW, errW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW).With("run_id", uuid.NewString())
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Default paths that are absent are simply not there; a path the user
	// named must exist.
	if !cfg.PathsDefaulted() {
		for _, path := range cfg.Paths {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("workflow path %s: %w", path, err)
			}
		}
	}

	model, err := loader.Load(ctx, cfg.Paths...)
	if err != nil {
		return nil, fmt.Errorf("loading workflow files: %w", err)
	}
	logger.Debug("Workflow files loaded into unified model.",
		"steps", len(model.Steps), "groups", len(model.Groups))

	reg := registry.New()
	if err := hclconf.Populate(model, reg); err != nil {
		return nil, fmt.Errorf("registering steps: %w", err)
	}
	logger.Debug("Registry populated.", "entries", reg.Len())

	graph, err := dag.Build(ctx, reg)
	if err != nil {
		return nil, fmt.Errorf("building step graph: %w", err)
	}
	logger.Debug("Step graph built.", "node_count", len(graph.Nodes))

	plan, err := dag.Select(ctx, graph, dag.Options{
		Only:      cfg.Only,
		Except:    cfg.Except,
		SetupOnly: cfg.SetupOnly,
		NoSetup:   cfg.NoSetup,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Selection resolved.", "selected", len(plan.Items))

	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		registry: reg,
		graph:    graph,
		plan:     plan,
	}, nil
}

// Plan exposes the resolved execution plan. This is primarily for testing.
func (a *App) Plan() *dag.Plan { return a.plan }

// Registry exposes the populated registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry { return a.registry }
