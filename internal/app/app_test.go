package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/dwasgo/internal/config"
)

// fakeLoader serves a prebuilt model, standing in for the HCL loader.
type fakeLoader struct {
	model *config.Model
	err   error
}

func (f *fakeLoader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	return f.model, f.err
}

func ciModel() *config.Model {
	return &config.Model{
		Steps: []*config.Step{
			{Name: "package", Description: "Build the distribution"},
			{Name: "pytest", Description: "Run the test suite", Requires: []string{"package"}},
			{Name: "lint"},
		},
		Groups: []*config.Group{
			{Name: "ci", Description: "Everything the pipeline runs", Requires: []string{"lint", "pytest"}},
		},
	}
}

func newTestApp(t *testing.T, cfg Config, model *config.Model) (*App, *bytes.Buffer) {
	t.Helper()
	validated, err := NewConfig(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	application, err := NewApp(&out, &bytes.Buffer{}, validated, &fakeLoader{model: model})
	require.NoError(t, err)
	return application, &out
}

func TestNewConfigValidation(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := NewConfig(Config{})
		require.NoError(t, err)
		assert.Equal(t, DefaultPaths, cfg.Paths)
		assert.Equal(t, ".dwasgo", cfg.CachePath)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("bad log format", func(t *testing.T) {
		_, err := NewConfig(Config{LogFormat: "yaml"})
		require.Error(t, err)
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := NewConfig(Config{LogLevel: "trace"})
		require.Error(t, err)
	})

	t.Run("negative jobs", func(t *testing.T) {
		_, err := NewConfig(Config{Jobs: -1})
		require.Error(t, err)
	})

	t.Run("setup-only with no-setup", func(t *testing.T) {
		_, err := NewConfig(Config{SetupOnly: true, NoSetup: true})
		require.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var out bytes.Buffer
		newLogger("info", "json", &out).Info("ready", "step", "lint")
		assert.Contains(t, out.String(), `"msg":"ready"`)
		assert.Contains(t, out.String(), `"step":"lint"`)
	})

	t.Run("text format", func(t *testing.T) {
		var out bytes.Buffer
		newLogger("info", "text", &out).Info("ready")
		assert.Contains(t, out.String(), "msg=ready")
	})

	t.Run("level filtering", func(t *testing.T) {
		var out bytes.Buffer
		logger := newLogger("warn", "text", &out)
		logger.Info("quiet")
		logger.Warn("loud")
		assert.NotContains(t, out.String(), "quiet")
		assert.Contains(t, out.String(), "loud")
	})
}

func TestNewAppBuildsPlan(t *testing.T) {
	application, _ := newTestApp(t, Config{}, ciModel())

	keys := application.Plan().Keys()
	assert.ElementsMatch(t, []string{"package", "pytest", "lint", "ci"}, keys)
}

func TestNewAppLoaderError(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)

	_, err = NewApp(&bytes.Buffer{}, &bytes.Buffer{}, cfg, &fakeLoader{err: assert.AnError})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading workflow files")
}

func TestNewAppExplicitPathMustExist(t *testing.T) {
	cfg, err := NewConfig(Config{Paths: []string{"/nonexistent/dwasfile.hcl"}})
	require.NoError(t, err)
	assert.False(t, cfg.PathsDefaulted())

	_, err = NewApp(&bytes.Buffer{}, &bytes.Buffer{}, cfg, &fakeLoader{model: ciModel()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/dwasfile.hcl")
}

func TestNewAppAbsentDefaultPathsAreTolerated(t *testing.T) {
	// The default locations rarely all exist; their absence is for the
	// loader to judge, not a hard error up front.
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)
	assert.True(t, cfg.PathsDefaulted())

	_, err = NewApp(&bytes.Buffer{}, &bytes.Buffer{}, cfg, &fakeLoader{model: ciModel()})
	require.NoError(t, err)
}

func TestNewAppUnknownRequire(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)

	model := &config.Model{Steps: []*config.Step{{Name: "a", Requires: []string{"ghost"}}}}
	_, err = NewApp(&bytes.Buffer{}, &bytes.Buffer{}, cfg, &fakeLoader{model: model})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestListOutput(t *testing.T) {
	application, out := newTestApp(t, Config{List: true, Only: []string{"pytest"}}, ciModel())
	require.NoError(t, application.Run(context.Background()))

	listing := out.String()
	assert.Contains(t, listing, "* package")
	assert.Contains(t, listing, "* pytest")
	assert.Contains(t, listing, "- lint")
	assert.Contains(t, listing, "- ci")
	// Selected steps come first, in execution order.
	assert.Less(t,
		bytes.Index(out.Bytes(), []byte("* package")),
		bytes.Index(out.Bytes(), []byte("* pytest")))
}

func TestListVerboseShowsDescriptions(t *testing.T) {
	application, out := newTestApp(t, Config{List: true, Verbose: true}, ciModel())
	require.NoError(t, application.Run(context.Background()))

	assert.Contains(t, out.String(), "Run the test suite")
}

func TestListDependenciesShowsRequires(t *testing.T) {
	application, out := newTestApp(t, Config{List: true, ListDependencies: true}, ciModel())
	require.NoError(t, application.Run(context.Background()))

	assert.Contains(t, out.String(), "--> package")
	assert.Contains(t, out.String(), "--> lint, pytest")
}

func TestRunNothingSelected(t *testing.T) {
	application, _ := newTestApp(t, Config{}, &config.Model{})
	assert.NoError(t, application.Run(context.Background()))
}
