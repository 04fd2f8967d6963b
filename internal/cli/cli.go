package cli

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vk/dwasgo/internal/app"
	"github.com/vk/dwasgo/internal/hclconf"
	"github.com/vk/dwasgo/internal/scheduler"
)

// Exit codes: 1 for a failed run, 2 for a configuration error.
const (
	ExitRunFailed   = 1
	ExitConfigError = 2
)

// addOptsVar is the environment variable whose contents are prepended to
// the command line, so a CI job can inject flags without editing commands.
const addOptsVar = "DWASGO_ADDOPTS"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Execute parses args, runs the selected pipeline and maps every failure
// to an ExitError carrying the process exit code.
func Execute(outW, errW io.Writer, args []string) error {
	cmd := NewRootCommand(outW, errW)
	cmd.SetArgs(withAddOpts(args))
	cmd.SetOut(outW)
	cmd.SetErr(errW)

	err := cmd.Execute()
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Everything cobra reports itself (unknown flags, bad values) is a
	// configuration error.
	return &ExitError{Code: ExitConfigError, Message: err.Error()}
}

// NewRootCommand builds the one and only command of the tool.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	var cfg app.Config
	var files []string

	cmd := &cobra.Command{
		Use:   "dwasgo [flags] [STEP...] [-- args passed to steps]",
		Short: "A workflow runner executing declared steps in isolated, cached environments.",
		Long: `dwasgo loads step declarations from HCL workflow files, resolves their
dependency graph and runs the selected steps concurrently, each inside its
own cached environment. Positional arguments select steps to run, like
--only. Arguments after -- are forwarded verbatim to every executed step.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindSettings(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if at := cmd.ArgsLenAtDash(); at >= 0 {
				cfg.UserArgs = args[at:]
				args = args[:at]
			}
			cfg.Only = append(cfg.Only, args...)
			cfg.Paths = files

			return run(cmd, outW, errW, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&files, "file", "f", nil, "Workflow file or directory to load. Repeatable. Defaults to dwasfile.hcl, then the .dwas directory.")
	flags.StringVar(&cfg.CachePath, "cache-path", ".dwasgo", "Directory holding cached environments and logs.")
	flags.StringSliceVarP(&cfg.Only, "only", "o", nil, "Run only the named steps and what they require. Repeatable.")
	flags.StringSliceVarP(&cfg.Except, "except", "e", nil, "Remove the named steps from the default selection. Repeatable.")
	flags.BoolVar(&cfg.SetupOnly, "setup-only", false, "Prepare environments without running anything.")
	flags.BoolVar(&cfg.NoSetup, "no-setup", false, "Skip environment preparation, assuming a previous run did it.")
	flags.BoolVar(&cfg.FailFast, "fail-fast", false, "Cancel everything not yet started after the first failure.")
	flags.BoolVar(&cfg.FailFast, "ff", false, "Alias for --fail-fast.")
	flags.IntVarP(&cfg.Jobs, "jobs", "j", 0, "Maximum number of steps running concurrently. 0 means the CPU count.")
	flags.BoolVarP(&cfg.Clean, "clean", "c", false, "Rebuild every environment instead of reusing cached ones.")
	flags.BoolVarP(&cfg.List, "list", "l", false, "List the known steps and the current selection, without running.")
	flags.BoolVar(&cfg.ListDependencies, "list-dependencies", false, "Like --list, additionally showing each step's requirements.")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Show step descriptions in list mode.")
	flags.StringVar(&cfg.LogFormat, "log-format", "text", "Log output format: 'text' or 'json'.")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Logging level: 'debug', 'info', 'warn' or 'error'.")
	_ = flags.MarkHidden("ff")

	return cmd
}

func run(cmd *cobra.Command, outW, errW io.Writer, cfg app.Config) error {
	validated, err := app.NewConfig(cfg)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Message: err.Error()}
	}
	if validated.ListDependencies {
		validated.List = true
	}

	application, err := app.NewApp(outW, errW, validated, hclconf.NewLoader())
	if err != nil {
		return &ExitError{Code: ExitConfigError, Message: err.Error()}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		var failed *scheduler.FailedRunError
		if errors.As(err, &failed) {
			return &ExitError{Code: ExitRunFailed, Message: failed.Error()}
		}
		return &ExitError{Code: ExitRunFailed, Message: err.Error()}
	}
	return nil
}

// bindSettings lets the environment and an optional dwasgo.yaml file fill
// in any flag the command line left untouched. Precedence is flags, then
// environment, then file, then flag defaults.
func bindSettings(flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetConfigName("dwasgo")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return &ExitError{Code: ExitConfigError, Message: err.Error()}
		}
	}
	v.SetEnvPrefix("DWASGO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := f.Value.Set(v.GetString(f.Name)); err != nil && bindErr == nil {
			bindErr = &ExitError{
				Code:    ExitConfigError,
				Message: "invalid value for " + f.Name + ": " + err.Error(),
			}
		}
	})
	return bindErr
}

// withAddOpts prepends the contents of DWASGO_ADDOPTS to the argument list.
func withAddOpts(args []string) []string {
	extra := strings.Fields(os.Getenv(addOptsVar))
	if len(extra) == 0 {
		return args
	}
	return append(extra, args...)
}
