// Package subproc runs the external processes invoked by step bodies.
// Every process gets its own process group so that cancellation can
// terminate the whole tree, with a capped grace period before escalating.
package subproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/vk/dwasgo/internal/ctxlog"
)

// DefaultGrace is how long a cancelled process gets to exit after the
// termination request before it is forcibly killed.
const DefaultGrace = 5 * time.Second

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Argv []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q returned exit status %d", strings.Join(e.Argv, " "), e.Code)
}

// Command describes one external process invocation.
type Command struct {
	Argv []string
	Cwd  string
	// Env is the complete environment for the process, not an overlay.
	Env []string
	// Output receives combined stdout and stderr. Nil discards.
	Output io.Writer
}

// Manager runs external commands with uniform cancellation behavior.
type Manager struct {
	// Grace overrides DefaultGrace when positive.
	Grace time.Duration
}

// Run starts the command and waits for it. When ctx is cancelled the
// process group receives SIGTERM; if it is still alive after the grace
// period it is killed. A non-zero exit is returned as *ExitError.
func (m *Manager) Run(ctx context.Context, command Command) error {
	if len(command.Argv) == 0 {
		return errors.New("empty command")
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running command.", "argv", command.Argv, "cwd", command.Cwd)

	cmd := exec.CommandContext(ctx, command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Cwd
	cmd.Env = command.Env
	if command.Output != nil {
		cmd.Stdout = command.Output
		cmd.Stderr = command.Output
	}

	// New process group, so the termination request reaches children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		logger.Warn("Terminating command.", "argv", command.Argv)
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = m.grace()

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// The process died because we asked it to.
		return ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Argv: command.Argv, Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("running %q: %w", command.Argv[0], err)
}

func (m *Manager) grace() time.Duration {
	if m.Grace > 0 {
		return m.Grace
	}
	return DefaultGrace
}
