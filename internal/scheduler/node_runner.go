package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/dwasgo/internal/ctxlog"
	"github.com/vk/dwasgo/internal/dag"
	"github.com/vk/dwasgo/internal/registry"
)

// runNode executes one node through its phases and maps any error to a
// terminal result with the captured cause. An error that only reports the
// invocation's own cancellation is a Cancelled outcome, not a failure: the
// step did not break, it was interrupted.
func (e *Executor) runNode(ctx context.Context, t *task) *Result {
	start := time.Now()
	err := e.invoke(ctx, t)
	res := &Result{Status: StatusSuccess, Duration: time.Since(start)}
	switch {
	case err == nil:
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		res.Status = StatusCancelled
		res.Err = err
	default:
		res.Status = StatusFailed
		res.Err = err
	}
	return res
}

func (e *Executor) invoke(ctx context.Context, t *task) error {
	logger := ctxlog.FromContext(ctx).With("step", t.node.Key)

	if t.node.Group {
		// Aggregators have no work of their own; reaching one means all
		// of its members already succeeded.
		logger.Debug("Group node, nothing to run.")
		return nil
	}

	spec := t.node.Spec
	var env registry.Environment
	if t.item.Phase == dag.PhaseRunOnly {
		logger.Debug("Skipping setup phase.")
		env = e.envs.Open(t.node.Key)
	} else {
		var err error
		env, err = e.envs.Ensure(ctx, t.node.Key, spec.Dependencies)
		if err != nil {
			return fmt.Errorf("setting up environment: %w", err)
		}
	}

	if t.item.Phase == dag.PhaseSetupOnly {
		logger.Debug("Setup-only invocation, skipping run phase.")
		return nil
	}
	if spec.Body == nil {
		return nil
	}

	var output bytes.Buffer
	rc := &registry.RunContext{
		Name:     t.node.Key,
		Params:   t.node.Params,
		UserArgs: e.opts.UserArgs,
		Env:      env,
		Output:   &output,
	}
	err := spec.Body.Run(ctx, rc)
	e.flushOutput(ctx, t.node.Key, &output)
	return err
}

// flushOutput reports a node's captured output as one atomic unit, so
// concurrently running nodes never interleave within a single stream, and
// mirrors it to the per-node log file.
func (e *Executor) flushOutput(ctx context.Context, key string, output *bytes.Buffer) {
	if e.opts.LogDir != "" {
		path := filepath.Join(e.opts.LogDir, logFileName(key))
		if err := os.MkdirAll(e.opts.LogDir, 0o755); err == nil {
			if err := os.WriteFile(path, output.Bytes(), 0o644); err != nil {
				ctxlog.FromContext(ctx).Warn("Could not write step log file.", "path", path, "error", err)
			}
		}
	}

	if e.opts.OutW == nil || output.Len() == 0 {
		return
	}
	e.outMu.Lock()
	defer e.outMu.Unlock()
	fmt.Fprintf(e.opts.OutW, "--- %s ---\n", key)
	e.opts.OutW.Write(output.Bytes())
	if !bytes.HasSuffix(output.Bytes(), []byte("\n")) {
		fmt.Fprintln(e.opts.OutW)
	}
}

func logFileName(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		default:
			return r
		}
	}, key)
	return safe + ".log"
}
