package scheduler

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vk/dwasgo/internal/ctxlog"
	"github.com/vk/dwasgo/internal/dag"
	"github.com/vk/dwasgo/internal/registry"
)

// EnvProvider is what the scheduler needs from the environment cache.
type EnvProvider interface {
	// Ensure prepares (or reuses) the environment for a node identity.
	// Safe under concurrent invocation with different identities.
	Ensure(ctx context.Context, identity string, deps []string) (registry.Environment, error)
	// Open returns a handle without preparing anything, for run-only
	// invocations where a previous run did the setup.
	Open(identity string) registry.Environment
}

// Options configure one Execute call.
type Options struct {
	// Parallelism bounds the number of concurrently running nodes.
	// Zero or negative means the host's CPU count.
	Parallelism int
	// FailFast stops dispatching new nodes after the first failure and
	// cancels everything not yet started.
	FailFast bool
	// UserArgs are forwarded verbatim to every step body.
	UserArgs []string
	// OutW receives each node's captured output, one atomic block per
	// node. Nil discards.
	OutW io.Writer
	// LogDir, when non-empty, receives one log file per executed node.
	LogDir string
}

// Executor runs one plan to completion. Create one per invocation.
type Executor struct {
	graph *dag.Graph
	plan  *dag.Plan
	envs  EnvProvider
	opts  Options

	tasks map[string]*task
	wg    sync.WaitGroup
	// stopped latches when fail-fast triggers; nothing new is dispatched
	// after it is set.
	stopped atomic.Bool

	mu      sync.Mutex
	results Results

	outMu sync.Mutex
}

// task pairs a plan item with its scheduling state. Terminal transitions
// go through once, so each node is finished exactly one time by exactly
// one goroutine.
type task struct {
	node *dag.Node
	item *dag.PlanItem

	depCount   atomic.Int32
	dependents []*task
	once       sync.Once
}

// New creates an Executor for the given plan over the given graph.
func New(graph *dag.Graph, plan *dag.Plan, envs EnvProvider, opts Options) *Executor {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	return &Executor{
		graph:   graph,
		plan:    plan,
		envs:    envs,
		opts:    opts,
		tasks:   make(map[string]*task, len(plan.Items)),
		results: make(Results, len(plan.Items)),
	}
}

// Run executes every node in the plan and returns the per-node results.
// It returns once every node is terminal. The error is non-nil when any
// node failed, was skipped, or was cancelled.
func (e *Executor) Run(ctx context.Context) (Results, error) {
	logger := ctxlog.FromContext(ctx)

	for _, item := range e.plan.Items {
		e.tasks[item.Key] = &task{node: e.graph.Nodes[item.Key], item: item}
	}
	for _, t := range e.tasks {
		deps := 0
		for reqKey := range t.node.Requires {
			req, ok := e.tasks[reqKey]
			if !ok {
				// Selection closes plans over requires; a missing entry
				// would be a bug in the selector.
				continue
			}
			req.dependents = append(req.dependents, t)
			deps++
		}
		t.depCount.Store(int32(deps))
	}

	// Buffered to the full plan: enqueueing never blocks, since each
	// task is enqueued at most once.
	ready := make(chan *task, len(e.tasks))
	for _, item := range e.plan.Items {
		t := e.tasks[item.Key]
		if t.depCount.Load() == 0 {
			ready <- t
		}
	}

	e.wg.Add(len(e.tasks))
	workers := e.opts.Parallelism
	logger.Debug("Starting worker pool.", "workers", workers, "nodes", len(e.tasks))
	for i := 0; i < workers; i++ {
		go e.worker(ctx, ready)
	}

	e.wg.Wait()
	close(ready)
	logger.Debug("All nodes terminal.")

	return e.results, e.summarize()
}

// worker is the processing loop for one concurrent execution slot.
func (e *Executor) worker(ctx context.Context, ready chan *task) {
	for t := range ready {
		switch {
		case ctx.Err() != nil:
			e.cancel(t, context.Cause(ctx))
		case e.stopped.Load():
			e.cancel(t, nil)
		default:
			e.execute(ctx, t, ready)
		}
	}
}

func (e *Executor) execute(ctx context.Context, t *task, ready chan *task) {
	logger := ctxlog.FromContext(ctx).With("step", t.node.Key)
	logger.Info("Starting step.")

	res := e.runNode(ctx, t)
	switch res.Status {
	case StatusCancelled:
		// Interrupted mid-run. Dependents can no longer become ready and
		// share the cancellation, not a skip.
		logger.Warn("Step cancelled while running.", "duration", res.Duration)
		e.finish(t, res)
		for _, dep := range t.dependents {
			e.cancel(dep, res.Err)
		}
	case StatusFailed:
		logger.Error("Step failed.", "error", res.Err, "duration", res.Duration)
		e.finish(t, res)
		if e.opts.FailFast {
			logger.Warn("Fail-fast: cancelling everything not yet started.")
			e.stopped.Store(true)
		}
		e.skipDependents(ctx, t)
	default:
		logger.Info("Step finished successfully.", "duration", res.Duration)
		e.finish(t, res)
		for _, dep := range t.dependents {
			if dep.depCount.Add(-1) == 0 {
				ready <- dep
			}
		}
	}
}

// finish records the terminal result for a task. The once guarantees the
// result is written a single time no matter how many paths reach it.
func (e *Executor) finish(t *task, res *Result) {
	t.once.Do(func() {
		e.mu.Lock()
		e.results[t.node.Key] = res
		e.mu.Unlock()
		e.wg.Done()
	})
}

// cancel marks a never-started task Cancelled and cascades to its
// dependents, which can no longer become ready.
func (e *Executor) cancel(t *task, cause error) {
	t.once.Do(func() {
		e.mu.Lock()
		e.results[t.node.Key] = &Result{Status: StatusCancelled, Err: cause}
		e.mu.Unlock()
		e.wg.Done()
		for _, dep := range t.dependents {
			e.cancel(dep, cause)
		}
	})
}

// skipDependents transitively marks everything requiring t as Skipped,
// each dependent carrying the name of the predecessor that caused it.
func (e *Executor) skipDependents(ctx context.Context, t *task) {
	logger := ctxlog.FromContext(ctx)
	for _, dep := range t.dependents {
		dep.once.Do(func() {
			logger.Warn("Skipping step: required step did not succeed.",
				"step", dep.node.Key, "required", t.node.Key)
			e.mu.Lock()
			e.results[dep.node.Key] = &Result{
				Status:  StatusSkipped,
				Because: t.node.Key,
				Err:     fmt.Errorf("required step %q did not succeed", t.node.Key),
			}
			e.mu.Unlock()
			e.wg.Done()
			e.skipDependents(ctx, dep)
		})
	}
}

func (e *Executor) summarize() error {
	_, failed, skipped, cancelled := e.results.Tally()
	if failed == 0 && skipped == 0 && cancelled == 0 {
		return nil
	}

	var cause error
	// Plan order makes "first failure" deterministic.
	for _, item := range e.plan.Items {
		if res := e.results[item.Key]; res != nil && res.Status == StatusFailed {
			cause = res.Err
			break
		}
	}
	return &FailedRunError{Failed: failed, Skipped: skipped, Cancelled: cancelled, Cause: cause}
}
