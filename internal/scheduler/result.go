package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Status is the terminal state of one node.
type Status int

const (
	// StatusSuccess means setup and run both completed.
	StatusSuccess Status = iota
	// StatusFailed means setup or run returned an error.
	StatusFailed
	// StatusSkipped means a required predecessor failed or was skipped.
	StatusSkipped
	// StatusCancelled means the invocation was cut short, by fail-fast
	// or an interrupt, before or while the node was running.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the immutable outcome of one node, produced exactly once per
// invocation.
type Result struct {
	Status Status
	// Err carries the original cause for a failure.
	Err error
	// Because names the predecessor responsible for a skip.
	Because string
	// Duration is the wall time spent running the node. Zero for nodes
	// that never started.
	Duration time.Duration
}

// Results maps node keys to their outcomes.
type Results map[string]*Result

// Tally counts results per terminal status.
func (r Results) Tally() (success, failed, skipped, cancelled int) {
	for _, res := range r {
		switch res.Status {
		case StatusSuccess:
			success++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		case StatusCancelled:
			cancelled++
		}
	}
	return
}

// FailedRunError summarizes a run in which not every node succeeded.
type FailedRunError struct {
	Failed    int
	Skipped   int
	Cancelled int
	// Cause is the first real failure, when there is one.
	Cause error
}

func (e *FailedRunError) Error() string {
	var parts []string
	if e.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%s failed", pluralize(e.Failed)))
	}
	if e.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%s could not run", pluralize(e.Skipped)))
	}
	if e.Cancelled > 0 {
		parts = append(parts, fmt.Sprintf("%s cancelled", pluralize(e.Cancelled)))
	}
	if len(parts) == 0 {
		return "run failed"
	}
	return strings.Join(parts, ", ")
}

// Unwrap exposes the first failure's cause.
func (e *FailedRunError) Unwrap() error { return e.Cause }

func pluralize(n int) string {
	if n == 1 {
		return "1 job"
	}
	return fmt.Sprintf("%d jobs", n)
}
