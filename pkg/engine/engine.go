// Package engine defines the plugin contract between the launcher and the
// backends ("test engines") that discover and execute their own kind of test.
//
// # Contract
//
//   - Discover populates the subtree of a fresh engine root. It may use the
//     specification's selectors as hints but must not apply its filters;
//     filtering is the launcher's job.
//   - Execute walks the already filtered and pruned root it is given, and
//     reports start/skip/finish for every retained node through the
//     context's listener. It must not execute nodes outside that tree.
//
// Listener errors must be returned from Execute unchanged (possibly wrapped)
// so that a failing observer aborts the run.
package engine

import (
	"context"
	"time"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/spec"
)

// Engine discovers and executes one kind of test unit.
type Engine interface {
	// ID is the stable identity of the engine. It keys the engine's tree in a plan.
	ID() string

	// Discover populates root with the engine's containers and tests.
	Discover(ctx context.Context, s *spec.Specification, root *descriptor.Descriptor) error

	// Execute runs the retained tree in ec.Root, reporting through ec.Listener.
	Execute(ctx context.Context, ec ExecutionContext) error
}

// ExecutionContext bundles what an engine needs to execute its retained tree.
type ExecutionContext struct {
	Root     *descriptor.Descriptor
	Listener ExecutionListener
}

// ExecutionListener observes unit-level execution events.
// A returned error aborts the run.
type ExecutionListener interface {
	ExecutionStarted(d *descriptor.Descriptor) error
	ExecutionSkipped(d *descriptor.Descriptor, reason string) error
	ExecutionFinished(d *descriptor.Descriptor, r Result) error
}

// Status is the outcome of an executed unit.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	// StatusAborted means the unit started but could not complete
	// (build failure, cancellation, broken fixture).
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result reports how a unit finished.
type Result struct {
	Status   Status
	Err      error
	Duration time.Duration
	Output   []string
}

// Succeeded returns a successful Result.
func Succeeded(d time.Duration) Result {
	return Result{Status: StatusSucceeded, Duration: d}
}

// Failed returns a failed Result carrying err.
func Failed(err error, d time.Duration) Result {
	return Result{Status: StatusFailed, Err: err, Duration: d}
}
