// Package funcengine is an in-process engine whose tests are plain Go
// functions grouped into suites.
//
// A test fails when its function returns an error or panics. A case with a
// non-empty Skip is reported as skipped without running. Calling T.Abort from
// inside a running test stops it and finishes it as aborted.
package funcengine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/spec"
)

// ErrUnknownTest is returned when Execute meets a test the engine never discovered.
var ErrUnknownTest = errors.New("funcengine: unknown test")

// TestFunc is the body of one test.
type TestFunc func(ctx context.Context, t *T) error

// Case is a single test.
type Case struct {
	Name string
	Tags []string
	Skip string // non-empty: report as skipped with this reason
	Func TestFunc
}

// Suite groups cases and nested suites.
type Suite struct {
	Name   string
	Tags   []string
	Cases  []Case
	Suites []Suite
}

// Engine runs registered suites.
type Engine struct {
	id     string
	suites []Suite
	cases  map[descriptor.UniqueID]Case
}

// New returns an engine with the given id over suites. Suite and case names
// should be unique among siblings; later duplicates shadow earlier ones.
func New(id string, suites ...Suite) *Engine {
	e := &Engine{id: id, suites: suites, cases: map[descriptor.UniqueID]Case{}}
	for _, s := range suites {
		e.index(descriptor.EngineID(id), s)
	}
	return e
}

func (e *Engine) index(parent descriptor.UniqueID, s Suite) {
	id := parent.Append("suite", s.Name)
	for _, c := range s.Cases {
		e.cases[id.Append("test", c.Name)] = c
	}
	for _, child := range s.Suites {
		e.index(id, child)
	}
}

func (e *Engine) ID() string { return e.id }

// Discover adds one container per suite and one test per case. Tags are
// inherited from enclosing suites.
func (e *Engine) Discover(_ context.Context, _ *spec.Specification, root *descriptor.Descriptor) error {
	for _, s := range e.suites {
		if err := addSuite(root, s, nil); err != nil {
			return err
		}
	}
	return nil
}

func addSuite(parent *descriptor.Descriptor, s Suite, inherited []string) error {
	tags := append(append([]string(nil), inherited...), s.Tags...)
	node := descriptor.NewContainer(parent.ID().Append("suite", s.Name), s.Name, descriptor.WithTags(tags...))
	if err := parent.AddChild(node); err != nil {
		return err
	}
	for _, c := range s.Cases {
		caseTags := append(append([]string(nil), tags...), c.Tags...)
		test := descriptor.NewTest(node.ID().Append("test", c.Name), c.Name, descriptor.WithTags(caseTags...))
		if err := node.AddChild(test); err != nil {
			return err
		}
	}
	for _, child := range s.Suites {
		if err := addSuite(node, child, tags); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the retained tree depth first in discovery order.
func (e *Engine) Execute(ctx context.Context, ec engine.ExecutionContext) error {
	for _, child := range ec.Root.Children() {
		if err := e.execute(ctx, child, ec.Listener); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, d *descriptor.Descriptor, l engine.ExecutionListener) error {
	if d.IsTest() {
		return e.executeTest(ctx, d, l)
	}
	start := time.Now()
	if err := l.ExecutionStarted(d); err != nil {
		return err
	}
	for _, child := range d.Children() {
		if err := e.execute(ctx, child, l); err != nil {
			return err
		}
	}
	return l.ExecutionFinished(d, engine.Succeeded(time.Since(start)))
}

func (e *Engine) executeTest(ctx context.Context, d *descriptor.Descriptor, l engine.ExecutionListener) error {
	c, ok := e.cases[d.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTest, d.ID())
	}
	if c.Skip != "" {
		return l.ExecutionSkipped(d, c.Skip)
	}
	if err := l.ExecutionStarted(d); err != nil {
		return err
	}
	return l.ExecutionFinished(d, run(ctx, d.DisplayName(), c.Func))
}

func run(ctx context.Context, name string, fn TestFunc) (res engine.Result) {
	t := &T{name: name}
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		res.Output = t.output
	}()

	if err := ctx.Err(); err != nil {
		return engine.Result{Status: engine.StatusAborted, Err: err}
	}
	if fn == nil {
		return engine.Result{Status: engine.StatusSucceeded}
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if s, ok := r.(abortSignal); ok {
			res = engine.Result{Status: engine.StatusAborted, Err: &AbortError{Reason: s.reason}}
			return
		}
		t.output = append(t.output, string(debug.Stack()))
		res = engine.Result{Status: engine.StatusFailed, Err: fmt.Errorf("panic: %v", r)}
	}()

	if err := fn(ctx, t); err != nil {
		return engine.Result{Status: engine.StatusFailed, Err: err}
	}
	return engine.Result{Status: engine.StatusSucceeded}
}
