// Package launcher drives the discover → filter → prune → execute pipeline
// over every registered engine and broadcasts lifecycle events to listeners.
//
// Everything runs synchronously on the caller's goroutine, one engine at a
// time, in registry order. Nothing is retried or suppressed: any engine,
// filter, or listener failure aborts the call and is returned.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/listener"
	"github.com/dkoosis/testplan/pkg/plan"
	"github.com/dkoosis/testplan/pkg/spec"
)

// ErrEngineNotInPlan means a plan has no tree for a registered engine: the
// plan was built against a different engine set than the one now registered.
var ErrEngineNotInPlan = errors.New("launcher: engine missing from test plan")

// Phase names used in EngineError.
const (
	PhaseDiscover = "discover"
	PhaseFilter   = "filter"
	PhasePrune    = "prune"
	PhaseExecute  = "execute"
)

// EngineError wraps a failure attributed to one engine.
type EngineError struct {
	EngineID string
	Phase    string
	Err      error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %q: %s: %v", e.EngineID, e.Phase, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Launcher discovers and executes tests across the engines of one registry.
type Launcher struct {
	engines   *engine.Registry
	listeners listener.Registry
	logger    *slog.Logger
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithLogger sets the logger used for debug diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns a launcher over engines.
func New(engines *engine.Registry, opts ...Option) *Launcher {
	l := &Launcher{
		engines: engines,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// RegisterPlanListeners appends plan-level listeners.
func (l *Launcher) RegisterPlanListeners(ls ...listener.PlanListener) {
	l.listeners.RegisterPlanListeners(ls...)
}

// RegisterExecutionListeners appends unit-level listeners.
func (l *Launcher) RegisterExecutionListeners(ls ...engine.ExecutionListener) {
	l.listeners.RegisterExecutionListeners(ls...)
}

// Discover asks every engine to populate a fresh tree, filters its tests
// against s, prunes empty containers, and collects the results into a plan.
// No listener is notified. A failure for any engine returns no plan.
func (l *Launcher) Discover(ctx context.Context, s *spec.Specification) (*plan.TestPlan, error) {
	b := plan.NewBuilder()
	for _, e := range l.engines.Engines() {
		root, err := l.discoverEngine(ctx, e, s)
		if err != nil {
			return nil, err
		}
		if err := b.Add(e.ID(), root); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func (l *Launcher) discoverEngine(ctx context.Context, e engine.Engine, s *spec.Specification) (*descriptor.Descriptor, error) {
	root := descriptor.NewEngineRoot(e.ID(), e.ID())
	if err := e.Discover(ctx, s, root); err != nil {
		return nil, &EngineError{EngineID: e.ID(), Phase: PhaseDiscover, Err: err}
	}
	discovered := root.CountTests()

	if err := descriptor.Filter(root, s.AcceptDescriptor); err != nil {
		return nil, &EngineError{EngineID: e.ID(), Phase: PhaseFilter, Err: err}
	}
	if err := descriptor.Prune(root); err != nil {
		return nil, &EngineError{EngineID: e.ID(), Phase: PhasePrune, Err: err}
	}

	l.logger.Debug("engine discovered",
		slog.String("engine", e.ID()),
		slog.Int("discovered", discovered),
		slog.Int("retained", root.CountTests()))
	return root, nil
}

// Execute discovers a plan for s and executes it.
func (l *Launcher) Execute(ctx context.Context, s *spec.Specification) error {
	p, err := l.Discover(ctx, s)
	if err != nil {
		return err
	}
	return l.ExecutePlan(ctx, p)
}

// ExecutePlan runs a previously discovered plan. Engines run one after another
// in registry order, each bracketed by engine started/finished events, all
// bracketed by one plan started/finished pair.
func (l *Launcher) ExecutePlan(ctx context.Context, p *plan.TestPlan) error {
	planListener := l.listeners.CompositePlanListener()
	execListener := l.listeners.CompositeExecutionListener()

	l.logger.Debug("plan execution started",
		slog.String("plan", p.ID()),
		slog.Int("tests", p.CountTests()))

	if err := planListener.PlanExecutionStarted(p); err != nil {
		return err
	}
	for _, e := range l.engines.Engines() {
		if err := planListener.EngineExecutionStarted(p, e); err != nil {
			return err
		}
		root, ok := p.Root(e.ID())
		if !ok {
			return fmt.Errorf("%w: %q", ErrEngineNotInPlan, e.ID())
		}
		ec := engine.ExecutionContext{Root: root, Listener: execListener}
		if err := e.Execute(ctx, ec); err != nil {
			return &EngineError{EngineID: e.ID(), Phase: PhaseExecute, Err: err}
		}
		if err := planListener.EngineExecutionFinished(p, e); err != nil {
			return err
		}
	}
	if err := planListener.PlanExecutionFinished(p); err != nil {
		return err
	}

	l.logger.Debug("plan execution finished", slog.String("plan", p.ID()))
	return nil
}
