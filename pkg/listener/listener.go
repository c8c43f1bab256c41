// Package listener holds the launcher's observers and fans each event out to
// all of them, in registration order.
//
// Two kinds of observer exist: plan-level [PlanListener]s see the start and
// finish of a plan and of each engine within it; unit-level
// [engine.ExecutionListener]s see individual containers and tests as an
// engine runs them.
package listener

import (
	"fmt"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/plan"
)

// PlanListener observes plan-level execution events.
// A returned error aborts the run.
type PlanListener interface {
	PlanExecutionStarted(p *plan.TestPlan) error
	EngineExecutionStarted(p *plan.TestPlan, e engine.Engine) error
	EngineExecutionFinished(p *plan.TestPlan, e engine.Engine) error
	PlanExecutionFinished(p *plan.TestPlan) error
}

// Event names carried by Error.
const (
	EventPlanStarted    = "plan-started"
	EventEngineStarted  = "engine-started"
	EventEngineFinished = "engine-finished"
	EventPlanFinished   = "plan-finished"
	EventUnitStarted    = "unit-started"
	EventUnitSkipped    = "unit-skipped"
	EventUnitFinished   = "unit-finished"
)

// Error reports which listener failed on which event.
type Error struct {
	Event string
	Index int // position of the failing listener in registration order
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("listener %d failed on %s: %v", e.Index, e.Event, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NopPlanListener implements PlanListener with no-ops. Embed it to
// implement only some events.
type NopPlanListener struct{}

func (NopPlanListener) PlanExecutionStarted(*plan.TestPlan) error                   { return nil }
func (NopPlanListener) EngineExecutionStarted(*plan.TestPlan, engine.Engine) error  { return nil }
func (NopPlanListener) EngineExecutionFinished(*plan.TestPlan, engine.Engine) error { return nil }
func (NopPlanListener) PlanExecutionFinished(*plan.TestPlan) error                  { return nil }

// NopExecutionListener implements engine.ExecutionListener with no-ops.
type NopExecutionListener struct{}

func (NopExecutionListener) ExecutionStarted(*descriptor.Descriptor) error { return nil }
func (NopExecutionListener) ExecutionSkipped(*descriptor.Descriptor, string) error {
	return nil
}
func (NopExecutionListener) ExecutionFinished(*descriptor.Descriptor, engine.Result) error {
	return nil
}

// PlanFuncs adapts optional functions to PlanListener. Nil fields are no-ops.
type PlanFuncs struct {
	OnPlanStarted    func(p *plan.TestPlan) error
	OnEngineStarted  func(p *plan.TestPlan, e engine.Engine) error
	OnEngineFinished func(p *plan.TestPlan, e engine.Engine) error
	OnPlanFinished   func(p *plan.TestPlan) error
}

func (f PlanFuncs) PlanExecutionStarted(p *plan.TestPlan) error {
	if f.OnPlanStarted == nil {
		return nil
	}
	return f.OnPlanStarted(p)
}

func (f PlanFuncs) EngineExecutionStarted(p *plan.TestPlan, e engine.Engine) error {
	if f.OnEngineStarted == nil {
		return nil
	}
	return f.OnEngineStarted(p, e)
}

func (f PlanFuncs) EngineExecutionFinished(p *plan.TestPlan, e engine.Engine) error {
	if f.OnEngineFinished == nil {
		return nil
	}
	return f.OnEngineFinished(p, e)
}

func (f PlanFuncs) PlanExecutionFinished(p *plan.TestPlan) error {
	if f.OnPlanFinished == nil {
		return nil
	}
	return f.OnPlanFinished(p)
}

// ExecutionFuncs adapts optional functions to engine.ExecutionListener.
type ExecutionFuncs struct {
	OnStarted  func(d *descriptor.Descriptor) error
	OnSkipped  func(d *descriptor.Descriptor, reason string) error
	OnFinished func(d *descriptor.Descriptor, r engine.Result) error
}

func (f ExecutionFuncs) ExecutionStarted(d *descriptor.Descriptor) error {
	if f.OnStarted == nil {
		return nil
	}
	return f.OnStarted(d)
}

func (f ExecutionFuncs) ExecutionSkipped(d *descriptor.Descriptor, reason string) error {
	if f.OnSkipped == nil {
		return nil
	}
	return f.OnSkipped(d, reason)
}

func (f ExecutionFuncs) ExecutionFinished(d *descriptor.Descriptor, r engine.Result) error {
	if f.OnFinished == nil {
		return nil
	}
	return f.OnFinished(d, r)
}
