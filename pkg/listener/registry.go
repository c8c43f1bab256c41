package listener

import (
	"slices"
	"sync"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/plan"
)

// Registry holds ordered plan-level and unit-level listeners.
// There is no unregistration.
type Registry struct {
	mu   sync.Mutex
	plan []PlanListener
	exec []engine.ExecutionListener
}

// RegisterPlanListeners appends listeners, skipping nils.
func (r *Registry) RegisterPlanListeners(ls ...PlanListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range ls {
		if l != nil {
			r.plan = append(r.plan, l)
		}
	}
}

// RegisterExecutionListeners appends listeners, skipping nils.
func (r *Registry) RegisterExecutionListeners(ls ...engine.ExecutionListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range ls {
		if l != nil {
			r.exec = append(r.exec, l)
		}
	}
}

// CompositePlanListener returns a listener that dispatches to the plan
// listeners registered so far. Later registrations do not affect it.
func (r *Registry) CompositePlanListener() PlanListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return compositePlan(slices.Clone(r.plan))
}

// CompositeExecutionListener returns a listener that dispatches to the unit
// listeners registered so far. Later registrations do not affect it.
func (r *Registry) CompositeExecutionListener() engine.ExecutionListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return compositeExec(slices.Clone(r.exec))
}

// dispatch calls fn for each listener in order and stops at the first error.
func dispatch[L any](ls []L, event string, fn func(L) error) error {
	for i, l := range ls {
		if err := fn(l); err != nil {
			return &Error{Event: event, Index: i, Err: err}
		}
	}
	return nil
}

type compositePlan []PlanListener

func (c compositePlan) PlanExecutionStarted(p *plan.TestPlan) error {
	return dispatch(c, EventPlanStarted, func(l PlanListener) error {
		return l.PlanExecutionStarted(p)
	})
}

func (c compositePlan) EngineExecutionStarted(p *plan.TestPlan, e engine.Engine) error {
	return dispatch(c, EventEngineStarted, func(l PlanListener) error {
		return l.EngineExecutionStarted(p, e)
	})
}

func (c compositePlan) EngineExecutionFinished(p *plan.TestPlan, e engine.Engine) error {
	return dispatch(c, EventEngineFinished, func(l PlanListener) error {
		return l.EngineExecutionFinished(p, e)
	})
}

func (c compositePlan) PlanExecutionFinished(p *plan.TestPlan) error {
	return dispatch(c, EventPlanFinished, func(l PlanListener) error {
		return l.PlanExecutionFinished(p)
	})
}

type compositeExec []engine.ExecutionListener

func (c compositeExec) ExecutionStarted(d *descriptor.Descriptor) error {
	return dispatch(c, EventUnitStarted, func(l engine.ExecutionListener) error {
		return l.ExecutionStarted(d)
	})
}

func (c compositeExec) ExecutionSkipped(d *descriptor.Descriptor, reason string) error {
	return dispatch(c, EventUnitSkipped, func(l engine.ExecutionListener) error {
		return l.ExecutionSkipped(d, reason)
	})
}

func (c compositeExec) ExecutionFinished(d *descriptor.Descriptor, r engine.Result) error {
	return dispatch(c, EventUnitFinished, func(l engine.ExecutionListener) error {
		return l.ExecutionFinished(d, r)
	})
}
