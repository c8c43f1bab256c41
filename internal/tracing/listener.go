package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/plan"
)

// Attribute keys set on spans.
const (
	AttrPlanID     = attribute.Key("testplan.plan.id")
	AttrPlanTests  = attribute.Key("testplan.plan.tests")
	AttrEngine     = attribute.Key("testplan.engine")
	AttrUnitID     = attribute.Key("testplan.unit.id")
	AttrUnitType   = attribute.Key("testplan.unit.type")
	AttrStatus     = attribute.Key("testplan.status")
	AttrSkipReason = attribute.Key("testplan.skip.reason")
)

type span struct {
	ctx  context.Context
	span trace.Span
}

// Listener turns launcher events into spans. Units nest under their parent
// container, containers under their engine, engines under the plan.
type Listener struct {
	tracer trace.Tracer
	base   context.Context

	mu      sync.Mutex
	plan    *span
	engines map[string]*span
	units   map[descriptor.UniqueID]*span
}

// NewListener returns a Listener whose plan span is a child of any span in ctx.
func NewListener(ctx context.Context, tracer trace.Tracer) *Listener {
	return &Listener{
		tracer:  tracer,
		base:    ctx,
		engines: map[string]*span{},
		units:   map[descriptor.UniqueID]*span{},
	}
}

func (l *Listener) start(parent context.Context, name string, attrs ...attribute.KeyValue) *span {
	ctx, s := l.tracer.Start(parent, name, trace.WithAttributes(attrs...))
	return &span{ctx: ctx, span: s}
}

func (l *Listener) PlanExecutionStarted(p *plan.TestPlan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plan = l.start(l.base, "plan",
		AttrPlanID.String(p.ID()),
		AttrPlanTests.Int(p.CountTests()))
	return nil
}

func (l *Listener) EngineExecutionStarted(_ *plan.TestPlan, e engine.Engine) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.engines[e.ID()] = l.start(l.planCtx(), "engine "+e.ID(), AttrEngine.String(e.ID()))
	return nil
}

func (l *Listener) EngineExecutionFinished(_ *plan.TestPlan, e engine.Engine) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.engines[e.ID()]; ok {
		s.span.End()
		delete(l.engines, e.ID())
	}
	return nil
}

func (l *Listener) PlanExecutionFinished(*plan.TestPlan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.plan != nil {
		l.plan.span.End()
		l.plan = nil
	}
	return nil
}

func (l *Listener) ExecutionStarted(d *descriptor.Descriptor) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.units[d.ID()] = l.start(l.parentCtx(d), d.DisplayName(), unitAttrs(d)...)
	return nil
}

func (l *Listener) ExecutionSkipped(d *descriptor.Descriptor, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.start(l.parentCtx(d), d.DisplayName(), unitAttrs(d)...)
	s.span.SetAttributes(AttrStatus.String("skipped"), AttrSkipReason.String(reason))
	s.span.End()
	return nil
}

func (l *Listener) ExecutionFinished(d *descriptor.Descriptor, r engine.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.units[d.ID()]
	if !ok {
		return nil
	}
	delete(l.units, d.ID())

	s.span.SetAttributes(AttrStatus.String(r.Status.String()))
	if r.Status == engine.StatusSucceeded {
		s.span.SetStatus(codes.Ok, "")
	} else {
		desc := r.Status.String()
		if r.Err != nil {
			s.span.RecordError(r.Err)
			desc = r.Err.Error()
		}
		s.span.SetStatus(codes.Error, desc)
	}
	s.span.End()
	return nil
}

// Close ends spans left open by an aborted run.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, s := range l.units {
		s.span.SetStatus(codes.Error, "run aborted")
		s.span.End()
		delete(l.units, id)
	}
	for id, s := range l.engines {
		s.span.SetStatus(codes.Error, "run aborted")
		s.span.End()
		delete(l.engines, id)
	}
	if l.plan != nil {
		l.plan.span.SetStatus(codes.Error, "run aborted")
		l.plan.span.End()
		l.plan = nil
	}
}

func (l *Listener) planCtx() context.Context {
	if l.plan != nil {
		return l.plan.ctx
	}
	return l.base
}

func (l *Listener) parentCtx(d *descriptor.Descriptor) context.Context {
	if p := d.Parent(); p != nil {
		if s, ok := l.units[p.ID()]; ok {
			return s.ctx
		}
	}
	if s, ok := l.engines[d.ID().Engine()]; ok {
		return s.ctx
	}
	return l.planCtx()
}

func unitAttrs(d *descriptor.Descriptor) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEngine.String(d.ID().Engine()),
		AttrUnitID.String(d.ID().String()),
		AttrUnitType.String(d.Type().String()),
	}
}
