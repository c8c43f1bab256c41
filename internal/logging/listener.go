package logging

import (
	"log/slog"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/plan"
)

// Listener logs plan and unit events. It never fails the run.
type Listener struct {
	logger *slog.Logger
}

// NewListener returns a Listener logging to logger at debug level.
func NewListener(logger *slog.Logger) *Listener {
	return &Listener{logger: logger.With(slog.String("subsystem", "events"))}
}

func (l *Listener) PlanExecutionStarted(p *plan.TestPlan) error {
	l.logger.Debug("plan started", slog.String("plan", p.ID()), slog.Int("tests", p.CountTests()))
	return nil
}

func (l *Listener) EngineExecutionStarted(p *plan.TestPlan, e engine.Engine) error {
	l.logger.Debug("engine started", slog.String("plan", p.ID()), slog.String("engine", e.ID()))
	return nil
}

func (l *Listener) EngineExecutionFinished(p *plan.TestPlan, e engine.Engine) error {
	l.logger.Debug("engine finished", slog.String("plan", p.ID()), slog.String("engine", e.ID()))
	return nil
}

func (l *Listener) PlanExecutionFinished(p *plan.TestPlan) error {
	l.logger.Debug("plan finished", slog.String("plan", p.ID()))
	return nil
}

func (l *Listener) ExecutionStarted(d *descriptor.Descriptor) error {
	l.logger.Debug("unit started", unitAttrs(d)...)
	return nil
}

func (l *Listener) ExecutionSkipped(d *descriptor.Descriptor, reason string) error {
	l.logger.Debug("unit skipped", append(unitAttrs(d), slog.String("reason", reason))...)
	return nil
}

func (l *Listener) ExecutionFinished(d *descriptor.Descriptor, r engine.Result) error {
	attrs := append(unitAttrs(d),
		slog.String("status", r.Status.String()),
		slog.Duration("duration", r.Duration))
	if r.Err != nil {
		attrs = append(attrs, slog.String("error", r.Err.Error()))
	}
	l.logger.Debug("unit finished", attrs...)
	return nil
}

func unitAttrs(d *descriptor.Descriptor) []any {
	return []any{slog.String("id", d.ID().String()), slog.String("type", d.Type().String())}
}
