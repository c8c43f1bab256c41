package testjson

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/plan"
)

// Emitter converts launcher events into TestEvents and hands them to a sink.
// It is both a plan-level and a unit-level listener; register it as both.
//
// Only tests produce run/pass/fail/skip events. A skipped container produces
// a skip for every test below it. Aborted tests are reported as failures.
type Emitter struct {
	mu      sync.Mutex
	sink    func(TestEvent) error
	now     func() time.Time
	started map[string]time.Time
	failed  map[string]bool
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithClock sets the time source for event timestamps.
func WithClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEmitter returns an emitter that passes every event to sink.
func NewEmitter(sink func(TestEvent) error, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		sink:    sink,
		now:     time.Now,
		started: map[string]time.Time{},
		failed:  map[string]bool{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewWriter returns an emitter that writes NDJSON to w.
func NewWriter(w io.Writer, opts ...EmitterOption) *Emitter {
	enc := json.NewEncoder(w)
	return NewEmitter(func(ev TestEvent) error {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("writing test event: %w", err)
		}
		return nil
	}, opts...)
}

// TestName returns the go-test style name of d: its path below the engine
// root joined with "/".
func TestName(d *descriptor.Descriptor) string {
	return strings.Join(d.Path(), "/")
}

func (e *Emitter) emit(ev TestEvent) error {
	ev.Time = e.now()
	return e.sink(ev)
}

func (e *Emitter) PlanExecutionStarted(*plan.TestPlan) error { return nil }

func (e *Emitter) EngineExecutionStarted(_ *plan.TestPlan, eng engine.Engine) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started[eng.ID()] = e.now()
	delete(e.failed, eng.ID())
	return e.emit(TestEvent{Action: ActionStart, Package: eng.ID()})
}

func (e *Emitter) EngineExecutionFinished(_ *plan.TestPlan, eng engine.Engine) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	action := ActionPass
	if e.failed[eng.ID()] {
		action = ActionFail
	}
	took := e.now().Sub(e.started[eng.ID()])
	return e.emit(TestEvent{Action: action, Package: eng.ID(), Elapsed: took.Seconds()})
}

func (e *Emitter) PlanExecutionFinished(*plan.TestPlan) error { return nil }

func (e *Emitter) ExecutionStarted(d *descriptor.Descriptor) error {
	if !d.IsTest() {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emit(TestEvent{Action: ActionRun, Package: d.ID().Engine(), Test: TestName(d)})
}

func (e *Emitter) ExecutionSkipped(d *descriptor.Descriptor, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	d.Walk(func(t *descriptor.Descriptor) bool {
		if err != nil {
			return false
		}
		if !t.IsTest() {
			return true
		}
		pkg, name := t.ID().Engine(), TestName(t)
		if reason != "" {
			if err = e.emit(TestEvent{Action: ActionOutput, Package: pkg, Test: name, Output: "skipped: " + reason + "\n"}); err != nil {
				return false
			}
		}
		err = e.emit(TestEvent{Action: ActionSkip, Package: pkg, Test: name})
		return err == nil
	})
	return err
}

func (e *Emitter) ExecutionFinished(d *descriptor.Descriptor, r engine.Result) error {
	if !d.IsTest() {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pkg, name := d.ID().Engine(), TestName(d)
	output := r.Output
	if r.Err != nil {
		output = append(append([]string(nil), output...), r.Status.String()+": "+r.Err.Error())
	}
	for _, line := range output {
		if err := e.emit(TestEvent{Action: ActionOutput, Package: pkg, Test: name, Output: line + "\n"}); err != nil {
			return err
		}
	}

	action := ActionPass
	if r.Status != engine.StatusSucceeded {
		action = ActionFail
		e.failed[pkg] = true
	}
	return e.emit(TestEvent{Action: action, Package: pkg, Test: name, Elapsed: r.Duration.Seconds()})
}

// Collector aggregates launcher events in memory.
type Collector struct {
	*Emitter
	agg *Aggregator
}

// NewCollector returns an empty collector.
func NewCollector(opts ...EmitterOption) *Collector {
	c := &Collector{agg: NewAggregator()}
	c.Emitter = NewEmitter(func(ev TestEvent) error {
		c.agg.Process(ev)
		return nil
	}, opts...)
	return c
}

// Results returns per-engine results collected so far.
func (c *Collector) Results() []PackageResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agg.Results()
}
