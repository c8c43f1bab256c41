package testjson

import (
	"fmt"
	"strings"
)

// Aggregator folds a stream of events into per-package results.
// It is not safe for concurrent use.
type Aggregator struct {
	byName map[string]*pending
	order  []*pending
}

// pending is a package whose events are still arriving.
type pending struct {
	PackageResult
	index  map[string]int      // test name to position in Tests
	output map[string][]string // test name ("" for the package) to lines so far
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byName: make(map[string]*pending)}
}

func (a *Aggregator) lookup(name string) *pending {
	p := a.byName[name]
	if p == nil {
		p = &pending{
			PackageResult: PackageResult{Name: name},
			index:         make(map[string]int),
			output:        make(map[string][]string),
		}
		a.byName[name] = p
		a.order = append(a.order, p)
	}
	return p
}

// Process folds one event into the aggregate.
func (a *Aggregator) Process(e TestEvent) {
	p := a.lookup(e.Package)
	switch e.Action {
	case ActionOutput:
		p.record(e.Test, strings.TrimRight(e.Output, "\n"))
	case ActionPass, ActionFail, ActionSkip:
		if e.Test == "" {
			p.end(Outcome(e.Action), e.Elapsed)
		} else {
			p.finish(e.Test, Outcome(e.Action), e.Elapsed)
		}
	}
}

func (p *pending) record(test, line string) {
	if line == "" {
		return
	}
	p.output[test] = append(p.output[test], line)

	if strings.Contains(line, "panic:") || strings.HasPrefix(line, "goroutine ") {
		p.Panic = append(p.Panic, line)
	}
	var pct float64
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "coverage: %f%% of statements", &pct); err == nil && pct > 0 {
		p.Coverage = pct
	}
}

// finish records a test's outcome. A test reported twice keeps the last one.
func (p *pending) finish(test string, o Outcome, elapsed float64) {
	r := TestResult{Name: test, Outcome: o, Duration: seconds(elapsed)}
	if o != OutcomePass {
		r.Output = p.output[test]
	}
	delete(p.output, test)

	if i, ok := p.index[test]; ok {
		p.Tests[i] = r
		return
	}
	p.index[test] = len(p.Tests)
	p.Tests = append(p.Tests, r)
}

// end closes the package. Failing before any test finished means the
// package never really ran.
func (p *pending) end(o Outcome, elapsed float64) {
	p.Duration = seconds(elapsed)
	if o != OutcomeFail || len(p.Tests) > 0 {
		return
	}
	p.Aborted = strings.Join(p.output[""], "\n")
	if p.Aborted == "" {
		p.Aborted = "failed before running tests"
	}
}

// Results returns one result per package that ran or broke, in first-seen
// order.
func (a *Aggregator) Results() []PackageResult {
	results := make([]PackageResult, 0, len(a.order))
	for _, p := range a.order {
		if len(p.Tests) == 0 && p.Aborted == "" && len(p.Panic) == 0 {
			continue
		}
		r := p.PackageResult
		r.Tests = append([]TestResult(nil), p.Tests...)
		results = append(results, r)
	}
	return results
}
