// Package testjson reads and writes go test -json NDJSON streams.
//
// The launcher side uses it in both directions: the gotest engine parses the
// stream produced by the go tool, and Writer/Collector turn launcher events
// into the same shape, with Package set to the engine ID and Test to the
// descriptor path below the engine root.
package testjson

import (
	"slices"
	"time"
)

// Actions of a go test -json event.
const (
	ActionStart  = "start"
	ActionRun    = "run"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"
)

// TestEvent is one line of a go test -json stream. Field names match the go
// tool's encoding so recordings from either side decode the same way.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test,omitempty"`
	Elapsed float64   `json:"Elapsed,omitempty"`
	Output  string    `json:"Output,omitempty"`
}

// ProcessFunc receives each event of a stream.
type ProcessFunc func(TestEvent)

// Outcome is how a test, or a whole package, ended.
type Outcome string

const (
	OutcomePass Outcome = ActionPass
	OutcomeFail Outcome = ActionFail
	OutcomeSkip Outcome = ActionSkip
)

// TestResult is one finished test.
type TestResult struct {
	Name     string
	Outcome  Outcome
	Duration time.Duration

	// Output holds what the test printed. Kept for failures and skips only.
	Output []string
}

// PackageResult gathers the tests of one go package, or of one engine when
// the stream came from the launcher.
type PackageResult struct {
	Name     string
	Tests    []TestResult
	Duration time.Duration
	Coverage float64

	// Aborted is the package output when it failed before any test finished:
	// a build error for go test, an engine failure for the launcher.
	Aborted string

	// Panic holds panic and goroutine dump lines, if the package panicked.
	Panic []string
}

// Count returns how many tests ended with o.
func (r PackageResult) Count(o Outcome) int {
	n := 0
	for _, t := range r.Tests {
		if t.Outcome == o {
			n++
		}
	}
	return n
}

// Failures returns the failed tests in order.
func (r PackageResult) Failures() []TestResult {
	return slices.DeleteFunc(slices.Clone(r.Tests), func(t TestResult) bool {
		return t.Outcome != OutcomeFail
	})
}

// Outcome folds the package into one verdict. A package that only skipped
// is skipped; anything broken fails.
func (r PackageResult) Outcome() Outcome {
	switch {
	case r.Aborted != "" || len(r.Panic) > 0 || r.Count(OutcomeFail) > 0:
		return OutcomeFail
	case len(r.Tests) > 0 && r.Count(OutcomeSkip) == len(r.Tests):
		return OutcomeSkip
	default:
		return OutcomePass
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
