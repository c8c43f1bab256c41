package stream

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/spec"
	"github.com/dkoosis/testplan/pkg/testjson"
)

// feed runs events through a streamer and returns the output without escapes.
func feed(t *testing.T, events []testjson.TestEvent, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	s := newStreamer(newScreen(&buf, width, height), nil)
	for _, e := range events {
		s.handleEvent(e)
	}
	s.finish()
	return stripANSI(buf.String())
}

func TestStreamer_PassingTest(t *testing.T) {
	out := feed(t, []testjson.TestEvent{
		{Action: "start", Package: "gotest", Time: time.Now()},
		{Action: "run", Package: "gotest", Test: "pkg/x/TestHello"},
		{Action: "output", Package: "gotest", Test: "pkg/x/TestHello", Output: "some debug noise\n"},
		{Action: "pass", Package: "gotest", Test: "pkg/x/TestHello", Elapsed: 0.01},
		{Action: "pass", Package: "gotest", Elapsed: 0.5},
	}, 120, 24)

	assert.Contains(t, out, "gotest")
	assert.Contains(t, out, "· pkg/x/TestHello")
	assert.NotContains(t, out, "some debug noise", "passing output is dropped")
	assert.Contains(t, out, "PASS (0.5s) 1 tests, 1 engines")
}

func TestStreamer_FailingTest_ReplaysOutput(t *testing.T) {
	out := feed(t, []testjson.TestEvent{
		{Action: "start", Package: "script", Time: time.Now()},
		{Action: "run", Package: "script", Test: "smoke/health"},
		{Action: "output", Package: "script", Test: "smoke/health", Output: "=== RUN   smoke/health\n"},
		{Action: "output", Package: "script", Test: "smoke/health", Output: "    expected exit 0, got 7\n"},
		{Action: "fail", Package: "script", Test: "smoke/health", Elapsed: 0.02},
		{Action: "output", Package: "script", Output: "FAIL\tscript\n"},
		{Action: "fail", Package: "script", Elapsed: 1.0},
	}, 120, 24)

	assert.Contains(t, out, "✗ smoke/health")
	assert.Contains(t, out, "expected exit 0, got 7")
	assert.Contains(t, out, "FAIL\tscript", "engine output is replayed when the engine fails")
	assert.NotContains(t, out, "=== RUN")
}

func TestStreamer_EngineSummary(t *testing.T) {
	out := feed(t, []testjson.TestEvent{
		{Action: "start", Package: "func", Time: time.Now()},
		{Action: "pass", Package: "func", Test: "A", Elapsed: 0.01},
		{Action: "pass", Package: "func", Test: "B", Elapsed: 0.02},
		{Action: "output", Package: "func", Test: "C", Output: "skipped: needs network\n"},
		{Action: "skip", Package: "func", Test: "C"},
		{Action: "pass", Package: "func", Elapsed: 2.6},
	}, 120, 24)

	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "2.6s")
	assert.Contains(t, out, "○ C")
	assert.Contains(t, out, "(needs network)")
}

func TestStreamer_Summary(t *testing.T) {
	tests := []struct {
		name   string
		events []testjson.TestEvent
		want   string
	}{
		{
			name: "engines add up",
			events: []testjson.TestEvent{
				{Action: "start", Package: "a", Time: time.Now()},
				{Action: "pass", Package: "a", Test: "X", Elapsed: 0.01},
				{Action: "pass", Package: "a", Elapsed: 1.0},
				{Action: "start", Package: "b", Time: time.Now()},
				{Action: "pass", Package: "b", Test: "Y", Elapsed: 0.02},
				{Action: "pass", Package: "b", Elapsed: 2.0},
			},
			want: "PASS (3.0s) 2 tests, 2 engines",
		},
		{
			name: "failure count",
			events: []testjson.TestEvent{
				{Action: "start", Package: "x", Time: time.Now()},
				{Action: "pass", Package: "x", Test: "Good", Elapsed: 0.01},
				{Action: "fail", Package: "x", Test: "Bad", Elapsed: 0.02},
				{Action: "fail", Package: "x", Elapsed: 1.0},
			},
			want: "FAIL (1.0s) 1/2 tests, 1 engines",
		},
		{
			name: "nothing ran",
			want: "PASS (0.0s) 0 tests, 0 engines",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, feed(t, tt.events, 80, 24), tt.want)
		})
	}
}

func TestStreamer_FooterTracksRunningTest(t *testing.T) {
	var buf bytes.Buffer
	s := newStreamer(newScreen(&buf, 120, 24), nil)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return start.Add(1500 * time.Millisecond) }

	s.handleEvent(testjson.TestEvent{Action: "start", Package: "gotest", Time: start})
	s.handleEvent(testjson.TestEvent{Action: "run", Package: "gotest", Test: "TestSlow"})

	out := stripANSI(buf.String())
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "TestSlow")
	assert.Contains(t, out, "1.5s")
	assert.Equal(t, 2, s.scr.footer)

	s.handleEvent(testjson.TestEvent{Action: "pass", Package: "gotest", Test: "TestSlow"})
	s.handleEvent(testjson.TestEvent{Action: "pass", Package: "gotest"})
	assert.Zero(t, s.scr.footer, "footer is gone once nothing runs")
}

func TestStreamer_StylesLines(t *testing.T) {
	var buf bytes.Buffer
	var kinds []LineKind
	s := newStreamer(newScreen(&buf, 120, 24), func(k LineKind, text string) string {
		kinds = append(kinds, k)
		return text
	})
	for _, e := range []testjson.TestEvent{
		{Action: "start", Package: "x", Time: time.Now()},
		{Action: "fail", Package: "x", Test: "Bad"},
		{Action: "fail", Package: "x"},
	} {
		s.handleEvent(e)
	}
	s.finish()

	assert.Equal(t, []LineKind{KindFail, KindEngineFail, KindSeparator, KindFail}, kinds)
}

type namedEngine string

func (n namedEngine) ID() string { return string(n) }
func (namedEngine) Discover(context.Context, *spec.Specification, *descriptor.Descriptor) error {
	return nil
}
func (namedEngine) Execute(context.Context, engine.ExecutionContext) error { return nil }

func TestLive_DrivenByListenerEvents(t *testing.T) {
	root := descriptor.NewEngineRoot("func", "func")
	suite := descriptor.NewContainer(root.ID().Append("suite", "math"), "math")
	ok := descriptor.NewTest(suite.ID().Append("test", "adds"), "adds")
	bad := descriptor.NewTest(suite.ID().Append("test", "divides"), "divides")
	require.NoError(t, root.AddChild(suite))
	require.NoError(t, suite.AddChild(ok))
	require.NoError(t, suite.AddChild(bad))

	var buf bytes.Buffer
	live := NewLive(&buf, 120, 24, nil)
	eng := namedEngine("func")

	require.NoError(t, live.EngineExecutionStarted(nil, eng))
	require.NoError(t, live.ExecutionStarted(suite))
	require.NoError(t, live.ExecutionStarted(ok))
	require.NoError(t, live.ExecutionFinished(ok, engine.Succeeded(time.Millisecond)))
	require.NoError(t, live.ExecutionStarted(bad))
	require.NoError(t, live.ExecutionFinished(bad, engine.Failed(errors.New("division by zero"), time.Millisecond)))
	require.NoError(t, live.ExecutionFinished(suite, engine.Succeeded(0)))
	require.NoError(t, live.EngineExecutionFinished(nil, eng))

	assert.True(t, live.Finish())
	out := stripANSI(buf.String())
	for _, want := range []string{"math/adds", "math/divides", "failed: division by zero", "FAIL", "1/2 tests, 1 engines"} {
		assert.Contains(t, out, want)
	}
}
