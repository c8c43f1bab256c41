// Package stream renders execution events to a terminal while a plan runs.
// Finished tests scroll by one line each; a footer below them shows which
// engines are still running and the test each one is on.
package stream

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/testplan/pkg/testjson"
)

// LineKind identifies the type of output line for styling.
type LineKind int

const (
	KindPass LineKind = iota
	KindFail
	KindSkip
	KindEnginePass
	KindEngineFail
	KindOutput
	KindSeparator
)

// StyleFunc decorates a line of the given kind. A nil StyleFunc leaves lines plain.
type StyleFunc func(kind LineKind, text string) string

const (
	engineColumn = 10
	testColumn   = 40
	outputIndent = "             "
)

// verdict describes how a finished test is shown.
type verdict struct {
	symbol  string
	kind    LineKind
	timed   bool
	details bool // replay buffered output under the line
}

var verdicts = map[string]verdict{
	testjson.ActionPass: {symbol: "·", kind: KindPass, timed: true},
	testjson.ActionFail: {symbol: "✗", kind: KindFail, timed: true, details: true},
	testjson.ActionSkip: {symbol: "○", kind: KindSkip},
}

type unitKey struct{ engine, test string }

// progress is one engine's tally while it runs.
type progress struct {
	started time.Time
	current string
	passed  int
	failed  int
	skipped int
}

func (p *progress) done() int { return p.passed + p.failed + p.skipped }

func (p *progress) count(action string) {
	switch action {
	case testjson.ActionPass:
		p.passed++
	case testjson.ActionFail:
		p.failed++
	case testjson.ActionSkip:
		p.skipped++
	}
}

type streamer struct {
	scr   *screen
	style StyleFunc
	now   func() time.Time

	running map[string]*progress
	order   []string
	output  map[unitKey][]string
	pending []string

	totals  progress
	engines int
	elapsed float64
	failed  bool
}

func newStreamer(scr *screen, style StyleFunc) *streamer {
	return &streamer{
		scr:     scr,
		style:   style,
		now:     time.Now,
		running: make(map[string]*progress),
		output:  make(map[unitKey][]string),
	}
}

func (s *streamer) emit(kind LineKind, text string) {
	if s.style != nil {
		text = s.style(kind, text)
	}
	s.pending = append(s.pending, text)
}

// handleEvent folds e into the view and redraws it.
func (s *streamer) handleEvent(e testjson.TestEvent) {
	key := unitKey{e.Package, e.Test}
	switch e.Action {
	case testjson.ActionStart:
		s.running[e.Package] = &progress{started: e.Time}
		s.order = append(s.order, e.Package)
	case testjson.ActionRun:
		if p := s.running[e.Package]; p != nil {
			p.current = e.Test
		}
	case testjson.ActionOutput:
		if line := strings.TrimRight(e.Output, "\n"); line != "" {
			s.output[key] = append(s.output[key], line)
		}
	case testjson.ActionPass, testjson.ActionFail, testjson.ActionSkip:
		if e.Test == "" {
			s.engineDone(e)
		} else {
			s.testDone(e)
		}
		delete(s.output, key)
	}

	s.scr.update(s.pending, s.footer())
	s.pending = s.pending[:0]
}

func (s *streamer) testDone(e testjson.TestEvent) {
	v := verdicts[e.Action]
	if p := s.running[e.Package]; p != nil {
		p.count(e.Action)
	}
	if e.Action == testjson.ActionFail {
		s.failed = true
	}

	line := fmt.Sprintf("  %s %s %s",
		runewidth.FillRight(runewidth.Truncate(e.Package, engineColumn, "…"), engineColumn),
		v.symbol,
		runewidth.FillRight(runewidth.Truncate(e.Test, testColumn, "..."), testColumn))
	if v.timed {
		line += fmt.Sprintf(" %5.2fs", e.Elapsed)
	}
	if e.Action == testjson.ActionSkip {
		if reason := skipReason(s.output[unitKey{e.Package, e.Test}]); reason != "" {
			line += " " + reason
		}
	}
	s.emit(v.kind, line)
	if v.details {
		s.replay(unitKey{e.Package, e.Test})
	}
}

func (s *streamer) engineDone(e testjson.TestEvent) {
	p := s.running[e.Package]
	if p == nil {
		return
	}
	delete(s.running, e.Package)

	kind, symbol := KindEnginePass, "✓"
	if e.Action == testjson.ActionFail {
		s.failed = true
		kind, symbol = KindEngineFail, "✗"
	}
	s.emit(kind, fmt.Sprintf("  %s %s %d/%d  %.1fs",
		symbol, runewidth.FillRight(e.Package, 28), p.passed, p.done(), e.Elapsed))
	if e.Action == testjson.ActionFail {
		s.replay(unitKey{engine: e.Package})
	}

	s.totals.passed += p.passed
	s.totals.failed += p.failed
	s.totals.skipped += p.skipped
	s.engines++
	s.elapsed += e.Elapsed
}

// replay emits the output captured for key, minus go test framing.
func (s *streamer) replay(key unitKey) {
	for _, line := range s.output[key] {
		if isFraming(line) {
			continue
		}
		s.emit(KindOutput, outputIndent+line)
	}
}

func isFraming(line string) bool {
	line = strings.TrimSpace(line)
	for _, prefix := range []string{"=== RUN", "--- FAIL", "--- PASS", "--- SKIP"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func skipReason(lines []string) string {
	for _, line := range lines {
		if reason, ok := strings.CutPrefix(strings.TrimSpace(line), "skipped: "); ok {
			return "(" + reason + ")"
		}
	}
	return ""
}

func (s *streamer) footer() []string {
	if len(s.running) == 0 {
		return nil
	}
	lines := []string{"  ─── running " + strings.Repeat("─", 34)}
	now := s.now()
	for _, id := range s.order {
		p := s.running[id]
		if p == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s [%d] %s %5.1fs",
			runewidth.FillRight(runewidth.Truncate(id, 7, "…"), 7),
			p.done(),
			runewidth.FillRight(runewidth.Truncate(p.current, 25, "..."), 25),
			now.Sub(p.started).Seconds()))
	}
	return lines
}

// finish clears the footer and prints the run summary.
func (s *streamer) finish() {
	s.emit(KindSeparator, "  "+strings.Repeat("─", 45))
	total := s.totals.done()
	if s.failed {
		s.emit(KindFail, fmt.Sprintf("  FAIL (%.1fs) %d/%d tests, %d engines",
			s.elapsed, s.totals.failed, total, s.engines))
	} else {
		s.emit(KindPass, fmt.Sprintf("  PASS (%.1fs) %d tests, %d engines",
			s.elapsed, total, s.engines))
	}
	s.scr.update(s.pending, nil)
	s.pending = nil
}

// Live is a launcher listener that streams results to a terminal as the plan
// runs. Register it as both a plan and an execution listener, then call
// Finish after execution returns.
type Live struct {
	*testjson.Emitter
	s *streamer
}

// NewLive returns a live view writing to out, sized to a width x height terminal.
func NewLive(out io.Writer, width, height int, style StyleFunc) *Live {
	s := newStreamer(newScreen(out, width, height), style)
	return &Live{
		Emitter: testjson.NewEmitter(func(e testjson.TestEvent) error {
			s.handleEvent(e)
			return nil
		}),
		s: s,
	}
}

// Finish prints the summary and reports whether anything failed.
func (l *Live) Finish() (failed bool) {
	l.s.finish()
	return l.s.failed
}
