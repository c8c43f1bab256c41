// Package mapper turns plans and results into patterns for the renderers.
package mapper

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dkoosis/testplan/pkg/pattern"
	"github.com/dkoosis/testplan/pkg/testjson"
)

// Detail limits for table rows.
const (
	panicLines   = 5
	failureLines = 3
	skipNames    = 3
	abortRunes   = 300
)

// severity orders engines in a report, worst first.
type severity int

const (
	panicked severity = iota
	aborted
	failing
	healthy
)

func severityOf(r testjson.PackageResult) severity {
	switch {
	case len(r.Panic) > 0:
		return panicked
	case r.Aborted != "":
		return aborted
	case r.Count(testjson.OutcomeFail) > 0:
		return failing
	default:
		return healthy
	}
}

// FromTestJSON describes executed results: a Summary, a table per broken
// engine worst first, then one table of the healthy engines.
func FromTestJSON(results []testjson.PackageResult) []pattern.Pattern {
	patterns := []pattern.Pattern{summarize(testjson.Summarize(results))}

	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b testjson.PackageResult) int {
		return cmp.Or(cmp.Compare(severityOf(a), severityOf(b)), strings.Compare(a.Name, b.Name))
	})

	healthyRows := make([]pattern.Row, 0, len(ordered))
	for _, r := range ordered {
		if t := brokenTable(r); t != nil {
			patterns = append(patterns, t)
			continue
		}
		healthyRows = append(healthyRows, pattern.Row{
			Name:     r.Name,
			Status:   pattern.Status(r.Outcome()),
			Duration: formatDuration(r.Duration),
			Count:    len(r.Tests),
			Details:  skipped(r),
		})
	}
	if len(healthyRows) > 0 {
		patterns = append(patterns, &pattern.Table{
			Title: fmt.Sprintf("Passing Engines (%d)", len(healthyRows)),
			Rows:  healthyRows,
		})
	}
	return patterns
}

func summarize(s testjson.Stats) *pattern.Summary {
	var metrics []pattern.Metric
	add := func(label, value string, tone pattern.Tone) {
		metrics = append(metrics, pattern.Metric{Label: label, Value: value, Tone: tone})
	}
	if s.Panicked > 0 {
		add("Panics", strconv.Itoa(s.Panicked), pattern.ToneBad)
	}
	if s.Aborted > 0 {
		add("Aborted Engines", strconv.Itoa(s.Aborted), pattern.ToneBad)
	}
	if s.Failed > 0 {
		add("Failed", fmt.Sprintf("%d/%d tests", s.Failed, s.Tests), pattern.ToneBad)
	}
	if s.Passed > 0 {
		tone := pattern.ToneGood
		if s.Failed > 0 {
			tone = pattern.ToneInfo
		}
		add("Passed", fmt.Sprintf("%d/%d tests", s.Passed, s.Tests), tone)
	}
	if s.Skipped > 0 {
		add("Skipped", strconv.Itoa(s.Skipped), pattern.ToneWarn)
	}
	add("Engines", strconv.Itoa(s.Packages), pattern.ToneInfo)

	label := fmt.Sprintf("PASS (%s)", formatDuration(s.Duration))
	if !s.Succeeded() {
		label = fmt.Sprintf("FAIL %d/%d tests, %d engines affected (%s)",
			s.Failed, s.Tests, s.Broken, formatDuration(s.Duration))
	}
	return &pattern.Summary{Label: label, Subject: pattern.SubjectResults, Metrics: metrics}
}

// brokenTable returns nil for a healthy engine.
func brokenTable(r testjson.PackageResult) *pattern.Table {
	switch severityOf(r) {
	case panicked:
		return &pattern.Table{
			Title: "PANIC " + r.Name,
			Rows:  []pattern.Row{{Name: "PANIC", Status: pattern.StatusFail, Details: clip(r.Panic, panicLines)}},
		}
	case aborted:
		return &pattern.Table{
			Title: "ABORTED " + r.Name,
			Rows:  []pattern.Row{{Name: "ENGINE FAILURE", Status: pattern.StatusFail, Details: clipRunes(r.Aborted, abortRunes)}},
		}
	case failing:
		failures := r.Failures()
		rows := make([]pattern.Row, len(failures))
		for i, f := range failures {
			rows[i] = pattern.Row{Name: f.Name, Status: pattern.StatusFail, Details: clip(f.Output, failureLines)}
		}
		return &pattern.Table{
			Title: fmt.Sprintf("FAIL %s (%d/%d failed)", r.Name, len(failures), len(r.Tests)),
			Rows:  rows,
		}
	default:
		return nil
	}
}

func skipped(r testjson.PackageResult) string {
	var names []string
	for _, t := range r.Tests {
		if t.Outcome == testjson.OutcomeSkip {
			names = append(names, t.Name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "skipped: " + clip(names, skipNames)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "0s"
	case d < time.Second:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}

// clip joins up to limit lines and notes how many were left out.
func clip(lines []string, limit int) string {
	if len(lines) <= limit {
		return strings.Join(lines, "\n")
	}
	return fmt.Sprintf("%s\n... (%d more lines)", strings.Join(lines[:limit], "\n"), len(lines)-limit)
}

func clipRunes(s string, limit int) string {
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
