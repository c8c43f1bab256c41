// Package gotest is an engine for ordinary Go tests, driven through the go
// tool's -json output.
//
// Discovery runs "go test -json -list ." over the configured packages and
// creates one container per package and one test per top-level Test, Example
// or Fuzz function. Execution runs one "go test -json -run '^(A|B)$' pkg"
// per retained package. Subtests are folded into their top-level test.
package gotest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/spec"
	"github.com/dkoosis/testplan/pkg/testjson"
)

// ID is the engine ID.
const ID = "gotest"

// ErrNoResult is the abort reason for a test the go tool never reported on.
var ErrNoResult = errors.New("gotest: test did not report a result")

var testNameRE = regexp.MustCompile(`^(Test|Example|Fuzz)[\p{L}\p{N}_]*$`)

// Engine discovers and runs Go tests.
type Engine struct {
	dir      string
	packages []string
	flags    []string
	runner   Runner
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDir sets the module directory the go tool runs in.
func WithDir(dir string) Option { return func(e *Engine) { e.dir = dir } }

// WithPackages sets the package patterns to discover. Package selectors in
// the specification take precedence.
func WithPackages(pkgs ...string) Option {
	return func(e *Engine) {
		if len(pkgs) > 0 {
			e.packages = pkgs
		}
	}
}

// WithFlags adds go test flags to every execution (for example -race).
func WithFlags(flags ...string) Option { return func(e *Engine) { e.flags = flags } }

// WithRunner replaces the go tool runner.
func WithRunner(r Runner) Option { return func(e *Engine) { e.runner = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns a gotest engine. By default it runs "go" in the current
// directory over ./... .
func New(opts ...Option) *Engine {
	e := &Engine{
		dir:      ".",
		packages: []string{"./..."},
		runner:   ExecRunner{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ID() string { return ID }

// Discover lists tests per package. Packages whose tests cannot be listed
// (for example because they do not build) are left out and logged.
func (e *Engine) Discover(ctx context.Context, s *spec.Specification, root *descriptor.Descriptor) error {
	pkgs := e.packages
	if hinted := s.SelectorValues(spec.SelectorPackage); len(hinted) > 0 {
		pkgs = hinted
	}

	args := append([]string{"test", "-json", "-list", "."}, pkgs...)
	out, wait, err := e.runner.Start(ctx, e.dir, args...)
	if err != nil {
		return err
	}

	listed := map[string][]string{}
	_, streamErr := testjson.Stream(ctx, out, func(ev testjson.TestEvent) {
		if ev.Action != testjson.ActionOutput || ev.Test != "" {
			return
		}
		name := strings.TrimSpace(ev.Output)
		if testNameRE.MatchString(name) && !slices.Contains(listed[ev.Package], name) {
			listed[ev.Package] = append(listed[ev.Package], name)
		}
	})
	_ = out.Close()
	waitErr := wait()
	if streamErr != nil {
		return fmt.Errorf("gotest: reading test list: %w", streamErr)
	}
	if waitErr != nil {
		if len(listed) == 0 {
			return fmt.Errorf("gotest: listing tests: %w", waitErr)
		}
		e.logger.Warn("some packages could not be listed", slog.String("error", waitErr.Error()))
	}

	names := make([]string, 0, len(listed))
	for pkg := range listed {
		names = append(names, pkg)
	}
	slices.Sort(names)

	for _, pkg := range names {
		container := descriptor.NewContainer(root.ID().Append("package", pkg), pkg, descriptor.WithSource(pkg))
		if err := root.AddChild(container); err != nil {
			return err
		}
		for _, test := range listed[pkg] {
			d := descriptor.NewTest(container.ID().Append("test", test), test, descriptor.WithSource(pkg))
			if err := container.AddChild(d); err != nil {
				return err
			}
		}
	}
	e.logger.Debug("listed go tests", slog.Int("packages", len(names)), slog.Int("tests", root.CountTests()))
	return nil
}

// Execute runs each retained package in discovery order.
func (e *Engine) Execute(ctx context.Context, ec engine.ExecutionContext) error {
	for _, pkg := range ec.Root.Children() {
		if err := e.executePackage(ctx, pkg, ec.Listener); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) executePackage(ctx context.Context, pkg *descriptor.Descriptor, l engine.ExecutionListener) error {
	start := time.Now()
	if err := l.ExecutionStarted(pkg); err != nil {
		return err
	}

	r := newPackageRun(pkg, l)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := append([]string{"test", "-json", "-run", r.runPattern()}, e.flags...)
	args = append(args, pkg.Source())
	e.logger.Debug("running go tests", slog.String("package", pkg.Source()), slog.Int("tests", len(r.order)))

	var abortErr error
	out, wait, err := e.runner.Start(ctx, e.dir, args...)
	if err != nil {
		abortErr = err
	} else {
		_, streamErr := testjson.Stream(ctx, out, func(ev testjson.TestEvent) {
			if r.err == nil {
				r.handle(ev)
				if r.err != nil {
					cancel()
				}
			}
		})
		_ = out.Close()
		waitErr := wait()
		if r.err != nil {
			return r.err
		}
		abortErr = firstErr(streamErr, waitErr)
	}

	aborted, err := r.abortUnreported(abortErr)
	if err != nil {
		return err
	}
	if aborted {
		return l.ExecutionFinished(pkg, engine.Result{
			Status:   engine.StatusAborted,
			Err:      r.abortReason(abortErr),
			Duration: time.Since(start),
			Output:   r.pkgOutput,
		})
	}
	return l.ExecutionFinished(pkg, engine.Succeeded(time.Since(start)))
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// packageRun tracks one go test invocation.
type packageRun struct {
	l         engine.ExecutionListener
	tests     map[string]*descriptor.Descriptor
	order     []string
	output    map[string][]string
	done      map[string]bool
	pkgOutput []string
	err       error // first listener error
}

func newPackageRun(pkg *descriptor.Descriptor, l engine.ExecutionListener) *packageRun {
	r := &packageRun{
		l:      l,
		tests:  map[string]*descriptor.Descriptor{},
		output: map[string][]string{},
		done:   map[string]bool{},
	}
	for _, d := range pkg.Children() {
		r.tests[d.DisplayName()] = d
		r.order = append(r.order, d.DisplayName())
	}
	return r
}

func (r *packageRun) runPattern() string {
	quoted := make([]string, len(r.order))
	for i, name := range r.order {
		quoted[i] = regexp.QuoteMeta(name)
	}
	return "^(" + strings.Join(quoted, "|") + ")$"
}

func (r *packageRun) handle(ev testjson.TestEvent) {
	if ev.Test == "" {
		if ev.Action == testjson.ActionOutput {
			if line := strings.TrimRight(ev.Output, "\n"); line != "" {
				r.pkgOutput = append(r.pkgOutput, line)
			}
		}
		return
	}

	top, _, _ := strings.Cut(ev.Test, "/")
	d, ok := r.tests[top]
	if !ok || r.done[top] {
		return
	}

	switch ev.Action {
	case testjson.ActionOutput:
		if line := strings.TrimRight(ev.Output, "\n"); line != "" && !isFraming(line) {
			r.output[top] = append(r.output[top], line)
		}
	case testjson.ActionPass, testjson.ActionFail, testjson.ActionSkip:
		if ev.Test != top {
			return
		}
		r.done[top] = true
		r.err = r.report(d, ev)
	}
}

func (r *packageRun) report(d *descriptor.Descriptor, ev testjson.TestEvent) error {
	name := d.DisplayName()
	if ev.Action == testjson.ActionSkip {
		reason := strings.TrimSpace(strings.Join(r.output[name], " "))
		if reason == "" {
			reason = "skipped by go test"
		}
		return r.l.ExecutionSkipped(d, reason)
	}

	if err := r.l.ExecutionStarted(d); err != nil {
		return err
	}
	res := engine.Result{
		Status:   engine.StatusSucceeded,
		Duration: time.Duration(ev.Elapsed * float64(time.Second)),
		Output:   r.output[name],
	}
	if ev.Action == testjson.ActionFail {
		res.Status = engine.StatusFailed
		res.Err = failure(name, res.Output)
	}
	return r.l.ExecutionFinished(d, res)
}

// abortUnreported finishes every test the run did not report as aborted.
func (r *packageRun) abortUnreported(cause error) (bool, error) {
	aborted := false
	for _, name := range r.order {
		if r.done[name] {
			continue
		}
		aborted = true
		d := r.tests[name]
		if err := r.l.ExecutionStarted(d); err != nil {
			return aborted, err
		}
		res := engine.Result{Status: engine.StatusAborted, Err: r.abortReason(cause), Output: r.pkgOutput}
		if err := r.l.ExecutionFinished(d, res); err != nil {
			return aborted, err
		}
	}
	return aborted, nil
}

func (r *packageRun) abortReason(cause error) error {
	if cause != nil {
		return cause
	}
	return ErrNoResult
}

// isFraming reports go test's own progress lines.
func isFraming(line string) bool {
	t := strings.TrimSpace(line)
	for _, p := range []string{"=== RUN", "=== PAUSE", "=== CONT", "=== NAME", "--- PASS", "--- FAIL", "--- SKIP"} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
