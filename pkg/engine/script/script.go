// Package script is an engine for shell-command tests declared in YAML
// suite files.
//
// A suite file looks like:
//
//	name: cli
//	tags: [smoke]
//	env: {NO_COLOR: "1"}
//	tests:
//	  - name: prints version
//	    run: ./testplan version
//	    expect_output: '^testplan v\d+'
//	  - name: lists plan
//	    run: ./testplan discover --format llm
//	    expect_golden: testdata/discover.golden
//	groups:
//	  - name: network
//	    disabled_if_env: {name: OFFLINE, matches: "1|true"}
//	    tests:
//	      - name: fetches
//	        run: curl -sf https://example.com
//	        timeout: 10s
//
// Each file becomes a container, each group a nested container and each
// entry under tests a test. Tags and env are inherited by nested groups and
// tests. A group or test whose disabled_if_env holds at execution time is
// reported as skipped.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/spec"
)

// ID is the engine ID.
const ID = "script"

// ErrUnknownTest is returned when Execute meets a test the engine never discovered.
var ErrUnknownTest = errors.New("script: unknown test")

// Engine discovers and runs script suites.
type Engine struct {
	dir       string
	files     []string
	shell     Shell
	lookupEnv func(string) (string, bool)
	logger    *slog.Logger

	tests  map[descriptor.UniqueID]*testCase
	groups map[descriptor.UniqueID]*EnvCondition
}

type testCase struct {
	test *Test
	dir  string
	env  []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithDir sets the directory file patterns are resolved against.
func WithDir(dir string) Option { return func(e *Engine) { e.dir = dir } }

// WithFiles sets the suite file glob patterns. File selectors in the
// specification take precedence.
func WithFiles(patterns ...string) Option {
	return func(e *Engine) {
		if len(patterns) > 0 {
			e.files = patterns
		}
	}
}

// WithShell replaces the shell scripts run in.
func WithShell(s Shell) Option { return func(e *Engine) { e.shell = s } }

// WithLookupEnv replaces os.LookupEnv for disabled_if_env conditions.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(e *Engine) { e.lookupEnv = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns a script engine. By default it loads testplan/*.yaml from the
// current directory and runs scripts with /bin/sh.
func New(opts ...Option) *Engine {
	e := &Engine{
		dir:       ".",
		files:     []string{"testplan/*.yaml"},
		shell:     ExecShell{},
		lookupEnv: os.LookupEnv,
		logger:    slog.New(slog.DiscardHandler),
		tests:     map[descriptor.UniqueID]*testCase{},
		groups:    map[descriptor.UniqueID]*EnvCondition{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ID() string { return ID }

// Discover loads every matching suite file. An invalid file fails discovery
// with an error wrapping ErrInvalidSuite.
func (e *Engine) Discover(_ context.Context, s *spec.Specification, root *descriptor.Descriptor) error {
	patterns := e.files
	if hinted := s.SelectorValues(spec.SelectorFile); len(hinted) > 0 {
		patterns = hinted
	}
	files, err := e.resolve(patterns)
	if err != nil {
		return err
	}

	for _, f := range files {
		suite, err := LoadFile(f.path)
		if err != nil {
			return err
		}
		name := suite.Name
		if name == "" {
			name = f.rel
		}
		node := descriptor.NewContainer(root.ID().Append("file", f.rel), name,
			descriptor.WithSource(f.rel), descriptor.WithTags(suite.Tags...))
		if err := root.AddChild(node); err != nil {
			return err
		}
		dir := filepath.Join(filepath.Dir(f.path), suite.Dir)
		if err := e.addGroup(node, &suite.Group, f.rel, dir, suite.Tags, suite.Env); err != nil {
			return err
		}
	}
	e.logger.Debug("loaded script suites", slog.Int("files", len(files)), slog.Int("tests", root.CountTests()))
	return nil
}

type suiteFile struct {
	path string // as opened
	rel  string // relative to the engine dir, slash separated
}

func (e *Engine) resolve(patterns []string) ([]suiteFile, error) {
	seen := map[string]bool{}
	var files []suiteFile
	for _, p := range patterns {
		if !filepath.IsAbs(p) {
			p = filepath.Join(e.dir, p)
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("script: file pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			rel := m
			if r, err := filepath.Rel(e.dir, m); err == nil && !strings.HasPrefix(r, "..") {
				rel = filepath.ToSlash(r)
			}
			files = append(files, suiteFile{path: m, rel: rel})
		}
	}
	slices.SortFunc(files, func(a, b suiteFile) int { return strings.Compare(a.rel, b.rel) })
	return files, nil
}

func (e *Engine) addGroup(node *descriptor.Descriptor, g *Group, source, dir string, tags []string, env map[string]string) error {
	if g.DisabledIfEnv != nil {
		e.groups[node.ID()] = g.DisabledIfEnv
	}
	for i := range g.Tests {
		t := &g.Tests[i]
		d := descriptor.NewTest(node.ID().Append("test", t.Name), t.Name,
			descriptor.WithSource(source), descriptor.WithTags(concat(tags, t.Tags)...))
		if err := node.AddChild(d); err != nil {
			return err
		}
		e.tests[d.ID()] = &testCase{test: t, dir: dir, env: environ(overlay(env, t.Env))}
	}
	for i := range g.Groups {
		child := &g.Groups[i]
		childTags := concat(tags, child.Tags)
		n := descriptor.NewContainer(node.ID().Append("group", child.Name), child.Name,
			descriptor.WithSource(source), descriptor.WithTags(childTags...))
		if err := node.AddChild(n); err != nil {
			return err
		}
		if err := e.addGroup(n, child, source, dir, childTags, overlay(env, child.Env)); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the retained tree depth first in file order.
func (e *Engine) Execute(ctx context.Context, ec engine.ExecutionContext) error {
	for _, child := range ec.Root.Children() {
		if err := e.execute(ctx, child, ec.Listener); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, d *descriptor.Descriptor, l engine.ExecutionListener) error {
	if d.IsTest() {
		return e.executeTest(ctx, d, l)
	}
	if cond := e.groups[d.ID()]; cond.Holds(e.lookupEnv) {
		return l.ExecutionSkipped(d, "disabled: "+cond.String())
	}

	start := time.Now()
	if err := l.ExecutionStarted(d); err != nil {
		return err
	}
	for _, child := range d.Children() {
		if err := e.execute(ctx, child, l); err != nil {
			return err
		}
	}
	return l.ExecutionFinished(d, engine.Succeeded(time.Since(start)))
}

func (e *Engine) executeTest(ctx context.Context, d *descriptor.Descriptor, l engine.ExecutionListener) error {
	tc, ok := e.tests[d.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTest, d.ID())
	}
	if cond := tc.test.DisabledIfEnv; cond.Holds(e.lookupEnv) {
		return l.ExecutionSkipped(d, "disabled: "+cond.String())
	}
	if err := l.ExecutionStarted(d); err != nil {
		return err
	}
	return l.ExecutionFinished(d, e.run(ctx, tc))
}

func (e *Engine) run(ctx context.Context, tc *testCase) engine.Result {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return engine.Result{Status: engine.StatusAborted, Err: err}
	}

	runCtx := ctx
	if tc.test.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, tc.test.Timeout)
		defer cancel()
	}

	out, err := e.shell.Run(runCtx, Command{Dir: tc.dir, Script: tc.test.Run, Env: tc.env})
	res := engine.Result{Duration: time.Since(start), Output: lines(out.Output)}
	switch {
	case err != nil && ctx.Err() != nil:
		res.Status, res.Err = engine.StatusAborted, ctx.Err()
	case err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Status, res.Err = engine.StatusFailed, fmt.Errorf("timed out after %s", tc.test.Timeout)
	case err != nil:
		res.Status, res.Err = engine.StatusAborted, fmt.Errorf("running script: %w", err)
	case out.ExitCode != tc.test.ExpectExit:
		res.Status, res.Err = engine.StatusFailed, fmt.Errorf("exit code %d, want %d", out.ExitCode, tc.test.ExpectExit)
	case tc.test.expectOutput != nil && !tc.test.expectOutput.MatchString(out.Output):
		res.Status, res.Err = engine.StatusFailed, fmt.Errorf("output does not match %q", tc.test.ExpectOutput)
	case tc.test.ExpectGolden != "":
		res.Status, res.Err = e.checkGolden(tc, out.Output, &res)
	default:
		res.Status = engine.StatusSucceeded
	}
	return res
}

// checkGolden compares output with the test's golden file, appending the
// differences to res.Output.
func (e *Engine) checkGolden(tc *testCase, output string, res *engine.Result) (engine.Status, error) {
	path := tc.test.ExpectGolden
	if !filepath.IsAbs(path) {
		path = filepath.Join(tc.dir, path)
	}
	diff, err := compareGolden(path, output)
	switch {
	case err != nil:
		return engine.StatusFailed, err
	case diff != nil:
		res.Output = append(res.Output, diff...)
		return engine.StatusFailed, fmt.Errorf("output differs from %s", tc.test.ExpectGolden)
	default:
		return engine.StatusSucceeded, nil
	}
}

func concat(a, b []string) []string {
	return append(slices.Clone(a), b...)
}

func overlay(base, over map[string]string) map[string]string {
	if len(over) == 0 {
		return base
	}
	merged := maps.Clone(base)
	if merged == nil {
		merged = map[string]string{}
	}
	maps.Copy(merged, over)
	return merged
}

func environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}

func lines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
