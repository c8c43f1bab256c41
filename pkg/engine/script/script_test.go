package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/engine/enginetest"
	"github.com/dkoosis/testplan/pkg/listener"
	"github.com/dkoosis/testplan/pkg/spec"
)

const cliSuite = `name: cli
tags: [smoke]
env: {MODE: test}
tests:
  - name: version
    run: echo v1.2.3
    expect_output: '^v\d+'
  - name: exits
    run: exit 3
    expect_exit: 3
  - name: wrong exit
    run: exit 1
groups:
  - name: network
    tags: [slow]
    env: {MODE: net}
    disabled_if_env: {name: OFFLINE, matches: "1|true"}
    tests:
      - name: fetch
        run: curl example.com
        timeout: 50ms
`

const dbSuite = `tests:
  - name: migrate
    run: migrate up
    disabled_if_env: {name: CI, matches: "true"}
  - name: seed
    run: seed
    expect_output: done
`

// fakeShell answers scripts from a table.
type fakeShell struct {
	mu    sync.Mutex
	out   map[string]Outcome
	err   map[string]error
	block map[string]bool
	calls []Command
}

func newFakeShell() *fakeShell {
	return &fakeShell{
		out: map[string]Outcome{
			"echo v1.2.3":      {Output: "v1.2.3\n"},
			"exit 3":           {ExitCode: 3},
			"exit 1":           {ExitCode: 1, Output: "boom\n"},
			"curl example.com": {Output: "<html>\n"},
			"migrate up":       {},
			"seed":             {Output: "seeding\nnot finished\n"},
		},
		err:   map[string]error{},
		block: map[string]bool{},
	}
}

func (f *fakeShell) Run(ctx context.Context, c Command) (Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	block, err, out := f.block[c.Script], f.err[c.Script], f.out[c.Script]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return Outcome{}, ctx.Err()
	}
	return out, err
}

func writeSuites(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "testplan"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testplan", "cli.yaml"), []byte(cliSuite), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testplan", "db.yaml"), []byte(dbSuite), 0o600))
	return dir
}

func noEnv(string) (string, bool) { return "", false }

func TestCompliance(t *testing.T) {
	dir := writeSuites(t)
	enginetest.RunEngineTests(t, func() engine.Engine {
		return New(WithDir(dir), WithShell(newFakeShell()), WithLookupEnv(noEnv))
	})
}

func TestDiscover_BuildsTreeFromFiles(t *testing.T) {
	t.Parallel()

	dir := writeSuites(t)
	root := enginetest.Discover(t, New(WithDir(dir), WithShell(newFakeShell())), nil)

	files := root.Children()
	require.Len(t, files, 2)
	assert.Equal(t, "cli", files[0].DisplayName())
	assert.Equal(t, "testplan/cli.yaml", files[0].Source())
	assert.Equal(t, "testplan/db.yaml", files[1].DisplayName(), "unnamed suites use the file path")
	assert.Equal(t, 6, root.CountTests())

	fetch, ok := root.Find(descriptor.EngineID(ID).Append("file", "testplan/cli.yaml").
		Append("group", "network").Append("test", "fetch"))
	require.True(t, ok)
	assert.Equal(t, []string{"smoke", "slow"}, fetch.Tags())
	assert.Equal(t, []string{"cli", "network", "fetch"}, fetch.Path())
}

func TestDiscover_FileSelectorsOverrideDefaults(t *testing.T) {
	t.Parallel()

	dir := writeSuites(t)
	e := New(WithDir(dir), WithShell(newFakeShell()))
	s := spec.New(spec.WithSelectors(spec.Selector{Kind: spec.SelectorFile, Value: "testplan/db.yaml"}))

	root := enginetest.Discover(t, e, s)
	require.Len(t, root.Children(), 1)
	assert.Equal(t, "testplan/db.yaml", root.Children()[0].Source())
}

func TestDiscover_InvalidSuite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("tests:\n  - name: x\n"), 0o600))

	e := New(WithDir(dir), WithFiles("*.yaml"))
	err := e.Discover(context.Background(), nil, descriptor.NewEngineRoot(ID, ID))
	require.ErrorIs(t, err, ErrInvalidSuite)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestParse_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "tests:\n  - name: a\n    run: x\n    expect: 1\n", "expect"},
		{"missing run", "tests:\n  - name: a\n", "suite/a: run is required"},
		{"unnamed test", "tests:\n  - run: x\n", "test 1 has no name"},
		{"duplicate test", "tests:\n  - {name: a, run: x}\n  - {name: a, run: y}\n", `duplicate test "a"`},
		{"duplicate group", "groups:\n  - name: g\n  - name: g\n", `duplicate group "g"`},
		{"bad output regexp", "tests:\n  - {name: a, run: x, expect_output: '('}\n", "expect_output"},
		{"bad condition", "groups:\n  - name: g\n    disabled_if_env: {matches: x}\n", "suite/g: disabled_if_env needs a name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.doc))
			require.ErrorIs(t, err, ErrInvalidSuite)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	t.Parallel()

	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, s.Tests)
}

func TestEnvCondition_FullMatch(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte("disabled_if_env: {name: CI, matches: 'tr.e'}\n"))
	require.NoError(t, err)
	cond := s.DisabledIfEnv

	env := func(v string, ok bool) func(string) (string, bool) {
		return func(string) (string, bool) { return v, ok }
	}
	assert.True(t, cond.Holds(env("true", true)))
	assert.False(t, cond.Holds(env("untrue", true)), "partial matches do not count")
	assert.False(t, cond.Holds(env("", false)), "unset variables never disable")

	var none *EnvCondition
	assert.False(t, none.Holds(env("true", true)))
}

type outcome struct {
	skipped string
	result  engine.Result
}

func execute(ctx context.Context, t *testing.T, e *Engine) map[string]outcome {
	t.Helper()
	root := enginetest.Discover(t, e, nil)
	got := map[string]outcome{}
	l := listener.ExecutionFuncs{
		OnSkipped: func(d *descriptor.Descriptor, reason string) error {
			got[d.DisplayName()] = outcome{skipped: reason}
			return nil
		},
		OnFinished: func(d *descriptor.Descriptor, r engine.Result) error {
			got[d.DisplayName()] = outcome{result: r}
			return nil
		},
	}
	require.NoError(t, e.Execute(ctx, engine.ExecutionContext{Root: root, Listener: l}))
	return got
}

func TestExecute_Results(t *testing.T) {
	t.Parallel()

	dir := writeSuites(t)
	sh := newFakeShell()
	sh.block["curl example.com"] = true
	got := execute(context.Background(), t, New(WithDir(dir), WithShell(sh), WithLookupEnv(noEnv)))

	assert.Equal(t, engine.StatusSucceeded, got["version"].result.Status)
	assert.Equal(t, []string{"v1.2.3"}, got["version"].result.Output)
	assert.Equal(t, engine.StatusSucceeded, got["exits"].result.Status)

	wrong := got["wrong exit"].result
	assert.Equal(t, engine.StatusFailed, wrong.Status)
	assert.EqualError(t, wrong.Err, "exit code 1, want 0")
	assert.Equal(t, []string{"boom"}, wrong.Output)

	fetch := got["fetch"].result
	assert.Equal(t, engine.StatusFailed, fetch.Status)
	assert.EqualError(t, fetch.Err, "timed out after 50ms")

	assert.EqualError(t, got["seed"].result.Err, `output does not match "done"`)
	assert.Equal(t, engine.StatusSucceeded, got["migrate"].result.Status)

	var fetchCmd Command
	for _, c := range sh.calls {
		if c.Script == "curl example.com" {
			fetchCmd = c
		}
	}
	assert.Equal(t, []string{"MODE=net"}, fetchCmd.Env)
	assert.Equal(t, filepath.Join(dir, "testplan"), fetchCmd.Dir)
}

func TestExecute_DisabledIfEnvSkips(t *testing.T) {
	t.Parallel()

	dir := writeSuites(t)
	sh := newFakeShell()
	lookup := func(name string) (string, bool) {
		switch name {
		case "OFFLINE":
			return "1", true
		case "CI":
			return "true", true
		}
		return "", false
	}
	got := execute(context.Background(), t, New(WithDir(dir), WithShell(sh), WithLookupEnv(lookup)))

	assert.Equal(t, `disabled: $OFFLINE matches "1|true"`, got["network"].skipped)
	assert.NotContains(t, got, "fetch", "tests in a skipped group are not reported individually")
	assert.Equal(t, `disabled: $CI matches "true"`, got["migrate"].skipped)
	for _, c := range sh.calls {
		assert.NotContains(t, []string{"curl example.com", "migrate up"}, c.Script)
	}
}

func TestExecute_CanceledContextAborts(t *testing.T) {
	t.Parallel()

	dir := writeSuites(t)
	sh := newFakeShell()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := execute(ctx, t, New(WithDir(dir), WithShell(sh), WithLookupEnv(noEnv)))

	assert.Equal(t, engine.StatusAborted, got["version"].result.Status)
	assert.ErrorIs(t, got["version"].result.Err, context.Canceled)
	assert.Empty(t, sh.calls)
}

func TestExecute_ShellErrorAborts(t *testing.T) {
	t.Parallel()

	dir := writeSuites(t)
	sh := newFakeShell()
	sh.err["seed"] = errors.New("exec: no such file")
	got := execute(context.Background(), t, New(WithDir(dir), WithShell(sh), WithLookupEnv(noEnv)))

	assert.Equal(t, engine.StatusAborted, got["seed"].result.Status)
	assert.EqualError(t, got["seed"].result.Err, "running script: exec: no such file")
}

func TestExecShell(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	t.Parallel()

	ctx := context.Background()
	out, err := ExecShell{}.Run(ctx, Command{Script: `echo "$GREETING"; exit 4`, Env: []string{"GREETING=hi"}})
	require.NoError(t, err)
	assert.Equal(t, 4, out.ExitCode)
	assert.Equal(t, "hi", strings.TrimSpace(out.Output))

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = ExecShell{}.Run(ctx, Command{Script: "sleep 5"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
