package enginetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/spec"
)

// errListenerBoom is returned by the aborting listener. Engines must surface it.
var errListenerBoom = errors.New("enginetest: listener failure")

// RunEngineTests runs every compliance check against engines produced by
// factory. The factory is called once per subtest to get fresh state.
func RunEngineTests(t *testing.T, factory func() engine.Engine) {
	t.Helper()

	t.Run("Identity", func(t *testing.T) { runIdentity(t, factory) })
	t.Run("Discovery", func(t *testing.T) { runDiscovery(t, factory) })
	t.Run("Execution", func(t *testing.T) { runExecution(t, factory) })
}

// Discover runs e's discovery into a fresh root without filtering.
func Discover(t *testing.T, e engine.Engine, s *spec.Specification) *descriptor.Descriptor {
	t.Helper()
	root := descriptor.NewEngineRoot(e.ID(), e.ID())
	require.NoError(t, e.Discover(context.Background(), s, root))
	return root
}

func runIdentity(t *testing.T, factory func() engine.Engine) {
	t.Helper()

	t.Run("IDNonEmpty", func(t *testing.T) {
		assert.NotEmpty(t, factory().ID())
	})

	t.Run("IDStable", func(t *testing.T) {
		e := factory()
		assert.Equal(t, e.ID(), e.ID())
		assert.Equal(t, e.ID(), factory().ID())
	})
}

func runDiscovery(t *testing.T, factory func() engine.Engine) {
	t.Helper()

	t.Run("NodesBelongToEngine", func(t *testing.T) {
		e := factory()
		root := Discover(t, e, nil)
		seen := map[descriptor.UniqueID]bool{}
		root.Walk(func(d *descriptor.Descriptor) bool {
			assert.Equal(t, e.ID(), d.ID().Engine(), "node %s", d.ID())
			assert.False(t, seen[d.ID()], "duplicate id %s", d.ID())
			seen[d.ID()] = true
			if d != root {
				assert.False(t, d.IsRoot(), "nested engine root %s", d.ID())
			}
			return true
		})
	})

	t.Run("Deterministic", func(t *testing.T) {
		first := outline(Discover(t, factory(), nil))
		second := outline(Discover(t, factory(), nil))
		assert.Equal(t, first, second)
	})

	t.Run("FiltersNotApplied", func(t *testing.T) {
		rejectAll := spec.New(spec.WithFilters(spec.FilterFunc(func(*descriptor.Descriptor) (bool, error) {
			return false, errors.New("engines must not evaluate filters")
		})))
		want := outline(Discover(t, factory(), nil))
		got := outline(Discover(t, factory(), rejectAll))
		assert.Equal(t, want, got)
	})
}

func runExecution(t *testing.T, factory func() engine.Engine) {
	t.Helper()

	t.Run("EmptyRootReportsNoTests", func(t *testing.T) {
		e := factory()
		rec := &recorder{}
		root := descriptor.NewEngineRoot(e.ID(), e.ID())
		require.NoError(t, e.Execute(context.Background(), engine.ExecutionContext{Root: root, Listener: rec}))
		for _, ev := range rec.events {
			assert.False(t, ev.d.IsTest(), "unexpected test event %s", ev)
		}
	})

	t.Run("ReportsEveryRetainedTest", func(t *testing.T) {
		e := factory()
		root := Discover(t, e, nil)
		if root.CountTests() == 0 {
			t.Skip("engine discovered no tests")
		}
		rec := &recorder{}
		require.NoError(t, e.Execute(context.Background(), engine.ExecutionContext{Root: root, Listener: rec}))
		rec.assertBalanced(t, root)
	})

	t.Run("ExecutesOnlyRetainedTests", func(t *testing.T) {
		e := factory()
		root := Discover(t, e, nil)
		if root.CountTests() < 2 {
			t.Skip("engine discovered fewer than two tests")
		}
		var keep descriptor.UniqueID
		root.Walk(func(d *descriptor.Descriptor) bool {
			if d.IsTest() && keep == "" {
				keep = d.ID()
			}
			return keep == ""
		})
		require.NoError(t, descriptor.Filter(root, func(d *descriptor.Descriptor) (bool, error) {
			return d.ID() == keep, nil
		}))
		require.NoError(t, descriptor.Prune(root))

		rec := &recorder{}
		require.NoError(t, e.Execute(context.Background(), engine.ExecutionContext{Root: root, Listener: rec}))
		rec.assertBalanced(t, root)
		for _, ev := range rec.events {
			if ev.d.IsTest() {
				assert.Equal(t, keep, ev.d.ID())
			}
		}
	})

	t.Run("ListenerErrorAborts", func(t *testing.T) {
		e := factory()
		root := Discover(t, e, nil)
		if root.CountTests() == 0 {
			t.Skip("engine discovered no tests")
		}
		rec := &recorder{failOn: 1}
		err := e.Execute(context.Background(), engine.ExecutionContext{Root: root, Listener: rec})
		require.ErrorIs(t, err, errListenerBoom)
		assert.Len(t, rec.events, 1, "no events after the failing one")
	})
}

// outline renders a tree as indented "type id name" lines.
func outline(root *descriptor.Descriptor) string {
	var sb strings.Builder
	root.Walk(func(d *descriptor.Descriptor) bool {
		fmt.Fprintf(&sb, "%s%s %s %q\n", strings.Repeat("  ", len(d.Path())), d.Type(), d.ID(), d.DisplayName())
		return true
	})
	return sb.String()
}

type event struct {
	kind string
	d    *descriptor.Descriptor
}

func (e event) String() string { return e.kind + " " + e.d.ID().String() }

// recorder is an ExecutionListener that records events and, when failOn > 0,
// fails on that event number.
type recorder struct {
	events []event
	failOn int
}

func (r *recorder) add(kind string, d *descriptor.Descriptor) error {
	r.events = append(r.events, event{kind: kind, d: d})
	if r.failOn > 0 && len(r.events) == r.failOn {
		return errListenerBoom
	}
	return nil
}

func (r *recorder) ExecutionStarted(d *descriptor.Descriptor) error { return r.add("started", d) }

func (r *recorder) ExecutionSkipped(d *descriptor.Descriptor, _ string) error {
	return r.add("skipped", d)
}

func (r *recorder) ExecutionFinished(d *descriptor.Descriptor, _ engine.Result) error {
	return r.add("finished", d)
}

// assertBalanced checks that every event refers to a node of root, every
// test is reported exactly once (skipped itself or through a container, or
// started then finished), and
// starts and finishes nest properly.
func (r *recorder) assertBalanced(t *testing.T, root *descriptor.Descriptor) {
	t.Helper()

	reported := map[descriptor.UniqueID]int{}
	var open []descriptor.UniqueID
	for _, ev := range r.events {
		found, ok := root.Find(ev.d.ID())
		if !assert.True(t, ok, "event for node outside the tree: %s", ev) {
			continue
		}
		assert.Same(t, found, ev.d, "event must carry the plan's descriptor: %s", ev)

		switch ev.kind {
		case "started":
			open = append(open, ev.d.ID())
		case "finished":
			if assert.NotEmpty(t, open, "finished without started: %s", ev) {
				assert.Equal(t, open[len(open)-1], ev.d.ID(), "finish out of order: %s", ev)
				open = open[:len(open)-1]
			}
			if ev.d.IsTest() {
				reported[ev.d.ID()]++
			}
		case "skipped":
			// a skipped container covers every test below it
			ev.d.Walk(func(d *descriptor.Descriptor) bool {
				if d.IsTest() {
					reported[d.ID()]++
				}
				return true
			})
		}
	}
	assert.Empty(t, open, "started without finished")

	root.Walk(func(d *descriptor.Descriptor) bool {
		if d.IsTest() {
			assert.Equal(t, 1, reported[d.ID()], "test %s reported %d times", d.ID(), reported[d.ID()])
		}
		return true
	})
}
