package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/spec"
)

type stubEngine struct{ id string }

func (s stubEngine) ID() string { return s.id }

func (stubEngine) Discover(context.Context, *spec.Specification, *descriptor.Descriptor) error {
	return nil
}

func (stubEngine) Execute(context.Context, ExecutionContext) error { return nil }

func ids(engines []Engine) []string {
	out := make([]string, len(engines))
	for i, e := range engines {
		out[i] = e.ID()
	}
	return out
}

func TestRegistry_PreservesOrderAcrossCalls(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(stubEngine{"b"}, stubEngine{"a"})
	require.NoError(t, err)
	require.NoError(t, r.Register(stubEngine{"c"}))

	assert.Equal(t, []string{"b", "a", "c"}, ids(r.Engines()))
	assert.Equal(t, 3, r.Len())

	e, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a", e.ID())
	_, ok = r.Lookup("zzz")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicatesAtomically(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(stubEngine{"a"})
	require.NoError(t, err)

	err = r.Register(stubEngine{"b"}, stubEngine{"a"})
	assert.ErrorIs(t, err, ErrDuplicateEngine)
	err = r.Register(stubEngine{"c"}, stubEngine{"c"})
	assert.ErrorIs(t, err, ErrDuplicateEngine)

	assert.Equal(t, []string{"a"}, ids(r.Engines()))
}

func TestRegistry_RejectsInvalidEngines(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(stubEngine{""})
	assert.ErrorIs(t, err, ErrInvalidEngine)

	r, err := NewRegistry()
	require.NoError(t, err)
	assert.ErrorIs(t, r.Register(nil), ErrInvalidEngine)
}

func TestRegistry_EnginesIsSnapshot(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(stubEngine{"a"})
	require.NoError(t, err)
	snap := r.Engines()
	require.NoError(t, r.Register(stubEngine{"b"}))

	assert.Equal(t, []string{"a"}, ids(snap))
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "succeeded", StatusSucceeded.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "aborted", StatusAborted.String())
	assert.Equal(t, "unknown", Status(42).String())
}
