package spec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/testplan/pkg/descriptor"
)

func newTest(engine, name string, tags ...string) *descriptor.Descriptor {
	return descriptor.NewTest(descriptor.EngineID(engine).Append("test", name), name, descriptor.WithTags(tags...))
}

func TestNilSpecification_AcceptsAll(t *testing.T) {
	t.Parallel()

	var s *Specification
	ok, err := s.AcceptDescriptor(newTest("e", "TestA"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, s.Selectors())
	assert.Nil(t, s.SelectorValues(SelectorPackage))
}

func TestSpecification_NoFiltersAcceptsAll(t *testing.T) {
	t.Parallel()

	ok, err := New().AcceptDescriptor(newTest("e", "TestA"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSpecification_SelectorValues(t *testing.T) {
	t.Parallel()

	s := New(WithSelectors(
		Selector{Kind: SelectorPackage, Value: "./a/..."},
		Selector{Kind: SelectorFile, Value: "suite.yaml"},
		Selector{Kind: SelectorPackage, Value: "./b"},
	))

	assert.Equal(t, []string{"./a/...", "./b"}, s.SelectorValues(SelectorPackage))
	assert.Equal(t, []string{"suite.yaml"}, s.SelectorValues(SelectorFile))
	assert.Len(t, s.Selectors(), 3)
}

func TestSpecification_AllFiltersMustAccept(t *testing.T) {
	t.Parallel()

	include, err := IncludeNames("^TestA")
	require.NoError(t, err)
	s := New(WithFilters(include, ExcludeTags("slow"), nil))

	tests := []struct {
		name string
		d    *descriptor.Descriptor
		want bool
	}{
		{"name and tags match", newTest("e", "TestAlpha"), true},
		{"excluded tag", newTest("e", "TestAlpha", "slow"), false},
		{"name mismatch", newTest("e", "TestBeta"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.AcceptDescriptor(tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpecification_FilterErrorStopsEvaluation(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	called := false
	s := New(WithFilters(
		FilterFunc(func(*descriptor.Descriptor) (bool, error) { return false, boom }),
		FilterFunc(func(*descriptor.Descriptor) (bool, error) { called = true; return true, nil }),
	))

	_, err := s.AcceptDescriptor(newTest("e", "TestA"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestFilters(t *testing.T) {
	t.Parallel()

	exclude, err := ExcludeNames("Flaky$")
	require.NoError(t, err)
	a := newTest("gotest", "TestA", "db")
	flaky := newTest("script", "TestFlaky")

	check := func(f Filter, d *descriptor.Descriptor) bool {
		t.Helper()
		ok, err := f.Accept(d)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, check(exclude, a))
	assert.False(t, check(exclude, flaky))
	assert.True(t, check(IncludeTags("db", "net"), a))
	assert.False(t, check(IncludeTags("net"), a))
	assert.True(t, check(IncludeIDs(a.ID()), a))
	assert.False(t, check(IncludeIDs(a.ID()), flaky))
	assert.True(t, check(IncludeEngines("gotest"), a))
	assert.False(t, check(IncludeEngines("gotest"), flaky))
	assert.False(t, check(Not(IncludeEngines("gotest")), a))
}

func TestIncludeNames_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := IncludeNames("(")
	assert.Error(t, err)
	_, err = ExcludeNames("[")
	assert.Error(t, err)
}
