package script

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/testplan/pkg/engine"
)

func writeGolden(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.golden")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCompareGolden(t *testing.T) {
	t.Parallel()

	numbered := func(n int, change map[int]string) string {
		var b strings.Builder
		for i := 1; i <= n; i++ {
			line, ok := change[i]
			if !ok {
				line = "line " + string(rune('a'+i-1))
			}
			b.WriteString(line + "\n")
		}
		return b.String()
	}

	tests := []struct {
		name   string
		golden string
		output string
		want   []string
	}{
		{name: "equal", golden: "a\nb\n", output: "a\nb\n"},
		{name: "crlf and final newline", golden: "a\r\nb\r\n", output: "a\nb"},
		{
			name:   "changed line",
			golden: "a\nb\nc\n",
			output: "a\nB\nc\n",
			want:   []string{"  a", "- b", "+ B", "  c"},
		},
		{
			name:   "long unchanged runs are cut",
			golden: numbered(10, nil),
			output: numbered(10, map[int]string{6: "changed"}),
			want: []string{
				"  ... (3 unchanged lines)",
				"  line d", "  line e",
				"- line f", "+ changed",
				"  line g", "  line h",
				"  ... (2 unchanged lines)",
			},
		},
		{name: "missing output", golden: "a\n", output: "", want: []string{"- a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			diff, err := compareGolden(writeGolden(t, tt.golden), tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.want, diff)
		})
	}
}

func TestCompareGolden_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := compareGolden(filepath.Join(t.TempDir(), "nope.golden"), "x")
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorContains(t, err, "reading golden file")
}

func TestExecute_ExpectGolden(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "testplan", "testdata"), 0o755))
	suite := `name: golden
tests:
  - name: same
    run: print ok
    expect_golden: testdata/ok.golden
  - name: different
    run: print other
    expect_golden: testdata/ok.golden
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testplan", "golden.yaml"), []byte(suite), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testplan", "testdata", "ok.golden"), []byte("ok\n"), 0o600))

	sh := newFakeShell()
	sh.out["print ok"] = Outcome{Output: "ok\n"}
	sh.out["print other"] = Outcome{Output: "other\n"}
	got := execute(context.Background(), t, New(WithDir(dir), WithShell(sh), WithLookupEnv(noEnv)))

	assert.Equal(t, engine.StatusSucceeded, got["same"].result.Status)

	different := got["different"].result
	assert.Equal(t, engine.StatusFailed, different.Status)
	assert.EqualError(t, different.Err, "output differs from testdata/ok.golden")
	assert.Equal(t, []string{"other", "- ok", "+ other"}, different.Output)
}
