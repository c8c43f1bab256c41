package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/testplan/pkg/pattern"
)

func planPatterns() []pattern.Pattern {
	return []pattern.Pattern{
		&pattern.Summary{
			Label:   "PLAN 2 tests in 1 engines",
			Subject: pattern.SubjectPlan,
			Metrics: []pattern.Metric{
				{Label: "Tests", Value: "2", Tone: pattern.ToneGood},
			},
		},
		&pattern.Tree{
			Label: "Test Plan",
			Roots: []pattern.TreeNode{{
				Name: "script", Kind: pattern.NodeEngine, Tests: 2,
				Children: []pattern.TreeNode{{
					Name: "smoke", Kind: pattern.NodeContainer, Tests: 2,
					Children: []pattern.TreeNode{
						{Name: "health", Kind: pattern.NodeTest, Tests: 1, Tags: []string{"fast"}},
						{Name: "login", Kind: pattern.NodeTest, Tests: 1},
					},
				}},
			}},
		},
	}
}

func resultPatterns() []pattern.Pattern {
	return []pattern.Pattern{
		&pattern.Summary{
			Label:   "FAIL 1/3 tests, 1 engines affected (1.2s)",
			Subject: pattern.SubjectResults,
			Metrics: []pattern.Metric{
				{Label: "Failed", Value: "1/3 tests", Tone: pattern.ToneBad},
				{Label: "Passed", Value: "2/3 tests", Tone: pattern.ToneInfo},
			},
		},
		&pattern.Table{
			Title: "FAIL func (1/3 failed)",
			Rows: []pattern.Row{
				{Name: "math/divides", Status: pattern.StatusFail, Details: "a\nb\nc\nd\ne"},
			},
		},
		&pattern.Table{
			Title: "Passing Engines (1)",
			Rows: []pattern.Row{
				{Name: "gotest", Status: pattern.StatusPass, Duration: "800ms", Count: 12},
				{Name: "script", Status: pattern.StatusSkip, Count: 1, Details: "skipped: smoke/slow"},
			},
		},
	}
}

func TestTerminal_RendersTree(t *testing.T) {
	t.Parallel()

	out := NewTerminal(MonoTheme(), 80).Render(planPatterns())

	assert.Contains(t, out, "PLAN 2 tests in 1 engines")
	assert.Contains(t, out, "Script  2 tests")
	assert.Contains(t, out, "└── smoke (2)")
	assert.Contains(t, out, "    ├── - health  #fast")
	assert.Contains(t, out, "    └── - login")
}

func TestTerminal_RendersResults(t *testing.T) {
	t.Parallel()

	out := NewTerminal(MonoTheme(), 80).Render(resultPatterns())

	assert.Contains(t, out, "x Failed: 1/3 tests")
	assert.Contains(t, out, "x math/divides")
	assert.Contains(t, out, "+ gotest")
	assert.Contains(t, out, "12 tests")
	assert.Contains(t, out, "800ms")
	assert.Contains(t, out, "- script")
	assert.Contains(t, out, "    skipped: smoke/slow")
}

func TestTerminal_PadsWideNames(t *testing.T) {
	t.Parallel()

	tt := &pattern.Table{Rows: []pattern.Row{
		{Name: "テスト", Status: pattern.StatusPass, Duration: "1s"},
		{Name: "ascii", Status: pattern.StatusPass, Duration: "1s"},
	}}
	out := NewTerminal(MonoTheme(), 80).Render([]pattern.Pattern{tt})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Index(lines[1], "1s"), strings.Index(lines[0], "1s")-len("テスト")+6)
}

func TestLLM_RendersResultsWithoutANSI(t *testing.T) {
	t.Parallel()

	out := NewLLM().Render(resultPatterns())

	assert.True(t, strings.HasPrefix(out, "SCOPE: FAIL 1/3 tests"))
	assert.Contains(t, out, "  FAIL math/divides\n    a\n    b\n    c\n    ... (2 more lines)\n")
	assert.Contains(t, out, "  PASS gotest (800ms)")
	assert.Contains(t, out, "  SKIP script\n    skipped: smoke/slow\n")
	assert.NotContains(t, out, "\x1b[")
}

func TestLLM_RendersPlanAsTestList(t *testing.T) {
	t.Parallel()

	out := NewLLM().Render(planPatterns())

	assert.Contains(t, out, "## script (2 tests)\n  smoke/health [fast]\n  smoke/login\n")
}

func TestJSON_WrapsPatterns(t *testing.T) {
	t.Parallel()

	out := NewJSON().Render(planPatterns())

	var decoded struct {
		Schema   string
		Patterns []struct {
			Type string
			Data json.RawMessage
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, JSONSchema, decoded.Schema)
	require.Len(t, decoded.Patterns, 2)
	assert.Equal(t, "summary", decoded.Patterns[0].Type)
	assert.Equal(t, "tree", decoded.Patterns[1].Type)
	assert.Contains(t, string(decoded.Patterns[1].Data), `"kind": "test"`)
}

func TestThemeByName(t *testing.T) {
	t.Parallel()

	for _, name := range ThemeNames() {
		th, err := ThemeByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, th.Name)
	}
	_, err := ThemeByName("neon")
	assert.ErrorContains(t, err, `unknown theme "neon"`)

	def, err := ThemeByName("")
	require.NoError(t, err)
	assert.Equal(t, "default", def.Name)
	assert.Equal(t, []string{"default", "orca", "mono"}, ThemeNames())
}

func TestTheme_StatusIcons(t *testing.T) {
	t.Parallel()

	mono := MonoTheme()
	for status, want := range map[pattern.Status]string{
		pattern.StatusPass: "+",
		pattern.StatusFail: "x",
		pattern.StatusSkip: "-",
	} {
		icon, _ := mono.Status(status)
		assert.Equal(t, want, icon, status)
	}
	icon, _ := mono.Tone(pattern.ToneWarn)
	assert.Equal(t, "!", icon)
}
