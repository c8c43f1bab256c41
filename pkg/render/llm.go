package render

import (
	"fmt"
	"strings"

	"github.com/dkoosis/testplan/pkg/pattern"
)

// llmDetailLines caps the detail lines printed under a row.
const llmDetailLines = 3

// LLM writes plain text for a language model to read: no ANSI codes, every
// summary as a SCOPE line up front, then tables and trees.
type LLM struct{}

// NewLLM returns an LLM renderer.
func NewLLM() *LLM { return &LLM{} }

var llmStatus = map[pattern.Status]string{
	pattern.StatusPass: "PASS",
	pattern.StatusFail: "FAIL",
	pattern.StatusSkip: "SKIP",
}

// Render implements Renderer.
func (l *LLM) Render(patterns []pattern.Pattern) string {
	var b strings.Builder
	for _, p := range patterns {
		if s, ok := p.(*pattern.Summary); ok {
			fmt.Fprintf(&b, "SCOPE: %s\n", s.Label)
		}
	}
	for _, p := range patterns {
		switch v := p.(type) {
		case *pattern.Table:
			l.table(&b, v)
		case *pattern.Tree:
			l.tree(&b, v)
		}
	}
	return b.String()
}

func (l *LLM) table(b *strings.Builder, t *pattern.Table) {
	fmt.Fprintf(b, "\n%s\n", t.Title)
	for _, r := range t.Rows {
		status, ok := llmStatus[r.Status]
		if !ok {
			status = "PASS"
		}
		fmt.Fprintf(b, "  %s %s", status, r.Name)
		if r.Duration != "" {
			fmt.Fprintf(b, " (%s)", r.Duration)
		}
		b.WriteByte('\n')

		if r.Details == "" {
			continue
		}
		lines := strings.Split(r.Details, "\n")
		for _, line := range lines[:min(len(lines), llmDetailLines)] {
			fmt.Fprintf(b, "    %s\n", line)
		}
		if extra := len(lines) - llmDetailLines; extra > 0 {
			fmt.Fprintf(b, "    ... (%d more lines)\n", extra)
		}
	}
}

// tree prints one test per line as its path below the engine, with tags.
func (l *LLM) tree(b *strings.Builder, t *pattern.Tree) {
	for _, root := range t.Roots {
		fmt.Fprintf(b, "\n## %s (%d tests)\n", root.Name, root.Tests)
		eachTest(root.Children, nil, func(path []string, tags []string) {
			b.WriteString("  " + strings.Join(path, "/"))
			if len(tags) > 0 {
				b.WriteString(" [" + strings.Join(tags, ",") + "]")
			}
			b.WriteByte('\n')
		})
	}
}

func eachTest(nodes []pattern.TreeNode, parent []string, fn func(path, tags []string)) {
	for _, n := range nodes {
		path := append(parent[:len(parent):len(parent)], n.Name)
		if n.Kind == pattern.NodeTest {
			fn(path, n.Tags)
		}
		eachTest(n.Children, path, fn)
	}
}
