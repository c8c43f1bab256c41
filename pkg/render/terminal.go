package render

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dkoosis/testplan/pkg/pattern"
)

// Terminal draws patterns for a person at a terminal, styled by a Theme.
type Terminal struct {
	theme Theme
	width int
	title cases.Caser
}

// NewTerminal returns a renderer for a terminal width columns wide.
func NewTerminal(theme Theme, width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	return &Terminal{theme: theme, width: width, title: cases.Title(language.English)}
}

// Render draws each pattern as a block; blocks are separated by a blank line.
func (t *Terminal) Render(patterns []pattern.Pattern) string {
	blocks := make([]string, 0, len(patterns))
	for _, p := range patterns {
		var b strings.Builder
		switch v := p.(type) {
		case *pattern.Summary:
			t.summary(&b, v)
		case *pattern.Table:
			t.table(&b, v)
		case *pattern.Tree:
			t.tree(&b, v)
		}
		if b.Len() > 0 {
			blocks = append(blocks, b.String())
		}
	}
	return strings.Join(blocks, "\n")
}

func (t *Terminal) heading(b *strings.Builder, text string) {
	if text != "" {
		b.WriteString(t.theme.Bold.Render(text) + "\n")
	}
}

func (t *Terminal) summary(b *strings.Builder, s *pattern.Summary) {
	t.heading(b, s.Label)
	for _, m := range s.Metrics {
		icon, style := t.theme.Tone(m.Tone)
		fmt.Fprintf(b, "  %s\n", style.Render(icon+" "+m.Label+": "+m.Value))
	}
}

// table lines rows up in columns: icon, name, count, right-aligned duration.
// Names are cut to leave room for the other columns.
func (t *Terminal) table(b *strings.Builder, tbl *pattern.Table) {
	if len(tbl.Rows) == 0 {
		return
	}
	t.heading(b, tbl.Title)

	nameCol, durCol := 0, 0
	for _, r := range tbl.Rows {
		nameCol = max(nameCol, runewidth.StringWidth(r.Name))
		durCol = max(durCol, runewidth.StringWidth(r.Duration))
	}
	nameCol = max(10, min(nameCol, 60, t.width-20))

	for _, r := range tbl.Rows {
		icon, style := t.theme.Status(r.Status)
		b.WriteString("  " + style.Render(icon+" "))
		b.WriteString(runewidth.FillRight(runewidth.Truncate(r.Name, nameCol, "..."), nameCol))
		if r.Count > 0 {
			b.WriteString(t.theme.Muted.Render(fmt.Sprintf("  %d tests", r.Count)))
		}
		if r.Duration != "" {
			b.WriteString("  " + t.theme.Muted.Render(runewidth.FillLeft(r.Duration, durCol)))
		}
		if r.Details != "" {
			for line := range strings.SplitSeq(r.Details, "\n") {
				b.WriteString("\n    " + t.theme.Muted.Render(line))
			}
		}
		b.WriteByte('\n')
	}
}

func (t *Terminal) tree(b *strings.Builder, tr *pattern.Tree) {
	t.heading(b, tr.Label)
	for _, root := range tr.Roots {
		b.WriteString(t.theme.Primary.Render(t.title.String(root.Name)))
		b.WriteString(t.theme.Muted.Render(fmt.Sprintf("  %d tests", root.Tests)) + "\n")
		t.branch(b, root.Children, "")
	}
}

func (t *Terminal) branch(b *strings.Builder, nodes []pattern.TreeNode, indent string) {
	for i, n := range nodes {
		elbow, rail := "├── ", "│   "
		if i == len(nodes)-1 {
			elbow, rail = "└── ", "    "
		}
		b.WriteString(t.theme.Muted.Render(indent + elbow))
		if n.Kind == pattern.NodeTest {
			b.WriteString(t.theme.Icons.Bullet + " " + n.Name)
		} else {
			b.WriteString(t.theme.Bold.Render(n.Name) + t.theme.Muted.Render(fmt.Sprintf(" (%d)", n.Tests)))
		}
		if len(n.Tags) > 0 {
			b.WriteString(t.theme.Warning.Render("  #" + strings.Join(n.Tags, " #")))
		}
		b.WriteByte('\n')
		t.branch(b, n.Children, indent+rail)
	}
}
