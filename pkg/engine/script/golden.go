package script

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// goldenContext is how many unchanged lines are kept around each change.
const goldenContext = 2

// compareGolden checks output against the golden file at path. It returns
// nil when they match line for line, ignoring CRLF and a missing final
// newline, and otherwise a listing of the differences.
func compareGolden(path, output string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading golden file: %w", err)
	}
	want, got := normalizeLines(string(data)), normalizeLines(output)
	if want == got {
		return nil, nil
	}

	dmp := diffmatchpatch.New()
	a, b, index := dmp.DiffLinesToChars(want, got)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), index)

	var listing []string
	add := func(prefix string, lines []string) {
		for _, l := range lines {
			listing = append(listing, prefix+l)
		}
	}
	for i, d := range diffs {
		lines := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			add("- ", lines)
		case diffmatchpatch.DiffInsert:
			add("+ ", lines)
		default:
			head, tail, skipped := trimContext(lines, i > 0, i < len(diffs)-1)
			add("  ", head)
			if skipped > 0 {
				listing = append(listing, fmt.Sprintf("  ... (%d unchanged lines)", skipped))
			}
			add("  ", tail)
		}
	}
	return listing, nil
}

// trimContext splits an unchanged run into the goldenContext lines kept next
// to the change before it and the change after it, and the count dropped
// between them.
func trimContext(lines []string, changeBefore, changeAfter bool) (head, tail []string, skipped int) {
	keepHead, keepTail := 0, 0
	if changeBefore {
		keepHead = goldenContext
	}
	if changeAfter {
		keepTail = goldenContext
	}
	if keepHead+keepTail >= len(lines) {
		return lines, nil, 0
	}
	return lines[:keepHead], lines[len(lines)-keepTail:], len(lines) - keepHead - keepTail
}

func normalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}
