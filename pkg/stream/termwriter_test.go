package stream

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

func stripANSI(s string) string { return ansi.Strip(s) }

func TestScreen_HistoryLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := newScreen(&buf, 80, 24)
	s.update([]string{"one", "two"}, nil)
	assert.Equal(t, "one\ntwo\n", buf.String())
	assert.Zero(t, s.footer)
}

func TestScreen_NothingToWrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := newScreen(&buf, 80, 24)
	s.update(nil, nil)
	assert.Zero(t, buf.Len())
}

func TestScreen_FooterIsReplaced(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := newScreen(&buf, 80, 24)
	s.update(nil, []string{"running a", "running b"})
	assert.Equal(t, 2, s.footer)

	buf.Reset()
	s.update([]string{"a passed"}, []string{"running b"})
	assert.Equal(t, strings.Repeat(clearLineAbove, 2)+"a passed\nrunning b\n", buf.String())
	assert.Equal(t, 1, s.footer)
}

func TestScreen_FooterCappedByHeight(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := newScreen(&buf, 80, 12) // limit max(3, 12/3) = 4
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = fmt.Sprintf("engine-%d", i)
	}
	s.update(nil, lines)

	assert.Equal(t, 4, s.footer)
	assert.Equal(t, "engine-0\nengine-1\nengine-2\n  ... and 7 more\n", buf.String())
}

func TestScreen_FooterFitsWidth(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := newScreen(&buf, 20, 24)
	s.update(nil, []string{"this is a very long line that exceeds twenty chars"})
	for _, line := range strings.Split(strings.TrimRight(stripANSI(buf.String()), "\n"), "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 20, line)
	}
}

func TestFitWidth(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", fitWidth("short", 8))
	assert.LessOrEqual(t, ansi.StringWidth(fitWidth("テストケース名", 8)), 8)
	assert.Equal(t, "ab", fitWidth("abcdef", 2))
	assert.Equal(t, "abc...", fitWidth("abcdefghij", 6))

	styled := "\x1b[31mred text\x1b[0m"
	assert.Equal(t, styled, fitWidth(styled, 8))
	assert.Equal(t, "red...", ansi.Strip(fitWidth(styled, 6)))
}
