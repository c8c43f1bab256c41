package stream

import (
	"bytes"
	"fmt"
	"io"

	"github.com/charmbracelet/x/ansi"
)

// clearLineAbove moves the cursor up one line and clears it.
const clearLineAbove = "\033[1A\r\033[2K"

// screen owns the terminal while a plan streams: a scrolling history region
// with a footer redrawn below it. Nothing else may write to out meanwhile.
type screen struct {
	out    io.Writer
	width  int
	height int
	footer int // footer lines currently drawn
	buf    bytes.Buffer
}

func newScreen(out io.Writer, width, height int) *screen {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	return &screen{out: out, width: width, height: height}
}

// update replaces the footer and appends history lines above it. Each call
// reaches out as a single write so the footer never flickers half drawn.
func (s *screen) update(history, footer []string) {
	s.buf.Reset()
	for range s.footer {
		s.buf.WriteString(clearLineAbove)
	}
	s.footer = 0
	for _, line := range history {
		s.buf.WriteString(line)
		s.buf.WriteByte('\n')
	}
	s.drawFooter(footer)
	if s.buf.Len() > 0 {
		_, _ = s.out.Write(s.buf.Bytes())
	}
}

// drawFooter writes at most footerLimit lines, each cut to the width. When
// lines must be dropped the last slot says how many.
func (s *screen) drawFooter(lines []string) {
	if limit := s.footerLimit(); len(lines) > limit {
		hidden := len(lines) - (limit - 1)
		lines = append(lines[:limit-1:limit-1], fmt.Sprintf("  ... and %d more", hidden))
	}
	for _, line := range lines {
		s.buf.WriteString(fitWidth(line, s.width))
		s.buf.WriteByte('\n')
	}
	s.footer = len(lines)
}

func (s *screen) footerLimit() int {
	return max(3, s.height/3)
}

// fitWidth cuts s to width display columns. Escape sequences are kept and
// take no room.
func fitWidth(s string, width int) string {
	if ansi.StringWidth(s) <= width {
		return s
	}
	tail := "..."
	if width <= len(tail) {
		tail = ""
	}
	return ansi.Truncate(s, width, tail)
}
