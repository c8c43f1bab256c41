package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dkoosis/testplan/pkg/pattern"
	"github.com/dkoosis/testplan/pkg/render"
	"github.com/dkoosis/testplan/pkg/stream"
)

// terminal returns the file descriptor behind w when w is a terminal.
func terminal(w io.Writer) (fd int, ok bool) {
	f, isFile := w.(*os.File)
	if !isFile || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	return int(f.Fd()), true
}

// termSize is the size of the terminal behind w, or 80x24 when unknown.
func termSize(w io.Writer) (width, height int) {
	if fd, ok := terminal(w); ok {
		if cols, rows, err := term.GetSize(fd); err == nil && cols > 0 && rows > 0 {
			return cols, rows
		}
	}
	return 80, 24
}

// interactive reports whether live views may take over the terminal.
func (a *app) interactive() bool {
	_, tty := terminal(a.stdout)
	return tty && !a.cfg.CI
}

// resolveFormat maps auto to terminal on a TTY and llm otherwise. CI mode
// never picks terminal on its own.
func (a *app) resolveFormat() string {
	if a.cfg.Format != "auto" {
		return a.cfg.Format
	}
	if a.interactive() {
		return "terminal"
	}
	return "llm"
}

func (a *app) theme() (render.Theme, error) {
	if a.cfg.NoColor || a.cfg.CI {
		return render.MonoTheme(), nil
	}
	return render.ThemeByName(a.cfg.Theme)
}

func (a *app) renderer(mode string) (render.Renderer, error) {
	switch mode {
	case "json":
		return render.NewJSON(), nil
	case "llm":
		return render.NewLLM(), nil
	case "terminal":
		theme, err := a.theme()
		if err != nil {
			return nil, err
		}
		width, _ := termSize(a.stdout)
		return render.NewTerminal(theme, width), nil
	default:
		return nil, fmt.Errorf("format %q cannot render patterns", mode)
	}
}

func (a *app) print(mode string, patterns []pattern.Pattern) error {
	r, err := a.renderer(mode)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(a.stdout, r.Render(patterns))
	return err
}

// streamStyle colors live output lines with the theme.
func streamStyle(theme render.Theme) stream.StyleFunc {
	return func(kind stream.LineKind, text string) string {
		switch kind {
		case stream.KindPass, stream.KindEnginePass:
			return theme.Success.Render(text)
		case stream.KindFail, stream.KindEngineFail:
			return theme.Error.Render(text)
		case stream.KindSkip:
			return theme.Warning.Render(text)
		case stream.KindSeparator:
			return theme.Muted.Render(text)
		default:
			return text
		}
	}
}
