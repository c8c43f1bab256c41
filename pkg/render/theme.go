package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/dkoosis/testplan/pkg/pattern"
)

// Theme is the look shared by the Terminal renderer, the live stream and
// the progress UI.
type Theme struct {
	Name    string
	Primary lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Icons   ThemeIcons
}

// ThemeIcons are the glyphs a theme draws next to results.
type ThemeIcons struct {
	Pass   string
	Fail   string
	Warn   string
	Info   string
	Skip   string
	Bullet string
}

var (
	glyphs = ThemeIcons{Pass: "✓", Fail: "✗", Warn: "⚠", Info: "●", Skip: "○", Bullet: "·"}
	ascii  = ThemeIcons{Pass: "+", Fail: "x", Warn: "!", Info: "*", Skip: "-", Bullet: "-"}
)

// palette lists foreground colors in the order primary, success, warning,
// error, muted. A nil color leaves the terminal default.
type palette [5]lipgloss.TerminalColor

func newTheme(name string, p palette, icons ThemeIcons) Theme {
	styles := make([]lipgloss.Style, len(p))
	for i, c := range p {
		styles[i] = lipgloss.NewStyle()
		if c != nil {
			styles[i] = styles[i].Foreground(c)
		}
	}
	return Theme{
		Name:    name,
		Primary: styles[0],
		Success: styles[1],
		Warning: styles[2],
		Error:   styles[3],
		Muted:   styles[4],
		Bold:    lipgloss.NewStyle().Bold(true),
		Icons:   icons,
	}
}

// themes in the order ThemeNames lists them.
var themes = []func() Theme{
	DefaultTheme,
	func() Theme {
		return newTheme("orca", palette{
			lipgloss.Color("75"),  // pale blue
			lipgloss.Color("108"), // sage
			lipgloss.Color("179"), // gold
			lipgloss.Color("167"), // brick
			lipgloss.Color("245"),
		}, ThemeIcons{Pass: "✓", Fail: "✗", Warn: "!", Info: "·", Skip: "○", Bullet: "·"})
	},
	MonoTheme,
}

// DefaultTheme adapts its colors to light and dark terminals.
func DefaultTheme() Theme {
	return newTheme("default", palette{
		lipgloss.AdaptiveColor{Light: "25", Dark: "39"},
		lipgloss.AdaptiveColor{Light: "28", Dark: "34"},
		lipgloss.AdaptiveColor{Light: "166", Dark: "214"},
		lipgloss.AdaptiveColor{Light: "160", Dark: "196"},
		lipgloss.AdaptiveColor{Light: "245", Dark: "242"},
	}, glyphs)
}

// MonoTheme draws no colors and only ASCII icons, for CI logs and NO_COLOR.
func MonoTheme() Theme {
	return newTheme("mono", palette{}, ascii)
}

// ThemeNames lists the names accepted by ThemeByName.
func ThemeNames() []string {
	names := make([]string, len(themes))
	for i, build := range themes {
		names[i] = build().Name
	}
	return names
}

// ThemeByName returns the named theme. The empty name selects the default.
func ThemeByName(name string) (Theme, error) {
	if name == "" {
		return DefaultTheme(), nil
	}
	for _, build := range themes {
		if t := build(); t.Name == name {
			return t, nil
		}
	}
	return Theme{}, fmt.Errorf("unknown theme %q (want one of %v)", name, ThemeNames())
}

// Tone returns the icon and style for a summary metric.
func (t Theme) Tone(tone pattern.Tone) (string, lipgloss.Style) {
	switch tone {
	case pattern.ToneGood:
		return t.Icons.Pass, t.Success
	case pattern.ToneBad:
		return t.Icons.Fail, t.Error
	case pattern.ToneWarn:
		return t.Icons.Warn, t.Warning
	default:
		return t.Icons.Info, t.Primary
	}
}

// Status returns the icon and style for a result row.
func (t Theme) Status(s pattern.Status) (string, lipgloss.Style) {
	switch s {
	case pattern.StatusPass:
		return t.Icons.Pass, t.Success
	case pattern.StatusFail:
		return t.Icons.Fail, t.Error
	case pattern.StatusSkip:
		return t.Icons.Skip, t.Warning
	default:
		return t.Icons.Bullet, t.Muted
	}
}
