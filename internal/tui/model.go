// Package tui is the interactive progress view for testplan run --tui: a
// spinner and progress bar over the plan's tests, a list of tests with their
// status and a pane with the selected test's output.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/plan"
	"github.com/dkoosis/testplan/pkg/render"
	"github.com/dkoosis/testplan/pkg/testjson"
)

type status int

const (
	statusPending status = iota
	statusRunning
	statusPassed
	statusFailed
	statusSkipped
	statusAborted
)

type row struct {
	engine   string
	name     string
	status   status
	started  time.Time
	duration time.Duration
	output   []string
}

func (r *row) terminal() bool { return r.status >= statusPassed }

type startedMsg struct{ id descriptor.UniqueID }

type skippedMsg struct {
	ids    []descriptor.UniqueID
	reason string
}

type finishedMsg struct {
	id     descriptor.UniqueID
	result engine.Result
}

type doneMsg struct{ err error }

type model struct {
	theme    render.Theme
	keepOpen bool

	rows     []*row
	index    map[descriptor.UniqueID]int
	selected int
	finished int

	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model

	width, height int
	ready         bool
	done          bool
	interrupted   bool
	err           error

	copyText func(string) error
	notice   string
}

func newModel(p *plan.TestPlan, theme render.Theme, keepOpen bool) model {
	m := model{
		theme:    theme,
		keepOpen: keepOpen,
		index:    map[descriptor.UniqueID]int{},
		spinner:  spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(theme.Primary)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		viewport: viewport.New(0, 0),
		copyText: clipboard.WriteAll,
	}
	p.Walk(func(engineID string, d *descriptor.Descriptor) bool {
		if d.IsTest() {
			m.index[d.ID()] = len(m.rows)
			m.rows = append(m.rows, &row{engine: engineID, name: testjson.TestName(d)})
		}
		return true
	})
	return m
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.interrupted = true
			return m, tea.Quit
		case "q":
			if m.done {
				return m, tea.Quit
			}
		case "y":
			m.notice = m.copySelected()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refreshViewport()
			}
		case "down", "j":
			if m.selected < len(m.rows)-1 {
				m.selected++
				m.refreshViewport()
			}
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.progress.Width = max(m.width-20, 10)
		m.viewport.Width = max(m.width-4, 10)
		m.viewport.Height = max(m.height/2-4, 3)
		m.ready = true
		m.refreshViewport()
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	case startedMsg:
		if r := m.row(msg.id); r != nil {
			r.status = statusRunning
			r.started = time.Now()
		}
	case skippedMsg:
		for _, id := range msg.ids {
			if r := m.row(id); r != nil && !r.terminal() {
				r.status = statusSkipped
				r.output = []string{"skipped: " + msg.reason}
				m.finished++
			}
		}
		return m, m.progress.SetPercent(m.percent())
	case finishedMsg:
		r := m.row(msg.id)
		if r == nil {
			return m, nil
		}
		r.status = resultStatus(msg.result.Status)
		r.duration = msg.result.Duration
		r.output = msg.result.Output
		if msg.result.Err != nil {
			r.output = append(append([]string(nil), r.output...), msg.result.Status.String()+": "+msg.result.Err.Error())
		}
		m.finished++
		if m.index[msg.id] == m.selected {
			m.refreshViewport()
		}
		return m, m.progress.SetPercent(m.percent())
	case doneMsg:
		m.done = true
		m.err = msg.err
		if !m.keepOpen {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) row(id descriptor.UniqueID) *row {
	i, ok := m.index[id]
	if !ok {
		return nil
	}
	return m.rows[i]
}

func (m model) percent() float64 {
	if len(m.rows) == 0 {
		return 1
	}
	return float64(m.finished) / float64(len(m.rows))
}

func resultStatus(s engine.Status) status {
	switch s {
	case engine.StatusSucceeded:
		return statusPassed
	case engine.StatusFailed:
		return statusFailed
	default:
		return statusAborted
	}
}

func (m *model) refreshViewport() {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return
	}
	r := m.rows[m.selected]
	if len(r.output) == 0 {
		m.viewport.SetContent(m.theme.Muted.Render("(no output)"))
		return
	}
	m.viewport.SetContent(wordwrap.String(strings.Join(r.output, "\n"), m.viewport.Width))
}

// copySelected puts the selected test's output on the clipboard and returns
// the notice to show.
func (m model) copySelected() string {
	if m.selected >= len(m.rows) || len(m.rows[m.selected].output) == 0 {
		return "nothing to copy"
	}
	r := m.rows[m.selected]
	if err := m.copyText(strings.Join(r.output, "\n")); err != nil {
		return "copy failed: " + err.Error()
	}
	return "copied output of " + r.name
}

// failed reports whether any test failed or aborted.
func (m model) failed() bool {
	for _, r := range m.rows {
		if r.status == statusFailed || r.status == statusAborted {
			return true
		}
	}
	return false
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var title string
	switch {
	case !m.done:
		title = fmt.Sprintf("%s Running %d tests", m.spinner.View(), len(m.rows))
	case m.failed() || m.err != nil:
		title = m.theme.Error.Render(m.theme.Icons.Fail + " FAIL")
	default:
		title = m.theme.Success.Render(m.theme.Icons.Pass + " PASS")
	}
	bar := fmt.Sprintf("%s %d/%d", m.progress.View(), m.finished, len(m.rows))

	listHeight := max(m.height-m.viewport.Height-8, 3)
	list := m.renderList(listHeight)

	var detail string
	if m.selected < len(m.rows) {
		r := m.rows[m.selected]
		detail = m.theme.Bold.Render(r.engine+" "+r.name) + "\n" + m.viewport.View()
	}
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-2, 10)).Render(detail)

	help := "↑/↓ navigate • y copy output"
	if m.done {
		help += " • q quit"
	}
	if m.notice != "" {
		help = m.notice + "\n" + help
	}
	if m.err != nil {
		help = m.theme.Error.Render("error: "+m.err.Error()) + "\n" + help
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, bar, "", list, box, m.theme.Muted.Render(help))
}

// renderList shows a window of rows that keeps the selection visible.
func (m model) renderList(height int) string {
	start := 0
	if m.selected >= height {
		start = m.selected - height + 1
	}
	end := min(start+height, len(m.rows))

	lines := make([]string, 0, height)
	for i := start; i < end; i++ {
		r := m.rows[i]
		line := fmt.Sprintf("%s %s %s", m.icon(r), m.theme.Muted.Render(r.engine), r.name)
		if r.terminal() && r.status != statusSkipped {
			line += m.theme.Muted.Render(" " + formatDuration(r.duration))
		}
		if i == m.selected {
			line = "▸ " + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m model) icon(r *row) string {
	switch r.status {
	case statusRunning:
		return m.spinner.View()
	case statusPassed:
		return m.theme.Success.Render(m.theme.Icons.Pass)
	case statusFailed, statusAborted:
		return m.theme.Error.Render(m.theme.Icons.Fail)
	case statusSkipped:
		return m.theme.Warning.Render(m.theme.Icons.Skip)
	default:
		return m.theme.Muted.Render(m.theme.Icons.Bullet)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Round(100*time.Millisecond).Seconds())
}
