package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/plan"
	"github.com/dkoosis/testplan/pkg/render"
)

// ErrInterrupted is returned when the user quits before the run finished.
var ErrInterrupted = errors.New("tui: interrupted")

// Bridge forwards unit events into a running program. Send blocks until the
// program has taken the message, so events keep their order. Once ctx is done
// every event fails with its error, which stops the launcher.
type Bridge struct {
	ctx  context.Context
	send func(tea.Msg)
}

func (b *Bridge) stopped() error {
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Err()
}

func (b *Bridge) ExecutionStarted(d *descriptor.Descriptor) error {
	if err := b.stopped(); err != nil {
		return err
	}
	if d.IsTest() {
		b.send(startedMsg{id: d.ID()})
	}
	return nil
}

func (b *Bridge) ExecutionSkipped(d *descriptor.Descriptor, reason string) error {
	if err := b.stopped(); err != nil {
		return err
	}
	var ids []descriptor.UniqueID
	d.Walk(func(n *descriptor.Descriptor) bool {
		if n.IsTest() {
			ids = append(ids, n.ID())
		}
		return true
	})
	b.send(skippedMsg{ids: ids, reason: reason})
	return nil
}

func (b *Bridge) ExecutionFinished(d *descriptor.Descriptor, r engine.Result) error {
	if err := b.stopped(); err != nil {
		return err
	}
	if d.IsTest() {
		b.send(finishedMsg{id: d.ID(), result: r})
	}
	return nil
}

// Options configures Run.
type Options struct {
	Theme render.Theme
	// KeepOpen leaves the view up after the run until the user presses q
	KeepOpen bool
	Program  []tea.ProgramOption
}

// Run shows p's progress while exec runs it. exec is called on its own
// goroutine with a context and the listener to register. The context is
// cancelled when the view closes, and Run returns only after exec has.
// Run returns whether any test failed and exec's error.
func Run(ctx context.Context, p *plan.TestPlan, exec func(context.Context, engine.ExecutionListener) error, opts Options) (failed bool, err error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newModel(p, opts.Theme, opts.KeepOpen),
		append([]tea.ProgramOption{tea.WithContext(ctx)}, opts.Program...)...)

	execDone := make(chan struct{})
	go func() {
		defer close(execDone)
		err := exec(runCtx, &Bridge{ctx: runCtx, send: prog.Send})
		prog.Send(doneMsg{err: err})
	}()

	final, progErr := prog.Run()
	// Send returns at once after the program has exited
	cancel()
	<-execDone

	if progErr != nil {
		return true, fmt.Errorf("running progress view: %w", progErr)
	}
	m := final.(model)
	if m.interrupted && !m.done {
		return true, ErrInterrupted
	}
	return m.failed(), m.err
}
