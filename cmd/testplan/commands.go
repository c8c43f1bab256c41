package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dkoosis/testplan/internal/config"
	"github.com/dkoosis/testplan/internal/logging"
	"github.com/dkoosis/testplan/internal/tracing"
	"github.com/dkoosis/testplan/internal/tui"
	"github.com/dkoosis/testplan/internal/version"
	"github.com/dkoosis/testplan/internal/watch"
	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/engine/gotest"
	"github.com/dkoosis/testplan/pkg/engine/script"
	"github.com/dkoosis/testplan/pkg/launcher"
	"github.com/dkoosis/testplan/pkg/listener"
	"github.com/dkoosis/testplan/pkg/mapper"
	"github.com/dkoosis/testplan/pkg/plan"
	"github.com/dkoosis/testplan/pkg/stream"
	"github.com/dkoosis/testplan/pkg/testjson"
)

func (a *app) discoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover [packages|suite.yaml ...]",
		Short: "Print the filtered test plan without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := a.resolveFormat()
			if mode == "testjson" {
				return fmt.Errorf("format testjson is only supported by run")
			}
			p, _, err := a.discover(cmd.Context(), args)
			if err != nil {
				return err
			}
			return a.print(mode, mapper.FromPlan(p))
		},
	}
}

func (a *app) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [packages|suite.yaml ...]",
		Short: "Discover and execute tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, reg, err := a.discover(ctx, args)
			if err != nil {
				return err
			}

			provider, err := tracing.NewProvider(ctx, a.cfg.Tracing, a.stderr)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := provider.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("tracing shutdown failed", slog.Any("error", err))
				}
			}()

			if a.cfg.Watch {
				return a.watch(ctx, args, reg, p, provider)
			}
			failed, err := a.execute(ctx, reg, p, provider)
			if err != nil {
				return err
			}
			if failed {
				return errTestsFailed
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Bool("tui", false, "show the interactive progress view")
	f.Bool("watch", false, "re-run the plan when sources change")
	return cmd
}

func (a *app) reportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report [file]",
		Short: "Render a recorded event stream (run --format testjson or go test -json)",
		Long: `report reads go test -json style events from file, or from stdin when file is
omitted or "-", and renders them like run does. The exit code reflects the
recorded outcome.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := a.resolveFormat()
			if mode == "testjson" {
				return fmt.Errorf("format testjson is only supported by run")
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			results, malformed, err := testjson.Read(in)
			if err != nil {
				return err
			}
			if malformed > 0 {
				a.logger.Warn("skipped malformed lines", slog.Int("count", malformed))
			}
			if len(results) == 0 {
				return fmt.Errorf("no test events in input")
			}
			if err := a.print(mode, mapper.FromTestJSON(results)); err != nil {
				return err
			}
			if !testjson.Summarize(results).Succeeded() {
				return errTestsFailed
			}
			return nil
		},
	}
}

func (a *app) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show resolved settings and the layer each came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := config.Explain(a.v, cmd.Flags())
			width := 0
			for _, r := range res {
				width = max(width, runewidth.StringWidth(r.Key))
			}
			for _, r := range res {
				if _, err := fmt.Fprintf(a.stdout, "%s  %v  (%s)\n", runewidth.FillRight(r.Key, width), r.Value, r.Source); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// no config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintln(a.stdout, version.String())
			return err
		},
	}
}

// discover builds the engine registry and the plan for args.
func (a *app) discover(ctx context.Context, args []string) (*plan.TestPlan, *engine.Registry, error) {
	reg, err := a.engines()
	if err != nil {
		return nil, nil, err
	}
	s, err := a.specification(args)
	if err != nil {
		return nil, nil, err
	}
	p, err := launcher.New(reg, launcher.WithLogger(a.logger)).Discover(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	return p, reg, nil
}

// execute runs p once with a fresh set of listeners and reports whether any
// test failed or aborted.
func (a *app) execute(ctx context.Context, reg *engine.Registry, p *plan.TestPlan, provider *tracing.Provider) (failed bool, err error) {
	l := launcher.New(reg, launcher.WithLogger(a.logger))

	var tally failureTally
	logs := logging.NewListener(a.logger)
	l.RegisterPlanListeners(logs)
	l.RegisterExecutionListeners(logs, tally.listener())

	if provider.Enabled() {
		spans := tracing.NewListener(ctx, provider.Tracer())
		defer spans.Close()
		l.RegisterPlanListeners(spans)
		l.RegisterExecutionListeners(spans)
	}

	theme, err := a.theme()
	if err != nil {
		return false, err
	}
	mode := a.resolveFormat()

	switch {
	case a.cfg.TUI && a.interactive():
		tuiFailed, err := tui.Run(ctx, p, func(runCtx context.Context, bridge engine.ExecutionListener) error {
			l.RegisterExecutionListeners(bridge)
			return l.ExecutePlan(runCtx, p)
		}, tui.Options{Theme: theme, KeepOpen: true})
		return tuiFailed || tally.failed, err

	case mode == "testjson":
		w := testjson.NewWriter(a.stdout)
		l.RegisterPlanListeners(w)
		l.RegisterExecutionListeners(w)
		err := l.ExecutePlan(ctx, p)
		return tally.failed, err

	case mode == "terminal" && a.interactive():
		width, height := termSize(a.stdout)
		live := stream.NewLive(a.stdout, width, height, streamStyle(theme))
		l.RegisterPlanListeners(live)
		l.RegisterExecutionListeners(live)
		err := l.ExecutePlan(ctx, p)
		liveFailed := live.Finish()
		return liveFailed || tally.failed, err

	default:
		collector := testjson.NewCollector()
		l.RegisterPlanListeners(collector)
		l.RegisterExecutionListeners(collector)
		runErr := l.ExecutePlan(ctx, p)
		// render what ran even when an engine broke off
		if err := a.print(mode, mapper.FromTestJSON(collector.Results())); err != nil {
			return true, errors.Join(runErr, err)
		}
		return tally.failed, runErr
	}
}

// watch executes p, then again after every debounced source change, until
// ctx is cancelled or the progress view is quit. A change to a suite file
// rediscovers the plan first; other changes re-run the plan as it is.
func (a *app) watch(ctx context.Context, args []string, reg *engine.Registry, p *plan.TestPlan, provider *tracing.Provider) error {
	var roots []string
	if _, ok := reg.Lookup(gotest.ID); ok {
		roots = append(roots, a.cfg.Engines.GoTest.Dir)
	}
	if _, ok := reg.Lookup(script.ID); ok {
		roots = append(roots, a.cfg.Engines.Script.Dir)
	}
	w, err := watch.New(watch.DefaultConfig(roots...))
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()
	changes, err := w.Start()
	if err != nil {
		return err
	}

	for runPlan := true; ; {
		if runPlan {
			_, err := a.execute(ctx, reg, p, provider)
			switch {
			case errors.Is(err, tui.ErrInterrupted):
				return nil
			case err != nil && ctx.Err() == nil:
				a.logger.Error("run failed", slog.Any("error", err))
			}
		}
		fmt.Fprintln(a.stderr, "testplan: watching for changes (ctrl+c to stop)")

		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			return fmt.Errorf("watching sources: %w", err)
		case change := <-changes:
			runPlan = true
			if !change.Has(suiteExtensions...) {
				a.logger.Info("sources changed, re-running plan", slog.String("plan", p.ID()))
				continue
			}
			next, nextReg, err := a.discover(ctx, args)
			if err != nil {
				a.logger.Error("rediscovery failed", slog.Any("error", err))
				runPlan = false
				continue
			}
			a.logger.Info("suites changed, rediscovered plan",
				slog.String("plan", next.ID()), slog.Int("tests", next.CountTests()))
			p, reg = next, nextReg
		}
	}
}

// failureTally records whether any unit failed or aborted.
type failureTally struct {
	failed bool
}

func (t *failureTally) listener() engine.ExecutionListener {
	return listener.ExecutionFuncs{
		OnFinished: func(d *descriptor.Descriptor, r engine.Result) error {
			if d.IsTest() && r.Status != engine.StatusSucceeded {
				t.failed = true
			}
			return nil
		},
	}
}
