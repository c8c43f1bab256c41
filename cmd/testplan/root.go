package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkoosis/testplan/internal/config"
	"github.com/dkoosis/testplan/internal/logging"
	"github.com/dkoosis/testplan/pkg/engine"
	"github.com/dkoosis/testplan/pkg/engine/gotest"
	"github.com/dkoosis/testplan/pkg/engine/script"
	"github.com/dkoosis/testplan/pkg/render"
	"github.com/dkoosis/testplan/pkg/spec"
)

// app carries one invocation's resolved state between cobra hooks.
type app struct {
	stdout, stderr io.Writer

	v          *viper.Viper
	cfg        config.Config
	configFile string
	engineIDs  []string
	logger     *slog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, v: config.New(), logger: slog.New(slog.DiscardHandler)}
}

func (a *app) rootCommand() *cobra.Command {
	d := config.Defaults()
	root := &cobra.Command{
		Use:   "testplan",
		Short: "Discover and run tests across pluggable engines",
		Long: `testplan builds a test plan from every enabled engine, filters it by name and
tag, and executes it while streaming results to the terminal.

Configuration is read from flags, TESTPLAN_* environment variables,
` + config.LocalFile + ` in the working directory or $XDG_CONFIG_HOME/testplan/config.yaml,
in that order of precedence.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default "+config.LocalFile+")")
	pf.String("format", d.Format, "output format: "+strings.Join(config.Formats, ", "))
	pf.String("theme", d.Theme, "theme: "+strings.Join(render.ThemeNames(), ", "))
	pf.Bool("no-color", false, "disable colors (also NO_COLOR)")
	pf.Bool("ci", false, "CI mode: plain output, no live view (also CI)")
	pf.String("log-level", d.Log.Level, "diagnostic log level: debug, info, warn, error")
	pf.String("log-format", d.Log.Format, "diagnostic log format: text, json")
	pf.StringSlice("packages", d.Engines.GoTest.Packages, "go packages to test")
	pf.StringSlice("go-flags", nil, "extra flags passed to go test")
	pf.StringSlice("suites", d.Engines.Script.Files, "script suite files or globs")
	pf.StringSliceVar(&a.engineIDs, "engine", nil, "only use these engines ("+gotest.ID+", "+script.ID+")")
	pf.StringSlice("include", nil, "retain tests whose name matches any regexp")
	pf.StringSlice("exclude", nil, "drop tests whose name matches any regexp")
	pf.StringSlice("tags", nil, "retain tests with any of these tags")
	pf.StringSlice("exclude-tags", nil, "drop tests with any of these tags")
	pf.String("trace", d.Tracing.Exporter, "trace exporter: none, stdout, file, otlp")

	root.AddCommand(a.discoverCommand(), a.runCommand(), a.reportCommand(), a.configCommand(), a.versionCommand())
	return root
}

// load resolves configuration and the logger before any subcommand runs.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, config.LoadOptions{File: a.configFile})
	if err != nil {
		return err
	}
	logger, err := logging.New(a.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.logger.Debug("config loaded", slog.String("format", cfg.Format), slog.Bool("ci", cfg.CI))
	return nil
}

// engines builds the registry of enabled engines in a fixed order. With
// --engine only the named engines are registered, so the others never run
// discovery.
func (a *app) engines() (*engine.Registry, error) {
	var list []engine.Engine
	if gt := a.cfg.Engines.GoTest; gt.Enabled {
		list = append(list, gotest.New(
			gotest.WithDir(gt.Dir),
			gotest.WithPackages(gt.Packages...),
			gotest.WithFlags(gt.Flags...),
			gotest.WithLogger(a.logger.With(slog.String("engine", gotest.ID))),
		))
	}
	if sc := a.cfg.Engines.Script; sc.Enabled {
		list = append(list, script.New(
			script.WithDir(sc.Dir),
			script.WithFiles(sc.Files...),
			script.WithShell(script.ExecShell{Path: sc.Shell}),
			script.WithLogger(a.logger.With(slog.String("engine", script.ID))),
		))
	}
	reg, err := engine.NewRegistry(list...)
	if err != nil || len(a.engineIDs) == 0 {
		return reg, err
	}
	for _, id := range a.engineIDs {
		if _, ok := reg.Lookup(id); !ok {
			return nil, fmt.Errorf("engine %q is unknown or disabled", id)
		}
	}
	selected := slices.DeleteFunc(reg.Engines(), func(e engine.Engine) bool {
		return !slices.Contains(a.engineIDs, e.ID())
	})
	return engine.NewRegistry(selected...)
}

// suiteExtensions mark script suite files, in arguments and in watched changes.
var suiteExtensions = []string{".yaml", ".yml"}

// specification turns positional arguments and filter settings into a
// Specification. Arguments naming .yaml files select script suites; any
// other argument selects go packages.
func (a *app) specification(args []string) (*spec.Specification, error) {
	var selectors []spec.Selector
	for _, arg := range args {
		kind := spec.SelectorPackage
		if slices.Contains(suiteExtensions, filepath.Ext(arg)) {
			kind = spec.SelectorFile
		}
		selectors = append(selectors, spec.Selector{Kind: kind, Value: arg})
	}
	for _, id := range a.engineIDs {
		selectors = append(selectors, spec.Selector{Kind: spec.SelectorEngine, Value: id})
	}

	var filters []spec.Filter
	if len(a.engineIDs) > 0 {
		filters = append(filters, spec.IncludeEngines(a.engineIDs...))
	}
	if len(a.cfg.Include) > 0 {
		f, err := spec.IncludeNames(a.cfg.Include...)
		if err != nil {
			return nil, fmt.Errorf("--include: %w", err)
		}
		filters = append(filters, f)
	}
	if len(a.cfg.Exclude) > 0 {
		f, err := spec.ExcludeNames(a.cfg.Exclude...)
		if err != nil {
			return nil, fmt.Errorf("--exclude: %w", err)
		}
		filters = append(filters, f)
	}
	if len(a.cfg.Tags) > 0 {
		filters = append(filters, spec.IncludeTags(a.cfg.Tags...))
	}
	if len(a.cfg.ExcludeTags) > 0 {
		filters = append(filters, spec.ExcludeTags(a.cfg.ExcludeTags...))
	}
	return spec.New(spec.WithSelectors(selectors...), spec.WithFilters(filters...)), nil
}
