package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a resolved value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix prefixes every environment variable testplan reads.
const EnvPrefix = "TESTPLAN"

// LocalFile is the project config file looked up in the working directory.
const LocalFile = ".testplan.yaml"

// Formats accepted for the format key. auto picks terminal on a TTY and
// llm otherwise.
var Formats = []string{"auto", "terminal", "llm", "json", "testjson"}

// Config is the resolved configuration.
type Config struct {
	Format      string        `mapstructure:"format"`
	Theme       string        `mapstructure:"theme"`
	NoColor     bool          `mapstructure:"no_color"`
	CI          bool          `mapstructure:"ci"`
	Log         LogConfig     `mapstructure:"log"`
	Engines     EnginesConfig `mapstructure:"engines"`
	Include     []string      `mapstructure:"include"`      // test name regexps
	Exclude     []string      `mapstructure:"exclude"`      // test name regexps
	Tags        []string      `mapstructure:"tags"`         // retain tests with any of these
	ExcludeTags []string      `mapstructure:"exclude_tags"` // drop tests with any of these
	Tracing     TracingConfig `mapstructure:"tracing"`
	TUI         bool          `mapstructure:"tui"`
	Watch       bool          `mapstructure:"watch"`
}

// LogConfig configures the diagnostic logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// EnginesConfig enables and configures the built-in engines.
type EnginesConfig struct {
	GoTest GoTestConfig `mapstructure:"gotest"`
	Script ScriptConfig `mapstructure:"script"`
}

// GoTestConfig configures the go test engine.
type GoTestConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Dir      string   `mapstructure:"dir"`
	Packages []string `mapstructure:"packages"`
	Flags    []string `mapstructure:"flags"`
}

// ScriptConfig configures the YAML script engine.
type ScriptConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Dir     string   `mapstructure:"dir"`
	Files   []string `mapstructure:"files"`
	Shell   string   `mapstructure:"shell"`
}

// TracingConfig configures OpenTelemetry export of execution spans.
type TracingConfig struct {
	// Exporter is one of none, stdout, file, otlp
	Exporter string `mapstructure:"exporter" yaml:"exporter"`
	// FilePath is written by the file exporter as JSON lines
	FilePath string `mapstructure:"file_path" yaml:"file_path"`
	// OTLPEndpoint is the collector address for the otlp exporter
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Format: "auto",
		Theme:  "default",
		Log:    LogConfig{Level: "warn", Format: "text"},
		Engines: EnginesConfig{
			GoTest: GoTestConfig{Enabled: true, Dir: ".", Packages: []string{"./..."}},
			Script: ScriptConfig{Enabled: true, Dir: ".", Files: []string{"testplan/*.yaml"}, Shell: "/bin/sh"},
		},
		Tracing: TracingConfig{Exporter: "none", OTLPEndpoint: "localhost:4317", ServiceName: "testplan"},
	}
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault("format", d.Format)
	v.SetDefault("theme", d.Theme)
	v.SetDefault("no_color", d.NoColor)
	v.SetDefault("ci", d.CI)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("engines.gotest.enabled", d.Engines.GoTest.Enabled)
	v.SetDefault("engines.gotest.dir", d.Engines.GoTest.Dir)
	v.SetDefault("engines.gotest.packages", d.Engines.GoTest.Packages)
	v.SetDefault("engines.gotest.flags", d.Engines.GoTest.Flags)
	v.SetDefault("engines.script.enabled", d.Engines.Script.Enabled)
	v.SetDefault("engines.script.dir", d.Engines.Script.Dir)
	v.SetDefault("engines.script.files", d.Engines.Script.Files)
	v.SetDefault("engines.script.shell", d.Engines.Script.Shell)
	v.SetDefault("include", d.Include)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("tags", d.Tags)
	v.SetDefault("exclude_tags", d.ExcludeTags)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tui", d.TUI)
	v.SetDefault("watch", d.Watch)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the conventional unprefixed names are honored too
	_ = v.BindEnv("no_color", EnvPrefix+"_NO_COLOR", "NO_COLOR")
	_ = v.BindEnv("ci", EnvPrefix+"_CI", "CI")
	return v
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"format":       "format",
	"theme":        "theme",
	"no-color":     "no_color",
	"ci":           "ci",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"packages":     "engines.gotest.packages",
	"go-flags":     "engines.gotest.flags",
	"suites":       "engines.script.files",
	"include":      "include",
	"exclude":      "exclude",
	"tags":         "tags",
	"exclude-tags": "exclude_tags",
	"trace":        "tracing.exporter",
	"tui":          "tui",
	"watch":        "watch",
}

// BindFlags binds every known flag present in fs to its config key. Flags
// absent from fs are ignored.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// LoadOptions says where to look for config files.
type LoadOptions struct {
	// File is an explicit config file; it must exist
	File string
	// Dir is searched for LocalFile, defaults to the working directory
	Dir string
	// UserDir holds config.yaml, defaults to $XDG_CONFIG_HOME/testplan
	UserDir string
}

// Load reads the first config file found, then unmarshals and validates
// the layered configuration.
func Load(v *viper.Viper, opts LoadOptions) (Config, error) {
	switch local := filepath.Join(opts.Dir, LocalFile); {
	case opts.File != "":
		v.SetConfigFile(opts.File)
	case fileExists(local):
		v.SetConfigFile(local)
	default:
		dir := opts.UserDir
		if dir == "" {
			dir = userConfigDir()
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values.
func (c Config) Validate() error {
	if !slices.Contains(Formats, c.Format) {
		return fmt.Errorf("%w: format %q (want one of %s)", ErrInvalidConfig, c.Format, strings.Join(Formats, ", "))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	if !slices.Contains([]string{"none", "stdout", "file", "otlp"}, c.Tracing.Exporter) {
		return fmt.Errorf("%w: tracing.exporter %q", ErrInvalidConfig, c.Tracing.Exporter)
	}
	if c.Tracing.Exporter == "file" && c.Tracing.FilePath == "" {
		return fmt.Errorf("%w: tracing.file_path is required for the file exporter", ErrInvalidConfig)
	}
	return nil
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "testplan")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "testplan")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
