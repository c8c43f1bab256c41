package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// isolate points every lookup at empty temp dirs.
func isolate(t *testing.T) LoadOptions {
	t.Helper()
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
	t.Setenv("CI", "")
	os.Unsetenv("CI")
	return LoadOptions{Dir: t.TempDir(), UserDir: t.TempDir()}
}

func TestLoad_Defaults(t *testing.T) {
	opts := isolate(t)

	cfg, err := Load(New(), opts)
	require.NoError(t, err)
	d := Defaults()
	assert.Equal(t, d.Format, cfg.Format)
	assert.Equal(t, d.Theme, cfg.Theme)
	assert.Equal(t, d.Log, cfg.Log)
	assert.Equal(t, d.Tracing, cfg.Tracing)
	assert.Equal(t, []string{"./..."}, cfg.Engines.GoTest.Packages)
	assert.Equal(t, []string{"testplan/*.yaml"}, cfg.Engines.Script.Files)
	assert.Empty(t, cfg.Tags)
	assert.False(t, cfg.TUI)
}

func TestLoad_Precedence(t *testing.T) {
	opts := isolate(t)
	writeFile(t, filepath.Join(opts.Dir, LocalFile), `
format: llm
theme: orca
tags: [unit]
log:
  level: info
engines:
  gotest:
    packages: [./pkg/...]
  script:
    enabled: false
`)
	t.Setenv("TESTPLAN_THEME", "mono")
	t.Setenv("TESTPLAN_LOG_LEVEL", "debug")
	t.Setenv("TESTPLAN_EXCLUDE_TAGS", "slow,flaky")

	v := New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("format", "auto", "")
	fs.String("log-level", "warn", "")
	fs.StringSlice("tags", nil, "")
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--format", "json"}))

	cfg, err := Load(v, opts)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Format, "flag beats file")
	assert.Equal(t, "mono", cfg.Theme, "env beats file")
	assert.Equal(t, "debug", cfg.Log.Level, "env beats file and unchanged flag")
	assert.Equal(t, []string{"unit"}, cfg.Tags, "file beats unchanged flag")
	assert.Equal(t, []string{"slow", "flaky"}, cfg.ExcludeTags)
	assert.Equal(t, []string{"./pkg/..."}, cfg.Engines.GoTest.Packages)
	assert.False(t, cfg.Engines.Script.Enabled)
	assert.True(t, cfg.Engines.GoTest.Enabled, "defaults fill keys the file omits")

	sources := map[string]Source{}
	for _, r := range Explain(v, fs) {
		sources[r.Key] = r.Source
	}
	assert.Equal(t, SourceFlag, sources["format"])
	assert.Equal(t, SourceEnv, sources["theme"])
	assert.Equal(t, SourceFile, sources["tags"])
	assert.Equal(t, SourceDefault, sources["watch"])
}

func TestLoad_UserDirFallback(t *testing.T) {
	opts := isolate(t)
	writeFile(t, filepath.Join(opts.UserDir, "config.yaml"), "format: terminal\n")

	cfg, err := Load(New(), opts)
	require.NoError(t, err)
	assert.Equal(t, "terminal", cfg.Format)
}

func TestLoad_LocalFileWinsOverUserDir(t *testing.T) {
	opts := isolate(t)
	writeFile(t, filepath.Join(opts.UserDir, "config.yaml"), "format: terminal\n")
	writeFile(t, filepath.Join(opts.Dir, LocalFile), "format: llm\n")

	cfg, err := Load(New(), opts)
	require.NoError(t, err)
	assert.Equal(t, "llm", cfg.Format)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	opts := isolate(t)
	opts.File = filepath.Join(opts.Dir, "missing.yaml")

	_, err := Load(New(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestLoad_UnprefixedEnv(t *testing.T) {
	opts := isolate(t)
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CI", "true")

	cfg, err := Load(New(), opts)
	require.NoError(t, err)
	assert.True(t, cfg.NoColor)
	assert.True(t, cfg.CI)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"format", func(c *Config) { c.Format = "xml" }, `format "xml"`},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, `log.level "loud"`},
		{"log format", func(c *Config) { c.Log.Format = "yaml" }, `log.format "yaml"`},
		{"exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }, `tracing.exporter "zipkin"`},
		{"file exporter path", func(c *Config) { c.Tracing.Exporter = "file" }, "file_path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Defaults().Validate())
}
