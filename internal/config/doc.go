// Package config loads testplan's configuration.
//
// # Configuration Precedence
//
// Values are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--format, --theme, --tags, etc.)
//  2. Environment variables (TESTPLAN_FORMAT, TESTPLAN_LOG_LEVEL, NO_COLOR, CI)
//  3. YAML config file (.testplan.yaml in the working directory, or
//     $XDG_CONFIG_HOME/testplan/config.yaml)
//  4. Hardcoded defaults
//
// Nested keys map to environment variables by upper-casing and replacing
// dots with underscores: engines.gotest.packages is TESTPLAN_ENGINES_GOTEST_PACKAGES.
// List values in the environment are comma separated.
//
// # CI Mode
//
// When CI mode is enabled (via --ci, CI=true or ci: true in YAML) colors are
// disabled and the live stream and TUI are never used.
package config
