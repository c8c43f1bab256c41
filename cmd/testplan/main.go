// testplan discovers and runs tests across pluggable engines and renders the
// results as information-dense terminal output.
//
// Usage:
//
//	testplan discover ./pkg/...
//	testplan run --tags smoke
//	testplan run --format testjson | jq .
//	testplan run --tui --watch
//
// Engines:
//
//	gotest   go test packages, one test per Test/Example/Fuzz function
//	script   YAML suites of shell commands (testplan/*.yaml)
//
// Output modes (auto-detected):
//
//	terminal  styled Unicode output (default when TTY; live stream for run)
//	llm       terse plain text for AI consumption (default when piped)
//	json      structured JSON for automation
//	testjson  go test -json compatible event stream (run only)
//
// Exit codes: 0 when everything passed, 1 when a test failed or aborted, 2 for
// usage, configuration and engine errors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitError  = 2
)

// errTestsFailed is returned by commands whose run completed with failures.
var errTestsFailed = errors.New("tests failed")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	return runContext(context.Background(), args, stdout, stderr)
}

// runContext runs the command tree until ctx is done or SIGINT or SIGTERM
// arrives.
func runContext(parent context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newApp(stdout, stderr).rootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errTestsFailed):
		return exitFailed
	default:
		fmt.Fprintf(stderr, "testplan: %v\n", err)
		return exitError
	}
}
