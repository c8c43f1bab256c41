package gotest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner starts the go tool. Start returns the command's stdout and a wait
// function that must be called after stdout is drained.
type Runner interface {
	Start(ctx context.Context, dir string, args ...string) (stdout io.ReadCloser, wait func() error, err error)
}

// ExecRunner runs a real go binary.
type ExecRunner struct {
	GoBin string   // defaults to "go"
	Env   []string // appended to the inherited environment
}

func (r ExecRunner) Start(ctx context.Context, dir string, args ...string) (io.ReadCloser, func() error, error) {
	bin := r.GoBin
	if bin == "" {
		bin = "go"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("gotest: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("gotest: starting %s: %w", bin, err)
	}
	wait := func() error {
		if err := cmd.Wait(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%w: %s", err, msg)
			}
			return err
		}
		return nil
	}
	return stdout, wait, nil
}
