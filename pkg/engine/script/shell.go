package script

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// waitDelay bounds how long a killed script's children may hold its output open.
const waitDelay = 500 * time.Millisecond

// Command is one script invocation.
type Command struct {
	Dir    string
	Script string
	Env    []string // KEY=value, appended to the inherited environment
}

// Outcome is what a finished command produced.
type Outcome struct {
	ExitCode int
	Output   string // stdout and stderr interleaved
}

// Shell runs scripts. A non-zero exit is an Outcome, not an error; errors
// mean the script could not be run at all.
type Shell interface {
	Run(ctx context.Context, cmd Command) (Outcome, error)
}

// ExecShell runs scripts with Path -c.
type ExecShell struct {
	Path string // defaults to /bin/sh
}

func (s ExecShell) Run(ctx context.Context, c Command) (Outcome, error) {
	path := s.Path
	if path == "" {
		path = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, path, "-c", c.Script)
	cmd.Dir = c.Dir
	cmd.Env = append(cmd.Environ(), c.Env...)
	cmd.WaitDelay = waitDelay

	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return Outcome{ExitCode: exitErr.ExitCode(), Output: string(out)}, nil
		}
		if ctx.Err() != nil {
			return Outcome{Output: string(out)}, ctx.Err()
		}
		return Outcome{}, err
	}
	return Outcome{Output: string(out)}, nil
}
