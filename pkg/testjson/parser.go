package testjson

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineSize bounds one event line; verbose test output can be long.
const maxLineSize = 1 << 20

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

// decode parses one line. Blank lines are neither events nor malformed.
// go test interleaves plain text with the JSON when a build fails, so any
// line that is not a JSON object counts as malformed.
func decode(line []byte) (ev TestEvent, ok, malformed bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return ev, false, false
	}
	if line[0] != '{' || json.Unmarshal(line, &ev) != nil || ev.Action == "" {
		return ev, false, true
	}
	return ev, true, false
}

// Read aggregates a recorded event stream, from go test -json or from
// testplan run --format testjson, into per-package results. It returns the
// number of malformed lines skipped.
func Read(r io.Reader) ([]PackageResult, int, error) {
	agg := NewAggregator()
	malformed := 0
	sc := newScanner(r)
	for sc.Scan() {
		ev, ok, bad := decode(sc.Bytes())
		if bad {
			malformed++
		}
		if ok {
			agg.Process(ev)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, malformed, fmt.Errorf("reading test events: %w", err)
	}
	return agg.Results(), malformed, nil
}

// Stream decodes events from r as they arrive and calls fn for each one, on
// the caller's goroutine. It returns at EOF or when ctx is done, along with
// the number of malformed lines skipped.
//
// Reading happens on a helper goroutine. When ctx is done, r is closed if it
// is an io.Closer so that goroutine can exit; otherwise the caller must
// unblock r.
func Stream(ctx context.Context, r io.Reader, fn ProcessFunc) (malformed int, err error) {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := newScanner(r)
		for sc.Scan() {
			select {
			case lines <- bytes.Clone(sc.Bytes()):
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	stop := func() (int, error) {
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
		return malformed, ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return stop()
		case line, open := <-lines:
			if ctx.Err() != nil {
				// fn may have cancelled; deliver nothing more
				return stop()
			}
			if !open {
				if err := <-scanErr; err != nil {
					return malformed, fmt.Errorf("reading test events: %w", err)
				}
				return malformed, nil
			}
			ev, ok, bad := decode(line)
			if bad {
				malformed++
			}
			if ok {
				fn(ev)
			}
		}
	}
}
