package gotest

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrDataRace marks failures the race detector reported.
var ErrDataRace = errors.New("data race detected")

// access is one side of a data race.
type access struct {
	write     bool
	previous  bool
	goroutine int
	function  string
	file      string
	line      int
}

func (a access) String() string {
	op := "read"
	if a.write {
		op = "write"
	}
	if a.previous {
		op = "previous " + op
	}
	s := fmt.Sprintf("%s by goroutine %d", op, a.goroutine)
	if a.file != "" {
		s += fmt.Sprintf(" at %s:%d", filepath.Base(a.file), a.line)
	}
	if a.function != "" {
		s += " in " + a.function
	}
	return s
}

type race struct {
	accesses []access
}

func (r race) String() string {
	parts := make([]string, len(r.accesses))
	for i, a := range r.accesses {
		parts[i] = a.String()
	}
	return strings.Join(parts, "; ")
}

var (
	raceHeaderRe   = regexp.MustCompile(`WARNING:\s*DATA\s*RACE`)
	raceAccessRe   = regexp.MustCompile(`^\s*(Previous )?([Rr]ead|[Ww]rite) at (?:0x[0-9a-f]+) by goroutine (\d+):`)
	raceGoroutine  = regexp.MustCompile(`^\s*Goroutine \d+ \([^)]+\) created at:`)
	raceFuncRe     = regexp.MustCompile(`^\s+(\S+)\(`)
	raceFileLineRe = regexp.MustCompile(`^\s+(\S+\.go):(\d+)`)
	raceDelimRe    = regexp.MustCompile(`^={10,}$`)
)

// parseRaces extracts race reports from a test's output. Only the first
// frame of each access is kept.
func parseRaces(lines []string) []race {
	var races []race
	var cur *race
	var last *access

	flush := func() {
		if cur != nil && len(cur.accesses) > 0 {
			races = append(races, *cur)
		}
		cur, last = nil, nil
	}

	for _, line := range lines {
		switch {
		case raceDelimRe.MatchString(strings.TrimSpace(line)):
			flush()
		case raceHeaderRe.MatchString(line):
			flush()
			cur = &race{}
		case cur == nil:
		case raceGoroutine.MatchString(line):
			// creation stacks follow the accesses
			last = nil
		default:
			if m := raceAccessRe.FindStringSubmatch(line); m != nil {
				g, _ := strconv.Atoi(m[3])
				cur.accesses = append(cur.accesses, access{
					write:     strings.EqualFold(m[2], "write"),
					previous:  m[1] != "",
					goroutine: g,
				})
				last = &cur.accesses[len(cur.accesses)-1]
				continue
			}
			if last == nil {
				continue
			}
			if m := raceFuncRe.FindStringSubmatch(line); m != nil && last.function == "" {
				last.function = m[1]
			} else if m := raceFileLineRe.FindStringSubmatch(line); m != nil && last.file == "" {
				last.file = m[1]
				last.line, _ = strconv.Atoi(m[2])
			}
		}
	}
	flush()
	return races
}

// failure builds the error for a failed test, naming the first data race
// when the race detector fired.
func failure(name string, output []string) error {
	races := parseRaces(output)
	if len(races) == 0 {
		return fmt.Errorf("%s failed", name)
	}
	if len(races) == 1 {
		return fmt.Errorf("%s failed: %w: %s", name, ErrDataRace, races[0])
	}
	return fmt.Errorf("%s failed: %w (%d races), first: %s", name, ErrDataRace, len(races), races[0])
}
