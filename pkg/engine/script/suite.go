package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSuite is returned for suite files that cannot be parsed or fail validation.
var ErrInvalidSuite = errors.New("script: invalid suite")

// Suite is the top level of a suite file.
type Suite struct {
	// Dir is the working directory for commands, relative to the suite file
	Dir string `yaml:"dir,omitempty"`
	// Group holds the suite itself. Its Name labels the file's container
	// and defaults to the file path.
	Group `yaml:",inline"`
}

// Group is a named set of tests and nested groups.
type Group struct {
	Name string            `yaml:"name,omitempty"`
	Tags []string          `yaml:"tags,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
	// DisabledIfEnv skips every test in the group when it holds
	DisabledIfEnv *EnvCondition `yaml:"disabled_if_env,omitempty"`
	Tests         []Test        `yaml:"tests,omitempty"`
	Groups        []Group       `yaml:"groups,omitempty"`
}

// Test is one shell command with expectations.
type Test struct {
	Name string `yaml:"name"`
	// Run is the script passed to the shell with -c
	Run  string            `yaml:"run"`
	Tags []string          `yaml:"tags,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
	// ExpectExit is the required exit code, 0 when unset
	ExpectExit int `yaml:"expect_exit,omitempty"`
	// ExpectOutput is a regular expression the combined output must match
	ExpectOutput string `yaml:"expect_output,omitempty"`
	// ExpectGolden names a file, relative to the suite's dir, whose content
	// the output must equal line for line
	ExpectGolden  string        `yaml:"expect_golden,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	DisabledIfEnv *EnvCondition `yaml:"disabled_if_env,omitempty"`

	expectOutput *regexp.Regexp
}

// EnvCondition holds when the environment variable Name is set and its
// value fully matches the regular expression Matches. An unset variable
// never holds.
type EnvCondition struct {
	Name    string `yaml:"name"`
	Matches string `yaml:"matches"`

	re *regexp.Regexp
}

// Holds evaluates the condition with lookup, normally os.LookupEnv.
func (c *EnvCondition) Holds(lookup func(string) (string, bool)) bool {
	if c == nil {
		return false
	}
	v, ok := lookup(c.Name)
	return ok && c.re.MatchString(v)
}

func (c *EnvCondition) String() string {
	return fmt.Sprintf("$%s matches %q", c.Name, c.Matches)
}

// LoadFile reads and validates a suite file.
func LoadFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a suite document. Unknown keys are rejected.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuite, err)
	}
	if err := s.Group.validate("suite"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuite, err)
	}
	return &s, nil
}

func (g *Group) validate(where string) error {
	if err := g.DisabledIfEnv.compile(where); err != nil {
		return err
	}

	tests := map[string]bool{}
	for i := range g.Tests {
		t := &g.Tests[i]
		if t.Name == "" {
			return fmt.Errorf("%s: test %d has no name", where, i+1)
		}
		if tests[t.Name] {
			return fmt.Errorf("%s: duplicate test %q", where, t.Name)
		}
		tests[t.Name] = true
		at := where + "/" + t.Name
		if t.Run == "" {
			return fmt.Errorf("%s: run is required", at)
		}
		if t.ExpectOutput != "" {
			re, err := regexp.Compile(t.ExpectOutput)
			if err != nil {
				return fmt.Errorf("%s: expect_output: %v", at, err)
			}
			t.expectOutput = re
		}
		if err := t.DisabledIfEnv.compile(at); err != nil {
			return err
		}
	}

	groups := map[string]bool{}
	for i := range g.Groups {
		child := &g.Groups[i]
		if child.Name == "" {
			return fmt.Errorf("%s: group %d has no name", where, i+1)
		}
		if groups[child.Name] {
			return fmt.Errorf("%s: duplicate group %q", where, child.Name)
		}
		groups[child.Name] = true
		if err := child.validate(where + "/" + child.Name); err != nil {
			return err
		}
	}
	return nil
}

func (c *EnvCondition) compile(where string) error {
	if c == nil {
		return nil
	}
	if c.Name == "" {
		return fmt.Errorf("%s: disabled_if_env needs a name", where)
	}
	re, err := regexp.Compile("^(?:" + c.Matches + ")$")
	if err != nil {
		return fmt.Errorf("%s: disabled_if_env: %v", where, err)
	}
	c.re = re
	return nil
}
