// Package spec describes what a caller wants from a discover/execute run:
// selectors that engines may use as discovery hints, and filters that decide
// which discovered tests are retained.
package spec

import (
	"slices"

	"github.com/dkoosis/testplan/pkg/descriptor"
)

// Well-known selector kinds. Engines ignore kinds they do not understand.
const (
	SelectorPackage = "package" // Go package pattern, e.g. ./...
	SelectorFile    = "file"    // suite file path or glob
	SelectorEngine  = "engine"  // engine ID the caller is interested in
)

// Selector is a discovery hint, e.g. {Kind: "package", Value: "./pkg/..."}.
type Selector struct {
	Kind  string
	Value string
}

// Specification is the caller's intent for one discovery run. It is
// immutable once built; a nil *Specification accepts everything.
type Specification struct {
	selectors []Selector
	filters   []Filter
}

// Option configures a Specification.
type Option func(*Specification)

// WithSelectors adds discovery hints.
func WithSelectors(selectors ...Selector) Option {
	return func(s *Specification) {
		s.selectors = append(s.selectors, selectors...)
	}
}

// WithFilters adds filters; a test is retained only if every filter accepts it.
func WithFilters(filters ...Filter) Option {
	return func(s *Specification) {
		for _, f := range filters {
			if f != nil {
				s.filters = append(s.filters, f)
			}
		}
	}
}

// New builds a Specification.
func New(opts ...Option) *Specification {
	s := &Specification{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Selectors returns a copy of all selectors.
func (s *Specification) Selectors() []Selector {
	if s == nil {
		return nil
	}
	return slices.Clone(s.selectors)
}

// SelectorValues returns the values of every selector of the given kind, in order.
func (s *Specification) SelectorValues(kind string) []string {
	if s == nil {
		return nil
	}
	var values []string
	for _, sel := range s.selectors {
		if sel.Kind == kind {
			values = append(values, sel.Value)
		}
	}
	return values
}

// AcceptDescriptor reports whether the test d is retained. Filter errors
// are returned unchanged and stop evaluation.
func (s *Specification) AcceptDescriptor(d *descriptor.Descriptor) (bool, error) {
	if s == nil {
		return true, nil
	}
	for _, f := range s.filters {
		ok, err := f.Accept(d)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
