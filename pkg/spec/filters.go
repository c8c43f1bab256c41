package spec

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/dkoosis/testplan/pkg/descriptor"
)

// Filter decides whether a test descriptor is retained.
type Filter interface {
	Accept(d *descriptor.Descriptor) (bool, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(d *descriptor.Descriptor) (bool, error)

func (f FilterFunc) Accept(d *descriptor.Descriptor) (bool, error) { return f(d) }

// IncludeNames retains tests whose display name matches any of the regular
// expressions, the way go test -run matches test names.
func IncludeNames(patterns ...string) (Filter, error) {
	res, err := compileAll(patterns)
	if err != nil {
		return nil, err
	}
	return FilterFunc(func(d *descriptor.Descriptor) (bool, error) {
		return matchAny(res, d.DisplayName()), nil
	}), nil
}

// ExcludeNames drops tests whose display name matches any of the regular expressions.
func ExcludeNames(patterns ...string) (Filter, error) {
	res, err := compileAll(patterns)
	if err != nil {
		return nil, err
	}
	return FilterFunc(func(d *descriptor.Descriptor) (bool, error) {
		return !matchAny(res, d.DisplayName()), nil
	}), nil
}

// IncludeTags retains tests carrying at least one of tags.
func IncludeTags(tags ...string) Filter {
	return FilterFunc(func(d *descriptor.Descriptor) (bool, error) {
		return slices.ContainsFunc(tags, d.HasTag), nil
	})
}

// ExcludeTags drops tests carrying any of tags.
func ExcludeTags(tags ...string) Filter {
	return FilterFunc(func(d *descriptor.Descriptor) (bool, error) {
		return !slices.ContainsFunc(tags, d.HasTag), nil
	})
}

// IncludeIDs retains exactly the listed tests.
func IncludeIDs(ids ...descriptor.UniqueID) Filter {
	set := make(map[descriptor.UniqueID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return FilterFunc(func(d *descriptor.Descriptor) (bool, error) {
		_, ok := set[d.ID()]
		return ok, nil
	})
}

// IncludeEngines retains tests discovered by one of the named engines.
func IncludeEngines(engineIDs ...string) Filter {
	return FilterFunc(func(d *descriptor.Descriptor) (bool, error) {
		return slices.Contains(engineIDs, d.ID().Engine()), nil
	})
}

// Not inverts f. Errors from f pass through.
func Not(f Filter) Filter {
	return FilterFunc(func(d *descriptor.Descriptor) (bool, error) {
		ok, err := f.Accept(d)
		if err != nil {
			return false, err
		}
		return !ok, nil
	})
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid name pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
