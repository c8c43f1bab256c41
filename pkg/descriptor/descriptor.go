// Package descriptor models the tree of discoverable units an engine produces:
// one synthetic engine root, containers, and executable test leaves.
package descriptor

import (
	"errors"
	"slices"
)

var (
	// ErrHasParent is returned when adding a node that already belongs to a tree.
	ErrHasParent = errors.New("descriptor: node already has a parent")

	// ErrRootChild is returned when adding an engine root below another node.
	ErrRootChild = errors.New("descriptor: engine root cannot be a child")
)

// Type classifies a descriptor.
type Type int

const (
	// TypeEngine marks the single synthetic root of an engine's tree.
	TypeEngine Type = iota
	// TypeContainer groups other descriptors.
	TypeContainer
	// TypeTest is an executable leaf.
	TypeTest
)

func (t Type) String() string {
	switch t {
	case TypeEngine:
		return "engine"
	case TypeContainer:
		return "container"
	case TypeTest:
		return "test"
	default:
		return "unknown"
	}
}

// Descriptor is a node in an engine's discovered hierarchy.
//
// Engines create descriptors during discovery. After discovery the launcher
// only removes nodes, and during execution the tree is read-only.
// Tests are expected to have no children; this is not enforced.
type Descriptor struct {
	id       UniqueID
	name     string
	typ      Type
	source   string
	tags     []string
	parent   *Descriptor
	children []*Descriptor
}

// Option configures a new descriptor.
type Option func(*Descriptor)

// WithSource records where the unit is defined (file:line, package path, ...).
func WithSource(source string) Option {
	return func(d *Descriptor) {
		d.source = source
	}
}

// WithTags attaches tags usable by tag filters.
func WithTags(tags ...string) Option {
	return func(d *Descriptor) {
		d.tags = append(d.tags, tags...)
	}
}

// NewEngineRoot creates the root descriptor for an engine.
func NewEngineRoot(engineID, displayName string) *Descriptor {
	if displayName == "" {
		displayName = engineID
	}
	return &Descriptor{id: EngineID(engineID), name: displayName, typ: TypeEngine}
}

// NewContainer creates a container descriptor.
func NewContainer(id UniqueID, displayName string, opts ...Option) *Descriptor {
	return newDescriptor(id, displayName, TypeContainer, opts)
}

// NewTest creates a test descriptor.
func NewTest(id UniqueID, displayName string, opts ...Option) *Descriptor {
	return newDescriptor(id, displayName, TypeTest, opts)
}

func newDescriptor(id UniqueID, name string, typ Type, opts []Option) *Descriptor {
	d := &Descriptor{id: id, name: name, typ: typ}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

func (d *Descriptor) ID() UniqueID        { return d.id }
func (d *Descriptor) DisplayName() string { return d.name }
func (d *Descriptor) Type() Type          { return d.typ }
func (d *Descriptor) Source() string      { return d.source }
func (d *Descriptor) Parent() *Descriptor { return d.parent }

// IsTest reports whether d is an executable leaf.
func (d *Descriptor) IsTest() bool { return d.typ == TypeTest }

// IsRoot reports whether d is the engine root.
func (d *Descriptor) IsRoot() bool { return d.typ == TypeEngine }

// Tags returns a copy of the descriptor's tags.
func (d *Descriptor) Tags() []string { return slices.Clone(d.tags) }

// HasTag reports whether d carries tag.
func (d *Descriptor) HasTag(tag string) bool { return slices.Contains(d.tags, tag) }

// Children returns a copy of the ordered child list.
func (d *Descriptor) Children() []*Descriptor { return slices.Clone(d.children) }

// Len returns the number of direct children.
func (d *Descriptor) Len() int { return len(d.children) }

// AddChild appends child, making d its parent.
func (d *Descriptor) AddChild(child *Descriptor) error {
	if child.IsRoot() {
		return ErrRootChild
	}
	if child.parent != nil {
		return ErrHasParent
	}
	child.parent = d
	d.children = append(d.children, child)
	return nil
}

// RemoveChild detaches child from d. It reports whether child was found.
func (d *Descriptor) RemoveChild(child *Descriptor) bool {
	i := slices.Index(d.children, child)
	if i < 0 {
		return false
	}
	d.children = slices.Delete(d.children, i, i+1)
	child.parent = nil
	return true
}

// Walk calls fn for d and every descendant in pre-order. Returning false from
// fn skips that node's subtree. Walk must not be used to mutate the tree.
func (d *Descriptor) Walk(fn func(*Descriptor) bool) {
	if !fn(d) {
		return
	}
	for _, c := range d.children {
		c.Walk(fn)
	}
}

// Find returns the descriptor with the given ID in d's subtree.
func (d *Descriptor) Find(id UniqueID) (*Descriptor, bool) {
	var found *Descriptor
	d.Walk(func(n *Descriptor) bool {
		if found != nil {
			return false
		}
		if n.id == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// CountTests returns the number of test nodes in d's subtree, d included.
func (d *Descriptor) CountTests() int {
	n := 0
	d.Walk(func(x *Descriptor) bool {
		if x.IsTest() {
			n++
		}
		return true
	})
	return n
}

// Path returns the display names from below the engine root down to d.
func (d *Descriptor) Path() []string {
	var names []string
	for n := d; n != nil && !n.IsRoot(); n = n.parent {
		names = append(names, n.name)
	}
	slices.Reverse(names)
	return names
}
