// Package plan holds the aggregate result of discovery: one filtered and
// pruned descriptor tree per participating engine.
package plan

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dkoosis/testplan/pkg/descriptor"
)

var (
	// ErrDuplicateEngine is returned when a plan already holds a tree for the engine.
	ErrDuplicateEngine = errors.New("plan: engine already present")

	// ErrNotRoot is returned when adding a descriptor that is not an engine root.
	ErrNotRoot = errors.New("plan: descriptor is not an engine root")
)

// TestPlan maps engine IDs to their retained trees. It is read-only once built.
type TestPlan struct {
	id        string
	createdAt time.Time
	order     []string
	roots     map[string]*descriptor.Descriptor
}

// Builder assembles a TestPlan.
type Builder struct {
	p *TestPlan
}

// NewBuilder starts an empty plan.
func NewBuilder() *Builder {
	return &Builder{p: &TestPlan{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		roots:     make(map[string]*descriptor.Descriptor),
	}}
}

// Add records root as the tree for engineID.
func (b *Builder) Add(engineID string, root *descriptor.Descriptor) error {
	if root == nil || !root.IsRoot() {
		return fmt.Errorf("%w: engine %q", ErrNotRoot, engineID)
	}
	if _, dup := b.p.roots[engineID]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateEngine, engineID)
	}
	b.p.roots[engineID] = root
	b.p.order = append(b.p.order, engineID)
	return nil
}

// Build returns the plan. The builder must not be used afterwards.
func (b *Builder) Build() *TestPlan {
	p := b.p
	b.p = nil
	return p
}

// ID uniquely identifies this plan instance.
func (p *TestPlan) ID() string { return p.id }

// CreatedAt is when discovery started building the plan.
func (p *TestPlan) CreatedAt() time.Time { return p.createdAt }

// Root returns the tree for engineID. ok is false only if the engine did
// not take part in the discovery that built this plan.
func (p *TestPlan) Root(engineID string) (root *descriptor.Descriptor, ok bool) {
	root, ok = p.roots[engineID]
	return root, ok
}

// EngineIDs returns the engine IDs in discovery order.
func (p *TestPlan) EngineIDs() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of engines in the plan.
func (p *TestPlan) Len() int { return len(p.order) }

// CountTests returns the number of retained tests across all engines.
func (p *TestPlan) CountTests() int {
	n := 0
	for _, id := range p.order {
		n += p.roots[id].CountTests()
	}
	return n
}

// Walk visits every engine tree in discovery order, pre-order within each.
func (p *TestPlan) Walk(fn func(engineID string, d *descriptor.Descriptor) bool) {
	for _, id := range p.order {
		p.roots[id].Walk(func(d *descriptor.Descriptor) bool {
			return fn(id, d)
		})
	}
}
