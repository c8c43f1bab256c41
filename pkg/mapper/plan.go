package mapper

import (
	"fmt"
	"strconv"

	"github.com/dkoosis/testplan/pkg/descriptor"
	"github.com/dkoosis/testplan/pkg/pattern"
	"github.com/dkoosis/testplan/pkg/plan"
)

// FromPlan describes a discovered plan: a Summary, then a Tree with one root
// per engine in plan order.
func FromPlan(p *plan.TestPlan) []pattern.Pattern {
	tree := &pattern.Tree{Label: "Test Plan " + p.ID()}
	for _, id := range p.EngineIDs() {
		root, _ := p.Root(id)
		tree.Roots = append(tree.Roots, node(root))
	}

	tests := p.CountTests()
	tone := pattern.ToneGood
	if tests == 0 {
		tone = pattern.ToneWarn
	}
	summary := &pattern.Summary{
		Label:   fmt.Sprintf("PLAN %d tests in %d engines", tests, p.Len()),
		Subject: pattern.SubjectPlan,
		Metrics: []pattern.Metric{
			{Label: "Tests", Value: strconv.Itoa(tests), Tone: tone},
			{Label: "Engines", Value: strconv.Itoa(p.Len()), Tone: pattern.ToneInfo},
		},
	}
	return []pattern.Pattern{summary, tree}
}

func node(d *descriptor.Descriptor) pattern.TreeNode {
	n := pattern.TreeNode{
		Name:   d.DisplayName(),
		Kind:   pattern.NodeContainer,
		ID:     d.ID().String(),
		Source: d.Source(),
		Tags:   d.Tags(),
		Tests:  d.CountTests(),
	}
	switch d.Type() {
	case descriptor.TypeEngine:
		n.Kind = pattern.NodeEngine
	case descriptor.TypeTest:
		n.Kind = pattern.NodeTest
	}
	for _, c := range d.Children() {
		n.Children = append(n.Children, node(c))
	}
	return n
}
