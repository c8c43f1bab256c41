package descriptor

// Visitor is offered every node of a tree together with a single-use action
// that removes that node (and its subtree) from its parent.
type Visitor func(d *Descriptor, remove func()) error

// Predicate decides whether a test descriptor is retained.
type Predicate func(d *Descriptor) (bool, error)

// Accept visits d's subtree in post-order: every child is fully decided before
// its parent is offered to v. Each parent's child list is rebuilt from the
// surviving children, so removal never disturbs iteration and a removed
// subtree is never visited again.
//
// If v removes d itself and d has a parent, d is detached. A visitor error
// stops the traversal; the tree stays well formed, with the decisions made
// so far applied.
func (d *Descriptor) Accept(v Visitor) error {
	removed, err := d.accept(v)
	if err != nil {
		return err
	}
	if removed && d.parent != nil {
		d.parent.RemoveChild(d)
	}
	return nil
}

func (d *Descriptor) accept(v Visitor) (bool, error) {
	if len(d.children) > 0 {
		kept := make([]*Descriptor, 0, len(d.children))
		for i, c := range d.children {
			removed, err := c.accept(v)
			if err != nil {
				d.children = append(kept, d.children[i:]...)
				return false, err
			}
			if removed {
				c.parent = nil
				continue
			}
			kept = append(kept, c)
		}
		d.children = kept
	}

	removed := false
	if err := v(d, func() { removed = true }); err != nil {
		return false, err
	}
	return removed, nil
}

// Filter removes every test node rejected by accept. The predicate is never
// evaluated for containers or the root, and its errors are returned as-is.
func Filter(root *Descriptor, accept Predicate) error {
	return root.Accept(func(d *Descriptor, remove func()) error {
		if !d.IsTest() {
			return nil
		}
		ok, err := accept(d)
		if err != nil {
			return err
		}
		if !ok {
			remove()
		}
		return nil
	})
}

// Prune removes every non-root node without a test in its subtree.
// The root is kept even when it ends up with no children.
func Prune(root *Descriptor) error {
	return root.Accept(func(d *Descriptor, remove func()) error {
		if d.IsRoot() {
			return nil
		}
		if !HasTests(d) {
			remove()
		}
		return nil
	})
}

// HasTests reports whether d or any descendant is a test.
func HasTests(d *Descriptor) bool {
	if d.IsTest() {
		return true
	}
	for _, c := range d.children {
		if HasTests(c) {
			return true
		}
	}
	return false
}
