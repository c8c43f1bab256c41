package pattern

// NodeKind is the descriptor type a TreeNode stands for.
type NodeKind string

const (
	NodeEngine    NodeKind = "engine"
	NodeContainer NodeKind = "container"
	NodeTest      NodeKind = "test"
)

// Tree is a discovered plan: one root per engine.
type Tree struct {
	Label string     `json:"label"`
	Roots []TreeNode `json:"roots"`
}

// TreeNode is one descriptor. Tests counts the tests at or below it.
type TreeNode struct {
	Name     string     `json:"name"`
	Kind     NodeKind   `json:"kind"`
	ID       string     `json:"id"`
	Source   string     `json:"source,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
	Tests    int        `json:"tests"`
	Children []TreeNode `json:"children,omitempty"`
}

func (*Tree) Type() PatternType { return TypeTree }
