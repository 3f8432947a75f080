package diagram

// NodeKind mirrors graph.NodeKind for rendering.
type NodeKind string

const (
	NodeKindInput  NodeKind = "input"
	NodeKindOutput NodeKind = "output"
	NodeKindCode   NodeKind = "code"
)

// Status values carried by a StatusOverlay.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node is a single graph node in the diagram.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Status *StatusOverlay
}

// StatusOverlay carries the outcome of the last evaluation for a node.
type StatusOverlay struct {
	Status string
	Error  string
	Value  string // output preview
}

// Edge is a value-flow link between two nodes.
type Edge struct {
	From  string
	To    string
	Label string
}

func (m *DiagramModel) node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
