package lifecycle

// ResultCreated is the implicit result type fired on a phase-group node
// when the phase is first entered (its group is created).
const ResultCreated = "created"

// OutcomeEdge is one outcome emitted for an executor result. In re-parents
// the outcome into the named phase group; Next names the act to emit after
// the outcome is recorded.
type OutcomeEdge struct {
	Name string
	In   string
	Next string
}

// Node is a static graph definition loaded once at startup. A nil Executor
// marks a phase-group node: it produces no work of its own but declares
// transitions (its "created" result fires when the phase is entered).
type Node struct {
	Name     string
	Label    string
	Executor string
	HasExec  bool
	Group    string
	Results  map[string][]OutcomeEdge
}

// IsPhaseGroup reports whether the node is a phase group (executor null).
func (n *Node) IsPhaseGroup() bool {
	return !n.HasExec
}

// Graph is the compiled lifecycle: the node set, the total outcome→column
// map, and the root act new runs start from.
type Graph struct {
	Nodes  map[string]*Node
	States map[string]Column
	Root   string
}

// Node returns the named node, or nil.
func (g *Graph) Node(name string) *Node {
	return g.Nodes[name]
}

// State returns the board column implied by an outcome name.
func (g *Graph) State(outcome string) (Column, bool) {
	c, ok := g.States[outcome]
	return c, ok
}

// ActNames returns the names of all executor-bearing nodes.
func (g *Graph) ActNames() []string {
	names := make([]string, 0, len(g.Nodes))
	for name, node := range g.Nodes {
		if !node.IsPhaseGroup() {
			names = append(names, name)
		}
	}
	return names
}
