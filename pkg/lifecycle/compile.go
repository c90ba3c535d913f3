package lifecycle

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Compile errors.
var (
	// ErrInvalidDocument indicates the lifecycle document could not be parsed.
	ErrInvalidDocument = errors.New("invalid lifecycle document")

	// ErrGraphInvalid indicates the compiled graph failed validation.
	ErrGraphInvalid = errors.New("lifecycle graph validation failed")
)

// outcomeSpec is the YAML shape of a single outcome edge.
type outcomeSpec struct {
	Outcome string `yaml:"outcome"`
	On      string `yaml:"on"`
	Next    string `yaml:"next"`
}

// nodeSpec is the YAML shape of one graph node. Executor is a pointer so an
// explicit null (or an absent key) marks a phase-group node.
type nodeSpec struct {
	Label    string               `yaml:"label"`
	Executor *string              `yaml:"executor"`
	Parent   string               `yaml:"parent"`
	Results  map[string]yaml.Node `yaml:"results"`
}

// Compile parses the lifecycle document and validates the resulting graph.
// root names the act emitted for newly-started runs; validation walks the
// graph from it. The returned error joins every violation found; the
// process must not start with an invalid graph.
func Compile(doc []byte, root string) (*Graph, error) {
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(doc, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	graph := &Graph{
		Nodes:  make(map[string]*Node),
		States: make(map[string]Column),
		Root:   root,
	}

	for key, raw := range top {
		if key == "states" {
			if err := raw.Decode(&graph.States); err != nil {
				return nil, fmt.Errorf("%w: states: %v", ErrInvalidDocument, err)
			}
			continue
		}
		node, err := compileNode(key, raw)
		if err != nil {
			return nil, err
		}
		graph.Nodes[key] = node
	}

	if err := validateGraph(graph); err != nil {
		return nil, err
	}
	return graph, nil
}

// compileNode decodes one top-level key into a graph node, normalising each
// result into an ordered edge list (a bare mapping becomes a one-element list).
func compileNode(name string, raw yaml.Node) (*Node, error) {
	var spec nodeSpec
	if err := raw.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%w: node %q: %v", ErrInvalidDocument, name, err)
	}

	node := &Node{
		Name:    name,
		Label:   spec.Label,
		Group:   spec.Parent,
		Results: make(map[string][]OutcomeEdge, len(spec.Results)),
	}
	if spec.Executor != nil {
		node.Executor = *spec.Executor
		node.HasExec = true
	}

	for result, body := range spec.Results {
		edges, err := compileEdges(name, result, body)
		if err != nil {
			return nil, err
		}
		node.Results[result] = edges
	}
	return node, nil
}

func compileEdges(node, result string, body yaml.Node) ([]OutcomeEdge, error) {
	var specs []outcomeSpec
	switch body.Kind {
	case yaml.SequenceNode:
		if err := body.Decode(&specs); err != nil {
			return nil, fmt.Errorf("%w: node %q result %q: %v", ErrInvalidDocument, node, result, err)
		}
	default:
		var single outcomeSpec
		if err := body.Decode(&single); err != nil {
			return nil, fmt.Errorf("%w: node %q result %q: %v", ErrInvalidDocument, node, result, err)
		}
		specs = []outcomeSpec{single}
	}

	edges := make([]OutcomeEdge, 0, len(specs))
	for _, s := range specs {
		if s.Outcome == "" {
			return nil, fmt.Errorf("%w: node %q result %q: outcome is required", ErrInvalidDocument, node, result)
		}
		edges = append(edges, OutcomeEdge{Name: s.Outcome, In: s.On, Next: s.Next})
	}
	return edges, nil
}

// validateGraph checks every structural invariant, collecting all violations
// into a single error.
func validateGraph(g *Graph) error {
	var violations []error

	add := func(format string, args ...any) {
		violations = append(violations, fmt.Errorf(format, args...))
	}

	for _, col := range g.States {
		if !col.IsValid() {
			add("states: unknown board column %q", col)
		}
	}

	// Deterministic order for error output.
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := g.Nodes[name]
		if !node.IsPhaseGroup() && len(node.Results) == 0 {
			add("node %q: executor-bearing node has no results", name)
		}
		if node.Group != "" {
			parent, ok := g.Nodes[node.Group]
			if !ok {
				add("node %q: parent %q does not exist", name, node.Group)
			} else if !parent.IsPhaseGroup() {
				add("node %q: parent %q is not a phase group", name, node.Group)
			}
		}
		for result, edges := range node.Results {
			for _, edge := range edges {
				if _, ok := g.States[edge.Name]; !ok {
					add("node %q result %q: outcome %q has no state mapping", name, result, edge.Name)
				}
				if edge.In != "" {
					target, ok := g.Nodes[edge.In]
					if !ok {
						add("node %q result %q: group %q does not exist", name, result, edge.In)
					} else if !target.IsPhaseGroup() {
						add("node %q result %q: %q is not a phase group", name, result, edge.In)
					}
				}
				if edge.Next != "" {
					if _, ok := g.Nodes[edge.Next]; !ok {
						add("node %q result %q: next act %q does not exist", name, result, edge.Next)
					}
				}
			}
		}
	}

	if _, ok := g.Nodes[g.Root]; !ok {
		add("root act %q does not exist", g.Root)
	} else {
		reached := reachableFrom(g, g.Root)
		for _, name := range names {
			node := g.Nodes[name]
			if !node.IsPhaseGroup() && !reached[name] {
				add("node %q: executor-bearing node unreachable from root act %q", name, g.Root)
			}
		}
	}

	if len(violations) > 0 {
		return fmt.Errorf("%w:\n%w", ErrGraphInvalid, errors.Join(violations...))
	}
	return nil
}

// reachableFrom walks the graph breadth-first from the given act, following
// next edges, group re-parenting, and parent links.
func reachableFrom(g *Graph, root string) map[string]bool {
	reached := map[string]bool{root: true}
	queue := []string{root}

	visit := func(name string, queueRef *[]string) {
		if name == "" || reached[name] {
			return
		}
		if _, ok := g.Nodes[name]; !ok {
			return
		}
		reached[name] = true
		*queueRef = append(*queueRef, name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		node := g.Nodes[name]
		if node == nil {
			continue
		}
		visit(node.Group, &queue)
		for _, edges := range node.Results {
			for _, edge := range edges {
				visit(edge.In, &queue)
				visit(edge.Next, &queue)
			}
		}
	}
	return reached
}
