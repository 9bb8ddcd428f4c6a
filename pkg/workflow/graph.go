package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Graph is a generated workflow: an ordered list of task nodes wired by named
// parameters.
type Graph struct {
	Goal    string      `json:"goal"`
	Inputs  []FieldDecl `json:"inputs"`
	Outputs []FieldDecl `json:"outputs"`
	Nodes   []Node      `json:"nodes"`
}

type Node struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Inputs      []FieldDecl `json:"inputs"`
	Outputs     []FieldDecl `json:"outputs"`
	Agents      []string    `json:"agents,omitempty"`
}

// Canonical returns the deterministic JSON encoding of the graph.
func (g *Graph) Canonical() (json.RawMessage, error) {
	if g == nil {
		return nil, fmt.Errorf("cannot serialize a nil graph")
	}

	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workflow graph: %w", err)
	}

	return data, nil
}

// Validate checks that every node has a unique name and that every declared graph
// output is produced by a node or passed through from an input.
func (g *Graph) Validate() error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}
	if len(g.Nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}

	var errs []error
	produced := make(map[string]struct{})
	for _, in := range g.Inputs {
		produced[in.Name] = struct{}{}
	}

	names := make(map[string]struct{}, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.Name == "" {
			errs = append(errs, fmt.Errorf("node at index %d has no name", i))
			continue
		}
		if _, dup := names[n.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate node name '%s'", n.Name))
		}
		names[n.Name] = struct{}{}
		for _, out := range n.Outputs {
			produced[out.Name] = struct{}{}
		}
	}

	for _, out := range g.Outputs {
		if _, ok := produced[out.Name]; !ok {
			errs = append(errs, fmt.Errorf("workflow output '%s' is not produced by any node", out.Name))
		}
	}

	return errors.Join(errs...)
}

// GraphFromJSON decodes a canonical graph.
func GraphFromJSON(data []byte) (*Graph, error) {
	g := &Graph{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to decode workflow graph: %w", err)
	}

	return g, nil
}
