package nodegraph

import (
	"fmt"
	"os"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"sigs.k8s.io/yaml"
)

// LoadFile reads and parses a node graph file (JSON or YAML).
func LoadFile(path string) (*v1alpha1.NodeGraph, error) {
	//nolint:gosec // path comes from the operator's settings
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node graph %s: %w", path, err)
	}

	graph, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return graph, nil
}

// Parse decodes a node graph document. Unknown fields are declaration errors.
// The returned graph has every Node.Name set to its key; it is not validated.
func Parse(data []byte) (*v1alpha1.NodeGraph, error) {
	var graph v1alpha1.NodeGraph

	err := yaml.UnmarshalStrict(data, &graph)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}

	if len(graph.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes declared", ErrInvalidGraph)
	}

	for name, node := range graph.Nodes {
		if node == nil {
			return nil, fmt.Errorf("%w: node %q has no definition", ErrInvalidGraph, name)
		}

		node.Name = name
	}

	return &graph, nil
}
