package remote

import (
	"context"
	"fmt"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
)

// Connector hands out handles for nodes and answers whether a node has been
// materialized yet.
type Connector struct {
	Backend backend.Backend
	Shell   Shell
}

// NewConnector creates a Connector over the process-wide backend and the remote shell.
func NewConnector(nodeBackend backend.Backend, shell Shell) *Connector {
	return &Connector{Backend: nodeBackend, Shell: shell}
}

// Handle returns a handle for node.
func (c *Connector) Handle(node *v1alpha1.Node) (*Handle, error) {
	return NewHandle(node, c.Backend, c.Shell)
}

// Exists reports whether node can be reached. Remote-shell nodes are
// declared to exist; backend nodes are asked.
func (c *Connector) Exists(ctx context.Context, node *v1alpha1.Node) (bool, error) {
	if !node.UsesBackend() {
		return node.Remote != nil && node.Remote.Host != "", nil
	}

	if c.Backend == nil {
		return false, fmt.Errorf("%w: %s needs an execution backend", ErrTransportUnavailable, node.Name)
	}

	exists, err := c.Backend.Exists(ctx, node.Name)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", node.Name, err)
	}

	return exists, nil
}
