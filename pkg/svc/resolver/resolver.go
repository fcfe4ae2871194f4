package resolver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/remote"
	"github.com/devantler-tech/testbed/pkg/svc/template"
	"github.com/devantler-tech/testbed/pkg/utils/logging"
	"github.com/siderolabs/go-retry/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// System scope attributes besides the process environment.
const (
	SystemBaseDir      = "base_dir"
	SystemWorkspaceDir = "workspace_dir"
)

// DefaultPollInterval is the wait between address queries in WaitResolve.
const DefaultPollInterval = time.Second

// Attributes maps attribute names to values for one node or scope.
type Attributes map[string]string

// Options configures a Resolver.
type Options struct {
	BaseDir      string
	WorkspaceDir string
	// Environ lists the process environment. Nil uses os.Environ.
	Environ func() []string
	// PollInterval spaces address queries in WaitResolve.
	PollInterval time.Duration
	Logger       logrus.FieldLogger
}

// Resolver caches node attributes and renders templates against them.
type Resolver struct {
	graph     *v1alpha1.NodeGraph
	connector *remote.Connector
	options   Options
	logger    logrus.FieldLogger

	mu          sync.Mutex
	cache       map[string]Attributes
	generations map[string]uint64
	group       singleflight.Group
}

// New creates a Resolver for graph.
func New(graph *v1alpha1.NodeGraph, connector *remote.Connector, options Options) *Resolver {
	if options.Environ == nil {
		options.Environ = os.Environ
	}

	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Resolver{
		graph:       graph,
		connector:   connector,
		options:     options,
		logger:      logger,
		cache:       map[string]Attributes{},
		generations: map[string]uint64{},
	}
}

// Resolve returns the attributes of a node, querying it on a cache miss.
func (r *Resolver) Resolve(ctx context.Context, nodeID string) (Attributes, error) {
	node, ok := r.graph.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
	}

	r.mu.Lock()
	cached, hit := r.cache[nodeID]
	generation := r.generations[nodeID]
	r.mu.Unlock()

	if hit {
		return maps.Clone(cached), nil
	}

	value, err, _ := r.group.Do(nodeID, func() (any, error) {
		attrs, queryErr := r.query(ctx, node)
		if queryErr != nil {
			return nil, queryErr
		}

		r.mu.Lock()
		if r.generations[nodeID] == generation {
			r.cache[nodeID] = attrs
		}
		r.mu.Unlock()

		return attrs, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // query errors name the node
	}

	attrs, _ := value.(Attributes)

	return maps.Clone(attrs), nil
}

// Invalidate drops the cached attributes of a node so the next Resolve queries again.
func (r *Resolver) Invalidate(nodeID string) {
	r.mu.Lock()
	delete(r.cache, nodeID)
	r.generations[nodeID]++
	r.mu.Unlock()

	r.group.Forget(nodeID)
}

// RefreshAndResolve invalidates and resolves a node.
func (r *Resolver) RefreshAndResolve(ctx context.Context, nodeID string) (Attributes, error) {
	r.Invalidate(nodeID)

	return r.Resolve(ctx, nodeID)
}

// WaitResolve refreshes a node and keeps querying until it reports an address
// or timeout elapses. Freshly created nodes often need a moment before their
// backend knows the address.
func (r *Resolver) WaitResolve(ctx context.Context, nodeID string, timeout time.Duration) (Attributes, error) {
	r.Invalidate(nodeID)

	var attrs Attributes

	err := retry.Constant(timeout, retry.WithUnits(r.options.PollInterval)).
		RetryWithContext(ctx, func(ctx context.Context) error {
			resolved, err := r.Resolve(ctx, nodeID)
			if err != nil {
				if errors.Is(err, backend.ErrNoAddress) || errors.Is(err, ErrNodeNotCreated) {
					r.logger.WithField("node", nodeID).Debug("waiting for node address")

					return retry.ExpectedError(err)
				}

				return err
			}

			attrs = resolved

			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", nodeID, err)
	}

	return attrs, nil
}

// Lookup returns one attribute of a node or of the system scope.
func (r *Resolver) Lookup(ctx context.Context, identifier, attribute string) (string, error) {
	if identifier == v1alpha1.SystemScope {
		return lookupScope(identifier, r.System(), attribute)
	}

	attrs, err := r.Resolve(ctx, identifier)
	if err != nil {
		return "", err
	}

	return lookupScope(identifier, attrs, attribute)
}

// ResolveTemplate substitutes every node and system reference in text.
// Text without references is returned unchanged.
func (r *Resolver) ResolveTemplate(ctx context.Context, text string) (string, error) {
	rendered, err := template.Render(text, func(identifier, attribute string) (string, error) {
		return r.Lookup(ctx, identifier, attribute)
	})
	if err != nil {
		return "", fmt.Errorf("render %q: %w", text, err)
	}

	return rendered, nil
}

// System returns the system scope: the process environment plus base_dir and workspace_dir.
func (r *Resolver) System() Attributes {
	attrs := Attributes{}

	for _, entry := range r.options.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if ok && name != "" {
			attrs[name] = value
		}
	}

	attrs[SystemBaseDir] = r.options.BaseDir
	attrs[SystemWorkspaceDir] = r.options.WorkspaceDir

	return attrs
}

// Cached returns a copy of every cached node's attributes.
func (r *Resolver) Cached() map[string]Attributes {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]Attributes, len(r.cache))
	for nodeID, attrs := range r.cache {
		snapshot[nodeID] = maps.Clone(attrs)
	}

	return snapshot
}

// ResolveAll resolves every node of the graph, in instance order.
func (r *Resolver) ResolveAll(ctx context.Context) error {
	for _, nodeID := range r.graph.InstanceOrder {
		_, err := r.Resolve(ctx, nodeID)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *Resolver) query(ctx context.Context, node *v1alpha1.Node) (Attributes, error) {
	exists, err := r.connector.Exists(ctx, node)
	if err != nil {
		return nil, err //nolint:wrapcheck // connector errors name the node
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotCreated, node.Name)
	}

	handle, err := r.connector.Handle(node)
	if err != nil {
		return nil, err //nolint:wrapcheck // handle errors name the node
	}

	info, err := handle.GetInfo(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // handle errors name the node
	}

	attrs := Attributes(node.DeclaredAttributes())
	attrs[v1alpha1.AttributeIP] = info.IP
	attrs[v1alpha1.AttributeIPs] = strings.Join(info.IPs, " ")

	if info.Route == remote.RouteSSH {
		attrs[v1alpha1.AttributePort] = strconv.Itoa(info.Port)
		attrs[v1alpha1.AttributeUsername] = info.Username
	}

	r.logger.WithFields(logrus.Fields{"node": node.Name, "ip": info.IP}).Debug("resolved node")

	return attrs, nil
}

func lookupScope(identifier string, attrs Attributes, attribute string) (string, error) {
	value, ok := attrs[attribute]
	if !ok {
		return "", fmt.Errorf("%w: %s has no attribute %q", ErrUnknownAttribute, identifier, attribute)
	}

	return value, nil
}
