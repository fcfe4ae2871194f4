// Package workspace is the entry point for operating on a whole test
// environment: it loads the node graph and catalog, wires the lifecycle
// services together and persists what happened between invocations.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/io/catalog"
	"github.com/devantler-tech/testbed/pkg/io/nodegraph"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/configgen"
	"github.com/devantler-tech/testbed/pkg/svc/instance"
	"github.com/devantler-tech/testbed/pkg/svc/pki"
	"github.com/devantler-tech/testbed/pkg/svc/remote"
	"github.com/devantler-tech/testbed/pkg/svc/resolver"
	"github.com/devantler-tech/testbed/pkg/svc/state"
	"github.com/devantler-tech/testbed/pkg/utils/logging"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/sirupsen/logrus"
)

const logsDirPerm = 0o750

// ErrNoSelection is returned when an operation that needs a node gets none.
var ErrNoSelection = errors.New("no node selected")

// Config locates a workspace's declarations and tunes its lifecycle.
type Config struct {
	WorkspaceDir string
	BaseDir      string
	// NodeGraph is the node graph file.
	NodeGraph string
	// CatalogDir holds one file per software component.
	CatalogDir string
	// ConfigRoot is where config generators run.
	ConfigRoot string
	// PollInterval spaces address queries while waiting for new nodes.
	PollInterval time.Duration
	Instance     instance.Options
}

// Services are the process-wide collaborators a workspace uses.
type Services struct {
	Backend backend.Backend
	// Shell reaches nodes that declare a remote block. Optional.
	Shell remote.Shell
	// Runner runs host commands: builds and config generators.
	Runner runner.CommandRunner
	// Authority backs trust bootstrap. Optional.
	Authority pki.Authority
	Output    io.Writer
	Logger    logrus.FieldLogger
}

// Workspace operates on every node of one environment.
type Workspace struct {
	config    Config
	manager   *instance.Manager
	connector *remote.Connector
	resolver  *resolver.Resolver
	env       *state.Environment
	output    io.Writer
	logger    logrus.FieldLogger
}

// Open loads and validates the node graph and catalog named by config and
// builds a Workspace over them.
func Open(config Config, services Services) (*Workspace, error) {
	components, err := catalog.LoadDir(config.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	graph, err := nodegraph.LoadFile(config.NodeGraph)
	if err != nil {
		return nil, fmt.Errorf("load node graph: %w", err)
	}

	err = nodegraph.Validate(graph, components)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", config.NodeGraph, err)
	}

	return New(graph, components, config, services)
}

// New builds a Workspace over an already validated graph and catalog.
// Node states saved by earlier invocations are restored.
func New(
	graph *v1alpha1.NodeGraph,
	components instance.ComponentSource,
	config Config,
	services Services,
) (*Workspace, error) {
	logger := services.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	output := services.Output
	if output == nil {
		output = io.Discard
	}

	connector := remote.NewConnector(services.Backend, services.Shell)
	res := resolver.New(graph, connector, resolver.Options{
		BaseDir:      config.BaseDir,
		WorkspaceDir: config.WorkspaceDir,
		PollInterval: config.PollInterval,
		Logger:       logger,
	})

	options := config.Instance
	options.BaseDir = config.BaseDir
	options.Output = output
	options.Logger = logger

	manager := instance.NewManager(instance.Dependencies{
		Graph:     graph,
		Catalog:   components,
		Connector: connector,
		Resolver:  res,
		Generator: configgen.New(services.Runner, config.ConfigRoot, logger),
		Host:      services.Runner,
		Authority: services.Authority,
	}, options)

	env := &state.Environment{Nodes: map[string]instance.State{}}

	if config.WorkspaceDir != "" {
		loaded, err := state.LoadOrEmpty(config.WorkspaceDir)
		if err != nil {
			return nil, fmt.Errorf("load workspace state: %w", err)
		}

		env = loaded
	}

	manager.Seed(env.Nodes)

	return &Workspace{
		config:    config,
		manager:   manager,
		connector: connector,
		resolver:  res,
		env:       env,
		output:    output,
		logger:    logger,
	}, nil
}

// Graph returns the node graph of the workspace.
func (w *Workspace) Graph() *v1alpha1.NodeGraph {
	return w.manager.Graph()
}

// Manager exposes the lifecycle manager.
func (w *Workspace) Manager() *instance.Manager {
	return w.manager
}

// Snapshots lists the snapshot names taken in this workspace.
func (w *Workspace) Snapshots() []string {
	return slices.Clone(w.env.Snapshots)
}

// Create instantiates the whole environment. With skipInstall the
// software stage is left out.
func (w *Workspace) Create(ctx context.Context, skipInstall bool) error {
	err := w.manager.InstantiateAll(ctx, skipInstall)

	return errors.Join(err, w.persist())
}

// DestroyAll destroys every node. Already absent nodes are not an error.
func (w *Workspace) DestroyAll(ctx context.Context) error {
	err := w.manager.DestroyAll(ctx)
	if err == nil {
		w.env.Snapshots = nil
	}

	return errors.Join(err, w.persist())
}

// nodes returns the selected node, or all nodes in instance order when name is empty.
func (w *Workspace) nodes(name string) ([]*v1alpha1.Node, error) {
	if name == "" {
		return w.Graph().Ordered(), nil
	}

	node, err := w.manager.Node(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // names the node
	}

	return []*v1alpha1.Node{node}, nil
}

// persist writes the current node states and snapshots to the workspace.
func (w *Workspace) persist() error {
	if w.config.WorkspaceDir == "" {
		return nil
	}

	w.env.Nodes = w.manager.States()

	err := state.Save(w.config.WorkspaceDir, w.env)
	if err != nil {
		return fmt.Errorf("save workspace state: %w", err)
	}

	return nil
}

func prepareDir(dir string) error {
	err := os.RemoveAll(dir)
	if err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}

	err = os.MkdirAll(filepath.Clean(dir), logsDirPerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	return nil
}
