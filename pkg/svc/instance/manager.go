package instance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/configgen"
	"github.com/devantler-tech/testbed/pkg/svc/pki"
	"github.com/devantler-tech/testbed/pkg/svc/remote"
	"github.com/devantler-tech/testbed/pkg/svc/resolver"
	"github.com/devantler-tech/testbed/pkg/utils/logging"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/devantler-tech/testbed/pkg/utils/timer"
	"github.com/sirupsen/logrus"
)

// Defaults applied by NewManager to zero options.
const (
	DefaultAddressTimeout = 60 * time.Second
	DefaultTrustDir       = "/usr/local/share/ca-certificates"
	DefaultTrustCommand   = "update-ca-certificates"
	DefaultConfigRoot     = "/opt/testbed/etc"
	// TrustedCAFile is the file name the CA certificate gets in the trust directory.
	TrustedCAFile = "testbed-ca.crt"
)

const maxDefaultWorkers = 8

// ComponentSource looks up software components by name.
type ComponentSource interface {
	Get(name string) (*v1alpha1.Component, error)
}

// Dependencies are the collaborators a Manager drives.
type Dependencies struct {
	Graph     *v1alpha1.NodeGraph
	Catalog   ComponentSource
	Connector *remote.Connector
	Resolver  *resolver.Resolver
	Generator *configgen.Generator
	// Host runs host-side build commands.
	Host runner.CommandRunner
	// Authority is optional; nodes with trust_ca fail without it.
	Authority pki.Authority
}

// Options tunes a Manager.
type Options struct {
	// BaseDir is where host builds run and relative component sources resolve.
	BaseDir string
	// DefaultConfigRoot is the config target for nodes whose software names none.
	DefaultConfigRoot string
	// SettleDelay is waited after creating a node.
	SettleDelay time.Duration
	// AddressTimeout bounds the wait for a new node's address.
	AddressTimeout time.Duration
	// InstanceDelay is waited before the instance-command pass.
	InstanceDelay time.Duration
	// Workers bounds parallel provisioning. Zero picks a default from NumCPU.
	Workers      int
	TrustDir     string
	TrustCommand string
	// Output receives operator-facing progress. Nil discards it.
	Output io.Writer
	Timer  timer.Timer
	Logger logrus.FieldLogger
}

// Manager runs lifecycle stages against the nodes of one graph and records
// the state each node reached.
type Manager struct {
	deps    Dependencies
	options Options
	logger  logrus.FieldLogger

	mu     sync.Mutex
	states map[string]State
}

// NewManager creates a Manager. Every node starts out Declared.
func NewManager(deps Dependencies, options Options) *Manager {
	if options.AddressTimeout <= 0 {
		options.AddressTimeout = DefaultAddressTimeout
	}

	if options.Workers <= 0 {
		options.Workers = DefaultWorkers()
	}

	if options.TrustDir == "" {
		options.TrustDir = DefaultTrustDir
	}

	if options.TrustCommand == "" {
		options.TrustCommand = DefaultTrustCommand
	}

	if options.DefaultConfigRoot == "" {
		options.DefaultConfigRoot = DefaultConfigRoot
	}

	if options.Output == nil {
		options.Output = io.Discard
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Manager{
		deps:    deps,
		options: options,
		logger:  logger,
		states:  map[string]State{},
	}
}

// DefaultWorkers is min(max(NumCPU, 2), 8).
func DefaultWorkers() int {
	return min(max(runtime.NumCPU(), 2), maxDefaultWorkers)
}

// Graph returns the node graph the manager drives.
func (m *Manager) Graph() *v1alpha1.NodeGraph {
	return m.deps.Graph
}

// State returns the lifecycle state recorded for a node.
func (m *Manager) State(name string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.states[name]
}

// States returns the recorded state of every node in the graph.
func (m *Manager) States() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]State, len(m.deps.Graph.Nodes))
	for name := range m.deps.Graph.Nodes {
		states[name] = m.states[name]
	}

	return states
}

// Seed loads previously recorded states, e.g. from an earlier process.
// Names outside the graph are ignored.
func (m *Manager) Seed(states map[string]State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, state := range states {
		if _, ok := m.deps.Graph.Node(name); ok {
			m.states[name] = state
		}
	}
}

// Node returns the graph node with the given name.
func (m *Manager) Node(name string) (*v1alpha1.Node, error) {
	node, ok := m.deps.Graph.Node(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}

	return node, nil
}

// InstantiateAll brings every node to Ready. Nodes are created and
// initialized strictly in instance order, instance commands run once all
// nodes exist, and the remaining stages run in parallel across nodes.
// With skipInstall the software stage is left out.
func (m *Manager) InstantiateAll(ctx context.Context, skipInstall bool) error {
	notify.Titlef(m.options.Output, "🚀", "Create nodes...")

	for _, node := range m.deps.Graph.Ordered() {
		err := m.CreateNode(ctx, node)
		if err != nil {
			return err
		}

		err = m.InitNode(ctx, node)
		if err != nil {
			return err
		}
	}

	err := m.RunInstanceCommands(ctx)
	if err != nil {
		return err
	}

	return m.ProvisionAll(ctx, skipInstall)
}

// ProvisionAll runs config generation, installation, config application and
// trust bootstrap on every node in parallel. The resolver cache is filled
// and host builds run first so workers only read from it.
func (m *Manager) ProvisionAll(ctx context.Context, skipInstall bool) error {
	err := m.deps.Resolver.ResolveAll(ctx)
	if err != nil {
		return fmt.Errorf("resolve nodes: %w", err)
	}

	nodes := m.deps.Graph.Ordered()

	if !skipInstall {
		err = m.BuildComponents(ctx, nodes, nil, v1alpha1.InstallFresh)
		if err != nil {
			return fmt.Errorf("build software: %w", err)
		}
	}
	tasks := make([]notify.ProgressTask, 0, len(nodes))

	for _, node := range nodes {
		tasks = append(tasks, notify.ProgressTask{
			Name: node.Name,
			Fn: func(ctx context.Context) error {
				return m.provision(ctx, node, skipInstall)
			},
		})
	}

	group := notify.NewProgressGroup(
		"Provision nodes", "🛠️", m.options.Output, m.progressOptions(notify.ProvisioningLabels())...,
	)

	err = group.Run(ctx, tasks...)
	if err != nil {
		return fmt.Errorf("provision nodes: %w", err)
	}

	return nil
}

// provision runs the per-node stages after creation, in order. Host builds
// have already run.
func (m *Manager) provision(ctx context.Context, node *v1alpha1.Node, skipInstall bool) error {
	err := m.GenerateConfig(ctx, node)
	if err != nil {
		return err
	}

	if !skipInstall {
		err = m.installOnNode(ctx, node, node.ComponentNames(), v1alpha1.InstallFresh)
		if err != nil {
			return err
		}
	}

	err = m.ApplyConfig(ctx, node)
	if err != nil {
		return err
	}

	if node.TrustCA {
		err = m.TrustCA(ctx, node)
		if err != nil {
			return err
		}
	}

	m.advance(node.Name, StateReady)

	return nil
}

// CreateNode materializes a node unless it already exists, then waits for
// its address. Existing nodes are never created again.
func (m *Manager) CreateNode(ctx context.Context, node *v1alpha1.Node) error {
	logger := m.logger.WithFields(logrus.Fields{"node": node.Name, "stage": StageCreate})

	exists, err := m.deps.Connector.Exists(ctx, node)
	if err != nil {
		return stageError(node.Name, StageCreate, err)
	}

	if exists {
		logger.Debug("node exists, skipping creation")
		notify.Infof(m.options.Output, "%s already exists", node.Name)
	} else {
		notify.Activityf(m.options.Output, "creating %s", node.Name)

		err = m.deps.Connector.Backend.Create(ctx, node.Name, createSpec(node))
		if err != nil {
			return stageError(node.Name, StageCreate, err)
		}

		err = sleep(ctx, m.options.SettleDelay)
		if err != nil {
			return stageError(node.Name, StageCreate, err)
		}

		logger.Info("created node")
	}

	_, err = m.deps.Resolver.WaitResolve(ctx, node.Name, m.options.AddressTimeout)
	if err != nil {
		return stageError(node.Name, StageCreate, err)
	}

	m.advance(node.Name, StateCreated)
	notify.Successf(m.options.Output, "%s created", node.Name)

	return nil
}

// InitNode runs the node's init commands. A command that fails is reported
// and skipped; a command that cannot be resolved aborts.
func (m *Manager) InitNode(ctx context.Context, node *v1alpha1.Node) error {
	if len(node.InitCommands) == 0 {
		m.advance(node.Name, StateInitialized)

		return nil
	}

	resCtx, err := m.deps.Resolver.Context(ctx, resolver.ContextOptions{Nodes: []string{node.Name}})
	if err != nil {
		return stageError(node.Name, StageInit, err)
	}

	commands, err := resCtx.RenderAll(node.InitCommands)
	if err != nil {
		return stageError(node.Name, StageInit, err)
	}

	handle, err := m.deps.Connector.Handle(node)
	if err != nil {
		return stageError(node.Name, StageInit, err)
	}

	for _, command := range commands {
		_, err = m.run(ctx, handle, node, StageInit, command)
		if err != nil {
			m.warn(node, StageInit, err)
		}
	}

	m.advance(node.Name, StateInitialized)

	return nil
}

// RunInstanceCommands runs every node's instance commands in instance order,
// against a context holding all nodes. It waits the instance delay first.
func (m *Manager) RunInstanceCommands(ctx context.Context) error {
	nodes := m.deps.Graph.Ordered()
	if !slices.ContainsFunc(nodes, func(node *v1alpha1.Node) bool { return len(node.InstanceCommands) > 0 }) {
		return nil
	}

	err := sleep(ctx, m.options.InstanceDelay)
	if err != nil {
		return fmt.Errorf("instance commands: %w", err)
	}

	resCtx, err := m.deps.Resolver.Context(ctx, resolver.ContextOptions{Nodes: m.deps.Graph.InstanceOrder})
	if err != nil {
		return fmt.Errorf("instance commands: %w", err)
	}

	for _, node := range nodes {
		_, err = m.RunCommands(ctx, node, StageInstanceCommands, resCtx, node.InstanceCommands)
		if err != nil {
			return err
		}
	}

	return nil
}

// RunCommands renders and runs commands on node, stopping at the first
// failure. It returns the results of the commands that ran.
func (m *Manager) RunCommands(
	ctx context.Context,
	node *v1alpha1.Node,
	stage Stage,
	resCtx *resolver.Context,
	commands []string,
) ([]remote.CommandResult, error) {
	if len(commands) == 0 {
		return nil, nil
	}

	rendered, err := resCtx.RenderAll(commands)
	if err != nil {
		return nil, stageError(node.Name, stage, err)
	}

	handle, err := m.deps.Connector.Handle(node)
	if err != nil {
		return nil, stageError(node.Name, stage, err)
	}

	results := make([]remote.CommandResult, 0, len(rendered))

	for _, command := range rendered {
		result, err := m.run(ctx, handle, node, stage, command)
		results = append(results, result)

		if err != nil {
			return results, stageError(node.Name, stage, err)
		}
	}

	return results, nil
}

// GenerateConfig runs the node's config generators against the resolved nodes.
func (m *Manager) GenerateConfig(ctx context.Context, node *v1alpha1.Node) error {
	if len(node.ConfigGenerators) > 0 {
		resCtx, err := m.deps.Resolver.Context(ctx, resolver.ContextOptions{})
		if err != nil {
			return stageError(node.Name, StageConfigGen, err)
		}

		err = m.deps.Generator.Generate(ctx, node, resCtx)
		if err != nil {
			return stageError(node.Name, StageConfigGen, err)
		}
	}

	m.advance(node.Name, StateConfigured)

	return nil
}

// DestroyNode removes the backend resource of a node. Absent nodes are
// not an error; nodes outside the backend are left alone.
func (m *Manager) DestroyNode(ctx context.Context, node *v1alpha1.Node) error {
	defer m.deps.Resolver.Invalidate(node.Name)

	if !node.UsesBackend() {
		m.logger.WithField("node", node.Name).Debug("not a backend node, nothing to destroy")
		m.reset(node.Name)

		return nil
	}

	err := m.deps.Connector.Backend.Destroy(ctx, node.Name)
	if err != nil && !errors.Is(err, backend.ErrNodeNotFound) {
		return stageError(node.Name, StageDestroy, err)
	}

	m.reset(node.Name)
	notify.Successf(m.options.Output, "%s destroyed", node.Name)

	return nil
}

// DestroyAll destroys every node in reverse instance order. It keeps going
// past failures and reports them together.
func (m *Manager) DestroyAll(ctx context.Context) error {
	nodes := m.deps.Graph.Ordered()
	slices.Reverse(nodes)

	var errs []error

	for _, node := range nodes {
		err := m.DestroyNode(ctx, node)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SnapshotNode saves the node's backend resource under name.
func (m *Manager) SnapshotNode(ctx context.Context, node *v1alpha1.Node, name string) error {
	if !node.UsesBackend() {
		return stageError(node.Name, StageSnapshot, ErrNoBackend)
	}

	err := m.deps.Connector.Backend.Snapshot(ctx, node.Name, name)
	if err != nil {
		return stageError(node.Name, StageSnapshot, err)
	}

	return nil
}

// RestoreNode rolls the node back to the snapshot name and drops its cached
// attributes, since a restored node may come back with another address.
func (m *Manager) RestoreNode(ctx context.Context, node *v1alpha1.Node, name string) error {
	if !node.UsesBackend() {
		return stageError(node.Name, StageRestore, ErrNoBackend)
	}

	defer m.deps.Resolver.Invalidate(node.Name)

	err := m.deps.Connector.Backend.Restore(ctx, node.Name, name)
	if err != nil {
		return stageError(node.Name, StageRestore, err)
	}

	return nil
}

func (m *Manager) progressOptions(labels notify.ProgressLabels) []notify.ProgressOption {
	options := []notify.ProgressOption{
		notify.WithLabels(labels),
		notify.WithConcurrency(int64(m.options.Workers)),
	}
	if m.options.Timer != nil {
		options = append(options, notify.WithTimer(m.options.Timer))
	}

	return options
}

func (m *Manager) run(
	ctx context.Context,
	handle *remote.Handle,
	node *v1alpha1.Node,
	stage Stage,
	command string,
) (remote.CommandResult, error) {
	logger := m.logger.WithFields(logrus.Fields{"node": node.Name, "stage": stage})
	logger.WithField("command", command).Debug("running command")

	result, err := handle.RunCommand(ctx, command)
	if err != nil {
		return result, fmt.Errorf("%q: %w", command, err)
	}

	return result, nil
}

func (m *Manager) warn(node *v1alpha1.Node, stage Stage, err error) {
	m.logger.WithFields(logrus.Fields{"node": node.Name, "stage": stage}).WithError(err).Warn("step failed")
	notify.Warningf(m.options.Output, "%s: %s: %v", node.Name, stage, err)
}

func (m *Manager) advance(name string, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state > m.states[name] {
		m.states[name] = state
	}
}

func (m *Manager) reset(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[name] = StateDeclared
}

func createSpec(node *v1alpha1.Node) backend.CreateSpec {
	sizing := node.Sizing()

	return backend.CreateSpec{
		CPU:      sizing.CPU,
		Memory:   sizing.Memory,
		Disk:     sizing.Disk,
		Template: node.VMTemplate,
		Network:  node.Network.Name,
		Ports:    slices.Clone(node.Network.Ports),
	}
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	wait := time.NewTimer(delay)
	defer wait.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait %s: %w", delay, ctx.Err())
	case <-wait.C:
		return nil
	}
}
