package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/fsutil"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/instance"
	"github.com/devantler-tech/testbed/pkg/svc/remote"
	"github.com/devantler-tech/testbed/pkg/svc/resolver"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"github.com/sirupsen/logrus"
)

// NodeInfo summarizes one node for operators.
type NodeInfo struct {
	Name       string
	ID         string
	Route      remote.Route
	State      instance.State
	Runtime    backend.NodeState
	IP         string
	IPs        []string
	Components []string
}

// SnapshotAll snapshots every backend node under name, one node at a time.
// Nodes outside the backend are skipped.
func (w *Workspace) SnapshotAll(ctx context.Context, name string) error {
	err := w.env.AddSnapshot(name)
	if err != nil {
		return err //nolint:wrapcheck // names the snapshot
	}

	for _, node := range w.Graph().Ordered() {
		if !node.UsesBackend() {
			notify.Warningf(w.output, "%s is not a backend node, skipping snapshot", node.Name)

			continue
		}

		err = w.manager.SnapshotNode(ctx, node, name)
		if err != nil {
			return err //nolint:wrapcheck // stage errors name the node
		}

		notify.Successf(w.output, "%s snapshot %s saved", node.Name, name)
	}

	return w.persist()
}

// RestoreAll restores every backend node to the snapshot name, one node at a time.
func (w *Workspace) RestoreAll(ctx context.Context, name string) error {
	for _, node := range w.Graph().Ordered() {
		if !node.UsesBackend() {
			notify.Warningf(w.output, "%s is not a backend node, skipping restore", node.Name)

			continue
		}

		err := w.manager.RestoreNode(ctx, node, name)
		if err != nil {
			return err //nolint:wrapcheck // stage errors name the node
		}

		notify.Successf(w.output, "%s restored to %s", node.Name, name)
	}

	return nil
}

// CollectLogs clears targetDir and pulls each node's logs directory into
// targetDir/<node>. Nodes without a logs directory are skipped; failed
// pulls are reported and collection continues. It returns the nodes whose
// logs were collected.
func (w *Workspace) CollectLogs(ctx context.Context, targetDir string) ([]string, error) {
	err := prepareDir(targetDir)
	if err != nil {
		return nil, err
	}

	var collected []string

	for _, node := range w.Graph().Ordered() {
		logsDir, ok := node.Directory(v1alpha1.LogsDirectoryRole)
		if !ok {
			continue
		}

		localDir, err := fsutil.JoinWithin(targetDir, node.Name)
		if err == nil {
			err = w.pullLogs(ctx, node, logsDir, localDir)
		}

		if err != nil {
			w.logger.WithField("node", node.Name).WithError(err).Warn("log collection failed")
			notify.Warningf(w.output, "collect logs from %s: %v", node.Name, err)

			continue
		}

		collected = append(collected, node.Name)
		notify.Successf(w.output, "collected %s logs from %s", node.Name, logsDir)
	}

	return collected, nil
}

func (w *Workspace) pullLogs(ctx context.Context, node *v1alpha1.Node, logsDir, localDir string) error {
	handle, err := w.connector.Handle(node)
	if err != nil {
		return err //nolint:wrapcheck // names the node
	}

	return handle.Pull(ctx, logsDir, localDir, true) //nolint:wrapcheck // names the node
}

// Install runs a fresh install of apps on the named node, or on every node
// when nodeName is empty. Nil apps installs every assigned component.
func (w *Workspace) Install(ctx context.Context, nodeName string, apps []string) error {
	return w.install(ctx, nodeName, apps, v1alpha1.InstallFresh)
}

// Update is Install using each component's update directories and commands.
func (w *Workspace) Update(ctx context.Context, nodeName string, apps []string) error {
	return w.install(ctx, nodeName, apps, v1alpha1.InstallUpdate)
}

func (w *Workspace) install(ctx context.Context, nodeName string, apps []string, mode v1alpha1.InstallMode) error {
	nodes, err := w.nodes(nodeName)
	if err != nil {
		return err
	}

	err = w.resolver.ResolveAll(ctx)
	if err != nil {
		return fmt.Errorf("resolve nodes: %w", err)
	}

	err = w.manager.InstallNodes(ctx, nodes, apps, mode)

	return errors.Join(err, w.persist())
}

// Run executes commands on one node, resolved against every node of the
// environment. Output of each command is written to the workspace output.
func (w *Workspace) Run(ctx context.Context, nodeName string, commands []string) error {
	if nodeName == "" {
		return ErrNoSelection
	}

	node, err := w.manager.Node(nodeName)
	if err != nil {
		return err //nolint:wrapcheck // names the node
	}

	resCtx, err := w.resolver.Context(ctx, resolver.ContextOptions{Nodes: w.Graph().InstanceOrder})
	if err != nil {
		return fmt.Errorf("resolve nodes: %w", err)
	}

	results, err := w.manager.RunCommands(ctx, node, instance.StageRun, resCtx, commands)
	for _, result := range results {
		if result.Stdout != "" {
			_, _ = fmt.Fprint(w.output, ensureNewline(result.Stdout))
		}
	}

	if err != nil {
		return err //nolint:wrapcheck // stage errors name the node
	}

	return nil
}

// ApplyConfig regenerates and applies the configuration of the named node,
// or of every node when nodeName is empty.
func (w *Workspace) ApplyConfig(ctx context.Context, nodeName string) error {
	nodes, err := w.nodes(nodeName)
	if err != nil {
		return err
	}

	err = w.resolver.ResolveAll(ctx)
	if err != nil {
		return fmt.Errorf("resolve nodes: %w", err)
	}

	for _, node := range nodes {
		err = w.manager.GenerateConfig(ctx, node)
		if err == nil {
			err = w.manager.ApplyConfig(ctx, node)
		}

		if err != nil {
			return errors.Join(err, w.persist())
		}

		notify.Successf(w.output, "%s config applied to %s", node.Name, w.manager.ConfigTarget(node))
	}

	return w.persist()
}

// Info reports every node's recorded state, runtime state and addresses.
// Nodes that cannot be reached are listed without addresses.
func (w *Workspace) Info(ctx context.Context) []NodeInfo {
	nodes := w.Graph().Ordered()
	infos := make([]NodeInfo, 0, len(nodes))

	for _, node := range nodes {
		info := NodeInfo{
			Name:       node.Name,
			ID:         node.ID(),
			State:      w.manager.State(node.Name),
			Runtime:    backend.StateUnknown,
			Components: node.ComponentNames(),
		}

		handle, err := w.connector.Handle(node)
		if err == nil {
			info.Route = handle.Route()
		}

		if node.UsesBackend() && w.connector.Backend != nil {
			runtime, err := w.connector.Backend.State(ctx, node.Name)
			if err == nil {
				info.Runtime = runtime
			}
		}

		if info.Runtime != backend.StateAbsent {
			attrs, err := w.resolver.Resolve(ctx, node.Name)
			if err != nil {
				w.logger.WithFields(logrus.Fields{"node": node.Name}).WithError(err).Debug("node not resolved")
			} else {
				info.IP = attrs[v1alpha1.AttributeIP]
				info.IPs = strings.Fields(attrs[v1alpha1.AttributeIPs])
			}
		}

		infos = append(infos, info)
	}

	return infos
}

func ensureNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}

	return text + "\n"
}
