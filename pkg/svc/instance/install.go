package instance

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/remote"
	"github.com/devantler-tech/testbed/pkg/svc/resolver"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/sirupsen/logrus"
)

// InstallNodes installs apps on each node. Host builds run first, once
// per distinct component and one at a time; staging and node commands then
// run in parallel across nodes, bounded by the worker limit. A nil apps
// list installs every component assigned to a node.
func (m *Manager) InstallNodes(
	ctx context.Context,
	nodes []*v1alpha1.Node,
	apps []string,
	mode v1alpha1.InstallMode,
) error {
	title := "Install software"
	if mode == v1alpha1.InstallUpdate {
		title = "Update software"
	}

	err := m.BuildComponents(ctx, nodes, apps, mode)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(title), err)
	}

	tasks := make([]notify.ProgressTask, 0, len(nodes))

	for _, node := range nodes {
		selected := selectApps(node, apps)

		tasks = append(tasks, notify.ProgressTask{
			Name: node.Name,
			Fn: func(ctx context.Context) error {
				return m.installOnNode(ctx, node, selected, mode)
			},
		})
	}

	group := notify.NewProgressGroup(title, "📦", m.options.Output, m.progressOptions(notify.InstallingLabels())...)

	err = group.Run(ctx, tasks...)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(title), err)
	}

	return nil
}

// BuildComponents runs the host build of every distinct component selected
// on nodes, sequentially and in node order. Parameters of the first node
// carrying a component feed its build templates.
func (m *Manager) BuildComponents(
	ctx context.Context,
	nodes []*v1alpha1.Node,
	apps []string,
	mode v1alpha1.InstallMode,
) error {
	built := map[string]bool{}

	for _, node := range nodes {
		for _, name := range selectApps(node, apps) {
			if built[name] || !node.HasComponent(name) {
				continue
			}

			built[name] = true

			err := m.buildComponent(ctx, node, name, mode)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	return nil
}

// InstallApps installs or updates the named components on node: host
// build, staging, then the install or update commands. Components not
// assigned to the node are skipped with a warning.
func (m *Manager) InstallApps(
	ctx context.Context,
	node *v1alpha1.Node,
	apps []string,
	mode v1alpha1.InstallMode,
) error {
	err := m.BuildComponents(ctx, []*v1alpha1.Node{node}, apps, mode)
	if err != nil {
		return stageError(node.Name, stageFor(mode), err)
	}

	return m.installOnNode(ctx, node, apps, mode)
}

// installOnNode stages and installs components whose host build already ran.
func (m *Manager) installOnNode(
	ctx context.Context,
	node *v1alpha1.Node,
	apps []string,
	mode v1alpha1.InstallMode,
) error {
	stage := stageFor(mode)

	handle, err := m.deps.Connector.Handle(node)
	if err != nil {
		return stageError(node.Name, stage, err)
	}

	for _, name := range apps {
		if !node.HasComponent(name) {
			m.warn(node, stage, fmt.Errorf("%s is not assigned to this node, skipping", name))

			continue
		}

		component, err := m.deps.Catalog.Get(name)
		if err != nil {
			return stageError(node.Name, stage, err)
		}

		err = m.installComponent(ctx, handle, node, component, mode)
		if err != nil {
			return stageError(node.Name, stage, fmt.Errorf("%s: %w", name, err))
		}
	}

	m.advance(node.Name, StateSoftwareInstalled)

	return nil
}

func (m *Manager) installComponent(
	ctx context.Context,
	handle *remote.Handle,
	node *v1alpha1.Node,
	component *v1alpha1.Component,
	mode v1alpha1.InstallMode,
) error {
	logger := m.logger.WithFields(logrus.Fields{
		"node":      node.Name,
		"component": component.Name,
		"stage":     stageFor(mode),
	})

	resCtx, err := m.componentContext(ctx, node, component.Name)
	if err != nil {
		return err
	}

	err = m.stage(ctx, handle, resCtx, component, mode, logger)
	if err != nil {
		return err
	}

	commands, err := resCtx.RenderAll(component.CommandsFor(mode.NodeStage()))
	if err != nil {
		return err //nolint:wrapcheck // render errors name the template
	}

	for _, command := range commands {
		_, err = m.run(ctx, handle, node, stageFor(mode), command)
		if err != nil {
			return err
		}
	}

	logger.Info("component installed")

	return nil
}

func (m *Manager) componentContext(ctx context.Context, node *v1alpha1.Node, name string) (*resolver.Context, error) {
	resCtx, err := m.deps.Resolver.Context(ctx, resolver.ContextOptions{
		Component: name,
		Params:    node.Apps[name],
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // resolver errors name the node
	}

	return resCtx, nil
}

func (m *Manager) buildComponent(ctx context.Context, node *v1alpha1.Node, name string, mode v1alpha1.InstallMode) error {
	component, err := m.deps.Catalog.Get(name)
	if err != nil {
		return err //nolint:wrapcheck // names the component
	}

	if len(component.CommandsFor(mode.HostStage())) == 0 {
		return nil
	}

	resCtx, err := m.componentContext(ctx, node, name)
	if err != nil {
		return err
	}

	notify.Activityf(m.options.Output, "building %s on host", name)

	return m.buildOnHost(ctx, resCtx, component, mode)
}

func selectApps(node *v1alpha1.Node, apps []string) []string {
	if apps == nil {
		return node.ComponentNames()
	}

	return apps
}

// buildOnHost runs build_all for fresh installs and build for updates, in
// the base directory.
func (m *Manager) buildOnHost(
	ctx context.Context,
	resCtx *resolver.Context,
	component *v1alpha1.Component,
	mode v1alpha1.InstallMode,
) error {
	commands, err := resCtx.RenderAll(component.CommandsFor(mode.HostStage()))
	if err != nil {
		return err //nolint:wrapcheck // render errors name the template
	}

	for _, command := range commands {
		_, err = m.deps.Host.Run(ctx, runner.Command{
			Name: "sh",
			Args: []string{"-c", command},
			Dir:  m.options.BaseDir,
		})
		if err != nil {
			return fmt.Errorf("host build %q: %w", command, err)
		}
	}

	return nil
}

// stage pushes the component's source directory to its target on the node.
// Updates use the binary directories and skip staging when none is declared.
func (m *Manager) stage(
	ctx context.Context,
	handle *remote.Handle,
	resCtx *resolver.Context,
	component *v1alpha1.Component,
	mode v1alpha1.InstallMode,
	logger logrus.FieldLogger,
) error {
	sourceRole, targetRole := mode.Roles()

	source, hasSource := component.Directory(sourceRole)
	target, hasTarget := component.Directory(targetRole)

	if !hasSource || !hasTarget {
		logger.Debugf("no %s/%s directories, skipping staging", sourceRole, targetRole)

		return nil
	}

	source, err := resCtx.Render(source)
	if err != nil {
		return err //nolint:wrapcheck // render errors name the template
	}

	target, err = resCtx.Render(target)
	if err != nil {
		return err //nolint:wrapcheck // render errors name the template
	}

	if !filepath.IsAbs(source) {
		source = filepath.Join(m.options.BaseDir, source)
	}

	_, err = handle.RunCommand(ctx, "mkdir -p "+shellQuote(target))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", target, err)
	}

	err = handle.Push(ctx, source, target, true)
	if err != nil {
		return fmt.Errorf("stage %s to %s: %w", source, target, err)
	}

	logger.WithFields(logrus.Fields{"source": source, "target": target}).Debug("staged component files")

	return nil
}

func stageFor(mode v1alpha1.InstallMode) Stage {
	if mode == v1alpha1.InstallUpdate {
		return StageUpdate
	}

	return StageInstall
}

// shellQuote wraps value in single quotes for a POSIX shell.
func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// remoteJoin joins node paths, which are always slash separated.
func remoteJoin(elem ...string) string {
	return path.Join(elem...)
}
