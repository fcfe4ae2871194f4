package instance

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/pki"
	"github.com/devantler-tech/testbed/pkg/svc/remote"
	"github.com/sirupsen/logrus"
)

// ConfigTarget returns where a node's generated config lands: its explicit
// config_target, else the config root of its first component (by name)
// that declares one, else the default config root.
func (m *Manager) ConfigTarget(node *v1alpha1.Node) string {
	if node.ConfigTarget != "" {
		return node.ConfigTarget
	}

	for _, name := range node.ComponentNames() {
		component, err := m.deps.Catalog.Get(name)
		if err == nil && component.ConfigRoot != "" {
			return component.ConfigRoot
		}
	}

	return m.options.DefaultConfigRoot
}

// ApplyConfig copies every file under the node's generated config directory
// onto the node, below its config target.
func (m *Manager) ApplyConfig(ctx context.Context, node *v1alpha1.Node) error {
	dir, ok := m.deps.Generator.OutputDir(node)
	if !ok {
		m.advance(node.Name, StateConfigApplied)

		return nil
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return stageError(node.Name, StageApplyConfig, fmt.Errorf("%w: %s", ErrMissingConfig, dir))
	}

	handle, err := m.deps.Connector.Handle(node)
	if err != nil {
		return stageError(node.Name, StageApplyConfig, err)
	}

	root := m.ConfigTarget(node)
	logger := m.logger.WithFields(logrus.Fields{"node": node.Name, "stage": StageApplyConfig})

	err = filepath.WalkDir(dir, func(local string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, local)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", local, err)
		}

		target := remoteJoin(root, filepath.ToSlash(rel))

		_, err = handle.RunCommand(ctx, "mkdir -p "+shellQuote(path.Dir(target)))
		if err != nil {
			return fmt.Errorf("prepare %s: %w", path.Dir(target), err)
		}

		err = handle.Push(ctx, local, target, false)
		if err != nil {
			return fmt.Errorf("push %s: %w", rel, err)
		}

		logger.WithField("file", target).Debug("applied config file")

		return nil
	})
	if err != nil {
		return stageError(node.Name, StageApplyConfig, err)
	}

	m.advance(node.Name, StateConfigApplied)

	return nil
}

// TrustCA installs the testbed CA certificate into the node's trust store.
// The CA is created on first use.
func (m *Manager) TrustCA(ctx context.Context, node *v1alpha1.Node) error {
	if m.deps.Authority == nil {
		return stageError(node.Name, StageTrustCA, ErrNoAuthority)
	}

	ca, err := m.deps.Authority.EnsureCA(ctx)
	if err != nil {
		return stageError(node.Name, StageTrustCA, err)
	}

	handle, err := m.deps.Connector.Handle(node)
	if err != nil {
		return stageError(node.Name, StageTrustCA, err)
	}

	err = m.pushCA(ctx, handle, ca)
	if err != nil {
		return stageError(node.Name, StageTrustCA, err)
	}

	_, err = m.run(ctx, handle, node, StageTrustCA, m.options.TrustCommand)
	if err != nil {
		return stageError(node.Name, StageTrustCA, err)
	}

	return nil
}

func (m *Manager) pushCA(ctx context.Context, handle *remote.Handle, ca pki.CA) error {
	_, err := handle.RunCommand(ctx, "mkdir -p "+shellQuote(m.options.TrustDir))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", m.options.TrustDir, err)
	}

	err = handle.Push(ctx, ca.CertPath, remoteJoin(m.options.TrustDir, TrustedCAFile), false)
	if err != nil {
		return fmt.Errorf("push CA certificate: %w", err)
	}

	return nil
}
