// Package scaffolder writes the starter files of a new testbed workspace.
package scaffolder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/fsutil"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"gopkg.in/yaml.v3"
)

// Names of the scaffolded files, relative to the workspace.
const (
	SettingsFile  = "testbed.yaml"
	NodeGraphFile = "nodes.json"
	CatalogDir    = "apps"
	SampleApp     = "web"
)

var (
	// ErrSettingsGeneration wraps failures when creating testbed.yaml.
	ErrSettingsGeneration = errors.New("failed to generate testbed settings")
	// ErrNodeGraphGeneration wraps failures when creating nodes.json.
	ErrNodeGraphGeneration = errors.New("failed to generate node graph")
	// ErrCatalogGeneration wraps failures when creating the sample component.
	ErrCatalogGeneration = errors.New("failed to generate catalog")
)

// Scaffolder generates the settings file, a two node graph and a sample
// catalog component.
type Scaffolder struct {
	Backend v1alpha1.BackendKind
	Writer  io.Writer
}

// NewScaffolder creates a Scaffolder for the given backend.
func NewScaffolder(backend v1alpha1.BackendKind, writer io.Writer) *Scaffolder {
	return &Scaffolder{Backend: backend, Writer: writer}
}

// settingsDocument is the subset of settings a new workspace spells out.
type settingsDocument struct {
	Backend    v1alpha1.BackendKind `yaml:"backend"`
	NodeGraph  string               `yaml:"node_graph"`
	CatalogDir string               `yaml:"catalog_dir"`
	Log        logDocument          `yaml:"log"`
}

type logDocument struct {
	Level  string             `yaml:"level"`
	Format v1alpha1.LogFormat `yaml:"format"`
}

// Scaffold writes the workspace files into output. Existing files are kept
// unless force is set.
func (s *Scaffolder) Scaffold(output string, force bool) error {
	settings, err := yaml.Marshal(settingsDocument{
		Backend:    s.Backend,
		NodeGraph:  NodeGraphFile,
		CatalogDir: CatalogDir,
		Log:        logDocument{Level: "warn", Format: v1alpha1.LogFormatText},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSettingsGeneration, err)
	}

	err = s.write(output, SettingsFile, settings, force)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSettingsGeneration, err)
	}

	graph, err := json.MarshalIndent(SampleGraph(), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNodeGraphGeneration, err)
	}

	err = s.write(output, NodeGraphFile, append(graph, '\n'), force)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNodeGraphGeneration, err)
	}

	component, err := yaml.Marshal(SampleComponent())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCatalogGeneration, err)
	}

	err = s.write(output, filepath.Join(CatalogDir, SampleApp+".yaml"), component, force)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCatalogGeneration, err)
	}

	return nil
}

// SampleGraph is a server node running the sample component and a client
// node that reaches it by address.
func SampleGraph() *v1alpha1.NodeGraph {
	return &v1alpha1.NodeGraph{
		Nodes: map[string]*v1alpha1.Node{
			"server": {
				VMParams:    &v1alpha1.VMParams{CPU: 1, Memory: "1G", Disk: "5G"},
				Apps:        map[string]v1alpha1.AppParams{SampleApp: {"port": 8080}},
				Directories: map[string]string{v1alpha1.LogsDirectoryRole: "/var/log/" + SampleApp},
			},
			"client": {
				VMParams:     &v1alpha1.VMParams{},
				InitCommands: []string{"ping -c 1 {{server.ip}}"},
			},
		},
		InstanceOrder: []string{"server", "client"},
	}
}

// SampleComponent stages ./web onto /opt/web and starts it on its port.
func SampleComponent() *v1alpha1.Component {
	return &v1alpha1.Component{
		Name: SampleApp,
		Commands: map[v1alpha1.Stage][]string{
			v1alpha1.StageInstall: {"mkdir -p /var/log/" + SampleApp, "/opt/web/start.sh {{web.port}}"},
			v1alpha1.StageUpdate:  {"/opt/web/restart.sh {{web.port}}"},
		},
		Directories: map[v1alpha1.DirectoryRole]string{
			v1alpha1.RoleSource: SampleApp,
			v1alpha1.RoleTarget: "/opt/" + SampleApp,
		},
	}
}

func (s *Scaffolder) write(output, name string, content []byte, force bool) error {
	path, err := fsutil.JoinWithin(output, name)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", name, err)
	}

	outcome, err := fsutil.WriteFile(path, content, force)
	if err != nil {
		return err //nolint:wrapcheck // WriteFile names the path
	}

	if outcome == fsutil.Skipped {
		notify.WriteMessage(notify.Message{
			Type:    notify.WarningType,
			Content: "skipped '%s', file exists use --force to overwrite",
			Args:    []any{name},
			Writer:  s.Writer,
		})

		return nil
	}

	notify.WriteMessage(notify.Message{
		Type:    notify.GenerateType,
		Content: "%s '%s'",
		Args:    []any{outcome, name},
		Writer:  s.Writer,
	})

	return nil
}
