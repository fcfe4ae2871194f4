package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/devantler-tech/testbed/pkg/svc/instance"
)

const (
	// stateDir is the directory under the workspace where environment state is stored.
	stateDir = ".testbed"
	// stateFileName is the file containing the serialized Environment.
	stateFileName = "state.json"
	// dirPermissions is the permission mode for state directories.
	dirPermissions = 0o700
	// filePermissions is the permission mode for state files.
	filePermissions = 0o600
)

// ErrStateNotFound is returned when no saved state exists for a workspace.
var ErrStateNotFound = errors.New("environment state not found")

// ErrInvalidSnapshotName is returned for snapshot names that are empty or contain whitespace.
var ErrInvalidSnapshotName = errors.New("invalid snapshot name")

// Environment is the persisted view of one workspace's nodes.
type Environment struct {
	Nodes     map[string]instance.State `json:"nodes"`
	Snapshots []string                  `json:"snapshots,omitempty"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// AddSnapshot records a snapshot name once, keeping the list sorted.
func (e *Environment) AddSnapshot(name string) error {
	if name == "" || strings.ContainsFunc(name, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }) {
		return fmt.Errorf("%w: %q", ErrInvalidSnapshotName, name)
	}

	if !slices.Contains(e.Snapshots, name) {
		e.Snapshots = append(e.Snapshots, name)
		slices.Sort(e.Snapshots)
	}

	return nil
}

// HasSnapshot reports whether a snapshot with the given name was recorded.
func (e *Environment) HasSnapshot(name string) bool {
	return slices.Contains(e.Snapshots, name)
}

// Path returns the state file of a workspace.
func Path(workspaceDir string) string {
	return filepath.Join(workspaceDir, stateDir, stateFileName)
}

// Save persists env for the workspace, stamping UpdatedAt.
func Save(workspaceDir string, env *Environment) error {
	statePath := Path(workspaceDir)
	dir := filepath.Dir(statePath)

	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	env.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal environment state: %w", err)
	}

	err = os.WriteFile(statePath, data, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write environment state: %w", err)
	}

	return nil
}

// Load reads the saved state of a workspace.
// Returns ErrStateNotFound if nothing was saved yet.
func Load(workspaceDir string) (*Environment, error) {
	statePath := Path(workspaceDir)

	data, err := os.ReadFile(statePath) //nolint:gosec // path is the workspace plus a constant subpath
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrStateNotFound, workspaceDir)
		}

		return nil, fmt.Errorf("failed to read environment state: %w", err)
	}

	var env Environment

	err = json.Unmarshal(data, &env)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment state: %w", err)
	}

	if env.Nodes == nil {
		env.Nodes = map[string]instance.State{}
	}

	return &env, nil
}

// LoadOrEmpty is Load, but a workspace without saved state yields an empty Environment.
func LoadOrEmpty(workspaceDir string) (*Environment, error) {
	env, err := Load(workspaceDir)
	if errors.Is(err, ErrStateNotFound) {
		return &Environment{Nodes: map[string]instance.State{}}, nil
	}

	return env, err
}

// Delete removes the saved state of a workspace.
// Returns nil if the state does not exist (idempotent).
func Delete(workspaceDir string) error {
	err := os.RemoveAll(filepath.Dir(Path(workspaceDir)))
	if err != nil {
		return fmt.Errorf("failed to remove environment state directory: %w", err)
	}

	return nil
}
