// Package catalog loads the software catalog: one component document per file.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"gopkg.in/yaml.v3"
)

// ErrInvalidComponent is returned for malformed or inconsistent component documents.
var ErrInvalidComponent = errors.New("invalid component")

// ErrUnknownComponent is returned when a component is not in the catalog.
var ErrUnknownComponent = errors.New("unknown component")

// Catalog holds components by name.
type Catalog struct {
	components map[string]*v1alpha1.Component
}

// New builds a catalog from already decoded components.
func New(components ...*v1alpha1.Component) (*Catalog, error) {
	catalog := &Catalog{components: make(map[string]*v1alpha1.Component, len(components))}

	for _, component := range components {
		err := catalog.add(component, "")
		if err != nil {
			return nil, err
		}
	}

	return catalog, nil
}

// LoadDir reads every *.json, *.yaml and *.yml file in dir (non-recursive).
// A missing directory yields an empty catalog.
func LoadDir(dir string) (*Catalog, error) {
	catalog := &Catalog{components: map[string]*v1alpha1.Component{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return catalog, nil
		}

		return nil, fmt.Errorf("read catalog directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isCatalogFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		//nolint:gosec // path is inside the configured catalog directory
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read component %s: %w", path, err)
		}

		component, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		err = catalog.add(component, path)
		if err != nil {
			return nil, err
		}
	}

	return catalog, nil
}

// Parse decodes and validates one component document. JSON documents are
// accepted as YAML. Unknown fields are rejected.
func Parse(data []byte) (*v1alpha1.Component, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var component v1alpha1.Component

	err := decoder.Decode(&component)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidComponent)
		}

		return nil, fmt.Errorf("%w: %w", ErrInvalidComponent, err)
	}

	err = Validate(&component)
	if err != nil {
		return nil, err
	}

	return &component, nil
}

// Validate checks required fields, lifecycle stage names and directory roles.
func Validate(component *v1alpha1.Component) error {
	if strings.TrimSpace(component.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidComponent)
	}

	for stage := range component.Commands {
		if !slices.Contains(v1alpha1.ValidStages(), stage) {
			return fmt.Errorf("%w: %s: unknown lifecycle stage %q", ErrInvalidComponent, component.Name, stage)
		}
	}

	for role := range component.Directories {
		if !slices.Contains(v1alpha1.ValidDirectoryRoles(), role) {
			return fmt.Errorf("%w: %s: unknown directory role %q", ErrInvalidComponent, component.Name, role)
		}
	}

	_, hasSource := component.Directory(v1alpha1.RoleSource)
	_, hasTarget := component.Directory(v1alpha1.RoleTarget)

	if hasSource != hasTarget {
		return fmt.Errorf("%w: %s: source and target must be declared together", ErrInvalidComponent, component.Name)
	}

	_, hasSourceBin := component.Directory(v1alpha1.RoleSourceBin)
	_, hasTargetBin := component.Directory(v1alpha1.RoleTargetBin)

	if hasSourceBin && !hasTargetBin {
		return fmt.Errorf("%w: %s: source_bin requires target_bin", ErrInvalidComponent, component.Name)
	}

	return nil
}

// Get returns a component by name.
func (c *Catalog) Get(name string) (*v1alpha1.Component, error) {
	component, ok := c.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}

	return component, nil
}

// Has reports whether the catalog contains the component.
func (c *Catalog) Has(name string) bool {
	_, ok := c.components[name]

	return ok
}

// Names returns the component names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (c *Catalog) add(component *v1alpha1.Component, source string) error {
	err := Validate(component)
	if err != nil {
		return err
	}

	if _, exists := c.components[component.Name]; exists {
		return fmt.Errorf("%w: duplicate component %q %s", ErrInvalidComponent, component.Name, source)
	}

	c.components[component.Name] = component

	return nil
}

func isCatalogFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
