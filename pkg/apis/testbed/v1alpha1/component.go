package v1alpha1

// Component is a reusable installable unit from the software catalog.
type Component struct {
	Name        string                   `json:"name"                  yaml:"name"`
	Commands    map[Stage][]string       `json:"commands,omitempty"    yaml:"commands,omitempty"`
	Directories map[DirectoryRole]string `json:"directories,omitempty" yaml:"directories,omitempty"`
	// ConfigRoot is the default configuration directory on nodes running this component.
	ConfigRoot string `json:"config_root,omitempty" yaml:"config_root,omitempty"`
}

// CommandsFor returns the commands of a lifecycle stage.
func (c *Component) CommandsFor(stage Stage) []string {
	return c.Commands[stage]
}

// Directory returns the path declared for a role.
func (c *Component) Directory(role DirectoryRole) (string, bool) {
	path, ok := c.Directories[role]

	return path, ok && path != ""
}
