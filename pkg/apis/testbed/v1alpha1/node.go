package v1alpha1

import (
	"maps"
	"slices"
	"strconv"
)

// Default sizing applied to backend nodes that omit a value.
const (
	DefaultCPU    = 1
	DefaultMemory = "1G"
	DefaultDisk   = "5G"
)

// Built-in node attributes exposed to templates.
const (
	AttributeNodeID   = "node_id"
	AttributeIP       = "ip"
	AttributeIPs      = "ips"
	AttributePort     = "port"
	AttributeUsername = "username"
)

// LogsDirectoryRole is the node directory role pulled by log collection.
const LogsDirectoryRole = "logs"

// SystemScope is the reserved template scope for process environment values.
const SystemScope = "system"

// NodeGraph is the declared set of nodes and their instantiation order.
type NodeGraph struct {
	Nodes         map[string]*Node `json:"nodes"`
	InstanceOrder []string         `json:"instance_order"`
}

// Node is a declared unit of the environment backed by one backend resource
// or reached through a remote shell.
type Node struct {
	// Name is the key of the node in the graph. Set by the parser.
	Name string `json:"-"`

	NodeID           string               `json:"node_id,omitempty"`
	VMTemplate       string               `json:"vm_template,omitempty"`
	VMParams         *VMParams            `json:"vm_params,omitempty"`
	Network          Network              `json:"network,omitzero"`
	Apps             map[string]AppParams `json:"apps,omitempty"`
	InitCommands     []string             `json:"init_commands,omitempty"`
	InstanceCommands []string             `json:"instance_commands,omitempty"`
	Directories      map[string]string    `json:"directories,omitempty"`
	Attributes       map[string]string    `json:"attributes,omitempty"`
	ConfigGenerators []ConfigGenerator    `json:"config_generators,omitempty"`
	ConfigTarget     string               `json:"config_target,omitempty"`
	TrustCA          bool                 `json:"trust_ca,omitempty"`
	Remote           *RemoteTarget        `json:"remote,omitempty"`
}

// VMParams sizes a backend resource.
type VMParams struct {
	CPU    int    `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
	Disk   string `json:"disk,omitempty"`
}

// Network describes how a node is attached to the network.
type Network struct {
	Mode  string   `json:"mode,omitempty"`
	Name  string   `json:"name,omitempty"`
	Ports []string `json:"ports,omitempty"`
}

// ConfigGenerator is an external command producing the node's configuration files.
// Exactly one of Command (shell string) or Args (argument vector) is set.
type ConfigGenerator struct {
	Command   string   `json:"command,omitempty"`
	Args      []string `json:"args,omitempty"`
	OutputDir string   `json:"output_dir,omitempty"`
}

// RemoteTarget addresses a node through a raw remote shell.
type RemoteTarget struct {
	Host         string `json:"host"`
	Port         int    `json:"port,omitempty"`
	Username     string `json:"username,omitempty"`
	IdentityFile string `json:"identity_file,omitempty"`
}

// AppParams are the instance parameters of a component assigned to a node.
type AppParams map[string]any

// ID returns the logical node identifier, defaulting to the graph key.
func (n *Node) ID() string {
	if n.NodeID != "" {
		return n.NodeID
	}

	return n.Name
}

// UsesBackend reports whether the node is materialized by the execution backend.
func (n *Node) UsesBackend() bool {
	return n.VMParams != nil || n.VMTemplate != ""
}

// Sizing returns the node's VM parameters with defaults applied.
func (n *Node) Sizing() VMParams {
	params := VMParams{}
	if n.VMParams != nil {
		params = *n.VMParams
	}

	if params.CPU <= 0 {
		params.CPU = DefaultCPU
	}

	if params.Memory == "" {
		params.Memory = DefaultMemory
	}

	if params.Disk == "" {
		params.Disk = DefaultDisk
	}

	return params
}

// ComponentNames returns the names of the components assigned to the node, sorted.
func (n *Node) ComponentNames() []string {
	return slices.Sorted(maps.Keys(n.Apps))
}

// HasComponent reports whether the component is assigned to the node.
func (n *Node) HasComponent(name string) bool {
	_, ok := n.Apps[name]

	return ok
}

// Directory returns the path declared for a directory role.
func (n *Node) Directory(role string) (string, bool) {
	path, ok := n.Directories[role]

	return path, ok && path != ""
}

// StaticAttributes returns every attribute name a template may reference on this node.
func (n *Node) StaticAttributes() []string {
	names := []string{AttributeNodeID, AttributeIP, AttributeIPs}
	if n.Remote != nil {
		names = append(names, AttributePort, AttributeUsername)
	}

	for name := range n.Attributes {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	return names
}

// DeclaredAttributes returns the attributes known without querying the
// backend. A remote port or username appears only when the node declares
// it; the transport fills in the configured defaults otherwise.
func (n *Node) DeclaredAttributes() map[string]string {
	attrs := make(map[string]string, len(n.Attributes)+3)
	maps.Copy(attrs, n.Attributes)
	attrs[AttributeNodeID] = n.ID()

	if n.Remote != nil {
		if n.Remote.Port > 0 {
			attrs[AttributePort] = strconv.Itoa(n.Remote.Port)
		}

		if n.Remote.Username != "" {
			attrs[AttributeUsername] = n.Remote.Username
		}
	}

	return attrs
}

// Node returns the node with the given graph key.
func (g *NodeGraph) Node(name string) (*Node, bool) {
	node, ok := g.Nodes[name]

	return node, ok
}

// Position returns the index of the node in the instantiation order, or -1.
func (g *NodeGraph) Position(name string) int {
	return slices.Index(g.InstanceOrder, name)
}

// Ordered returns the nodes in instantiation order.
func (g *NodeGraph) Ordered() []*Node {
	nodes := make([]*Node, 0, len(g.InstanceOrder))

	for _, name := range g.InstanceOrder {
		if node, ok := g.Nodes[name]; ok {
			nodes = append(nodes, node)
		}
	}

	return nodes
}
