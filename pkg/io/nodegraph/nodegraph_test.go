package nodegraph_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/io/catalog"
	"github.com/devantler-tech/testbed/pkg/io/nodegraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const graphJSON = `{
  "nodes": {
    "A": {
      "vm_template": "ubuntu",
      "vm_params": {"cpu": 2, "memory": "2G", "disk": "10G"},
      "init_commands": ["hostnamectl set-hostname {{A.node_id}}"],
      "directories": {"logs": "/var/log/app"}
    },
    "B": {
      "vm_params": {"memory": "1G"},
      "apps": {"web": {"port": 8080}},
      "instance_commands": ["ping {{A.ip}}"],
      "config_generators": [{"command": "gen --peer {{A.ip}}"}]
    }
  },
  "instance_order": ["A", "B"]
}`

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.New(&v1alpha1.Component{
		Name: "web",
		Commands: map[v1alpha1.Stage][]string{
			v1alpha1.StageInstall: {"run-web --port {{web.port}} --peer {{A.ip}}"},
		},
	})
	require.NoError(t, err)

	return cat
}

func TestParse(t *testing.T) {
	t.Parallel()

	graph, err := nodegraph.Parse([]byte(graphJSON))
	require.NoError(t, err)

	nodeA, ok := graph.Node("A")
	require.True(t, ok)
	assert.Equal(t, "A", nodeA.Name)
	assert.Equal(t, 2, nodeA.Sizing().CPU)

	nodeB, ok := graph.Node("B")
	require.True(t, ok)
	assert.InDelta(t, 8080, nodeB.Apps["web"]["port"], 0)
	assert.Equal(t, []string{"A", "B"}, graph.InstanceOrder)

	require.NoError(t, nodegraph.Validate(graph, newCatalog(t)))
}

func TestParse_YAML(t *testing.T) {
	t.Parallel()

	graph, err := nodegraph.Parse([]byte(`
nodes:
  gw:
    remote:
      host: 192.168.1.20
      username: ops
instance_order: [gw]
`))
	require.NoError(t, err)

	node, _ := graph.Node("gw")
	assert.Equal(t, "ops", node.Remote.Username)
	assert.Zero(t, node.Remote.Port)
	require.NoError(t, nodegraph.Validate(graph, newCatalog(t)))
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown field", doc: `{"nodes": {"a": {"vm_params": {}, "typo": 1}}, "instance_order": ["a"]}`},
		{name: "no nodes", doc: `{"instance_order": []}`},
		{name: "null node", doc: `{"nodes": {"a": null}, "instance_order": ["a"]}`},
		{name: "not a document", doc: `[1, 2`},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := nodegraph.Parse([]byte(testCase.doc))

			require.ErrorIs(t, err, nodegraph.ErrInvalidGraph)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nodes.json")
	require.NoError(t, os.WriteFile(path, []byte(graphJSON), 0o600))

	graph, err := nodegraph.LoadFile(path)

	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 2)

	_, err = nodegraph.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestValidate_ForwardReferenceRejected(t *testing.T) {
	t.Parallel()

	graph, err := nodegraph.Parse([]byte(`{
  "nodes": {
    "A": {"vm_params": {}, "init_commands": ["ping {{B.ip}}"]},
    "B": {"vm_params": {}}
  },
  "instance_order": ["A", "B"]
}`))
	require.NoError(t, err)

	err = nodegraph.Validate(graph, newCatalog(t))

	require.ErrorIs(t, err, nodegraph.ErrForwardReference)
	assert.Contains(t, err.Error(), "{{B.ip}}")
	assert.Contains(t, err.Error(), "a valid instance_order would be [B, A]")
}

func TestValidate_InstanceCommandForwardReference(t *testing.T) {
	t.Parallel()

	graph, err := nodegraph.Parse([]byte(`{
  "nodes": {
    "A": {"vm_params": {}, "instance_commands": ["ping {{B.ip}}"]},
    "B": {"vm_params": {}, "instance_commands": ["ping {{A.ip}}"]}
  },
  "instance_order": ["A", "B"]
}`))
	require.NoError(t, err)

	err = nodegraph.Validate(graph, newCatalog(t))

	require.ErrorIs(t, err, nodegraph.ErrForwardReference)
	assert.Contains(t, err.Error(), "references form a cycle: A -> B -> A")
}

func TestValidate_SelfReferenceAllowed(t *testing.T) {
	t.Parallel()

	graph, err := nodegraph.Parse([]byte(`{
  "nodes": {"A": {"vm_params": {}, "init_commands": ["echo {{A.ip}} {{system.HOME}}"]}},
  "instance_order": ["A"]
}`))
	require.NoError(t, err)

	require.NoError(t, nodegraph.Validate(graph, newCatalog(t)))
}

func TestValidate_Declarations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr error
		message string
	}{
		{
			name:    "missing from order",
			doc:     `{"nodes": {"a": {"vm_params": {}}, "b": {"vm_params": {}}}, "instance_order": ["a"]}`,
			wantErr: nodegraph.ErrInvalidGraph,
			message: `node "b" is missing from instance_order`,
		},
		{
			name:    "undeclared in order",
			doc:     `{"nodes": {"a": {"vm_params": {}}}, "instance_order": ["a", "c"]}`,
			wantErr: nodegraph.ErrInvalidGraph,
			message: `undeclared node "c"`,
		},
		{
			name:    "duplicate in order",
			doc:     `{"nodes": {"a": {"vm_params": {}}}, "instance_order": ["a", "a"]}`,
			wantErr: nodegraph.ErrInvalidGraph,
			message: "appears twice",
		},
		{
			name:    "unknown component",
			doc:     `{"nodes": {"a": {"vm_params": {}, "apps": {"db": {}}}}, "instance_order": ["a"]}`,
			wantErr: catalog.ErrUnknownComponent,
			message: "db",
		},
		{
			name:    "no route",
			doc:     `{"nodes": {"a": {"init_commands": ["true"]}}, "instance_order": ["a"]}`,
			wantErr: nodegraph.ErrInvalidGraph,
			message: "neither vm_params",
		},
		{
			name:    "reserved name",
			doc:     `{"nodes": {"system": {"vm_params": {}}}, "instance_order": ["system"]}`,
			wantErr: nodegraph.ErrInvalidGraph,
			message: "reserved",
		},
		{
			name:    "unknown attribute",
			doc:     `{"nodes": {"a": {"vm_params": {}, "init_commands": ["echo {{a.zone}}"]}}, "instance_order": ["a"]}`,
			wantErr: nodegraph.ErrUnknownReference,
			message: `no attribute "zone"`,
		},
		{
			name:    "unknown identifier",
			doc:     `{"nodes": {"a": {"vm_params": {}, "init_commands": ["echo {{web.port}}"]}}, "instance_order": ["a"]}`,
			wantErr: nodegraph.ErrUnknownReference,
			message: `no node or component named "web"`,
		},
		{
			name:    "missing component parameter",
			doc:     `{"nodes": {"A": {"vm_params": {}, "apps": {"web": {}}}}, "instance_order": ["A"]}`,
			wantErr: nodegraph.ErrUnknownReference,
			message: `no parameter "port"`,
		},
		{
			name:    "nested component parameter",
			doc:     `{"nodes": {"A": {"vm_params": {}, "apps": {"web": {"port": 8080, "tls": {"cert": "x"}}}}}, "instance_order": ["A"]}`,
			wantErr: nodegraph.ErrInvalidGraph,
			message: `component "web": app parameters must be scalars`,
		},
		{
			name:    "malformed template",
			doc:     `{"nodes": {"a": {"vm_params": {}, "init_commands": ["awk '{{print}}'"]}}, "instance_order": ["a"]}`,
			wantErr: nodegraph.ErrInvalidGraph,
			message: "malformed",
		},
		{
			name:    "generator without command",
			doc:     `{"nodes": {"a": {"vm_params": {}, "config_generators": [{"output_dir": "x"}]}}, "instance_order": ["a"]}`,
			wantErr: nodegraph.ErrInvalidGraph,
			message: "exactly one of command or args",
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			graph, err := nodegraph.Parse([]byte(testCase.doc))
			require.NoError(t, err)

			err = nodegraph.Validate(graph, newCatalog(t))

			require.ErrorIs(t, err, testCase.wantErr)
			assert.Contains(t, err.Error(), testCase.message)
		})
	}
}
