package cmd_test

import (
	"bytes"
	"testing"

	"github.com/devantler-tech/testbed/pkg/cli/cmd"
	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/backend/fake"
	"github.com/devantler-tech/testbed/pkg/svc/instance"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runGraph = `{
  "nodes": {
    "server": {"vm_params": {}},
    "client": {"vm_params": {}}
  },
  "instance_order": ["server", "client"]
}`

func executeIn(t *testing.T, dir string, nodeBackend backend.Backend, args ...string) (string, error) {
	t.Helper()

	rt := lifecycle.NewTestRuntime(&lifecycle.StaticFactory{Backend: nodeBackend}, runner.NewMockCommandRunner(t))
	root := cmd.NewRootCmdWithRuntime(rt, "test", "test", "test")

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--workspace", dir}, args...))

	err := root.Execute()

	return out.String(), err
}

func TestRunResolvesReferencesAndPrintsOutput(t *testing.T) {
	t.Parallel()

	dir := lifecycle.NewTestWorkspace(t, runGraph)
	nodeBackend := fake.New(map[string][]string{"server": {"10.0.0.2"}, "client": {"10.0.0.3"}}).
		AddNode("server").AddNode("client").
		WithExec(func(_, command string) (backend.ExecResult, error) {
			return backend.ExecResult{Stdout: "ok: " + command}, nil
		})

	out, err := executeIn(t, dir, nodeBackend, "run", "--node", "client", "--", "curl", "http://{{server.ip}}:8080")
	require.NoError(t, err, out)

	assert.Contains(t, nodeBackend.CallsFor("client"), "exec client curl http://10.0.0.2:8080")
	assert.Contains(t, out, "ok: curl http://10.0.0.2:8080\n")
}

func TestRunRequiresNode(t *testing.T) {
	t.Parallel()

	dir := lifecycle.NewTestWorkspace(t, runGraph)

	_, err := executeIn(t, dir, fake.New(nil), "run", "--", "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"node" not set`)
}

func TestRunRequiresCommand(t *testing.T) {
	t.Parallel()

	dir := lifecycle.NewTestWorkspace(t, runGraph)

	_, err := executeIn(t, dir, fake.New(nil), "run", "--node", "client")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command given")
}

func TestRunUnknownNode(t *testing.T) {
	t.Parallel()

	dir := lifecycle.NewTestWorkspace(t, runGraph)
	nodeBackend := fake.New(map[string][]string{"server": {"10.0.0.2"}, "client": {"10.0.0.3"}}).
		AddNode("server").AddNode("client")

	_, err := executeIn(t, dir, nodeBackend, "run", "--node", "db", "--", "true")
	require.ErrorIs(t, err, instance.ErrUnknownNode)
}
