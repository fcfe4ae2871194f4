package app_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/devantler-tech/testbed/pkg/cli/cmd"
	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	"github.com/devantler-tech/testbed/pkg/svc/backend/fake"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const graph = `{
  "nodes": {
    "sn": {"vm_params": {}, "apps": {"web": {"port": 8080}, "db": {}}},
    "api": {"vm_params": {}, "apps": {"web": {"port": 9090}}}
  },
  "instance_order": ["sn", "api"]
}`

const webComponent = `name: web
commands:
  build_all: ["make web"]
  build: ["make web-bin"]
  install: ["start web {{web.port}}"]
  update: ["restart web {{web.port}}"]
`

const dbComponent = `name: db
commands:
  install: ["start db"]
`

func execute(
	t *testing.T,
	dir string,
	nodeBackend *fake.Backend,
	hostRunner runner.CommandRunner,
	args ...string,
) (string, error) {
	t.Helper()

	rt := lifecycle.NewTestRuntime(&lifecycle.StaticFactory{Backend: nodeBackend}, hostRunner)
	root := cmd.NewRootCmdWithRuntime(rt, "test", "test", "test")

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--workspace", dir}, args...))

	err := root.Execute()

	return out.String(), err
}

func nodes() *fake.Backend {
	return fake.New(map[string][]string{"sn": {"10.0.0.2"}, "api": {"10.0.0.3"}}).AddNode("sn").AddNode("api")
}

func expectHostBuild(hostRunner *runner.MockCommandRunner, command string) {
	hostRunner.On("Run", mock.Anything, mock.MatchedBy(func(c runner.Command) bool {
		return c.Name == "sh" && len(c.Args) == 2 && c.Args[1] == command
	})).Return(runner.CommandResult{}, nil)
}

func TestInstallEveryAssignedComponent(t *testing.T) {
	t.Parallel()

	dir := lifecycle.NewTestWorkspace(t, graph, webComponent, dbComponent)
	nodeBackend := nodes()
	hostRunner := runner.NewMockCommandRunner(t)
	expectHostBuild(hostRunner, "make web")

	out, err := execute(t, dir, nodeBackend, hostRunner, "app", "install")
	require.NoError(t, err, out)

	assert.Contains(t, nodeBackend.CallsFor("sn"), "exec sn start web 8080")
	assert.Contains(t, nodeBackend.CallsFor("sn"), "exec sn start db")
	assert.Contains(t, nodeBackend.CallsFor("api"), "exec api start web 9090")
	assert.Contains(t, out, "software installed")
}

func TestUpdateSelectedNodeAndApp(t *testing.T) {
	t.Parallel()

	dir := lifecycle.NewTestWorkspace(t, graph, webComponent, dbComponent)
	nodeBackend := nodes()
	hostRunner := runner.NewMockCommandRunner(t)
	expectHostBuild(hostRunner, "make web-bin")

	out, err := execute(t, dir, nodeBackend, hostRunner, "app", "update", "--node", "api", "--app", "web")
	require.NoError(t, err, out)

	assert.Contains(t, nodeBackend.CallsFor("api"), "exec api restart web 9090")
	assert.NotContains(t, nodeBackend.CallsFor("sn"), "exec sn restart web 8080")
	assert.Contains(t, out, "software updated")
}

func TestInstallFailsWhenHostBuildFails(t *testing.T) {
	t.Parallel()

	dir := lifecycle.NewTestWorkspace(t, graph, webComponent, dbComponent)
	nodeBackend := nodes()
	hostRunner := runner.NewMockCommandRunner(t)
	hostRunner.On("Run", mock.Anything, mock.Anything).
		Return(runner.CommandResult{}, context.DeadlineExceeded)

	_, err := execute(t, dir, nodeBackend, hostRunner, "app", "install", "--node", "sn", "--app", "web")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.NotContains(t, nodeBackend.CallsFor("sn"), "exec sn start web 8080")
}
