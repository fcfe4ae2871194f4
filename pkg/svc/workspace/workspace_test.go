package workspace_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/io/catalog"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/backend/fake"
	"github.com/devantler-tech/testbed/pkg/svc/instance"
	"github.com/devantler-tech/testbed/pkg/svc/remote"
	"github.com/devantler-tech/testbed/pkg/svc/state"
	"github.com/devantler-tech/testbed/pkg/svc/workspace"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logsGraph() *v1alpha1.NodeGraph {
	return &v1alpha1.NodeGraph{
		Nodes: map[string]*v1alpha1.Node{
			"sn": {
				Name:        "sn",
				VMParams:    &v1alpha1.VMParams{},
				Directories: map[string]string{v1alpha1.LogsDirectoryRole: "/var/log"},
			},
			"api": {
				Name:     "api",
				VMParams: &v1alpha1.VMParams{},
				Apps:     map[string]v1alpha1.AppParams{"web": {"port": 8080}},
			},
		},
		InstanceOrder: []string{"sn", "api"},
	}
}

func openWorkspace(
	t *testing.T,
	graph *v1alpha1.NodeGraph,
	nodeBackend backend.Backend,
	output *bytes.Buffer,
) (*workspace.Workspace, string) {
	t.Helper()

	dir := t.TempDir()

	components, err := catalog.New(&v1alpha1.Component{
		Name:     "web",
		Commands: map[v1alpha1.Stage][]string{v1alpha1.StageUpdate: {"restart web {{web.port}} {{sn.ip}}"}},
	})
	require.NoError(t, err)

	ws, err := workspace.New(graph, components, workspace.Config{
		WorkspaceDir: dir,
		BaseDir:      dir,
		ConfigRoot:   dir,
		PollInterval: time.Millisecond,
		Instance:     instance.Options{AddressTimeout: time.Second},
	}, workspace.Services{
		Backend: nodeBackend,
		Runner:  runner.NewMockCommandRunner(t),
		Output:  output,
	})
	require.NoError(t, err)

	return ws, dir
}

func TestCollectLogsOnlyFromNodesWithLogsRole(t *testing.T) {
	t.Parallel()

	nodeBackend := fake.New(nil).AddNode("sn").AddNode("api")
	nodeBackend.WriteFile("sn", "/var/log/syslog", []byte("booted"))
	nodeBackend.WriteFile("api", "/var/log/api.log", []byte("ignored"))

	ws, dir := openWorkspace(t, logsGraph(), nodeBackend, &bytes.Buffer{})

	target := filepath.Join(dir, "logs")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "stale"), 0o750))

	collected, err := ws.CollectLogs(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, []string{"sn"}, collected)

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sn", entries[0].Name())

	content, err := os.ReadFile(filepath.Join(target, "sn", "syslog"))
	require.NoError(t, err)
	assert.Equal(t, "booted", string(content))
}

func TestCollectLogsFailureIsWarning(t *testing.T) {
	t.Parallel()

	output := &bytes.Buffer{}
	ws, dir := openWorkspace(t, logsGraph(), fake.New(nil), output)

	collected, err := ws.CollectLogs(context.Background(), filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.Empty(t, collected)
	assert.Contains(t, output.String(), "collect logs from sn")
}

func TestCreatePersistsStates(t *testing.T) {
	t.Parallel()

	nodeBackend := fake.New(map[string][]string{"sn": {"10.0.0.2"}, "api": {"10.0.0.3"}})
	ws, dir := openWorkspace(t, logsGraph(), nodeBackend, &bytes.Buffer{})

	require.NoError(t, ws.Create(context.Background(), true))

	env, err := state.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, instance.StateReady, env.Nodes["sn"])
	assert.Equal(t, instance.StateReady, env.Nodes["api"])

	reopened, _ := openWorkspaceIn(t, dir, logsGraph(), nodeBackend)
	assert.Equal(t, instance.StateReady, reopened.Manager().State("api"))
}

func openWorkspaceIn(
	t *testing.T,
	dir string,
	graph *v1alpha1.NodeGraph,
	nodeBackend backend.Backend,
) (*workspace.Workspace, string) {
	t.Helper()

	components, err := catalog.New()
	require.NoError(t, err)

	ws, err := workspace.New(graph, components, workspace.Config{WorkspaceDir: dir}, workspace.Services{
		Backend: nodeBackend,
	})
	require.NoError(t, err)

	return ws, dir
}

func TestSnapshotAndRestoreAll(t *testing.T) {
	t.Parallel()

	graph := logsGraph()
	graph.Nodes["gw"] = &v1alpha1.Node{Name: "gw", Remote: &v1alpha1.RemoteTarget{Host: "192.0.2.1"}}
	graph.InstanceOrder = append(graph.InstanceOrder, "gw")

	nodeBackend := fake.New(nil).AddNode("sn").AddNode("api")
	ws, dir := openWorkspace(t, graph, nodeBackend, &bytes.Buffer{})
	ctx := context.Background()

	require.NoError(t, ws.SnapshotAll(ctx, "base"))
	require.NoError(t, ws.RestoreAll(ctx, "base"))

	assert.Equal(t, []string{
		"stop sn", "snapshot sn base", "start sn",
		"stop api", "snapshot api base", "start api",
		"stop sn", "restore sn base", "start sn",
		"stop api", "restore api base", "start api",
	}, nodeBackend.Calls())

	env, err := state.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, env.Snapshots)
}

func TestUpdateResolvesAcrossNodes(t *testing.T) {
	t.Parallel()

	nodeBackend := fake.New(map[string][]string{"sn": {"10.0.0.2"}, "api": {"10.0.0.3"}}).
		AddNode("sn").AddNode("api")
	ws, _ := openWorkspace(t, logsGraph(), nodeBackend, &bytes.Buffer{})

	require.NoError(t, ws.Update(context.Background(), "api", []string{"web"}))

	assert.Contains(t, nodeBackend.CallsFor("api"), "exec api restart web 8080 10.0.0.2")
}

func TestRunPrintsOutput(t *testing.T) {
	t.Parallel()

	nodeBackend := fake.New(map[string][]string{"sn": {"10.0.0.2"}, "api": {"10.0.0.3"}}).
		AddNode("sn").AddNode("api").
		WithExec(func(_, command string) (backend.ExecResult, error) {
			return backend.ExecResult{Stdout: "ran " + command}, nil
		})
	output := &bytes.Buffer{}
	ws, _ := openWorkspace(t, logsGraph(), nodeBackend, output)

	require.NoError(t, ws.Run(context.Background(), "sn", []string{"curl {{api.ip}}"}))

	assert.Equal(t, "ran curl 10.0.0.3\n", output.String())
	require.ErrorIs(t, ws.Run(context.Background(), "", []string{"true"}), workspace.ErrNoSelection)
	require.ErrorIs(t, ws.Run(context.Background(), "db", []string{"true"}), instance.ErrUnknownNode)
}

func TestInfoReportsRuntimeAndAddresses(t *testing.T) {
	t.Parallel()

	nodeBackend := fake.New(map[string][]string{"sn": {"10.0.0.2", "172.17.0.2"}}).AddNode("sn")
	ws, _ := openWorkspace(t, logsGraph(), nodeBackend, &bytes.Buffer{})

	infos := ws.Info(context.Background())
	require.Len(t, infos, 2)

	assert.Equal(t, workspace.NodeInfo{
		Name:    "sn",
		ID:      "sn",
		Route:   remote.RouteBackend,
		State:   instance.StateDeclared,
		Runtime: backend.StateRunning,
		IP:      "10.0.0.2",
		IPs:     []string{"10.0.0.2", "172.17.0.2"},
	}, infos[0])

	assert.Equal(t, backend.StateAbsent, infos[1].Runtime)
	assert.Empty(t, infos[1].IP)
	assert.Equal(t, []string{"web"}, infos[1].Components)
}

func TestDestroyAllClearsSnapshots(t *testing.T) {
	t.Parallel()

	nodeBackend := fake.New(nil).AddNode("sn").AddNode("api")
	ws, dir := openWorkspace(t, logsGraph(), nodeBackend, &bytes.Buffer{})
	ctx := context.Background()

	require.NoError(t, ws.SnapshotAll(ctx, "base"))
	require.NoError(t, ws.DestroyAll(ctx))

	env, err := state.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, env.Snapshots)
	assert.Equal(t, instance.StateDeclared, env.Nodes["sn"])
}
