package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/devantler-tech/testbed/pkg/cli/cmd"
	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	"github.com/devantler-tech/testbed/pkg/io/scaffolder"
	"github.com/devantler-tech/testbed/pkg/svc/backend/fake"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitScaffoldsWorkspaceUsableByEnvInfo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	out, err := executeIn(t, dir, fake.New(nil), "--backend", "docker", "init")
	require.NoError(t, err, out)
	assert.Contains(t, out, "initialized workspace in "+dir)

	settings, err := os.ReadFile(filepath.Join(dir, scaffolder.SettingsFile))
	require.NoError(t, err)
	assert.Contains(t, string(settings), "backend: Docker")

	rt := lifecycle.NewTestRuntime(&lifecycle.StaticFactory{Backend: fake.New(nil)}, runner.NewMockCommandRunner(t))
	root := cmd.NewRootCmdWithRuntime(rt, "test", "test", "test")
	info := &bytes.Buffer{}
	root.SetOut(info)
	root.SetErr(info)
	root.SetArgs([]string{"--workspace", dir, "env", "info"})

	require.NoError(t, root.Execute(), info.String())
	assert.Contains(t, info.String(), "server")
	assert.Contains(t, info.String(), "client")
}

func TestInitKeepsExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, scaffolder.NodeGraphFile), []byte("{}"), 0o600))

	out, err := executeIn(t, dir, fake.New(nil), "init")
	require.NoError(t, err, out)
	assert.Contains(t, out, "skipped 'nodes.json'")

	content, err := os.ReadFile(filepath.Join(dir, scaffolder.NodeGraphFile))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(content))
}
