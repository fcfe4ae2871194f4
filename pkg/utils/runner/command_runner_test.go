package runner_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_CapturesStdout(t *testing.T) {
	t.Parallel()

	var echo bytes.Buffer

	execRunner := runner.NewExecRunner(&echo, nil)

	result, err := execRunner.Run(context.Background(), runner.Command{
		Name: "sh",
		Args: []string{"-c", "printf hello"},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", result.Stdout)
	assert.Equal(t, "hello", echo.String())
	assert.Zero(t, result.ExitCode)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	t.Parallel()

	result, err := runner.NewExecRunner(nil, nil).Run(context.Background(), runner.Command{
		Name: "sh",
		Args: []string{"-c", "echo broken >&2; exit 3"},
	})

	require.ErrorIs(t, err, runner.ErrNonZeroExit)
	assert.NotErrorIs(t, err, runner.ErrTimeout)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "broken\n", result.Stderr)
	assert.Contains(t, err.Error(), "broken")
}

func TestExecRunner_Timeout(t *testing.T) {
	t.Parallel()

	_, err := runner.NewExecRunner(nil, nil).Run(context.Background(), runner.Command{
		Name:    "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	})

	require.ErrorIs(t, err, runner.ErrTimeout)
	assert.NotErrorIs(t, err, runner.ErrNonZeroExit)
}

func TestExecRunner_WorkingDirectoryAndEnv(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	result, err := runner.NewExecRunner(nil, nil).Run(context.Background(), runner.Command{
		Name: "sh",
		Args: []string{"-c", "pwd; echo $TESTBED_MARKER"},
		Dir:  dir,
		Env:  []string{"TESTBED_MARKER=42"},
	})

	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], strings.TrimPrefix(dir, "/private")))
	assert.Equal(t, "42", lines[1])
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	t.Parallel()

	_, err := runner.NewExecRunner(nil, nil).Run(context.Background(), runner.Command{})

	require.ErrorIs(t, err, runner.ErrEmptyCommand)
}

func TestCommand_String(t *testing.T) {
	t.Parallel()

	cmd := runner.Command{Name: "multipass", Args: []string{"info", "sn"}}

	assert.Equal(t, "multipass info sn", cmd.String())
}
