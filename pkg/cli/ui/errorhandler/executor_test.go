package errorhandler_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/devantler-tech/testbed/pkg/cli/ui/errorhandler"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errNodeNotCreated = errors.New("node not created")
	errInitFailed     = errors.New("init failed on N2: exit status 1")
)

func newEnvCmd(runE func(*cobra.Command, []string) error) *cobra.Command {
	root := &cobra.Command{Use: "testbed"}
	env := &cobra.Command{Use: "env"}
	env.AddCommand(&cobra.Command{Use: "create", RunE: runE})
	root.AddCommand(env)

	return root
}

func executeCommandError(t *testing.T, cmd *cobra.Command) *errorhandler.CommandError {
	t.Helper()

	err := errorhandler.NewExecutor().Execute(cmd)
	require.Error(t, err)

	var cmdErr *errorhandler.CommandError
	require.ErrorAs(t, err, &cmdErr)

	return cmdErr
}

func TestExecuteSuccessAndNilCommand(t *testing.T) {
	t.Parallel()

	root := newEnvCmd(func(*cobra.Command, []string) error { return nil })
	root.SetArgs([]string{"env", "create"})

	executor := errorhandler.NewExecutor()
	require.NoError(t, executor.Execute(root))
	require.NoError(t, executor.Execute(nil))
}

func TestExecuteUnknownSubcommandKeepsUsageHint(t *testing.T) {
	t.Parallel()

	root := newEnvCmd(nil)
	root.SetArgs([]string{"launch"})

	message := executeCommandError(t, root).Error()

	assert.Contains(t, message, `unknown command "launch" for "testbed"`)
	assert.NotContains(t, message, "Error: ")
	assert.Contains(t, message, "Run 'testbed --help' for usage.")
}

func TestCommandErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		printed string
		cause   error
		want    string
	}{
		{name: "cause only", cause: errNodeNotCreated, want: "node not created"},
		{name: "printed and distinct cause", printed: "create environment", cause: errInitFailed, want: "create environment: init failed on N2: exit status 1"},
		{name: "printed contains cause", printed: "Error: init failed on N2: exit status 1", cause: errInitFailed, want: "init failed on N2: exit status 1"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			root := newEnvCmd(func(cmd *cobra.Command, _ []string) error {
				if testCase.printed != "" {
					cmd.PrintErrln(testCase.printed)
				}

				return testCase.cause
			})
			root.SilenceErrors = true
			root.SilenceUsage = true
			root.SetArgs([]string{"env", "create"})

			cmdErr := executeCommandError(t, root)

			assert.Equal(t, testCase.want, cmdErr.Error())
			require.ErrorIs(t, cmdErr, testCase.cause)
			assert.False(t, cmdErr.Interrupted())
		})
	}
}

func TestExecuteInterruptedCommand(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	root := newEnvCmd(func(cmd *cobra.Command, _ []string) error {
		cancel()

		return fmt.Errorf("provision N1: %w", cmd.Context().Err())
	})
	root.SilenceErrors = true
	root.SilenceUsage = true
	root.SetArgs([]string{"env", "create"})
	root.SetContext(ctx)

	cmdErr := executeCommandError(t, root)

	assert.True(t, cmdErr.Interrupted())
	require.ErrorIs(t, cmdErr, context.Canceled)
	assert.Equal(t, errorhandler.InterruptedMessage+": provision N1: context canceled", cmdErr.Error())
}

func TestCommandErrorNilReceiver(t *testing.T) {
	t.Parallel()

	var cmdErr *errorhandler.CommandError

	assert.Empty(t, cmdErr.Error())
	require.NoError(t, cmdErr.Unwrap())
	assert.False(t, cmdErr.Interrupted())
	assert.Empty(t, (&errorhandler.CommandError{}).Error())
}
