// Package env provides the commands that operate on a whole test environment.
package env

import (
	"fmt"

	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/spf13/cobra"
)

// NewEnvCmd creates the parent env command and wires its subcommands.
func NewEnvCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage the test environment",
		Long: `Create, destroy, snapshot and inspect every node declared in the ` +
			`workspace node graph.`,
		Args:         cobra.NoArgs,
		RunE:         handleEnvRunE,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewCreateCmd(runtimeContainer))
	cmd.AddCommand(NewDestroyCmd(runtimeContainer))
	cmd.AddCommand(NewSnapshotCmd(runtimeContainer))
	cmd.AddCommand(NewRestoreCmd(runtimeContainer))
	cmd.AddCommand(NewLogsCmd(runtimeContainer))
	cmd.AddCommand(NewInfoCmd(runtimeContainer))
	cmd.AddCommand(NewApplyConfigCmd(runtimeContainer))

	return cmd
}

//nolint:gochecknoglobals // Injected for testability to simulate help failures.
var helpRunner = func(cmd *cobra.Command) error {
	return cmd.Help()
}

func handleEnvRunE(cmd *cobra.Command, _ []string) error {
	err := helpRunner(cmd)
	if err != nil {
		return fmt.Errorf("displaying env command help: %w", err)
	}

	return nil
}
