package cmd

import (
	"fmt"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/cli/cmd/app"
	"github.com/devantler-tech/testbed/pkg/cli/cmd/cert"
	"github.com/devantler-tech/testbed/pkg/cli/cmd/env"
	"github.com/devantler-tech/testbed/pkg/cli/helpers"
	"github.com/devantler-tech/testbed/pkg/cli/ui/errorhandler"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/spf13/cobra"
)

// NewRootCmd creates and returns the root command with version info and subcommands.
func NewRootCmd(version, commit, date string) *cobra.Command {
	return NewRootCmdWithRuntime(runtime.NewRuntime(), version, commit, date)
}

// NewRootCmdWithRuntime creates the root command on top of runtimeContainer.
func NewRootCmdWithRuntime(runtimeContainer *runtime.Runtime, version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "testbed",
		Short: "testbed creates and drives multi-node test environments",
		Long: `testbed creates the nodes declared in a node graph on a local execution ` +
			`backend or over ssh, installs catalog software on them, applies generated ` +
			`configuration and runs commands that reference other nodes by address.`,
		RunE:         handleRootRunE,
		SilenceUsage: true,
	}

	cmd.Version = fmt.Sprintf("%s (Built on %s from Git SHA %s)", version, date, commit)

	var backendKind v1alpha1.BackendKind

	cmd.PersistentFlags().Bool(helpers.TimingFlagName, false, "Show per-activity timing output")
	cmd.PersistentFlags().String(helpers.ConfigFlagName, "", "Settings file (default <workspace>/testbed.yaml)")
	cmd.PersistentFlags().StringP(helpers.WorkspaceFlagName, "w", "", "Workspace directory (default .)")
	cmd.PersistentFlags().Var(
		&backendKind,
		helpers.BackendFlagName,
		fmt.Sprintf("Execution backend (%s)", backendKind.ValidValues()),
	)
	cmd.PersistentFlags().String(helpers.LogLevelFlagName, "", "Diagnostic log level (default warn)")

	cmd.AddCommand(NewInitCmd(runtimeContainer))
	cmd.AddCommand(env.NewEnvCmd(runtimeContainer))
	cmd.AddCommand(app.NewAppCmd(runtimeContainer))
	cmd.AddCommand(NewRunCmd(runtimeContainer))
	cmd.AddCommand(cert.NewCertCmd(runtimeContainer))

	return cmd
}

// Execute runs the provided root command and handles errors.
func Execute(cmd *cobra.Command) error {
	executor := errorhandler.NewExecutor()

	err := executor.Execute(cmd)
	if err != nil {
		return fmt.Errorf("command execution failed: %w", err)
	}

	return nil
}

func handleRootRunE(cmd *cobra.Command, _ []string) error {
	// The err can safely be ignored, as it can never fail at runtime.
	_ = cmd.Help()

	return nil
}
