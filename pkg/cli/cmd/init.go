package cmd

import (
	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/cli/helpers"
	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	configmanager "github.com/devantler-tech/testbed/pkg/io/config-manager"
	"github.com/devantler-tech/testbed/pkg/io/scaffolder"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"github.com/devantler-tech/testbed/pkg/utils/timer"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command.
func NewInitCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new workspace",
		Long: `Write testbed.yaml, a sample node graph and a sample catalog component ` +
			`into the workspace directory.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.RunE = runtime.RunEWithRuntime(
		runtimeContainer,
		runtime.WithTimer(func(cmd *cobra.Command, _ runtime.Injector, tmr timer.Timer) error {
			tmr.Start()

			outputTimer := helpers.MaybeTimer(cmd, tmr)

			settings, err := lifecycle.LoadSettings(cmd, outputTimer, configmanager.LoadOptions{
				Silent:           true,
				IgnoreConfigFile: true,
				SkipValidation:   true,
			})
			if err != nil {
				return err
			}

			lifecycle.ShowTitle(cmd, "📂", "Initialize workspace...")

			backendKind := settings.Backend
			if backendKind == "" {
				backendKind = v1alpha1.BackendMultipass
			}

			err = scaffolder.NewScaffolder(backendKind, cmd.OutOrStdout()).Scaffold(settings.WorkspaceDir, force)
			if err != nil {
				return err //nolint:wrapcheck // scaffolder errors name the file
			}

			notify.SuccessWithTimerf(cmd.OutOrStdout(), outputTimer, "initialized workspace in %s", settings.WorkspaceDir)

			return nil
		}),
	)

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")

	return cmd
}
