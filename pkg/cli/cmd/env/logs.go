package env

import (
	"context"

	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/devantler-tech/testbed/pkg/fsutil"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the env logs command.
func NewLogsCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Collect logs from every node",
		Long: `Clear the output directory and pull the logs directory of each node ` +
			`that declares one into <output>/<node>.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.RunE = lifecycle.NewStandardRunE(runtimeContainer, lifecycle.Config{
		TitleEmoji:   "📜",
		TitleContent: "Collect logs...",
		Action: func(ctx context.Context, cmd *cobra.Command, session *lifecycle.Session) error {
			target := session.Settings.LogsDir
			if output != "" {
				resolved, err := fsutil.ResolvePath(session.Settings.WorkspaceDir, output)
				if err != nil {
					return err //nolint:wrapcheck // names the path
				}

				target = resolved
			}

			collected, err := session.Workspace.CollectLogs(ctx, target)
			if err != nil {
				return err //nolint:wrapcheck // names the directory
			}

			notify.SuccessWithTimerf(
				cmd.OutOrStdout(), session.OutputTimer,
				"logs of %d node(s) written to %s", len(collected), target,
			)

			return nil
		},
	})

	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory receiving the logs (default logs_dir)")

	return cmd
}
