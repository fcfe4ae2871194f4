package env

import (
	"context"
	"fmt"

	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/spf13/cobra"
)

// NewSnapshotCmd creates the env snapshot command.
func NewSnapshotCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <name>",
		Short: "Snapshot every backend node",
		Long: `Stop, snapshot and restart each backend node in instance order. ` +
			`Remote nodes are skipped.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
	}

	cmd.RunE = lifecycle.WrapHandler(runtimeContainer, func(cmd *cobra.Command, session *lifecycle.Session) error {
		name := cmd.Flags().Arg(0)

		return lifecycle.HandleRunE(cmd, session, lifecycle.Config{
			TitleEmoji:     "📸",
			TitleContent:   fmt.Sprintf("Snapshot environment as %s...", name),
			SuccessContent: "snapshot " + name + " saved",
			Action: func(ctx context.Context, _ *cobra.Command, session *lifecycle.Session) error {
				return session.Workspace.SnapshotAll(ctx, name) //nolint:wrapcheck // stage errors name the node
			},
		})
	})

	return cmd
}

// NewRestoreCmd creates the env restore command.
func NewRestoreCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "restore <name>",
		Short:        "Restore every backend node to a snapshot",
		Long:         `Stop, restore and restart each backend node in instance order.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
	}

	cmd.RunE = lifecycle.WrapHandler(runtimeContainer, func(cmd *cobra.Command, session *lifecycle.Session) error {
		name := cmd.Flags().Arg(0)

		return lifecycle.HandleRunE(cmd, session, lifecycle.Config{
			TitleEmoji:     "⏪",
			TitleContent:   fmt.Sprintf("Restore environment to %s...", name),
			SuccessContent: "environment restored to " + name,
			Action: func(ctx context.Context, _ *cobra.Command, session *lifecycle.Session) error {
				return session.Workspace.RestoreAll(ctx, name) //nolint:wrapcheck // stage errors name the node
			},
		})
	})

	return cmd
}
