package env

import (
	"context"

	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	"github.com/devantler-tech/testbed/pkg/cli/ui/confirm"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/spf13/cobra"
)

// NewDestroyCmd creates the env destroy command.
func NewDestroyCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the test environment",
		Long: `Destroy every backend node in reverse instance order. Nodes that ` +
			`no longer exist are skipped.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.RunE = lifecycle.NewStandardRunE(runtimeContainer, lifecycle.Config{
		TitleEmoji:     "🗑️",
		TitleContent:   "Destroy environment...",
		SuccessContent: "environment destroyed",
		Action: func(ctx context.Context, cmd *cobra.Command, session *lifecycle.Session) error {
			if !confirm.ShouldSkipPrompt(force) {
				confirm.ShowDeletionPreview(cmd.OutOrStdout(), deletionPreview(session))

				if !confirm.PromptForConfirmation(cmd.OutOrStdout()) {
					return confirm.ErrDeletionCancelled
				}
			}

			return session.Workspace.DestroyAll(ctx) //nolint:wrapcheck // stage errors name the node
		},
	})

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

func deletionPreview(session *lifecycle.Session) *confirm.DeletionPreview {
	preview := &confirm.DeletionPreview{
		Workspace: session.Settings.WorkspaceDir,
		Backend:   session.Settings.Backend,
	}

	for _, node := range session.Workspace.Graph().Ordered() {
		if node.UsesBackend() {
			preview.Nodes = append(preview.Nodes, node.ID())
		} else {
			preview.Remote = append(preview.Remote, node.ID())
		}
	}

	return preview
}
