package env

import (
	"context"

	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/spf13/cobra"
)

// NewApplyConfigCmd creates the env apply-config command.
func NewApplyConfigCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:   "apply-config",
		Short: "Regenerate and apply node configuration",
		Long: `Run the config generators of a node, or of every node, and push ` +
			`their output to the node's config target.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.RunE = lifecycle.NewStandardRunE(runtimeContainer, lifecycle.Config{
		TitleEmoji:     "🛠️",
		TitleContent:   "Apply configuration...",
		SuccessContent: "configuration applied",
		Action: func(ctx context.Context, _ *cobra.Command, session *lifecycle.Session) error {
			return session.Workspace.ApplyConfig(ctx, node) //nolint:wrapcheck // stage errors name the node
		},
	})

	cmd.Flags().StringVarP(&node, "node", "n", "", "Only this node (default every node)")

	return cmd
}
