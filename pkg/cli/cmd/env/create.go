package env

import (
	"context"

	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/spf13/cobra"
)

// NewCreateCmd creates the env create command.
func NewCreateCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	var skipInstall bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the test environment",
		Long: `Create every node in instance order, then bootstrap, install software, ` +
			`apply configuration and run instance commands on the new nodes.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.RunE = lifecycle.NewStandardRunE(runtimeContainer, lifecycle.Config{
		TitleEmoji:     "🚀",
		TitleContent:   "Create environment...",
		SuccessContent: "environment created",
		Action: func(ctx context.Context, _ *cobra.Command, session *lifecycle.Session) error {
			return session.Workspace.Create(ctx, skipInstall) //nolint:wrapcheck // stage errors name the node
		},
	})

	cmd.Flags().BoolVar(&skipInstall, "skip-install", false, "Create and bootstrap nodes without installing software")

	return cmd
}
