// Package app provides the commands that install and update catalog software on nodes.
package app

import (
	"context"
	"fmt"

	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/spf13/cobra"
)

// NewAppCmd creates the parent app command.
func NewAppCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "app",
		Short:        "Install and update software on nodes",
		Args:         cobra.NoArgs,
		RunE:         handleAppRunE,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewInstallCmd(runtimeContainer))
	cmd.AddCommand(NewUpdateCmd(runtimeContainer))

	return cmd
}

//nolint:gochecknoglobals // Injected for testability to simulate help failures.
var helpRunner = func(cmd *cobra.Command) error {
	return cmd.Help()
}

func handleAppRunE(cmd *cobra.Command, _ []string) error {
	err := helpRunner(cmd)
	if err != nil {
		return fmt.Errorf("displaying app command help: %w", err)
	}

	return nil
}

// NewInstallCmd creates the app install command.
func NewInstallCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	return newInstallCmd(runtimeContainer, installMode{
		use:     "install",
		short:   "Build, stage and install software on nodes",
		long:    `Run build_all on the host, stage each component's source directory and run its install commands.`,
		emoji:   "📦",
		title:   "Install software...",
		success: "software installed",
		run: func(ctx context.Context, session *lifecycle.Session, node string, apps []string) error {
			return session.Workspace.Install(ctx, node, apps) //nolint:wrapcheck // stage errors name the node
		},
	})
}

// NewUpdateCmd creates the app update command.
func NewUpdateCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	return newInstallCmd(runtimeContainer, installMode{
		use:     "update",
		short:   "Rebuild, restage and update software on nodes",
		long:    `Run build on the host, stage each component's source_bin directory and run its update commands.`,
		emoji:   "🔄",
		title:   "Update software...",
		success: "software updated",
		run: func(ctx context.Context, session *lifecycle.Session, node string, apps []string) error {
			return session.Workspace.Update(ctx, node, apps) //nolint:wrapcheck // stage errors name the node
		},
	})
}

type installMode struct {
	use, short, long      string
	emoji, title, success string
	run                   func(ctx context.Context, session *lifecycle.Session, node string, apps []string) error
}

func newInstallCmd(runtimeContainer *runtime.Runtime, mode installMode) *cobra.Command {
	var (
		node string
		apps []string
	)

	cmd := &cobra.Command{
		Use:          mode.use,
		Short:        mode.short,
		Long:         mode.long,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.RunE = lifecycle.NewStandardRunE(runtimeContainer, lifecycle.Config{
		TitleEmoji:     mode.emoji,
		TitleContent:   mode.title,
		SuccessContent: mode.success,
		Action: func(ctx context.Context, _ *cobra.Command, session *lifecycle.Session) error {
			// Nil selects every component assigned to each node.
			var selected []string
			if len(apps) > 0 {
				selected = apps
			}

			return mode.run(ctx, session, node, selected)
		},
	})

	cmd.Flags().StringVarP(&node, "node", "n", "", "Only this node (default every node)")
	cmd.Flags().StringSliceVarP(&apps, "app", "a", nil, "Components to install (default every assigned component)")

	return cmd
}
