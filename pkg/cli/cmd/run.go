package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/spf13/cobra"
)

var errNoCommand = errors.New("no command given")

// NewRunCmd creates the run command.
func NewRunCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:   "run --node <node> -- <command>...",
		Short: "Run a command on a node",
		Long: `Resolve node references such as {{api.ip}} against the live environment ` +
			`and run the command on the selected node. Output is printed as it is returned.`,
		Example:      `  testbed run --node client -- curl http://{{server.ip}}:8080`,
		SilenceUsage: true,
	}

	cmd.RunE = lifecycle.WrapHandler(runtimeContainer, func(cmd *cobra.Command, session *lifecycle.Session) error {
		command := strings.TrimSpace(strings.Join(cmd.Flags().Args(), " "))
		if command == "" {
			return errNoCommand
		}

		return lifecycle.HandleRunE(cmd, session, lifecycle.Config{
			TitleEmoji:   "▶️",
			TitleContent: "Run on " + node + "...",
			Action: func(ctx context.Context, _ *cobra.Command, session *lifecycle.Session) error {
				return session.Workspace.Run(ctx, node, []string{command}) //nolint:wrapcheck // stage errors name the node
			},
		})
	})

	cmd.Flags().StringVarP(&node, "node", "n", "", "Node to run the command on")
	_ = cmd.MarkFlagRequired("node")

	return cmd
}
