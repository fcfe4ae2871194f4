package env

import (
	"context"
	"fmt"
	"strings"

	"github.com/devantler-tech/testbed/pkg/cli/helpers"
	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/devantler-tech/testbed/pkg/svc/workspace"
	"github.com/spf13/cobra"
)

// NewInfoCmd creates the env info command.
func NewInfoCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "info",
		Short:        "Show the state and addresses of every node",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.RunE = lifecycle.NewStandardRunE(runtimeContainer, lifecycle.Config{
		TitleEmoji:   "🔎",
		TitleContent: "Environment info...",
		Action: func(ctx context.Context, cmd *cobra.Command, session *lifecycle.Session) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), RenderInfo(session.Workspace.Info(ctx)))
			if err != nil {
				return fmt.Errorf("write info: %w", err)
			}

			snapshots := session.Workspace.Snapshots()
			if len(snapshots) > 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "snapshots: %s\n", strings.Join(snapshots, ", "))
			}

			return nil
		},
	})

	return cmd
}

// RenderInfo renders node infos as a table.
func RenderInfo(infos []workspace.NodeInfo) string {
	rows := make([][]string, 0, len(infos))

	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			info.ID,
			dash(string(info.Route)),
			info.State.String(),
			string(info.Runtime),
			dash(info.IP),
			dash(strings.Join(info.Components, ",")),
		})
	}

	return helpers.Table([]string{"NODE", "ID", "ROUTE", "STATE", "RUNTIME", "IP", "APPS"}, rows)
}

func dash(value string) string {
	if value == "" {
		return "-"
	}

	return value
}
