package lifecycle

import (
	"context"
	"strings"

	"github.com/devantler-tech/testbed/pkg/cli/helpers"
	"github.com/devantler-tech/testbed/pkg/cli/ui"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	configmanager "github.com/devantler-tech/testbed/pkg/io/config-manager"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"github.com/devantler-tech/testbed/pkg/utils/timer"
	"github.com/spf13/cobra"
)

// Action is a workspace operation run by a command.
type Action func(ctx context.Context, cmd *cobra.Command, session *Session) error

// Config describes the messaging and action of a workspace command.
type Config struct {
	TitleEmoji   string
	TitleContent string
	// SuccessContent is printed after Action succeeds. Empty prints nothing.
	SuccessContent string
	Action         Action
}

// NewStandardRunE creates a RunE that opens a session and runs config.Action.
func NewStandardRunE(
	runtimeContainer *runtime.Runtime,
	config Config,
) func(*cobra.Command, []string) error {
	return WrapHandler(runtimeContainer, func(cmd *cobra.Command, session *Session) error {
		return HandleRunE(cmd, session, config)
	})
}

// WrapHandler resolves dependencies from the runtime container, loads
// settings, opens a session and invokes handler with it.
func WrapHandler(
	runtimeContainer *runtime.Runtime,
	handler func(*cobra.Command, *Session) error,
) func(*cobra.Command, []string) error {
	return runtime.RunEWithRuntime(
		runtimeContainer,
		runtime.WithTimer(
			func(cmd *cobra.Command, injector runtime.Injector, tmr timer.Timer) error {
				tmr.Start()
				SeparateStages(cmd)

				outputTimer := helpers.MaybeTimer(cmd, tmr)

				settings, err := LoadSettings(cmd, outputTimer, configmanager.LoadOptions{})
				if err != nil {
					return err
				}

				session, err := OpenSession(cmd.Context(), cmd, injector, settings, tmr, outputTimer)
				if err != nil {
					return err
				}

				return handler(cmd, session)
			},
		),
	)
}

// HandleRunE starts a new timer stage, prints the title and runs the action.
func HandleRunE(cmd *cobra.Command, session *Session, config Config) error {
	session.Timer.NewStage()

	ShowTitle(cmd, config.TitleEmoji, config.TitleContent)

	err := config.Action(cmd.Context(), cmd, session)
	if err != nil {
		return err
	}

	if config.SuccessContent != "" {
		notify.SuccessWithTimerf(cmd.OutOrStdout(), session.OutputTimer, "%s", config.SuccessContent)
	}

	return nil
}

// ShowTitle displays the title message for an operation and mirrors it in
// the terminal window title.
func ShowTitle(cmd *cobra.Command, emoji, content string) {
	SeparateStages(cmd)
	ui.SetTerminalTitle(cmd.OutOrStdout(), "testbed - "+strings.TrimSuffix(content, "..."))
	notify.Titlef(cmd.OutOrStdout(), emoji, "%s", content)
}

// SeparateStages routes the command's output through a
// notify.StageSeparatingWriter unless it already is one.
func SeparateStages(cmd *cobra.Command) {
	if _, ok := cmd.OutOrStdout().(*notify.StageSeparatingWriter); ok {
		return
	}

	cmd.SetOut(notify.NewStageSeparatingWriter(cmd.OutOrStdout()))
}
