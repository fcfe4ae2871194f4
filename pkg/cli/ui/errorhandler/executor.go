// Package errorhandler turns cobra failures into a single error for main to print.
package errorhandler

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

// InterruptedMessage replaces the error text when the command context was
// cancelled, usually by SIGINT during create or provision.
const InterruptedMessage = "interrupted; nodes may be partially provisioned, run 'testbed env destroy' to clean up"

// Executor runs a cobra command with its error stream captured so the
// failure can be reported once, by the caller.
type Executor struct{}

// NewExecutor constructs an Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs cmd. On failure it returns a *CommandError holding cobra's
// normalized stderr output and the original error.
func (e *Executor) Execute(cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	var errBuf bytes.Buffer

	original := cmd.ErrOrStderr()

	cmd.SetErr(&errBuf)
	defer cmd.SetErr(original)

	err := cmd.Execute()
	if err == nil {
		return nil
	}

	message := normalize(errBuf.String())
	if errors.Is(err, context.Canceled) {
		message = InterruptedMessage
	}

	return &CommandError{message: message, cause: err}
}

// CommandError is a command failure with the text cobra printed for it.
type CommandError struct {
	message string
	cause   error
}

// Error returns the normalized message, followed by the cause unless the
// message already contains it.
func (e *CommandError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return e.message
	case e.message == "":
		return e.cause.Error()
	case strings.Contains(e.message, e.cause.Error()):
		return e.message
	default:
		return e.message + ": " + e.cause.Error()
	}
}

// Unwrap returns the original error.
func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// Interrupted reports whether the command stopped because its context was
// cancelled.
func (e *CommandError) Interrupted() bool {
	return e != nil && errors.Is(e.cause, context.Canceled)
}

// normalize trims cobra's output and drops the "Error: " prefix of the first
// line. Usage hints on later lines are kept.
func normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	first, rest, found := strings.Cut(trimmed, "\n")
	first = strings.TrimPrefix(strings.TrimSpace(first), "Error: ")

	if !found {
		return first
	}

	return first + "\n" + rest
}
