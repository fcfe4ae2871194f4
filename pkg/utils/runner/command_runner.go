package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Errors returned by ExecRunner.
var (
	// ErrTimeout is returned when a command exceeds its timeout.
	ErrTimeout = errors.New("command timed out")
	// ErrNonZeroExit is returned when a command exits with a non-zero status.
	ErrNonZeroExit = errors.New("command exited with non-zero status")
	// ErrEmptyCommand is returned when Command.Name is empty.
	ErrEmptyCommand = errors.New("command name is empty")
)

// Command describes a process invocation. Args are passed as discrete
// arguments; no shell is involved unless Name is a shell.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Stdin   io.Reader
	Timeout time.Duration
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandResult captures the output of a command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs external commands.
type CommandRunner interface {
	Run(ctx context.Context, command Command) (CommandResult, error)
}

// ExecRunner runs commands with os/exec. When Stdout or Stderr is set the
// output is also streamed there while being captured.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner creates an ExecRunner that echoes output to the given writers.
// Nil writers disable echoing.
func NewExecRunner(stdout, stderr io.Writer) *ExecRunner {
	return &ExecRunner{Stdout: stdout, Stderr: stderr}
}

// Run executes the command. A non-zero exit returns ErrNonZeroExit and an
// exceeded timeout returns ErrTimeout; in both cases the captured output is
// returned alongside the error.
func (r *ExecRunner) Run(ctx context.Context, command Command) (CommandResult, error) {
	if command.Name == "" {
		return CommandResult{}, ErrEmptyCommand
	}

	runCtx := ctx

	if command.Timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}

	var stdoutBuf, stderrBuf bytes.Buffer

	//nolint:gosec // command lines come from the operator's own declarations
	cmd := exec.CommandContext(runCtx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	cmd.Stdin = command.Stdin
	cmd.Stdout = teeWriter(&stdoutBuf, r.Stdout)
	cmd.Stderr = teeWriter(&stderrBuf, r.Stderr)

	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}

	err := cmd.Run()

	result := CommandResult{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if err == nil {
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return result, fmt.Errorf("%w after %s: %s", ErrTimeout, command.Timeout, command)
	}

	if ctx.Err() != nil {
		return result, fmt.Errorf("%s: %w", command, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, fmt.Errorf(
			"%w (%d): %s\n%s",
			ErrNonZeroExit,
			exitErr.ExitCode(),
			command,
			strings.TrimSpace(result.Stderr),
		)
	}

	return result, fmt.Errorf("run %s: %w", command, err)
}

func teeWriter(capture *bytes.Buffer, echo io.Writer) io.Writer {
	if echo == nil {
		return capture
	}

	return io.MultiWriter(capture, echo)
}
