package multipass

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/utils/logging"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// DefaultBinary is the multipass executable looked up on PATH.
const DefaultBinary = "multipass"

// DefaultSettleDelay is how long a freshly launched instance is left alone
// before its hostname is set.
const DefaultSettleDelay = 3 * time.Second

// controlTimeout bounds lifecycle invocations that do not run user commands.
const controlTimeout = 10 * time.Minute

var (
	ipv4Pattern     = regexp.MustCompile(`IPv4:\s+((?:\d+\.\d+\.\d+\.\d+\s*)+)`)
	notFoundPattern = regexp.MustCompile(`(?i)instance "?[^"\s]*"? does not exist`)
)

// ErrTemplateNotFound is returned when a node names a cloud-init template
// that is missing from the template directory.
var ErrTemplateNotFound = errors.New("cloud-init template not found")

// Options configures the multipass backend.
type Options struct {
	// Binary overrides the multipass executable.
	Binary string
	// TemplateDir holds cloud-init templates named <template>.yaml.
	TemplateDir string
	// ExecTimeout bounds Exec. Zero means backend.DefaultExecTimeout.
	ExecTimeout time.Duration
	// SettleDelay is waited after launch. Negative disables the wait.
	SettleDelay time.Duration
	// Logger receives diagnostic output. Nil discards it.
	Logger logrus.FieldLogger
}

// Backend drives Multipass virtual machines.
type Backend struct {
	runner  runner.CommandRunner
	options Options
	logger  logrus.FieldLogger
}

var (
	_ backend.Backend     = (*Backend)(nil)
	_ backend.PowerCycler = (*Backend)(nil)
)

// NewBackend creates a multipass backend that runs its invocations through cmdRunner.
func NewBackend(cmdRunner runner.CommandRunner, options Options) *Backend {
	if options.Binary == "" {
		options.Binary = DefaultBinary
	}

	if options.ExecTimeout <= 0 {
		options.ExecTimeout = backend.DefaultExecTimeout
	}

	if options.SettleDelay == 0 {
		options.SettleDelay = DefaultSettleDelay
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Backend{
		runner:  cmdRunner,
		options: options,
		logger:  logger.WithField("backend", "multipass"),
	}
}

// Create launches an instance sized by spec and sets its hostname to nodeID.
func (b *Backend) Create(ctx context.Context, nodeID string, spec backend.CreateSpec) error {
	args, err := b.launchArgs(nodeID, spec)
	if err != nil {
		return err
	}

	b.logger.WithField("node", nodeID).Debugf("launching instance: %s", strings.Join(args, " "))

	_, err = b.run(ctx, controlTimeout, args...)
	if err != nil {
		return fmt.Errorf("launch %s: %w", nodeID, err)
	}

	if b.options.SettleDelay > 0 {
		err = sleep(ctx, b.options.SettleDelay)
		if err != nil {
			return err
		}
	}

	_, err = b.Exec(ctx, nodeID, "sudo hostnamectl set-hostname "+nodeID)
	if err != nil {
		b.logger.WithField("node", nodeID).WithError(err).Warn("failed to set hostname")
	}

	return nil
}

// Destroy deletes and purges the instance. Absent instances are ignored.
func (b *Backend) Destroy(ctx context.Context, nodeID string) error {
	exists, err := b.Exists(ctx, nodeID)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	_, err = b.run(ctx, controlTimeout, "delete", "--purge", nodeID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", nodeID, err)
	}

	return nil
}

// Exists reports whether multipass lists an instance named nodeID.
func (b *Backend) Exists(ctx context.Context, nodeID string) (bool, error) {
	state, err := b.State(ctx, nodeID)
	if err != nil {
		return false, err
	}

	return state != backend.StateAbsent, nil
}

// State maps the instance's multipass state onto a backend.NodeState.
func (b *Backend) State(ctx context.Context, nodeID string) (backend.NodeState, error) {
	result, err := b.run(ctx, controlTimeout, "list")
	if err != nil {
		return backend.StateUnknown, fmt.Errorf("list instances: %w", err)
	}

	return parseListState(result.Stdout, nodeID), nil
}

// Exec runs command through bash inside the instance. The command is passed
// as a single argument so the host shell never interprets it.
func (b *Backend) Exec(ctx context.Context, nodeID, command string) (backend.ExecResult, error) {
	result, err := b.runner.Run(ctx, runner.Command{
		Name:    b.options.Binary,
		Args:    []string{"exec", nodeID, "--", "bash", "-c", command},
		Timeout: b.options.ExecTimeout,
	})

	execResult := backend.ExecResult{
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
	}

	return execResult, translate(nodeID, result, err)
}

// PushFile transfers a file or directory onto the instance. Directories are
// merged into remotePath, which is created first.
func (b *Backend) PushFile(ctx context.Context, nodeID, localPath, remotePath string, recursive bool) error {
	if !recursive {
		_, err := b.Exec(ctx, nodeID, "mkdir -p "+shellQuote(path.Dir(remotePath)))
		if err != nil {
			return err
		}

		return b.transfer(ctx, false, localPath, nodeID+":"+remotePath)
	}

	_, err := b.Exec(ctx, nodeID, "mkdir -p "+shellQuote(remotePath))
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(localPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", localPath, err)
	}

	for _, entry := range entries {
		source := filepath.Join(localPath, entry.Name())

		if entry.IsDir() {
			err = b.transfer(ctx, true, source, nodeID+":"+remotePath)
		} else {
			err = b.transfer(ctx, false, source, nodeID+":"+path.Join(remotePath, entry.Name()))
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// PullFile transfers a file or directory from the instance. A directory is
// copied to localPath; its parent is created first.
func (b *Backend) PullFile(ctx context.Context, nodeID, remotePath, localPath string, recursive bool) error {
	parent := filepath.Dir(localPath)

	err := os.MkdirAll(parent, 0o750)
	if err != nil {
		return fmt.Errorf("create %s: %w", parent, err)
	}

	return b.transfer(ctx, recursive, nodeID+":"+remotePath, localPath)
}

// GetIP parses the IPv4 block of `multipass info`.
func (b *Backend) GetIP(ctx context.Context, nodeID string) ([]string, error) {
	result, err := b.run(ctx, controlTimeout, "info", nodeID)
	if err != nil {
		return nil, translate(nodeID, result, err)
	}

	addresses := parseIPv4(result.Stdout)
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: %s", backend.ErrNoAddress, nodeID)
	}

	return addresses, nil
}

// Snapshot stops the instance, takes a named snapshot and starts it again.
func (b *Backend) Snapshot(ctx context.Context, nodeID, name string) error {
	return backend.Cycle(ctx, b, nodeID, backend.RestartOnFailure, func(ctx context.Context) error {
		_, err := b.run(ctx, controlTimeout, "snapshot", nodeID, "--name", name)
		if err != nil {
			return fmt.Errorf("snapshot %s as %s: %w", nodeID, name, err)
		}

		return nil
	})
}

// Restore stops the instance, restores the named snapshot and starts it again.
// A failed restore leaves the instance stopped.
func (b *Backend) Restore(ctx context.Context, nodeID, name string) error {
	return backend.Cycle(ctx, b, nodeID, backend.StayStoppedOnFailure, func(ctx context.Context) error {
		_, err := b.run(ctx, controlTimeout, "restore", nodeID+"."+name, "--destructive")
		if err != nil {
			return fmt.Errorf("restore %s from %s: %w", nodeID, name, err)
		}

		return nil
	})
}

// Stop stops the instance.
func (b *Backend) Stop(ctx context.Context, nodeID string) error {
	result, err := b.run(ctx, controlTimeout, "stop", nodeID)

	return translate(nodeID, result, err)
}

// Start starts the instance.
func (b *Backend) Start(ctx context.Context, nodeID string) error {
	result, err := b.run(ctx, controlTimeout, "start", nodeID)

	return translate(nodeID, result, err)
}

func (b *Backend) launchArgs(nodeID string, spec backend.CreateSpec) ([]string, error) {
	args := []string{"launch", "--name", nodeID}

	if spec.CPU > 0 {
		args = append(args, "--cpus", strconv.Itoa(spec.CPU))
	}

	for _, size := range []struct{ flag, value string }{
		{"--memory", spec.Memory},
		{"--disk", spec.Disk},
	} {
		if size.value == "" {
			continue
		}

		_, err := units.RAMInBytes(size.value)
		if err != nil {
			return nil, fmt.Errorf("%s %q for %s: %w", size.flag, size.value, nodeID, err)
		}

		args = append(args, size.flag, size.value)
	}

	if spec.Template != "" {
		cloudInit := filepath.Join(b.options.TemplateDir, spec.Template+".yaml")

		_, err := os.Stat(cloudInit)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, cloudInit)
		}

		args = append(args, "--cloud-init", cloudInit)
	}

	return args, nil
}

func (b *Backend) transfer(ctx context.Context, recursive bool, source, target string) error {
	args := []string{"transfer"}
	if recursive {
		args = append(args, "-r")
	}

	args = append(args, source, target)

	_, err := b.run(ctx, b.options.ExecTimeout, args...)
	if err != nil {
		return fmt.Errorf("transfer %s to %s: %w", source, target, err)
	}

	return nil
}

func (b *Backend) run(ctx context.Context, timeout time.Duration, args ...string) (runner.CommandResult, error) {
	result, err := b.runner.Run(ctx, runner.Command{
		Name:    b.options.Binary,
		Args:    args,
		Timeout: timeout,
	})
	if err != nil {
		b.logger.WithError(err).Debugf("multipass %s failed", strings.Join(args, " "))

		return result, fmt.Errorf("multipass %s: %w", args[0], err)
	}

	return result, nil
}

// translate maps runner errors onto the backend taxonomy.
func translate(nodeID string, result runner.CommandResult, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, runner.ErrTimeout):
		return fmt.Errorf("%w on %s: %w", backend.ErrCommandTimeout, nodeID, err)
	case notFoundPattern.MatchString(result.Stderr):
		return fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
	case errors.Is(err, runner.ErrNonZeroExit):
		return fmt.Errorf(
			"%w on %s (exit %d): %s", backend.ErrCommandFailed, nodeID, result.ExitCode,
			strings.TrimSpace(result.Stderr),
		)
	default:
		return fmt.Errorf("%w: %w", backend.ErrBackendUnavailable, err)
	}
}

func parseIPv4(info string) []string {
	match := ipv4Pattern.FindStringSubmatch(info)
	if match == nil {
		return nil
	}

	return strings.Fields(match[1])
}

// parseListState reads the tabular `multipass list` output. Rows are
// "Name State IPv4 Image"; continuation rows for extra addresses have a
// leading blank column.
func parseListState(list, nodeID string) backend.NodeState {
	for _, line := range strings.Split(list, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != nodeID {
			continue
		}

		switch strings.ToLower(fields[1]) {
		case "running":
			return backend.StateRunning
		case "stopped", "suspended":
			return backend.StateStopped
		case "deleted":
			return backend.StateAbsent
		default:
			return backend.StateUnknown
		}
	}

	return backend.StateAbsent
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for instance to settle: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
