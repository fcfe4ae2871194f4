// Package ssh reaches remote-shell nodes through the system ssh and scp clients.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/devantler-tech/testbed/pkg/utils/runner"
)

// DefaultTimeout bounds a single remote command or copy.
const DefaultTimeout = 300 * time.Second

// exitConnectionFailure is what ssh exits with when it cannot establish the session.
const exitConnectionFailure = 255

// ErrConnection is returned when ssh or scp cannot reach the host.
var ErrConnection = errors.New("ssh connection failed")

var scpConnectionPattern = regexp.MustCompile(
	`(?i)connection (refused|timed out|closed)|could not resolve|no route to host|permission denied \(`,
)

// Target addresses a remote host.
type Target struct {
	Host         string
	Port         int
	Username     string
	IdentityFile string
}

// Options holds defaults applied to targets that leave fields empty.
type Options struct {
	Binary       string
	CopyBinary   string
	Port         int
	Username     string
	IdentityFile string
	Timeout      time.Duration
}

// Transport runs ssh and scp through a CommandRunner.
type Transport struct {
	runner  runner.CommandRunner
	options Options
}

// NewTransport creates a Transport.
func NewTransport(cmdRunner runner.CommandRunner, options Options) *Transport {
	if options.Binary == "" {
		options.Binary = "ssh"
	}

	if options.CopyBinary == "" {
		options.CopyBinary = "scp"
	}

	if options.Port <= 0 {
		options.Port = 22
	}

	if options.Username == "" {
		options.Username = "root"
	}

	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}

	return &Transport{runner: cmdRunner, options: options}
}

// Run executes command on the target. A non-zero remote exit returns
// runner.ErrNonZeroExit; an unreachable host returns ErrConnection.
func (t *Transport) Run(ctx context.Context, target Target, command string) (runner.CommandResult, error) {
	target = t.Complete(target)

	args := append(t.commonArgs("-p", target), target.Username+"@"+target.Host, command)

	result, err := t.runner.Run(ctx, runner.Command{
		Name:    t.options.Binary,
		Args:    args,
		Timeout: t.options.Timeout,
	})
	if err != nil && result.ExitCode == exitConnectionFailure {
		return result, fmt.Errorf("%w: %s@%s:%d: %w", ErrConnection, target.Username, target.Host, target.Port, err)
	}

	return result, err //nolint:wrapcheck // runner errors already name the command
}

// Upload copies a local file or directory to the target.
func (t *Transport) Upload(ctx context.Context, target Target, localPath, remotePath string, recursive bool) error {
	target = t.Complete(target)

	return t.copy(ctx, target, recursive, localPath, target.Username+"@"+target.Host+":"+remotePath)
}

// Download copies a remote file or directory from the target.
func (t *Transport) Download(ctx context.Context, target Target, remotePath, localPath string, recursive bool) error {
	target = t.Complete(target)

	return t.copy(ctx, target, recursive, target.Username+"@"+target.Host+":"+remotePath, localPath)
}

func (t *Transport) copy(ctx context.Context, target Target, recursive bool, source, destination string) error {
	args := t.commonArgs("-P", target)
	if recursive {
		args = append(args, "-r")
	}

	args = append(args, source, destination)

	result, err := t.runner.Run(ctx, runner.Command{
		Name:    t.options.CopyBinary,
		Args:    args,
		Timeout: t.options.Timeout,
	})
	if err == nil {
		return nil
	}

	if scpConnectionPattern.MatchString(result.Stderr) {
		return fmt.Errorf("%w: %s: %w", ErrConnection, target.Host, err)
	}

	return fmt.Errorf("copy %s to %s: %w", source, destination, err)
}

func (t *Transport) commonArgs(portFlag string, target Target) []string {
	args := []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "BatchMode=yes",
		portFlag, strconv.Itoa(target.Port),
	}

	if target.IdentityFile != "" {
		args = append(args, "-i", target.IdentityFile)
	}

	return args
}

// Complete fills the fields target leaves empty from the transport defaults.
func (t *Transport) Complete(target Target) Target {
	if target.Port <= 0 {
		target.Port = t.options.Port
	}

	if target.Username == "" {
		target.Username = t.options.Username
	}

	if target.IdentityFile == "" {
		target.IdentityFile = t.options.IdentityFile
	}

	return target
}
