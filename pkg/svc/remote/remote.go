package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/remote/ssh"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
)

// Errors returned by handles. Command failures and timeouts reuse the backend
// sentinels so callers test one set of errors.
var (
	// ErrTransportUnavailable is returned when no session to the node can be established.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrNoRoute is returned for nodes with neither backend parameters nor a remote block.
	ErrNoRoute = errors.New("node has no route")
	// ErrCommandFailed is returned when a command exits non-zero.
	ErrCommandFailed = backend.ErrCommandFailed
	// ErrCommandTimeout is returned when a command does not finish in time.
	ErrCommandTimeout = backend.ErrCommandTimeout
)

// Route names the transport a handle uses.
type Route string

const (
	// RouteBackend sends operations to the execution backend.
	RouteBackend Route = "backend"
	// RouteSSH sends operations over ssh and scp.
	RouteSSH Route = "ssh"
)

// CommandResult is the outcome of RunCommand. It is populated for failed
// commands as well.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// DeviceInfo describes how a node is reached.
type DeviceInfo struct {
	ID       string
	IP       string
	IPs      []string
	Port     int
	Username string
	Route    Route
}

// Shell is the remote-shell transport used for nodes outside the backend.
type Shell interface {
	Run(ctx context.Context, target ssh.Target, command string) (runner.CommandResult, error)
	Upload(ctx context.Context, target ssh.Target, localPath, remotePath string, recursive bool) error
	Download(ctx context.Context, target ssh.Target, remotePath, localPath string, recursive bool) error
	// Complete fills the port, username and identity a node leaves empty.
	Complete(target ssh.Target) ssh.Target
}

// Handle runs commands on and moves files to and from one node.
type Handle struct {
	node    *v1alpha1.Node
	backend backend.Backend
	shell   Shell
	route   Route
}

// NewHandle picks the route for node. backend and shell may be nil when the
// node does not need them.
func NewHandle(node *v1alpha1.Node, nodeBackend backend.Backend, shell Shell) (*Handle, error) {
	handle := &Handle{node: node, backend: nodeBackend, shell: shell}

	switch {
	case node.UsesBackend():
		if nodeBackend == nil {
			return nil, fmt.Errorf("%w: %s needs an execution backend", ErrTransportUnavailable, node.Name)
		}

		handle.route = RouteBackend
	case node.Remote != nil && node.Remote.Host != "":
		if shell == nil {
			return nil, fmt.Errorf("%w: %s needs a remote shell", ErrTransportUnavailable, node.Name)
		}

		handle.route = RouteSSH
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, node.Name)
	}

	return handle, nil
}

// Route reports which transport the handle uses.
func (h *Handle) Route() Route {
	return h.route
}

// RunCommand executes command on the node.
func (h *Handle) RunCommand(ctx context.Context, command string) (CommandResult, error) {
	if h.route == RouteBackend {
		result, err := h.backend.Exec(ctx, h.node.Name, command)

		return CommandResult(result), err //nolint:wrapcheck // backend errors name the node
	}

	result, err := h.shell.Run(ctx, h.target(), command)
	converted := CommandResult(result)

	switch {
	case err == nil:
		return converted, nil
	case errors.Is(err, ssh.ErrConnection):
		return converted, fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	case errors.Is(err, runner.ErrTimeout):
		return converted, fmt.Errorf("%w on %s: %w", ErrCommandTimeout, h.node.Name, err)
	case errors.Is(err, runner.ErrNonZeroExit):
		return converted, fmt.Errorf(
			"%w on %s (exit %d): %s", ErrCommandFailed, h.node.Name, result.ExitCode, strings.TrimSpace(result.Stderr),
		)
	default:
		return converted, fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}
}

// Push copies a local file, or a directory when recursive, onto the node.
func (h *Handle) Push(ctx context.Context, localPath, remotePath string, recursive bool) error {
	if h.route == RouteBackend {
		return h.backend.PushFile(ctx, h.node.Name, localPath, remotePath, recursive) //nolint:wrapcheck // names the node
	}

	return h.shellError(h.shell.Upload(ctx, h.target(), localPath, remotePath, recursive))
}

// Pull copies a node file, or a directory when recursive, to the host.
func (h *Handle) Pull(ctx context.Context, remotePath, localPath string, recursive bool) error {
	if h.route == RouteBackend {
		return h.backend.PullFile(ctx, h.node.Name, remotePath, localPath, recursive) //nolint:wrapcheck // names the node
	}

	return h.shellError(h.shell.Download(ctx, h.target(), remotePath, localPath, recursive))
}

// GetInfo reports the node's identity and address. Backend nodes are asked
// for their current address; remote nodes report their declared host.
func (h *Handle) GetInfo(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{ID: h.node.ID(), Route: h.route}

	if h.route == RouteSSH {
		target := h.target()
		info.IP = target.Host
		info.IPs = []string{target.Host}
		info.Port = target.Port
		info.Username = target.Username

		return info, nil
	}

	addresses, err := h.backend.GetIP(ctx, h.node.Name)
	if err != nil {
		return info, fmt.Errorf("address of %s: %w", h.node.Name, err)
	}

	if len(addresses) == 0 {
		return info, fmt.Errorf("%w: %s", backend.ErrNoAddress, h.node.Name)
	}

	info.IP = addresses[0]
	info.IPs = addresses

	return info, nil
}

func (h *Handle) target() ssh.Target {
	return h.shell.Complete(ssh.Target{
		Host:         h.node.Remote.Host,
		Port:         h.node.Remote.Port,
		Username:     h.node.Remote.Username,
		IdentityFile: h.node.Remote.IdentityFile,
	})
}

func (h *Handle) shellError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ssh.ErrConnection):
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	case errors.Is(err, runner.ErrTimeout):
		return fmt.Errorf("%w on %s: %w", ErrCommandTimeout, h.node.Name, err)
	default:
		return fmt.Errorf("%w on %s: %w", ErrCommandFailed, h.node.Name, err)
	}
}
