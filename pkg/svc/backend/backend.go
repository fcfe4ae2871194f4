package backend

import (
	"context"
	"fmt"
	"time"
)

// DefaultExecTimeout bounds a single command run inside a node.
const DefaultExecTimeout = 300 * time.Second

// NodeState is the coarse runtime state of a node.
type NodeState string

const (
	// StateRunning means the node exists and is running.
	StateRunning NodeState = "Running"
	// StateStopped means the node exists but is not running.
	StateStopped NodeState = "Stopped"
	// StateAbsent means the backend has no resource for the node.
	StateAbsent NodeState = "Absent"
	// StateUnknown means the backend reported a state it cannot classify.
	StateUnknown NodeState = "Unknown"
)

// CreateSpec sizes and configures a new node.
type CreateSpec struct {
	// CPU is the number of virtual CPUs.
	CPU int
	// Memory is a size such as "1G".
	Memory string
	// Disk is a size such as "5G".
	Disk string
	// Template names the provisioning template (cloud-init file or image).
	Template string
	// Network is the network name to attach to, if any.
	Network string
	// Ports are published ports in "host:container/proto" form.
	Ports []string
}

// ExecResult holds the output of a command run inside a node.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Backend defines the operations every execution backend provides.
type Backend interface {
	// Create allocates and boots a node. It is not a no-op on existing nodes;
	// callers check Exists first.
	Create(ctx context.Context, nodeID string, spec CreateSpec) error

	// Destroy stops and reclaims a node. Destroying an absent node succeeds.
	Destroy(ctx context.Context, nodeID string) error

	// Exists reports whether the backend has a resource for the node.
	Exists(ctx context.Context, nodeID string) (bool, error)

	// Exec runs a shell command inside the node. A timeout returns
	// ErrCommandTimeout and a non-zero exit returns ErrCommandFailed; the
	// captured output is returned in both cases.
	Exec(ctx context.Context, nodeID, command string) (ExecResult, error)

	// PushFile copies a local file, or a directory when recursive, onto the node.
	PushFile(ctx context.Context, nodeID, localPath, remotePath string, recursive bool) error

	// PullFile copies a node file, or a directory when recursive, to the host.
	PullFile(ctx context.Context, nodeID, remotePath, localPath string, recursive bool) error

	// GetIP returns the node's addresses; the first is the primary address.
	GetIP(ctx context.Context, nodeID string) ([]string, error)

	// Snapshot stops the node, snapshots it under name and starts it again.
	Snapshot(ctx context.Context, nodeID, name string) error

	// Restore stops the node, restores the named snapshot and starts it again.
	Restore(ctx context.Context, nodeID, name string) error

	// State reports the node's runtime state.
	State(ctx context.Context, nodeID string) (NodeState, error)
}

// PowerCycler is implemented by backends that can stop and start a node.
type PowerCycler interface {
	Stop(ctx context.Context, nodeID string) error
	Start(ctx context.Context, nodeID string) error
}

// FailurePolicy decides what Cycle does when the operation fails.
type FailurePolicy int

const (
	// RestartOnFailure starts the node again after a failed operation. Used when
	// the operation leaves the node's disk untouched (snapshot).
	RestartOnFailure FailurePolicy = iota
	// StayStoppedOnFailure leaves the node stopped after a failed operation so it
	// is never started half-restored (restore).
	StayStoppedOnFailure
)

// Cycle stops the node, runs operation and starts the node again.
//
// On success the node ends running. On failure the node ends running for
// RestartOnFailure and stopped for StayStoppedOnFailure; the operation's error
// is returned in both cases.
func Cycle(
	ctx context.Context,
	cycler PowerCycler,
	nodeID string,
	policy FailurePolicy,
	operation func(ctx context.Context) error,
) error {
	err := cycler.Stop(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("stop %s: %w", nodeID, err)
	}

	opErr := operation(ctx)
	if opErr != nil && policy == StayStoppedOnFailure {
		return opErr
	}

	startErr := cycler.Start(ctx, nodeID)

	switch {
	case opErr != nil && startErr != nil:
		return fmt.Errorf("%w (restart %s also failed: %w)", opErr, nodeID, startErr)
	case opErr != nil:
		return opErr
	case startErr != nil:
		return fmt.Errorf("start %s: %w", nodeID, startErr)
	default:
		return nil
	}
}
