package backend

import "errors"

// Common errors for backend operations.
var (
	// ErrNodeNotFound is returned when an operation needs a node that does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrCommandTimeout is returned when a command inside a node exceeds its timeout.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrCommandFailed is returned when a command inside a node exits non-zero.
	ErrCommandFailed = errors.New("command failed")

	// ErrBackendUnavailable is returned when the backend tooling or daemon cannot be reached.
	ErrBackendUnavailable = errors.New("backend is not available")

	// ErrUnsupportedBackend is returned by the factory for unknown backend kinds.
	ErrUnsupportedBackend = errors.New("unsupported backend")

	// ErrNoAddress is returned when a node reports no IPv4 address.
	ErrNoAddress = errors.New("node has no address")
)
