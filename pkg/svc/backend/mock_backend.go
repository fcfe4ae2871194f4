package backend

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockBackend is a mock implementation of the Backend interface for testing.
type MockBackend struct {
	mock.Mock
}

// NewMockBackend creates a new MockBackend instance.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Create mocks node creation.
func (m *MockBackend) Create(ctx context.Context, nodeID string, spec CreateSpec) error {
	args := m.Called(ctx, nodeID, spec)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// Destroy mocks node destruction.
func (m *MockBackend) Destroy(ctx context.Context, nodeID string) error {
	args := m.Called(ctx, nodeID)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// Exists mocks the existence check.
func (m *MockBackend) Exists(ctx context.Context, nodeID string) (bool, error) {
	args := m.Called(ctx, nodeID)

	return args.Bool(0), args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// Exec mocks running a command.
func (m *MockBackend) Exec(ctx context.Context, nodeID, command string) (ExecResult, error) {
	args := m.Called(ctx, nodeID, command)

	result, _ := args.Get(0).(ExecResult)

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// PushFile mocks pushing a file.
func (m *MockBackend) PushFile(ctx context.Context, nodeID, localPath, remotePath string, recursive bool) error {
	args := m.Called(ctx, nodeID, localPath, remotePath, recursive)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// PullFile mocks pulling a file.
func (m *MockBackend) PullFile(ctx context.Context, nodeID, remotePath, localPath string, recursive bool) error {
	args := m.Called(ctx, nodeID, remotePath, localPath, recursive)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// GetIP mocks the address lookup.
func (m *MockBackend) GetIP(ctx context.Context, nodeID string) ([]string, error) {
	args := m.Called(ctx, nodeID)

	result, ok := args.Get(0).([]string)
	if !ok {
		return nil, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
	}

	return result, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}

// Snapshot mocks snapshotting a node.
func (m *MockBackend) Snapshot(ctx context.Context, nodeID, name string) error {
	args := m.Called(ctx, nodeID, name)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// Restore mocks restoring a node.
func (m *MockBackend) Restore(ctx context.Context, nodeID, name string) error {
	args := m.Called(ctx, nodeID, name)

	return args.Error(0) //nolint:wrapcheck // Mock function, wrapping not needed
}

// State mocks the state query.
func (m *MockBackend) State(ctx context.Context, nodeID string) (NodeState, error) {
	args := m.Called(ctx, nodeID)

	state, _ := args.Get(0).(NodeState)

	return state, args.Error(1) //nolint:wrapcheck // Mock function, wrapping not needed
}
