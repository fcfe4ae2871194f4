package runner

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCommandRunner is a mock implementation of CommandRunner for testing.
type MockCommandRunner struct {
	mock.Mock
}

// NewMockCommandRunner creates a MockCommandRunner that asserts its
// expectations when the test finishes.
func NewMockCommandRunner(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockCommandRunner {
	runner := &MockCommandRunner{}
	runner.Test(t)

	t.Cleanup(func() { runner.AssertExpectations(t) })

	return runner
}

// Run mocks the Run method.
func (m *MockCommandRunner) Run(ctx context.Context, command Command) (CommandResult, error) {
	args := m.Called(ctx, command)

	result, _ := args.Get(0).(CommandResult)

	//nolint:wrapcheck // mock returns the configured error
	return result, args.Error(1)
}
