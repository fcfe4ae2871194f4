package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	runtime "github.com/devantler-tech/testbed/pkg/di"
	testbedconfig "github.com/devantler-tech/testbed/pkg/io/config-manager/testbed"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/backend/factory"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/devantler-tech/testbed/pkg/utils/timer"
	"github.com/samber/do/v2"
)

// StaticFactory always returns the same backend. It lets command tests run
// against an in-memory backend.
type StaticFactory struct {
	Backend backend.Backend

	mu        sync.Mutex
	requested factory.Options
}

// Create returns f.Backend.
func (f *StaticFactory) Create(_ context.Context, options factory.Options) (backend.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requested = options

	return f.Backend, nil
}

// LastOptions returns the options of the last Create call.
func (f *StaticFactory) LastOptions() factory.Options {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requested
}

// NewTestRuntime builds a runtime whose backend factory and host runner are
// the given test doubles.
func NewTestRuntime(backendFactory factory.Factory, cmdRunner runner.CommandRunner) *runtime.Runtime {
	return runtime.New(
		func(i runtime.Injector) error {
			do.Provide(i, func(runtime.Injector) (timer.Timer, error) {
				return timer.New(), nil
			})

			return nil
		},
		func(i runtime.Injector) error {
			do.Provide(i, func(runtime.Injector) (runner.CommandRunner, error) {
				return cmdRunner, nil
			})

			return nil
		},
		func(i runtime.Injector) error {
			do.Provide(i, func(runtime.Injector) (factory.Factory, error) {
				return backendFactory, nil
			})

			return nil
		},
	)
}

// TestSettings is a settings file without settle delays for command tests.
const TestSettings = `timeouts:
  settle: 0s
  create_wait: 0s
  instance_delay: 0s
  address: 5s
log:
  level: error
`

// WorkspaceT is the part of testing.TB used by NewTestWorkspace.
type WorkspaceT interface {
	Helper()
	TempDir() string
	Fatalf(format string, args ...any)
}

// NewTestWorkspace writes TestSettings, graph as nodes.json and each
// component document into apps/ of a temporary workspace and returns its path.
func NewTestWorkspace(t WorkspaceT, graph string, components ...string) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		testbedconfig.ConfigName + ".yaml": TestSettings,
		testbedconfig.DefaultNodeGraph:     graph,
	}

	for i, component := range components {
		files[filepath.Join(testbedconfig.DefaultCatalogDir, fmt.Sprintf("component-%d.yaml", i))] = component
	}

	for name, content := range files {
		path := filepath.Join(dir, name)

		err := os.MkdirAll(filepath.Dir(path), 0o750)
		if err == nil {
			err = os.WriteFile(path, []byte(content), 0o600)
		}

		if err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	return dir
}
