package di

import (
	"github.com/devantler-tech/testbed/pkg/svc/backend/factory"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/devantler-tech/testbed/pkg/utils/timer"
	"github.com/samber/do/v2"
)

// Dependency providers.

// NewRuntime constructs the shared runtime container used by root command and tests.
// It registers default implementations for the timer, the host command runner
// and the backend factory.
func NewRuntime() *Runtime {
	return New(
		provideTimer,
		provideCommandRunner,
		provideBackendFactory,
	)
}

// provideTimer registers the timer dependency with the injector.
func provideTimer(i Injector) error {
	do.Provide(i, func(Injector) (timer.Timer, error) {
		return timer.New(), nil
	})

	return nil
}

// provideCommandRunner registers the runner used for host-side commands.
func provideCommandRunner(i Injector) error {
	do.Provide(i, func(Injector) (runner.CommandRunner, error) {
		return runner.NewExecRunner(nil, nil), nil
	})

	return nil
}

// provideBackendFactory registers the backend factory. Docker clients it
// opens are closed when the injector shuts down.
func provideBackendFactory(i Injector) error {
	do.Provide(i, func(i Injector) (factory.Factory, error) {
		cmdRunner, err := ResolveCommandRunner(i)
		if err != nil {
			return nil, err
		}

		return &factory.DefaultFactory{Runner: cmdRunner}, nil
	})

	return nil
}
