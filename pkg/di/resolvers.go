package di

import (
	"fmt"

	"github.com/devantler-tech/testbed/pkg/svc/backend/factory"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/devantler-tech/testbed/pkg/utils/timer"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

// Dependency resolvers.

// ResolveTimer retrieves the timer dependency from the injector with consistent error handling.
func ResolveTimer(injector Injector) (timer.Timer, error) {
	tmr, err := do.Invoke[timer.Timer](injector)
	if err != nil {
		return nil, fmt.Errorf("resolve timer dependency: %w", err)
	}

	return tmr, nil
}

// ResolveCommandRunner retrieves the host command runner.
func ResolveCommandRunner(injector Injector) (runner.CommandRunner, error) {
	cmdRunner, err := do.Invoke[runner.CommandRunner](injector)
	if err != nil {
		return nil, fmt.Errorf("resolve command runner dependency: %w", err)
	}

	return cmdRunner, nil
}

// ResolveBackendFactory retrieves the backend factory dependency.
func ResolveBackendFactory(injector Injector) (factory.Factory, error) {
	backendFactory, err := do.Invoke[factory.Factory](injector)
	if err != nil {
		return nil, fmt.Errorf("resolve backend factory dependency: %w", err)
	}

	return backendFactory, nil
}

// Handler decorators.

// WithTimer decorates a handler to automatically resolve the timer dependency.
func WithTimer(
	handler func(cmd *cobra.Command, injector Injector, tmr timer.Timer) error,
) func(cmd *cobra.Command, injector Injector) error {
	return func(cmd *cobra.Command, injector Injector) error {
		tmr, err := ResolveTimer(injector)
		if err != nil {
			return err
		}

		return handler(cmd, injector, tmr)
	}
}
