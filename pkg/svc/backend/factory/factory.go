// Package factory builds the process-wide execution backend for a BackendKind.
package factory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	dockerclient "github.com/devantler-tech/testbed/pkg/client/docker"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	dockerbackend "github.com/devantler-tech/testbed/pkg/svc/backend/docker"
	"github.com/devantler-tech/testbed/pkg/svc/backend/multipass"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/sirupsen/logrus"
)

// Options carries everything a backend needs at initialization.
type Options struct {
	Kind        v1alpha1.BackendKind
	TemplateDir string
	ExecTimeout time.Duration
	SettleDelay time.Duration
	Image       string
	Network     string
	// PullRetryWait is the docker image pull backoff base.
	PullRetryWait time.Duration
	Logger        logrus.FieldLogger
}

// Factory creates execution backends.
type Factory interface {
	Create(ctx context.Context, options Options) (backend.Backend, error)
}

// DockerClient is what the docker backend needs from an engine client.
type DockerClient interface {
	dockerbackend.Client
	dockerclient.Pinger
	io.Closer
}

// DefaultFactory builds multipass and docker backends. It owns any Docker
// client it opens; call Close when done.
type DefaultFactory struct {
	// Runner runs multipass invocations. Nil uses an ExecRunner.
	Runner runner.CommandRunner
	// NewDockerClient opens the engine client. Nil uses the environment.
	NewDockerClient func() (DockerClient, error)

	mu      sync.Mutex
	closers []io.Closer
}

var _ Factory = (*DefaultFactory)(nil)

// Create builds the backend selected by options.Kind.
func (f *DefaultFactory) Create(ctx context.Context, options Options) (backend.Backend, error) {
	switch options.Kind {
	case v1alpha1.BackendMultipass:
		cmdRunner := f.Runner
		if cmdRunner == nil {
			cmdRunner = runner.NewExecRunner(nil, nil)
		}

		return multipass.NewBackend(cmdRunner, multipass.Options{
			TemplateDir: options.TemplateDir,
			ExecTimeout: options.ExecTimeout,
			SettleDelay: options.SettleDelay,
			Logger:      options.Logger,
		}), nil
	case v1alpha1.BackendDocker:
		return f.createDocker(ctx, options)
	default:
		return nil, fmt.Errorf("%w: %q", backend.ErrUnsupportedBackend, options.Kind)
	}
}

// Shutdown closes the factory when its injector shuts down.
func (f *DefaultFactory) Shutdown() error {
	return f.Close()
}

// Close releases clients opened by Create.
func (f *DefaultFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error

	for _, closer := range f.closers {
		err := closer.Close()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close backend client: %w", err)
		}
	}

	f.closers = nil

	return firstErr
}

func (f *DefaultFactory) createDocker(ctx context.Context, options Options) (backend.Backend, error) {
	newClient := f.NewDockerClient
	if newClient == nil {
		newClient = func() (DockerClient, error) {
			client, err := dockerclient.GetDockerClient()
			if err != nil {
				return nil, err
			}

			return client, nil
		}
	}

	client, err := newClient()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrBackendUnavailable, err)
	}

	err = dockerclient.CheckEngine(ctx, client)
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("%w: %w", backend.ErrBackendUnavailable, err)
	}

	f.mu.Lock()
	f.closers = append(f.closers, client)
	f.mu.Unlock()

	return dockerbackend.NewBackend(client, dockerbackend.Options{
		Image:         options.Image,
		Network:       options.Network,
		ExecTimeout:   options.ExecTimeout,
		PullRetryWait: options.PullRetryWait,
		Logger:        options.Logger,
	}), nil
}
