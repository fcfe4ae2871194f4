package factory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	dockerbackend "github.com/devantler-tech/testbed/pkg/svc/backend/docker"
	"github.com/devantler-tech/testbed/pkg/svc/backend/factory"
	"github.com/devantler-tech/testbed/pkg/svc/backend/multipass"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDaemonDown = errors.New("connection refused")

type stubDockerClient struct {
	dockerbackend.Client

	pingErr error
	closed  bool
}

func (s *stubDockerClient) Ping(context.Context) (types.Ping, error) {
	return types.Ping{}, s.pingErr
}

func (s *stubDockerClient) Close() error {
	s.closed = true

	return nil
}

func TestCreateMultipass(t *testing.T) {
	t.Parallel()

	backendFactory := &factory.DefaultFactory{Runner: runner.NewMockCommandRunner(t)}

	created, err := backendFactory.Create(context.Background(), factory.Options{
		Kind:        v1alpha1.BackendMultipass,
		TemplateDir: t.TempDir(),
	})

	require.NoError(t, err)
	assert.IsType(t, &multipass.Backend{}, created)
}

func TestCreateDockerOwnsClient(t *testing.T) {
	t.Parallel()

	client := &stubDockerClient{}
	backendFactory := &factory.DefaultFactory{
		NewDockerClient: func() (factory.DockerClient, error) { return client, nil },
	}

	created, err := backendFactory.Create(context.Background(), factory.Options{Kind: v1alpha1.BackendDocker})

	require.NoError(t, err)
	assert.IsType(t, &dockerbackend.Backend{}, created)
	assert.False(t, client.closed)

	require.NoError(t, backendFactory.Close())
	assert.True(t, client.closed)
}

func TestCreateDockerUnreachable(t *testing.T) {
	t.Parallel()

	client := &stubDockerClient{pingErr: errDaemonDown}
	backendFactory := &factory.DefaultFactory{
		NewDockerClient: func() (factory.DockerClient, error) { return client, nil },
	}

	_, err := backendFactory.Create(context.Background(), factory.Options{Kind: v1alpha1.BackendDocker})

	require.ErrorIs(t, err, backend.ErrBackendUnavailable)
	assert.True(t, client.closed)
}

func TestCreateUnsupportedKind(t *testing.T) {
	t.Parallel()

	_, err := (&factory.DefaultFactory{}).Create(context.Background(), factory.Options{Kind: "Hyper-V"})

	require.ErrorIs(t, err, backend.ErrUnsupportedBackend)
}
