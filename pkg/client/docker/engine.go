package docker

import (
	"context"
	"errors"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// ErrEngineUnreachable is returned when the Docker daemon does not answer a ping.
var ErrEngineUnreachable = errors.New("docker engine is not reachable")

// Pinger is implemented by Docker clients.
type Pinger interface {
	Ping(ctx context.Context) (types.Ping, error)
}

// GetDockerClient creates a Docker client using environment configuration.
func GetDockerClient() (*client.Client, error) {
	dockerClient, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return dockerClient, nil
}

// CheckEngine pings the daemon so a missing engine fails before any node is touched.
func CheckEngine(ctx context.Context, pinger Pinger) error {
	_, err := pinger.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnreachable, err)
	}

	return nil
}
