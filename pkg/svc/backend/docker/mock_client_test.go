package docker_test

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) ContainerCreate(
	ctx context.Context,
	config *container.Config,
	hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig,
	platform *ocispec.Platform,
	containerName string,
) (container.CreateResponse, error) {
	args := m.Called(ctx, config, hostConfig, networkingConfig, platform, containerName)

	response, _ := args.Get(0).(container.CreateResponse)

	return response, args.Error(1)
}

func (m *mockClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return m.Called(ctx, containerID, options).Error(0)
}

func (m *mockClient) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	return m.Called(ctx, containerID, options).Error(0)
}

func (m *mockClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	return m.Called(ctx, containerID, options).Error(0)
}

func (m *mockClient) ContainerRename(ctx context.Context, containerID, newContainerName string) error {
	return m.Called(ctx, containerID, newContainerName).Error(0)
}

func (m *mockClient) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	args := m.Called(ctx, containerID)

	response, _ := args.Get(0).(container.InspectResponse)

	return response, args.Error(1)
}

func (m *mockClient) ContainerCommit(
	ctx context.Context,
	containerID string,
	options container.CommitOptions,
) (container.CommitResponse, error) {
	args := m.Called(ctx, containerID, options)

	response, _ := args.Get(0).(container.CommitResponse)

	return response, args.Error(1)
}

func (m *mockClient) ContainerExecCreate(
	ctx context.Context,
	containerID string,
	options container.ExecOptions,
) (container.ExecCreateResponse, error) {
	args := m.Called(ctx, containerID, options)

	response, _ := args.Get(0).(container.ExecCreateResponse)

	return response, args.Error(1)
}

func (m *mockClient) ContainerExecAttach(
	ctx context.Context,
	execID string,
	options container.ExecStartOptions,
) (types.HijackedResponse, error) {
	args := m.Called(ctx, execID, options)

	response, _ := args.Get(0).(types.HijackedResponse)

	return response, args.Error(1)
}

func (m *mockClient) ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error) {
	args := m.Called(ctx, execID)

	response, _ := args.Get(0).(container.ExecInspect)

	return response, args.Error(1)
}

func (m *mockClient) CopyToContainer(
	ctx context.Context,
	containerID, dstPath string,
	content io.Reader,
	options container.CopyToContainerOptions,
) error {
	return m.Called(ctx, containerID, dstPath, content, options).Error(0)
}

func (m *mockClient) CopyFromContainer(
	ctx context.Context,
	containerID, srcPath string,
) (io.ReadCloser, container.PathStat, error) {
	args := m.Called(ctx, containerID, srcPath)

	reader, _ := args.Get(0).(io.ReadCloser)
	stat, _ := args.Get(1).(container.PathStat)

	return reader, stat, args.Error(2)
}

func (m *mockClient) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, refStr, options)

	reader, _ := args.Get(0).(io.ReadCloser)

	return reader, args.Error(1)
}

// blockingConn never yields data until closed, standing in for a hung exec.
type blockingConn struct {
	closed chan struct{}
}

func newBlockingConn() *blockingConn {
	return &blockingConn{closed: make(chan struct{})}
}

func (c *blockingConn) Read(_ []byte) (int, error) {
	<-c.closed

	return 0, io.EOF
}

func (c *blockingConn) Write(b []byte) (int, error) { return len(b), nil }

func (c *blockingConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return nil
}

func (c *blockingConn) LocalAddr() net.Addr                { return nil }
func (c *blockingConn) RemoteAddr() net.Addr               { return nil }
func (c *blockingConn) SetDeadline(_ time.Time) error      { return nil }
func (c *blockingConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *blockingConn) SetWriteDeadline(_ time.Time) error { return nil }
