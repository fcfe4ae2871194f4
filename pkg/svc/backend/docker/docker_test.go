package docker_test

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/backend/docker"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	errConnReset       = errors.New("read tcp 10.0.0.1:443: connection reset by peer")
	errManifestUnknown = errors.New("manifest unknown")
)

func newBackend(t *testing.T, options docker.Options) (*docker.Backend, *mockClient) {
	t.Helper()

	client := &mockClient{}
	client.Test(t)
	t.Cleanup(func() { client.AssertExpectations(t) })

	return docker.NewBackend(client, options), client
}

func execStream(t *testing.T, stdout, stderr string) types.HijackedResponse {
	t.Helper()

	var buf bytes.Buffer

	if stdout != "" {
		_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout))
		require.NoError(t, err)
	}

	if stderr != "" {
		_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr))
		require.NoError(t, err)
	}

	return types.HijackedResponse{
		Reader: bufio.NewReader(&buf),
		Conn:   newBlockingConn(),
	}
}

func expectExec(client *mockClient, nodeID, command string, stream types.HijackedResponse, exitCode int) {
	client.On("ContainerExecCreate", mock.Anything, nodeID, mock.MatchedBy(func(options container.ExecOptions) bool {
		return len(options.Cmd) == 3 && options.Cmd[2] == command
	})).Return(container.ExecCreateResponse{ID: "exec-" + command}, nil).Once()
	client.On("ContainerExecAttach", mock.Anything, "exec-"+command, container.ExecStartOptions{}).
		Return(stream, nil).Once()
	client.On("ContainerExecInspect", mock.Anything, "exec-"+command).
		Return(container.ExecInspect{ExitCode: exitCode}, nil).Maybe()
}

func runningInspect(networks map[string]string) container.InspectResponse {
	endpoints := map[string]*network.EndpointSettings{}
	for name, address := range networks {
		endpoints[name] = &network.EndpointSettings{IPAddress: address}
	}

	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			State:      &container.State{Running: true},
			HostConfig: &container.HostConfig{NetworkMode: "testbed"},
		},
		Config:          &container.Config{Image: "ubuntu:24.04", Hostname: "sn"},
		NetworkSettings: &container.NetworkSettings{Networks: endpoints},
	}
}

func TestCreatePullsMissingImageAndStarts(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{Network: "testbed"})

	matchConfig := mock.MatchedBy(func(config *container.Config) bool {
		_, published := config.ExposedPorts[nat.Port("80/tcp")]

		return config.Image == "nginx:1.27" && config.Hostname == "web" &&
			config.Labels[docker.LabelNode] == "web" && published
	})
	matchHost := mock.MatchedBy(func(hostConfig *container.HostConfig) bool {
		return hostConfig.Memory == 2*1024*1024*1024 &&
			hostConfig.NanoCPUs == 2_000_000_000 &&
			hostConfig.NetworkMode == "testbed" &&
			len(hostConfig.PortBindings[nat.Port("80/tcp")]) == 1
	})

	client.On("ContainerCreate", mock.Anything, matchConfig, matchHost, mock.Anything, mock.Anything, "web").
		Return(container.CreateResponse{}, errdefs.ErrNotFound).Once()
	client.On("ImagePull", mock.Anything, "nginx:1.27", mock.Anything).
		Return(io.NopCloser(bytes.NewBufferString("{}")), nil).Once()
	client.On("ContainerCreate", mock.Anything, matchConfig, matchHost, mock.Anything, mock.Anything, "web").
		Return(container.CreateResponse{ID: "abc"}, nil).Once()
	client.On("ContainerStart", mock.Anything, "web", container.StartOptions{}).Return(nil).Once()

	err := dockerBackend.Create(context.Background(), "web", backend.CreateSpec{
		CPU:      2,
		Memory:   "2G",
		Template: "nginx:1.27",
		Ports:    []string{"8080:80/tcp"},
	})

	require.NoError(t, err)
}

func TestDestroyAbsentContainerIsNoOp(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{})
	client.On("ContainerRemove", mock.Anything, "sn", mock.Anything).Return(errdefs.ErrNotFound).Once()

	require.NoError(t, dockerBackend.Destroy(context.Background(), "sn"))
}

func TestStateAndExists(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{})
	client.On("ContainerInspect", mock.Anything, "sn").Return(runningInspect(nil), nil)
	client.On("ContainerInspect", mock.Anything, "db").Return(container.InspectResponse{}, errdefs.ErrNotFound)

	state, err := dockerBackend.State(context.Background(), "sn")
	require.NoError(t, err)
	assert.Equal(t, backend.StateRunning, state)

	exists, err := dockerBackend.Exists(context.Background(), "db")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExecCapturesOutput(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{})
	expectExec(client, "sn", "cat /etc/hostname", execStream(t, "sn\n", ""), 0)

	result, err := dockerBackend.Exec(context.Background(), "sn", "cat /etc/hostname")

	require.NoError(t, err)
	assert.Equal(t, "sn\n", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
}

func TestExecNonZeroExit(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{})
	expectExec(client, "sn", "false", execStream(t, "", "nope"), 3)

	result, err := dockerBackend.Exec(context.Background(), "sn", "false")

	require.ErrorIs(t, err, backend.ErrCommandFailed)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "nope", result.Stderr)
}

func TestExecTimeout(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{ExecTimeout: 20 * time.Millisecond})

	conn := newBlockingConn()
	expectExec(client, "sn", "sleep 999", types.HijackedResponse{Conn: conn, Reader: bufio.NewReader(conn)}, 0)

	_, err := dockerBackend.Exec(context.Background(), "sn", "sleep 999")

	require.ErrorIs(t, err, backend.ErrCommandTimeout)
	require.NotErrorIs(t, err, backend.ErrCommandFailed)
}

func TestGetIPPrefersConfiguredNetwork(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{Network: "testbed"})
	client.On("ContainerInspect", mock.Anything, "sn").Return(runningInspect(map[string]string{
		"bridge":  "172.17.0.2",
		"testbed": "10.0.0.5",
	}), nil).Once()

	addresses, err := dockerBackend.GetIP(context.Background(), "sn")

	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.5", "172.17.0.2"}, addresses)
}

func TestGetIPWithoutAddress(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{})
	client.On("ContainerInspect", mock.Anything, "sn").Return(runningInspect(map[string]string{"none": ""}), nil).Once()

	_, err := dockerBackend.GetIP(context.Background(), "sn")

	require.ErrorIs(t, err, backend.ErrNoAddress)
}

func TestPushDirectorySendsContents(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(source, "static"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(source, "static", "index.html"), []byte("hi"), 0o600))

	dockerBackend, client := newBackend(t, docker.Options{})
	expectExec(client, "web", "mkdir -p '/opt/web'", execStream(t, "", ""), 0)

	var names []string

	client.On("CopyToContainer", mock.Anything, "web", "/opt/web", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			reader, _ := args.Get(3).(io.Reader)
			tarReader := tar.NewReader(reader)

			for {
				header, err := tarReader.Next()
				if err != nil {
					return
				}

				names = append(names, header.Name)
			}
		}).Return(nil).Once()

	require.NoError(t, dockerBackend.PushFile(context.Background(), "web", source, "/opt/web", true))
	assert.Equal(t, []string{"static/", "static/index.html"}, names)
}

func TestPullDirectoryExtractsUnderTarget(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	tarWriter := tar.NewWriter(&buf)
	require.NoError(t, tarWriter.WriteHeader(&tar.Header{Name: "log/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tarWriter.WriteHeader(&tar.Header{
		Name: "log/sn.log", Typeflag: tar.TypeReg, Mode: 0o644, Size: 5,
	}))
	_, err := tarWriter.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, tarWriter.Close())

	target := filepath.Join(t.TempDir(), "sn")

	dockerBackend, client := newBackend(t, docker.Options{})
	client.On("CopyFromContainer", mock.Anything, "sn", "/var/log").
		Return(io.NopCloser(&buf), container.PathStat{Name: "log", Mode: os.ModeDir | 0o755}, nil).Once()

	require.NoError(t, dockerBackend.PullFile(context.Background(), "sn", "/var/log", target, true))

	content, err := os.ReadFile(filepath.Join(target, "sn.log"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestSnapshotCommitsBetweenStopAndStart(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{})
	stop := client.On("ContainerStop", mock.Anything, "SN", mock.Anything).Return(nil).Once()
	commit := client.On("ContainerCommit", mock.Anything, "SN", mock.MatchedBy(func(options container.CommitOptions) bool {
		return options.Reference == "testbed-snapshot/sn:base"
	})).Return(container.CommitResponse{ID: "sha256:abc"}, nil).Once().NotBefore(stop)
	client.On("ContainerStart", mock.Anything, "SN", container.StartOptions{}).Return(nil).Once().NotBefore(commit)

	require.NoError(t, dockerBackend.Snapshot(context.Background(), "SN", "base"))
}

func TestRestoreMissingSnapshotKeepsOriginalStopped(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{})
	client.On("ContainerStop", mock.Anything, "sn", mock.Anything).Return(nil).Once()
	client.On("ContainerInspect", mock.Anything, "sn").Return(runningInspect(nil), nil).Once()
	client.On("ContainerCreate", mock.Anything, mock.MatchedBy(func(config *container.Config) bool {
		return config.Image == docker.SnapshotReference("sn", "base")
	}), mock.Anything, mock.Anything, mock.Anything, "sn-restore").
		Return(container.CreateResponse{}, errdefs.ErrNotFound).Once()

	err := dockerBackend.Restore(context.Background(), "sn", "base")

	require.Error(t, err)
	client.AssertNotCalled(t, "ContainerRemove", mock.Anything, "sn", mock.Anything)
	client.AssertNotCalled(t, "ContainerStart", mock.Anything, "sn", mock.Anything)
}

func TestRestoreReplacesContainer(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{})
	client.On("ContainerStop", mock.Anything, "sn", mock.Anything).Return(nil).Once()
	client.On("ContainerInspect", mock.Anything, "sn").Return(runningInspect(nil), nil).Once()
	create := client.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "sn-restore").
		Return(container.CreateResponse{ID: "new"}, nil).Once()
	remove := client.On("ContainerRemove", mock.Anything, "sn", mock.Anything).Return(nil).Once().NotBefore(create)
	rename := client.On("ContainerRename", mock.Anything, "sn-restore", "sn").Return(nil).Once().NotBefore(remove)
	client.On("ContainerStart", mock.Anything, "sn", container.StartOptions{}).Return(nil).Once().NotBefore(rename)

	require.NoError(t, dockerBackend.Restore(context.Background(), "sn", "base"))
}

func TestRestoreRenameFailureRemovesStagingContainer(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{})
	client.On("ContainerStop", mock.Anything, "sn", mock.Anything).Return(nil).Once()
	client.On("ContainerInspect", mock.Anything, "sn").Return(runningInspect(nil), nil).Once()
	client.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "sn-restore").
		Return(container.CreateResponse{ID: "new"}, nil).Once()
	remove := client.On("ContainerRemove", mock.Anything, "sn", mock.Anything).Return(nil).Once()
	rename := client.On("ContainerRename", mock.Anything, "sn-restore", "sn").
		Return(errdefs.ErrConflict).Once().NotBefore(remove)
	client.On("ContainerRemove", mock.Anything, "sn-restore", mock.Anything).Return(nil).Once().NotBefore(rename)

	err := dockerBackend.Restore(context.Background(), "sn", "base")

	require.ErrorIs(t, err, docker.ErrRestoreLostNode)
	require.ErrorIs(t, err, errdefs.ErrConflict)
	assert.Contains(t, err.Error(), "sn-restore")
	client.AssertNotCalled(t, "ContainerStart", mock.Anything, "sn", mock.Anything)
}

func TestCreateRetriesTransientPullFailure(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{PullRetryWait: time.Millisecond})

	client.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "sn").
		Return(container.CreateResponse{}, errdefs.ErrNotFound).Once()
	client.On("ImagePull", mock.Anything, docker.DefaultImage, mock.Anything).
		Return(nil, errConnReset).Once()
	client.On("ImagePull", mock.Anything, docker.DefaultImage, mock.Anything).
		Return(io.NopCloser(bytes.NewBufferString("{}")), nil).Once()
	client.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "sn").
		Return(container.CreateResponse{ID: "abc"}, nil).Once()
	client.On("ContainerStart", mock.Anything, "sn", container.StartOptions{}).Return(nil).Once()

	require.NoError(t, dockerBackend.Create(context.Background(), "sn", backend.CreateSpec{}))
}

func TestCreateDoesNotRetryPermanentPullFailure(t *testing.T) {
	t.Parallel()

	dockerBackend, client := newBackend(t, docker.Options{PullRetryWait: time.Millisecond})

	client.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "sn").
		Return(container.CreateResponse{}, errdefs.ErrNotFound).Once()
	client.On("ImagePull", mock.Anything, "missing:1", mock.Anything).
		Return(nil, errManifestUnknown).Once()

	err := dockerBackend.Create(context.Background(), "sn", backend.CreateSpec{Template: "missing:1"})
	require.ErrorIs(t, err, errManifestUnknown)
}
