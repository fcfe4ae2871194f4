package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/devantler-tech/testbed/pkg/client/netretry"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/utils/logging"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	units "github.com/docker/go-units"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
)

// DefaultImage is used for nodes without a vm_template.
const DefaultImage = "ubuntu:24.04"

// SnapshotRepository prefixes the images produced by Snapshot.
const SnapshotRepository = "testbed-snapshot"

// LabelNode marks containers managed by the backend with their node id.
const LabelNode = "testbed.node"

const (
	stopTimeoutSeconds = 30
	restoreSuffix      = "-restore"
	pullAttempts       = 3
	pullMaxWait        = 10 * time.Second
)

// DefaultPullRetryWait is the first backoff after a transient pull failure.
const DefaultPullRetryWait = time.Second

// Options configures the docker backend.
type Options struct {
	// Image is used when a node has no template.
	Image string
	// Network is attached when a node does not name one.
	Network string
	// Shell runs Exec commands. Defaults to /bin/sh.
	Shell string
	// ExecTimeout bounds Exec. Zero means backend.DefaultExecTimeout.
	ExecTimeout time.Duration
	// PullRetryWait is the first backoff between image pull attempts.
	// Zero means DefaultPullRetryWait.
	PullRetryWait time.Duration
	// Logger receives diagnostic output. Nil discards it.
	Logger logrus.FieldLogger
}

// Backend runs nodes as Docker containers.
type Backend struct {
	client  Client
	options Options
	logger  logrus.FieldLogger
}

var (
	_ backend.Backend     = (*Backend)(nil)
	_ backend.PowerCycler = (*Backend)(nil)
)

// NewBackend creates a docker backend using dockerClient.
func NewBackend(dockerClient Client, options Options) *Backend {
	if options.Image == "" {
		options.Image = DefaultImage
	}

	if options.Shell == "" {
		options.Shell = "/bin/sh"
	}

	if options.ExecTimeout <= 0 {
		options.ExecTimeout = backend.DefaultExecTimeout
	}

	if options.PullRetryWait <= 0 {
		options.PullRetryWait = DefaultPullRetryWait
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Backend{
		client:  dockerClient,
		options: options,
		logger:  logger.WithField("backend", "docker"),
	}
}

// SnapshotReference returns the image reference a snapshot of nodeID is stored under.
func SnapshotReference(nodeID, name string) string {
	return fmt.Sprintf("%s/%s:%s", SnapshotRepository, strings.ToLower(nodeID), name)
}

// Create starts a long-running container for the node, pulling the image
// when it is not present locally.
func (b *Backend) Create(ctx context.Context, nodeID string, spec backend.CreateSpec) error {
	img := spec.Template
	if img == "" {
		img = b.options.Image
	}

	config, hostConfig, networkConfig, err := b.containerConfig(nodeID, img, spec)
	if err != nil {
		return err
	}

	if spec.Disk != "" {
		b.logger.WithField("node", nodeID).Debugf("disk size %s is not enforced for containers", spec.Disk)
	}

	_, err = b.client.ContainerCreate(ctx, config, hostConfig, networkConfig, (*ocispec.Platform)(nil), nodeID)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("create container %s: %w", nodeID, err)
		}

		err = b.pullImage(ctx, img)
		if err != nil {
			return err
		}

		_, err = b.client.ContainerCreate(ctx, config, hostConfig, networkConfig, (*ocispec.Platform)(nil), nodeID)
		if err != nil {
			return fmt.Errorf("create container %s after pull: %w", nodeID, err)
		}
	}

	return b.Start(ctx, nodeID)
}

// Destroy force-removes the node's container. Absent containers are ignored.
func (b *Backend) Destroy(ctx context.Context, nodeID string) error {
	err := b.client.ContainerRemove(ctx, nodeID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %s: %w", nodeID, err)
	}

	return nil
}

// Exists reports whether a container named nodeID exists.
func (b *Backend) Exists(ctx context.Context, nodeID string) (bool, error) {
	state, err := b.State(ctx, nodeID)
	if err != nil {
		return false, err
	}

	return state != backend.StateAbsent, nil
}

// State maps the container state onto a backend.NodeState.
func (b *Backend) State(ctx context.Context, nodeID string) (backend.NodeState, error) {
	inspect, err := b.client.ContainerInspect(ctx, nodeID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return backend.StateAbsent, nil
		}

		return backend.StateUnknown, fmt.Errorf("%w: inspect %s: %w", backend.ErrBackendUnavailable, nodeID, err)
	}

	if inspect.ContainerJSONBase == nil || inspect.State == nil {
		return backend.StateUnknown, nil
	}

	if inspect.State.Running {
		return backend.StateRunning, nil
	}

	return backend.StateStopped, nil
}

// Exec runs command with the configured shell inside the container.
func (b *Backend) Exec(ctx context.Context, nodeID, command string) (backend.ExecResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, b.options.ExecTimeout)
	defer cancel()

	created, err := b.client.ContainerExecCreate(execCtx, nodeID, container.ExecOptions{
		Cmd:          []string{b.options.Shell, "-c", command},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return backend.ExecResult{}, fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
		}

		return backend.ExecResult{}, fmt.Errorf("create exec in %s: %w", nodeID, err)
	}

	resp, err := b.client.ContainerExecAttach(execCtx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return backend.ExecResult{}, fmt.Errorf("attach exec in %s: %w", nodeID, err)
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer

	done := make(chan error, 1)

	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, resp.Reader)
		done <- copyErr
	}()

	select {
	case <-execCtx.Done():
		resp.Close()
		<-done

		if ctx.Err() != nil {
			return backend.ExecResult{}, fmt.Errorf("exec in %s: %w", nodeID, ctx.Err())
		}

		return backend.ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1},
			fmt.Errorf("%w on %s after %s: %s", backend.ErrCommandTimeout, nodeID, b.options.ExecTimeout, command)
	case copyErr := <-done:
		if copyErr != nil {
			return backend.ExecResult{}, fmt.Errorf("read exec output from %s: %w", nodeID, copyErr)
		}
	}

	inspect, err := b.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return backend.ExecResult{}, fmt.Errorf("inspect exec in %s: %w", nodeID, err)
	}

	result := backend.ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}

	if inspect.ExitCode != 0 {
		return result, fmt.Errorf(
			"%w on %s (exit %d): %s",
			backend.ErrCommandFailed, nodeID, inspect.ExitCode, strings.TrimSpace(result.Stderr),
		)
	}

	return result, nil
}

// PushFile copies a file, or the contents of a directory when recursive, into
// the container. The target directory is created first.
func (b *Backend) PushFile(ctx context.Context, nodeID, localPath, remotePath string, recursive bool) error {
	archive, dir, err := archiveForPush(localPath, remotePath, recursive)
	if err != nil {
		return err
	}

	_, err = b.Exec(ctx, nodeID, "mkdir -p '"+strings.ReplaceAll(dir, "'", `'\''`)+"'")
	if err != nil {
		return err
	}

	err = b.client.CopyToContainer(ctx, nodeID, dir, archive, container.CopyToContainerOptions{})
	if err != nil {
		return fmt.Errorf("copy %s to %s:%s: %w", localPath, nodeID, remotePath, err)
	}

	return nil
}

// PullFile copies a container file or directory to localPath.
func (b *Backend) PullFile(ctx context.Context, nodeID, remotePath, localPath string, recursive bool) error {
	reader, stat, err := b.client.CopyFromContainer(ctx, nodeID, remotePath)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s:%s", backend.ErrNodeNotFound, nodeID, remotePath)
		}

		return fmt.Errorf("copy %s:%s: %w", nodeID, remotePath, err)
	}

	defer func() { _ = reader.Close() }()

	if stat.Mode.IsDir() && !recursive {
		return fmt.Errorf("%w: %s:%s is a directory", ErrRecursiveRequired, nodeID, remotePath)
	}

	return extractArchive(reader, localPath)
}

// GetIP returns the container's addresses, the preferred network first and
// the remaining networks in name order.
func (b *Backend) GetIP(ctx context.Context, nodeID string) ([]string, error) {
	inspect, err := b.client.ContainerInspect(ctx, nodeID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
		}

		return nil, fmt.Errorf("inspect %s: %w", nodeID, err)
	}

	if inspect.NetworkSettings == nil {
		return nil, fmt.Errorf("%w: %s", backend.ErrNoAddress, nodeID)
	}

	names := make([]string, 0, len(inspect.NetworkSettings.Networks))
	for name := range inspect.NetworkSettings.Networks {
		names = append(names, name)
	}

	slices.SortFunc(names, func(left, right string) int {
		switch {
		case left == b.options.Network:
			return -1
		case right == b.options.Network:
			return 1
		default:
			return strings.Compare(left, right)
		}
	})

	addresses := make([]string, 0, len(names))

	for _, name := range names {
		endpoint := inspect.NetworkSettings.Networks[name]
		if endpoint != nil && endpoint.IPAddress != "" {
			addresses = append(addresses, endpoint.IPAddress)
		}
	}

	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: %s", backend.ErrNoAddress, nodeID)
	}

	return addresses, nil
}

// Snapshot stops the container, commits it as SnapshotReference and starts it again.
func (b *Backend) Snapshot(ctx context.Context, nodeID, name string) error {
	reference := SnapshotReference(nodeID, name)

	return backend.Cycle(ctx, b, nodeID, backend.RestartOnFailure, func(ctx context.Context) error {
		_, err := b.client.ContainerCommit(ctx, nodeID, container.CommitOptions{
			Reference: reference,
			Comment:   "testbed snapshot " + name,
		})
		if err != nil {
			return fmt.Errorf("commit %s as %s: %w", nodeID, reference, err)
		}

		return nil
	})
}

// Restore replaces the container with one created from the snapshot image.
// The replacement is created before the original is removed, so a missing
// snapshot leaves the original container stopped and intact.
func (b *Backend) Restore(ctx context.Context, nodeID, name string) error {
	return backend.Cycle(ctx, b, nodeID, backend.StayStoppedOnFailure, func(ctx context.Context) error {
		return b.replaceFromSnapshot(ctx, nodeID, SnapshotReference(nodeID, name))
	})
}

// Stop stops the container.
func (b *Backend) Stop(ctx context.Context, nodeID string) error {
	timeout := stopTimeoutSeconds

	err := b.client.ContainerStop(ctx, nodeID, container.StopOptions{Timeout: &timeout})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
		}

		return fmt.Errorf("stop container %s: %w", nodeID, err)
	}

	return nil
}

// Start starts the container.
func (b *Backend) Start(ctx context.Context, nodeID string) error {
	err := b.client.ContainerStart(ctx, nodeID, container.StartOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
		}

		return fmt.Errorf("start container %s: %w", nodeID, err)
	}

	return nil
}

func (b *Backend) replaceFromSnapshot(ctx context.Context, nodeID, reference string) error {
	inspect, err := b.client.ContainerInspect(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", nodeID, err)
	}

	if inspect.Config == nil || inspect.ContainerJSONBase == nil {
		return fmt.Errorf("%w: %s has no configuration", ErrIncompleteInspect, nodeID)
	}

	config := *inspect.Config
	config.Image = reference

	staging := nodeID + restoreSuffix

	_, err = b.client.ContainerCreate(ctx, &config, inspect.HostConfig, nil, nil, staging)
	if err != nil {
		return fmt.Errorf("create %s from %s: %w", nodeID, reference, err)
	}

	err = b.client.ContainerRemove(ctx, nodeID, container.RemoveOptions{Force: true})
	if err != nil {
		_ = b.client.ContainerRemove(ctx, staging, container.RemoveOptions{Force: true})

		return fmt.Errorf("remove %s before restore: %w", nodeID, err)
	}

	err = b.client.ContainerRename(ctx, staging, nodeID)
	if err != nil {
		removeErr := b.client.ContainerRemove(ctx, staging, container.RemoveOptions{Force: true})
		if removeErr != nil {
			err = errors.Join(err, fmt.Errorf("remove %s: %w", staging, removeErr))
		}

		return fmt.Errorf("%w: %s: rename %s: %w", ErrRestoreLostNode, nodeID, staging, err)
	}

	return nil
}

func (b *Backend) containerConfig(
	nodeID, img string,
	spec backend.CreateSpec,
) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	exposed, bindings, err := nat.ParsePortSpecs(spec.Ports)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ports for %s: %w", nodeID, err)
	}

	resources := container.Resources{}

	if spec.CPU > 0 {
		resources.NanoCPUs = int64(spec.CPU) * int64(time.Second)
	}

	if spec.Memory != "" {
		memory, err := units.RAMInBytes(spec.Memory)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("memory %q for %s: %w", spec.Memory, nodeID, err)
		}

		resources.Memory = memory
	}

	config := &container.Config{
		Image:        img,
		Hostname:     nodeID,
		Cmd:          []string{"sleep", "infinity"},
		Labels:       map[string]string{LabelNode: nodeID},
		ExposedPorts: exposed,
	}

	hostConfig := &container.HostConfig{
		Resources:    resources,
		PortBindings: bindings,
	}

	networkName := spec.Network
	if networkName == "" {
		networkName = b.options.Network
	}

	var networkConfig *network.NetworkingConfig

	if networkName != "" {
		hostConfig.NetworkMode = container.NetworkMode(networkName)
		networkConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{networkName: {}},
		}
	}

	return config, hostConfig, networkConfig, nil
}

// pullImage pulls img, retrying transient registry and network failures
// with exponential backoff.
func (b *Backend) pullImage(ctx context.Context, img string) error {
	var err error

	for attempt := 1; attempt <= pullAttempts; attempt++ {
		err = b.pullOnce(ctx, img)
		if err == nil || attempt == pullAttempts || !netretry.IsRetryable(err) {
			return err
		}

		delay := netretry.ExponentialDelay(attempt, b.options.PullRetryWait, pullMaxWait)
		b.logger.WithField("image", img).WithError(err).Warnf("pull failed, retrying in %s", delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("pull image %s: %w", img, ctx.Err())
		case <-time.After(delay):
		}
	}

	return err
}

func (b *Backend) pullOnce(ctx context.Context, img string) error {
	b.logger.WithField("image", img).Info("pulling image")

	resp, err := b.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}

	defer func() { _ = resp.Close() }()

	_, err = io.Copy(io.Discard, resp)
	if err != nil {
		return fmt.Errorf("pull image %s: read response: %w", img, err)
	}

	return nil
}
