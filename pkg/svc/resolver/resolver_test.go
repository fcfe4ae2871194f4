package resolver_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/backend"
	"github.com/devantler-tech/testbed/pkg/svc/remote"
	"github.com/devantler-tech/testbed/pkg/svc/remote/ssh"
	"github.com/devantler-tech/testbed/pkg/svc/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testGraph() *v1alpha1.NodeGraph {
	return &v1alpha1.NodeGraph{
		Nodes: map[string]*v1alpha1.Node{
			"A": {
				Name:       "A",
				VMParams:   &v1alpha1.VMParams{CPU: 1},
				Attributes: map[string]string{"zone_id": "eu-1"},
			},
			"B": {Name: "B", VMTemplate: "base"},
			"gw": {
				Name:   "gw",
				Remote: &v1alpha1.RemoteTarget{Host: "192.0.2.10", Username: "ops"},
			},
		},
		InstanceOrder: []string{"A", "B", "gw"},
	}
}

func newResolver(nodeBackend backend.Backend) *resolver.Resolver {
	return resolver.New(testGraph(), remote.NewConnector(nodeBackend, nil), resolver.Options{
		BaseDir:      "/src",
		WorkspaceDir: "/work",
		Environ:      func() []string { return []string{"HOME=/home/dev", "BROKEN"} },
		PollInterval: time.Millisecond,
	})
}

func TestResolveCachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	mockBackend := backend.NewMockBackend()
	mockBackend.On("Exists", mock.Anything, "A").Return(true, nil).Times(2)
	mockBackend.On("GetIP", mock.Anything, "A").Return([]string{"10.0.0.5"}, nil).Times(2)

	res := newResolver(mockBackend)
	ctx := context.Background()

	first, err := res.Resolve(ctx, "A")
	require.NoError(t, err)

	second, err := res.Resolve(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	mockBackend.AssertNumberOfCalls(t, "GetIP", 1)

	res.Invalidate("A")

	third, err := res.Resolve(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", third["ip"])
	mockBackend.AssertNumberOfCalls(t, "GetIP", 2)
	mockBackend.AssertExpectations(t)
}

func TestResolveReturnsNodeAttributes(t *testing.T) {
	t.Parallel()

	mockBackend := backend.NewMockBackend()
	mockBackend.On("Exists", mock.Anything, "A").Return(true, nil).Once()
	mockBackend.On("GetIP", mock.Anything, "A").Return([]string{"10.0.0.5", "10.0.1.5"}, nil).Once()

	attrs, err := newResolver(mockBackend).Resolve(context.Background(), "A")

	require.NoError(t, err)
	assert.Equal(t, resolver.Attributes{
		"node_id": "A",
		"ip":      "10.0.0.5",
		"ips":     "10.0.0.5 10.0.1.5",
		"zone_id": "eu-1",
	}, attrs)
}

func TestResolveRemoteNodeWithoutBackend(t *testing.T) {
	t.Parallel()

	res := resolver.New(testGraph(), remote.NewConnector(nil, nil), resolver.Options{})

	_, err := res.Resolve(context.Background(), "gw")
	require.ErrorIs(t, err, remote.ErrTransportUnavailable)
}

func TestResolveRemoteNodeUsesTransportDefaults(t *testing.T) {
	t.Parallel()

	transport := ssh.NewTransport(nil, ssh.Options{Port: 2200, Username: "ubuntu"})
	res := resolver.New(testGraph(), remote.NewConnector(nil, transport), resolver.Options{})

	attrs, err := res.Resolve(context.Background(), "gw")

	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", attrs["ip"])
	assert.Equal(t, "2200", attrs["port"])
	assert.Equal(t, "ops", attrs["username"])
}

func TestResolveNeverCachesMissingNode(t *testing.T) {
	t.Parallel()

	mockBackend := backend.NewMockBackend()
	mockBackend.On("Exists", mock.Anything, "B").Return(false, nil).Once()
	mockBackend.On("Exists", mock.Anything, "B").Return(true, nil).Once()
	mockBackend.On("GetIP", mock.Anything, "B").Return([]string{"10.0.0.6"}, nil).Once()

	res := newResolver(mockBackend)

	_, err := res.Resolve(context.Background(), "B")
	require.ErrorIs(t, err, resolver.ErrNodeNotCreated)
	assert.Empty(t, res.Cached())

	attrs, err := res.Resolve(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.6", attrs["ip"])
	mockBackend.AssertExpectations(t)
}

func TestResolveTemplate(t *testing.T) {
	t.Parallel()

	mockBackend := backend.NewMockBackend()
	mockBackend.On("Exists", mock.Anything, "A").Return(true, nil).Once()
	mockBackend.On("GetIP", mock.Anything, "A").Return([]string{"10.0.0.5"}, nil).Once()

	res := newResolver(mockBackend)
	ctx := context.Background()

	rendered, err := res.ResolveTemplate(ctx, "ping {{A.ip}}")
	require.NoError(t, err)
	assert.Equal(t, "ping 10.0.0.5", rendered)

	again, err := res.ResolveTemplate(ctx, "ping {{A.ip}}")
	require.NoError(t, err)
	assert.Equal(t, rendered, again)

	plain, err := res.ResolveTemplate(ctx, rendered)
	require.NoError(t, err)
	assert.Equal(t, rendered, plain)

	system, err := res.ResolveTemplate(ctx, "{{system.base_dir}}/bin:{{system.HOME}}")
	require.NoError(t, err)
	assert.Equal(t, "/src/bin:/home/dev", system)
}

func TestResolveTemplateErrors(t *testing.T) {
	t.Parallel()

	mockBackend := backend.NewMockBackend()
	mockBackend.On("Exists", mock.Anything, "A").Return(true, nil).Maybe()
	mockBackend.On("GetIP", mock.Anything, "A").Return([]string{"10.0.0.5"}, nil).Maybe()

	res := newResolver(mockBackend)
	ctx := context.Background()

	_, err := res.ResolveTemplate(ctx, "ping {{Z.ip}}")
	require.ErrorIs(t, err, resolver.ErrUnknownNode)
	assert.Contains(t, err.Error(), `"Z"`)

	_, err = res.ResolveTemplate(ctx, "ping {{A.mac}}")
	require.ErrorIs(t, err, resolver.ErrUnknownAttribute)
	assert.Contains(t, err.Error(), `"mac"`)

	_, err = res.ResolveTemplate(ctx, "{{system.NOPE}}")
	require.ErrorIs(t, err, resolver.ErrUnknownAttribute)
}

func TestWaitResolvePollsUntilAddress(t *testing.T) {
	t.Parallel()

	mockBackend := backend.NewMockBackend()
	mockBackend.On("Exists", mock.Anything, "A").Return(true, nil)
	mockBackend.On("GetIP", mock.Anything, "A").
		Return(nil, fmt.Errorf("%w: A", backend.ErrNoAddress)).Twice()
	mockBackend.On("GetIP", mock.Anything, "A").Return([]string{"10.0.0.5"}, nil).Once()

	attrs, err := newResolver(mockBackend).WaitResolve(context.Background(), "A", time.Second)

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", attrs["ip"])
	mockBackend.AssertNumberOfCalls(t, "GetIP", 3)
}

func TestWaitResolveStopsOnUnexpectedError(t *testing.T) {
	t.Parallel()

	mockBackend := backend.NewMockBackend()
	mockBackend.On("Exists", mock.Anything, "A").Return(false, backend.ErrBackendUnavailable).Once()

	_, err := newResolver(mockBackend).WaitResolve(context.Background(), "A", time.Second)

	require.ErrorIs(t, err, backend.ErrBackendUnavailable)
	mockBackend.AssertExpectations(t)
}
