// Package fake provides an in-memory execution backend for tests.
package fake

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/devantler-tech/testbed/pkg/svc/backend"
)

// ExecFunc answers commands run on a node.
type ExecFunc func(nodeID, command string) (backend.ExecResult, error)

type node struct {
	running   bool
	spec      backend.CreateSpec
	files     map[string][]byte
	snapshots map[string]map[string][]byte
}

// Backend records every call and keeps node state and files in memory.
type Backend struct {
	mu        sync.Mutex
	nodes     map[string]*node
	addresses map[string][]string
	calls     []string
	execFunc  ExecFunc
	failures  map[string]error
}

var (
	_ backend.Backend     = (*Backend)(nil)
	_ backend.PowerCycler = (*Backend)(nil)
)

// New creates an empty fake backend. addresses maps node ids to the
// addresses GetIP reports once the node exists.
func New(addresses map[string][]string) *Backend {
	if addresses == nil {
		addresses = map[string][]string{}
	}

	return &Backend{
		nodes:     map[string]*node{},
		addresses: addresses,
		failures:  map[string]error{},
	}
}

// WithExec installs a handler for Exec. Without one every command succeeds
// with empty output.
func (b *Backend) WithExec(execFunc ExecFunc) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.execFunc = execFunc

	return b
}

// FailOn makes the call recorded as entry (for example "restore sn base")
// return err.
func (b *Backend) FailOn(entry string, err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[entry] = err

	return b
}

// AddNode registers an existing running node, as if created earlier.
func (b *Backend) AddNode(nodeID string) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nodes[nodeID] = newNode(backend.CreateSpec{})

	return b
}

// WriteFile places a file on a node.
func (b *Backend) WriteFile(nodeID, remotePath string, content []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n, ok := b.nodes[nodeID]; ok {
		n.files[path.Clean(remotePath)] = content
	}
}

// File returns a file previously pushed to or written on a node.
func (b *Backend) File(nodeID, remotePath string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[nodeID]
	if !ok {
		return nil, false
	}

	content, ok := n.files[path.Clean(remotePath)]

	return content, ok
}

// Calls returns the recorded calls in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.calls)
}

// CallsFor returns the recorded calls that mention nodeID.
func (b *Backend) CallsFor(nodeID string) []string {
	var filtered []string

	for _, call := range b.Calls() {
		fields := strings.Fields(call)
		if len(fields) > 1 && fields[1] == nodeID {
			filtered = append(filtered, call)
		}
	}

	return filtered
}

// Spec returns the CreateSpec a node was created with.
func (b *Backend) Spec(nodeID string) (backend.CreateSpec, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[nodeID]
	if !ok {
		return backend.CreateSpec{}, false
	}

	return n.spec, true
}

// Create registers a running node.
func (b *Backend) Create(_ context.Context, nodeID string, spec backend.CreateSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.record("create " + nodeID)
	if err != nil {
		return err
	}

	b.nodes[nodeID] = newNode(spec)

	return nil
}

// Destroy forgets the node.
func (b *Backend) Destroy(_ context.Context, nodeID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.record("destroy " + nodeID)
	if err != nil {
		return err
	}

	delete(b.nodes, nodeID)

	return nil
}

// Exists reports whether the node was created.
func (b *Backend) Exists(_ context.Context, nodeID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.record("exists " + nodeID)
	if err != nil {
		return false, err
	}

	_, ok := b.nodes[nodeID]

	return ok, nil
}

// Exec records the command and answers it through the installed ExecFunc.
func (b *Backend) Exec(_ context.Context, nodeID, command string) (backend.ExecResult, error) {
	b.mu.Lock()

	err := b.record("exec " + nodeID + " " + command)
	execFunc := b.execFunc
	_, exists := b.nodes[nodeID]

	b.mu.Unlock()

	if err != nil {
		return backend.ExecResult{}, err
	}

	if !exists {
		return backend.ExecResult{}, fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
	}

	if execFunc == nil {
		return backend.ExecResult{}, nil
	}

	return execFunc(nodeID, command)
}

// PushFile copies local content into the node's in-memory file system.
func (b *Backend) PushFile(_ context.Context, nodeID, localPath, remotePath string, recursive bool) error {
	files, err := readLocal(localPath, remotePath, recursive)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err = b.record(fmt.Sprintf("push %s %s %s", nodeID, localPath, remotePath))
	if err != nil {
		return err
	}

	n, ok := b.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
	}

	for name, content := range files {
		n.files[name] = content
	}

	return nil
}

// PullFile writes the node files at or below remotePath to localPath.
func (b *Backend) PullFile(_ context.Context, nodeID, remotePath, localPath string, recursive bool) error {
	b.mu.Lock()

	err := b.record(fmt.Sprintf("pull %s %s %s", nodeID, remotePath, localPath))

	files := map[string][]byte{}

	if n, ok := b.nodes[nodeID]; ok && err == nil {
		root := path.Clean(remotePath)

		for name, content := range n.files {
			switch {
			case name == root:
				files[""] = content
			case recursive && strings.HasPrefix(name, root+"/"):
				files[strings.TrimPrefix(name, root+"/")] = content
			}
		}
	} else if err == nil {
		err = fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
	}

	b.mu.Unlock()

	if err != nil {
		return err
	}

	if recursive {
		mkErr := os.MkdirAll(localPath, 0o750)
		if mkErr != nil {
			return fmt.Errorf("create %s: %w", localPath, mkErr)
		}
	}

	for name, content := range files {
		target := filepath.Join(localPath, filepath.FromSlash(name))

		writeErr := os.MkdirAll(filepath.Dir(target), 0o750)
		if writeErr == nil {
			writeErr = os.WriteFile(target, content, 0o600)
		}

		if writeErr != nil {
			return fmt.Errorf("write %s: %w", target, writeErr)
		}
	}

	return nil
}

// GetIP returns the configured addresses of an existing node.
func (b *Backend) GetIP(_ context.Context, nodeID string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.record("ip " + nodeID)
	if err != nil {
		return nil, err
	}

	if _, ok := b.nodes[nodeID]; !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
	}

	addresses := b.addresses[nodeID]
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: %s", backend.ErrNoAddress, nodeID)
	}

	return slices.Clone(addresses), nil
}

// Snapshot copies the node's files under name.
func (b *Backend) Snapshot(ctx context.Context, nodeID, name string) error {
	return backend.Cycle(ctx, b, nodeID, backend.RestartOnFailure, func(context.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()

		err := b.record("snapshot " + nodeID + " " + name)
		if err != nil {
			return err
		}

		n := b.nodes[nodeID]
		n.snapshots[name] = cloneFiles(n.files)

		return nil
	})
}

// Restore replaces the node's files with the named snapshot.
func (b *Backend) Restore(ctx context.Context, nodeID, name string) error {
	return backend.Cycle(ctx, b, nodeID, backend.StayStoppedOnFailure, func(context.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()

		err := b.record("restore " + nodeID + " " + name)
		if err != nil {
			return err
		}

		n := b.nodes[nodeID]

		files, ok := n.snapshots[name]
		if !ok {
			return fmt.Errorf("%w: snapshot %s of %s", ErrNoSnapshot, name, nodeID)
		}

		n.files = cloneFiles(files)

		return nil
	})
}

// Stop marks the node stopped.
func (b *Backend) Stop(_ context.Context, nodeID string) error {
	return b.setRunning("stop", nodeID, false)
}

// Start marks the node running.
func (b *Backend) Start(_ context.Context, nodeID string) error {
	return b.setRunning("start", nodeID, true)
}

// State reports Running, Stopped or Absent.
func (b *Backend) State(_ context.Context, nodeID string) (backend.NodeState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[nodeID]

	switch {
	case !ok:
		return backend.StateAbsent, nil
	case n.running:
		return backend.StateRunning, nil
	default:
		return backend.StateStopped, nil
	}
}

func (b *Backend) setRunning(verb, nodeID string, running bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.record(verb + " " + nodeID)
	if err != nil {
		return err
	}

	n, ok := b.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrNodeNotFound, nodeID)
	}

	n.running = running

	return nil
}

// record must be called with mu held.
func (b *Backend) record(entry string) error {
	b.calls = append(b.calls, entry)

	return b.failures[entry]
}

func newNode(spec backend.CreateSpec) *node {
	return &node{
		running:   true,
		spec:      spec,
		files:     map[string][]byte{},
		snapshots: map[string]map[string][]byte{},
	}
}

func cloneFiles(files map[string][]byte) map[string][]byte {
	clone := make(map[string][]byte, len(files))
	for name, content := range files {
		clone[name] = slices.Clone(content)
	}

	return clone
}

func readLocal(localPath, remotePath string, recursive bool) (map[string][]byte, error) {
	files := map[string][]byte{}

	if !recursive {
		content, err := os.ReadFile(localPath) //nolint:gosec // test helper
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", localPath, err)
		}

		files[path.Clean(remotePath)] = content

		return files, nil
	}

	err := filepath.WalkDir(localPath, func(current string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		rel, err := filepath.Rel(localPath, current)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(current) //nolint:gosec // test helper
		if err != nil {
			return err
		}

		files[path.Join(remotePath, filepath.ToSlash(rel))] = content

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", localPath, err)
	}

	return files, nil
}
