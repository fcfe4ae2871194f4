// Package backend defines the execution backend that materializes testbed nodes.
//
// A backend handles resource-level operations for one virtualization technology:
//   - creating, destroying and querying nodes
//   - running commands inside a node with a bounded timeout
//   - transferring files in both directions
//   - snapshotting and restoring nodes
//
// Exactly one backend instance exists per process. It is built by a Factory at
// startup and threaded explicitly through the services that need it.
//
// Currently supported backends:
//   - Multipass: nodes are Multipass virtual machines driven through the multipass CLI
//   - Docker: nodes are long-running containers driven through the Docker Engine API
package backend
