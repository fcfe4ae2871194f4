// Package svc provides the service layer of testbed.
//
// Subpackages:
//   - backend: Execution backends (multipass, docker) and their factory
//   - configgen: Per-node configuration generation and upload
//   - instance: Node lifecycle stages and the parallel instance manager
//   - pki: Development certificate authority for trust bootstrap
//   - remote: Command execution and file transfer on a node
//   - resolver: Node attribute resolution for variable substitution
//   - state: Workspace state persisted between invocations
//   - template: The {{node.attribute}} substitution language
//   - workspace: Whole-environment operations used by the CLI
package svc
