// Package io reads and writes the declarative files of a workspace.
//
// Subpackages:
//   - catalog: Software component files, one per component
//   - config-manager: Settings loading with defaults, file, environment and flags
//   - nodegraph: Node graph loading and validation
//   - scaffolder: Sample workspace generation for init
//   - schema: JSON schemas for the node graph and component files
//
// For low-level file operations see the fsutil package.
package io
