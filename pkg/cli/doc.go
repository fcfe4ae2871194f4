// Package cli provides reusable helpers for command wiring and execution.
//
// Subpackages:
//
//   - cli/cmd: the cobra command tree
//   - cli/helpers: flag lookups, timing detection and table rendering
//   - cli/lifecycle: settings loading and workspace sessions for commands
//   - cli/ui: confirmation prompts, error normalization and terminal titles
package cli
