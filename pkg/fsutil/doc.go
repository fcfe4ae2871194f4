// Package fsutil provides utilities for filesystem operations.
//
// Key functionality:
//   - File writing: WriteFile
//   - Path operations: ExpandHomePath, ResolvePath, JoinWithin
package fsutil
