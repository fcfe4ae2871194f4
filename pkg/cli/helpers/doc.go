// Package helpers provides common CLI utilities for command handling.
//
// Key functionality:
//   - Persistent flag names shared by every command
//   - Flag handling utilities including timing detection
//   - Tabular rendering of command output
package helpers
