// Package lifecycle provides workspace command helpers.
//
// This package loads settings, opens the execution backend and the workspace
// for a command, and runs workspace actions with consistent messaging and
// timing.
package lifecycle
