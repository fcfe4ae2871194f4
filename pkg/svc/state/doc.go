// Package state persists what a workspace's environment looks like between
// invocations: the lifecycle state each node reached and the snapshots taken.
//
// State is stored as JSON in <workspace>/.testbed/state.json so that commands
// such as info can report node states without re-running the lifecycle.
package state
