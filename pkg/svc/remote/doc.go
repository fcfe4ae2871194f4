// Package remote gives every node one handle for running commands and moving
// files, whichever transport reaches it.
//
// Nodes materialized by the execution backend are reached through it. Nodes
// declaring a remote block are reached through ssh and scp. Callers see the
// same four operations either way.
package remote
