// Package multipass implements the execution backend on top of the multipass CLI.
//
// Every operation is a single multipass invocation run through a
// runner.CommandRunner, so the package is tested without a hypervisor.
package multipass
