// Package runner executes external processes and captures their output.
//
// Every backend and transport that shells out (multipass, ssh, scp, host-side
// build steps, config generators) goes through a CommandRunner so tests can
// substitute MockCommandRunner.
package runner
