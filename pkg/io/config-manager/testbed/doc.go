// Package configmanager loads testbed settings from testbed.yaml in the
// workspace, TESTBED_* environment variables and command-line flags.
//
// Note: This package shares the "configmanager" package name with its parent directory
// (pkg/io/config-manager). Import with an alias for clarity:
//
//	import testbedconfig "github.com/devantler-tech/testbed/pkg/io/config-manager/testbed"
package configmanager
