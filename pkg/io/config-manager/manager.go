// Package configmanager defines how settings are loaded. Implementations live
// in subpackages; testbed loads the workspace settings file.
package configmanager

import (
	"github.com/devantler-tech/testbed/pkg/utils/timer"
)

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// Timer enables timing output in notifications when provided.
	Timer timer.Timer
	// Silent suppresses all loading notifications when true.
	Silent bool
	// IgnoreConfigFile skips reading on-disk config files when true (flags, env and defaults only).
	IgnoreConfigFile bool
	// SkipValidation skips settings validation when true.
	// Used by commands that only need paths, such as cert.
	SkipValidation bool
}

// ConfigManager loads a configuration of type T.
type ConfigManager[T any] interface {
	// Load loads the configuration with the specified options.
	// Returns the loaded config, either freshly loaded or previously cached.
	Load(opts LoadOptions) (*T, error)
}
