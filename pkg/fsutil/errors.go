package fsutil

import "errors"

const (
	dirPermUserGroupRX = 0o750
	filePermUserRW     = 0o600
)

var (
	// ErrPathOutsideBase is returned when a joined path escapes its base directory.
	ErrPathOutsideBase = errors.New("invalid path: file is outside base directory")
	// ErrEmptyOutputPath is returned by WriteFile without an output path.
	ErrEmptyOutputPath = errors.New("output path cannot be empty")
	// ErrBasePath is returned when a relative path must be resolved without a base.
	ErrBasePath = errors.New("base path cannot be empty")
)
