package docker

import "errors"

// Errors specific to the docker backend.
var (
	// ErrRecursiveRequired is returned when pulling a directory without recursive set.
	ErrRecursiveRequired = errors.New("recursive copy required")
	// ErrIncompleteInspect is returned when the engine omits container configuration.
	ErrIncompleteInspect = errors.New("incomplete container inspect")
	// ErrUnsafeArchivePath is returned for archive entries escaping the target directory.
	ErrUnsafeArchivePath = errors.New("archive entry escapes target directory")
	// ErrRestoreLostNode is returned when a restore removed the node's container
	// but could not put the restored one in its place. The node no longer exists.
	ErrRestoreLostNode = errors.New("node is absent after failed restore")
)
