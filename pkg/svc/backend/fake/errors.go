package fake

import "errors"

// ErrNoSnapshot is returned when restoring a snapshot that was never taken.
var ErrNoSnapshot = errors.New("snapshot not found")
