package nodegraph

import "errors"

// Declaration errors.
var (
	// ErrInvalidGraph is returned for malformed or inconsistent node graphs.
	ErrInvalidGraph = errors.New("invalid node graph")
	// ErrForwardReference is returned when a command references a node that is
	// instantiated later than the node running the command.
	ErrForwardReference = errors.New("forward reference")
	// ErrUnknownReference is returned when a command references an unknown
	// identifier or attribute.
	ErrUnknownReference = errors.New("unknown reference")
)
