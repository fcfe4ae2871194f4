package resolver

import "errors"

// Errors returned while resolving references.
var (
	// ErrUnknownNode is returned for identifiers that name no node or scope.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownAttribute is returned for attributes a node or scope does not have.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrNodeNotCreated is returned when a declared node has not been materialized yet.
	ErrNodeNotCreated = errors.New("node not created")
	// ErrInvalidParams is returned when component parameters cannot be flattened to strings.
	ErrInvalidParams = errors.New("invalid component parameters")
)
