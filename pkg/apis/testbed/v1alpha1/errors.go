package v1alpha1

import "errors"

// ErrInvalidBackendKind is returned when an unsupported backend kind is provided.
var ErrInvalidBackendKind = errors.New("invalid backend kind")

// ErrInvalidLogFormat is returned when an unsupported log format is provided.
var ErrInvalidLogFormat = errors.New("invalid log format")

// ErrInvalidAppParams is returned when instance parameters are not scalars.
var ErrInvalidAppParams = errors.New("app parameters must be scalars")
