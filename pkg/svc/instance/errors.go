package instance

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNode is returned for node names missing from the graph.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNoAuthority is returned when trust bootstrap runs without a certificate authority.
	ErrNoAuthority = errors.New("no certificate authority configured")
	// ErrMissingConfig is returned when a node's generated config directory does not exist.
	ErrMissingConfig = errors.New("generated config directory missing")
	// ErrNoBackend is returned for lifecycle operations on nodes outside the execution backend.
	ErrNoBackend = errors.New("node is not managed by the execution backend")
	// ErrInvalidState is returned when parsing an unknown lifecycle state name.
	ErrInvalidState = errors.New("invalid node state")
)

// Stage names a step of a node's lifecycle in errors and logs.
type Stage string

// Lifecycle stages.
const (
	StageCreate           Stage = "create"
	StageInit             Stage = "init"
	StageInstanceCommands Stage = "instance-commands"
	StageConfigGen        Stage = "config-gen"
	StageInstall          Stage = "install"
	StageUpdate           Stage = "update"
	StageApplyConfig      Stage = "apply-config"
	StageTrustCA          Stage = "trust-ca"
	StageDestroy          Stage = "destroy"
	StageSnapshot         Stage = "snapshot"
	StageRestore          Stage = "restore"
	StageRun              Stage = "run"
)

// StageError carries the node and stage a backend or transport error happened in.
type StageError struct {
	Node  string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Stage, e.Node, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(node string, stage Stage, err error) error {
	if err == nil {
		return nil
	}

	var existing *StageError
	if errors.As(err, &existing) && existing.Node == node {
		return err
	}

	return &StageError{Node: node, Stage: stage, Err: err}
}
