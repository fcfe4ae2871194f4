package v1alpha1

import (
	"fmt"
	"slices"
	"strings"
)

// --- Enum Interface ---

// EnumValuer is implemented by string-based enum types to provide their valid values.
type EnumValuer interface {
	ValidValues() []string
}

// --- Backend Types ---

// BackendKind selects the execution backend used for every node of the environment.
type BackendKind string

const (
	// BackendMultipass runs nodes as Multipass virtual machines.
	BackendMultipass BackendKind = "Multipass"
	// BackendDocker runs nodes as long-lived Docker containers.
	BackendDocker BackendKind = "Docker"
)

// ValidBackendKinds returns supported backend kinds.
func ValidBackendKinds() []BackendKind {
	return []BackendKind{BackendMultipass, BackendDocker}
}

// Set for BackendKind (pflag.Value interface).
func (b *BackendKind) Set(value string) error {
	for _, kind := range ValidBackendKinds() {
		if strings.EqualFold(value, string(kind)) {
			*b = kind

			return nil
		}
	}

	return fmt.Errorf(
		"%w: %s (valid options: %s)",
		ErrInvalidBackendKind,
		value,
		strings.Join(b.ValidValues(), ", "),
	)
}

// String returns the string representation of the BackendKind.
func (b *BackendKind) String() string {
	return string(*b)
}

// Type returns the type of the BackendKind.
func (b *BackendKind) Type() string {
	return "BackendKind"
}

// IsValid reports whether the backend kind is supported.
func (b *BackendKind) IsValid() bool {
	return slices.Contains(ValidBackendKinds(), *b)
}

// ValidValues returns all valid backend kinds as strings.
func (b *BackendKind) ValidValues() []string {
	values := make([]string, 0, len(ValidBackendKinds()))
	for _, kind := range ValidBackendKinds() {
		values = append(values, string(kind))
	}

	return values
}

// --- Lifecycle stages ---

// Stage names a software lifecycle command list.
type Stage string

const (
	// StageBuild builds incremental binaries on the host before an update.
	StageBuild Stage = "build"
	// StageBuildAll builds everything on the host before a fresh install.
	StageBuildAll Stage = "build_all"
	// StageInstall runs on the node after a fresh staging.
	StageInstall Stage = "install"
	// StageUpdate runs on the node after an incremental staging.
	StageUpdate Stage = "update"
)

// ValidStages returns the lifecycle stages a component may declare.
func ValidStages() []Stage {
	return []Stage{StageBuild, StageBuildAll, StageInstall, StageUpdate}
}

// ValidValues returns the lifecycle stage names.
func (s *Stage) ValidValues() []string {
	return enumStrings(ValidStages())
}

// --- Directory roles ---

// DirectoryRole names a path in a component's directory mapping.
type DirectoryRole string

const (
	// RoleSource is the host directory staged on a fresh install.
	RoleSource DirectoryRole = "source"
	// RoleTarget is the node directory receiving RoleSource.
	RoleTarget DirectoryRole = "target"
	// RoleSourceBin is the host directory staged on an update.
	RoleSourceBin DirectoryRole = "source_bin"
	// RoleTargetBin is the node directory receiving RoleSourceBin.
	RoleTargetBin DirectoryRole = "target_bin"
)

// ValidDirectoryRoles returns the directory roles a component may declare.
func ValidDirectoryRoles() []DirectoryRole {
	return []DirectoryRole{RoleSource, RoleTarget, RoleSourceBin, RoleTargetBin}
}

// ValidValues returns the directory role names.
func (r *DirectoryRole) ValidValues() []string {
	return enumStrings(ValidDirectoryRoles())
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, string(value))
	}

	return out
}

// --- Install modes ---

// InstallMode distinguishes a fresh install from an incremental update.
type InstallMode string

const (
	// InstallFresh stages source→target and runs the install commands.
	InstallFresh InstallMode = "install"
	// InstallUpdate stages source_bin→target_bin and runs the update commands.
	InstallUpdate InstallMode = "update"
)

// HostStage returns the host-side build stage that precedes the mode.
func (m InstallMode) HostStage() Stage {
	if m == InstallUpdate {
		return StageBuild
	}

	return StageBuildAll
}

// NodeStage returns the node-side lifecycle stage of the mode.
func (m InstallMode) NodeStage() Stage {
	if m == InstallUpdate {
		return StageUpdate
	}

	return StageInstall
}

// Roles returns the source and target directory roles staged by the mode.
func (m InstallMode) Roles() (DirectoryRole, DirectoryRole) {
	if m == InstallUpdate {
		return RoleSourceBin, RoleTargetBin
	}

	return RoleSource, RoleTarget
}

// --- Log formats ---

// LogFormat selects the diagnostic log encoding.
type LogFormat string

const (
	// LogFormatText is the human readable logrus text format.
	LogFormatText LogFormat = "text"
	// LogFormatJSON is the logrus JSON format.
	LogFormatJSON LogFormat = "json"
)

// Set for LogFormat (pflag.Value interface).
func (f *LogFormat) Set(value string) error {
	for _, format := range []LogFormat{LogFormatText, LogFormatJSON} {
		if strings.EqualFold(value, string(format)) {
			*f = format

			return nil
		}
	}

	return fmt.Errorf("%w: %s (valid options: text, json)", ErrInvalidLogFormat, value)
}

// String returns the string representation of the LogFormat.
func (f *LogFormat) String() string {
	return string(*f)
}

// Type returns the type of the LogFormat.
func (f *LogFormat) Type() string {
	return "LogFormat"
}
