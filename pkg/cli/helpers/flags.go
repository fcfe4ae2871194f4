package helpers

import (
	"errors"
	"fmt"

	"github.com/devantler-tech/testbed/pkg/utils/timer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Persistent flag names.
const (
	TimingFlagName    = "timing"
	ConfigFlagName    = "config"
	WorkspaceFlagName = "workspace"
	BackendFlagName   = "backend"
	LogLevelFlagName  = "log-level"
)

var (
	// ErrNilCommand is returned when a flag is looked up without a command.
	ErrNilCommand = errors.New("command is nil")
	// ErrFlagNotFound is returned when a command does not define a flag.
	ErrFlagNotFound = errors.New("flag not found")
)

// IsTimingEnabled reports whether --timing is set on cmd or inherited from a parent.
func IsTimingEnabled(cmd *cobra.Command) (bool, error) {
	if cmd == nil {
		return false, ErrNilCommand
	}

	if lookupFlag(cmd, TimingFlagName) == nil {
		return false, fmt.Errorf("%w: --%s", ErrFlagNotFound, TimingFlagName)
	}

	enabled, err := cmd.Flags().GetBool(TimingFlagName)
	if err != nil {
		return false, fmt.Errorf("read --%s: %w", TimingFlagName, err)
	}

	return enabled, nil
}

// MaybeTimer returns tmr when timing output is enabled, otherwise nil.
func MaybeTimer(cmd *cobra.Command, tmr timer.Timer) timer.Timer {
	if tmr == nil {
		return nil
	}

	enabled, err := IsTimingEnabled(cmd)
	if err != nil || !enabled {
		return nil
	}

	return tmr
}

// StringFlag returns the value of a local or inherited string flag, or "" when absent.
func StringFlag(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}

	flag := lookupFlag(cmd, name)
	if flag == nil {
		return ""
	}

	return flag.Value.String()
}

// lookupFlag finds a local, persistent or inherited flag.
func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	// InheritedFlags merges persistent flags into Flags.
	_ = cmd.InheritedFlags()

	return cmd.Flags().Lookup(name)
}
