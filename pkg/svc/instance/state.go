package instance

import (
	"fmt"
	"strings"
)

// State is a node's position in its lifecycle. States only move forward
// during instantiation; destroying a node returns it to StateDeclared.
type State int

// Node lifecycle states, in order.
const (
	StateDeclared State = iota
	StateCreated
	StateInitialized
	StateConfigured
	StateSoftwareInstalled
	StateConfigApplied
	StateReady
)

func states() []State {
	return []State{
		StateDeclared,
		StateCreated,
		StateInitialized,
		StateConfigured,
		StateSoftwareInstalled,
		StateConfigApplied,
		StateReady,
	}
}

func (s State) String() string {
	switch s {
	case StateDeclared:
		return "Declared"
	case StateCreated:
		return "Created"
	case StateInitialized:
		return "Initialized"
	case StateConfigured:
		return "Configured"
	case StateSoftwareInstalled:
		return "SoftwareInstalled"
	case StateConfigApplied:
		return "ConfigApplied"
	case StateReady:
		return "Ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState is the inverse of State.String, case-insensitive.
func ParseState(value string) (State, error) {
	for _, state := range states() {
		if strings.EqualFold(value, state.String()) {
			return state, nil
		}
	}

	return StateDeclared, fmt.Errorf("%w: %q", ErrInvalidState, value)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
