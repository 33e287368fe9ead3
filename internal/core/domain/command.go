package domain

import (
	"errors"
	"fmt"
	"strings"
)

type RelayCommand string

const (
	RELAY_COMMAND_TOGGLE    RelayCommand = "toggle"
	RELAY_COMMAND_SET_STATE RelayCommand = "set_state"
)

var (
	ErrUnknownCommand = errors.New("unknown relay command")
	ErrMissingValue   = errors.New("set_state requires a value")
	ErrNotReady       = errors.New("tablet not ready")
	ErrStopped        = errors.New("coordinator stopped")
)

// CommandFailedError is returned when a relay command could not be applied
// on the tablet. The snapshot is left untouched in that case.
type CommandFailedError struct {
	DeviceId string
	Reason   error
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command failed for device %s: %v", e.DeviceId, e.Reason)
}

func (e *CommandFailedError) Unwrap() error {
	return e.Reason
}

// SwitchCommand is a command as received from Home Assistant.
type SwitchCommand struct {
	Command RelayCommand
	Value   *bool
}

// ParseSwitchPayload maps an MQTT switch payload (on, off, toggle) to a
// relay command.
func ParseSwitchPayload(payload string) (SwitchCommand, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "on":
		value := true
		return SwitchCommand{Command: RELAY_COMMAND_SET_STATE, Value: &value}, nil
	case "off":
		value := false
		return SwitchCommand{Command: RELAY_COMMAND_SET_STATE, Value: &value}, nil
	case "toggle":
		return SwitchCommand{Command: RELAY_COMMAND_TOGGLE}, nil
	default:
		return SwitchCommand{}, fmt.Errorf("%w: %q", ErrUnknownCommand, payload)
	}
}
