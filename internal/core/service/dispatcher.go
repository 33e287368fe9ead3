package service

import (
	"context"
	"fmt"

	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"
)

// CommandDispatcher turns relay commands into tablet calls.
type CommandDispatcher struct {
	client multitek.Client
}

func NewCommandDispatcher(client multitek.Client) *CommandDispatcher {
	return &CommandDispatcher{client: client}
}

// Execute issues the command on the tablet. Any failure is returned as a
// *domain.CommandFailedError.
func (d *CommandDispatcher) Execute(ctx context.Context, deviceId string, command domain.RelayCommand, value *bool) (*multitek.DevicePatch, error) {
	var (
		patch *multitek.DevicePatch
		err   error
	)
	switch command {
	case domain.RELAY_COMMAND_TOGGLE:
		patch, err = d.client.ToggleRelay(ctx, deviceId)
	case domain.RELAY_COMMAND_SET_STATE:
		if value == nil {
			return nil, &domain.CommandFailedError{DeviceId: deviceId, Reason: domain.ErrMissingValue}
		}
		patch, err = d.client.SetRelayState(ctx, deviceId, *value)
	default:
		return nil, &domain.CommandFailedError{
			DeviceId: deviceId,
			Reason:   fmt.Errorf("%w: %s", domain.ErrUnknownCommand, command),
		}
	}
	if err != nil {
		return nil, &domain.CommandFailedError{DeviceId: deviceId, Reason: err}
	}
	if patch == nil {
		patch = &multitek.DevicePatch{}
	}
	return patch, nil
}

// Apply merges patch into the entry for deviceId. The snapshot is returned
// unchanged, with false, when the device is not part of it.
func Apply(snapshot domain.Snapshot, deviceId string, patch *multitek.DevicePatch) (domain.Snapshot, bool) {
	if patch == nil {
		return snapshot, false
	}
	return snapshot.WithPatch(deviceId, *patch)
}
