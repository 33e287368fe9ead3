package service

import (
	"context"
	"errors"
	"testing"

	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDevices() []multitek.Device {
	return []multitek.Device{
		{ID: "1", Type: multitek.RelayTypeLight, Name: "Lamp", RoomName: "Hall"},
		{ID: "2", Type: multitek.RelayTypeWater, Name: "Garden", State: true},
	}
}

func TestDispatcherToggle(t *testing.T) {
	client := multitek.NewTestClient(testDevices()...)
	d := NewCommandDispatcher(client)

	patch, err := d.Execute(context.Background(), "1", domain.RELAY_COMMAND_TOGGLE, nil)
	require.NoError(t, err)
	require.NotNil(t, patch.State)
	assert.True(t, *patch.State)
	assert.Equal(t, "1", client.LastCommandDevice())
}

func TestDispatcherSetState(t *testing.T) {
	client := multitek.NewTestClient(testDevices()...)
	d := NewCommandDispatcher(client)
	off := false

	patch, err := d.Execute(context.Background(), "2", domain.RELAY_COMMAND_SET_STATE, &off)
	require.NoError(t, err)
	assert.False(t, *patch.State)
}

func TestDispatcherRejects(t *testing.T) {
	client := multitek.NewTestClient(testDevices()...)
	d := NewCommandDispatcher(client)

	_, err := d.Execute(context.Background(), "1", domain.RELAY_COMMAND_SET_STATE, nil)
	var cmdErr *domain.CommandFailedError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "1", cmdErr.DeviceId)
	assert.ErrorIs(t, err, domain.ErrMissingValue)

	_, err = d.Execute(context.Background(), "1", domain.RelayCommand("open"), nil)
	assert.ErrorIs(t, err, domain.ErrUnknownCommand)
	assert.Zero(t, client.CommandCalls())
}

func TestDispatcherTransportFailure(t *testing.T) {
	client := multitek.NewTestClient(testDevices()...)
	client.CommandHook = func(ctx context.Context, deviceId string, state *bool) (*multitek.DevicePatch, error) {
		return nil, multitek.ErrTimeout
	}
	d := NewCommandDispatcher(client)

	_, err := d.Execute(context.Background(), "1", domain.RELAY_COMMAND_TOGGLE, nil)
	var cmdErr *domain.CommandFailedError
	require.True(t, errors.As(err, &cmdErr))
	assert.ErrorIs(t, err, multitek.ErrTimeout)
}

func TestApplyOnlyTouchesTarget(t *testing.T) {
	snapshot := domain.NewSnapshot(testDevices())
	on := true
	room := "Kitchen"

	next, ok := Apply(snapshot, "1", &multitek.DevicePatch{State: &on, RoomName: &room})
	require.True(t, ok)
	assert.True(t, next["1"].State)
	assert.Equal(t, "Kitchen", next["1"].RoomName)
	assert.Equal(t, "Lamp", next["1"].Name)
	assert.Equal(t, snapshot["2"], next["2"])
	// the original snapshot is never mutated
	assert.False(t, snapshot["1"].State)
}

func TestApplyUnknownDevice(t *testing.T) {
	snapshot := domain.NewSnapshot(testDevices())
	on := true

	next, ok := Apply(snapshot, "99", &multitek.DevicePatch{State: &on})
	assert.False(t, ok)
	assert.Equal(t, snapshot, next)
}
