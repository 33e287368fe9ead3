package entity

import (
	"context"
	"sync"

	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/events"
	"github.com/berfenger/multitek2mqtt/internal/core/port"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"go.uber.org/zap"
)

// RelaySwitch presents one on/off relay. The displayed state may run ahead
// of the coordinator while a command is in flight; the coordinator snapshot
// itself only ever holds values confirmed by the tablet.
type RelaySwitch struct {
	coordinator port.Coordinator
	sink        port.EventSink
	definition  domain.GenericSwitch
	logger      *zap.Logger

	mu        sync.Mutex
	confirmed multitek.Device
	isOn      bool
}

func NewRelaySwitch(coordinator port.Coordinator, tabletDevice domain.Device, d multitek.Device, sink port.EventSink, logger *zap.Logger) *RelaySwitch {
	return &RelaySwitch{
		coordinator: coordinator,
		sink:        sink,
		definition:  events.RelaySwitch(tabletDevice, coordinator.TabletId(), d),
		logger:      logger.With(zap.String("switch", d.ID)),
		confirmed:   d,
		isOn:        d.State,
	}
}

func (s *RelaySwitch) Definition() domain.GenericSwitch {
	return s.definition
}

func (s *RelaySwitch) DeviceId() string {
	return s.confirmed.ID
}

func (s *RelaySwitch) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOn
}

func (s *RelaySwitch) Device() multitek.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed
}

func (s *RelaySwitch) Attributes() map[string]any {
	return events.SwitchAttributesUpdateEvent(s.coordinator.TabletId(), s.Device()).Attributes
}

// Update takes a coordinator-confirmed device record.
func (s *RelaySwitch) Update(d multitek.Device) {
	s.mu.Lock()
	s.confirmed = d
	s.isOn = d.State
	s.mu.Unlock()
	s.Publish()
}

func (s *RelaySwitch) Publish() {
	d := s.Device()
	s.sink.Publish(events.SwitchStateUpdateEvent(s.coordinator.TabletId(), d.ID, s.IsOn()))
	s.sink.Publish(events.SwitchAttributesUpdateEvent(s.coordinator.TabletId(), d))
}

func (s *RelaySwitch) TurnOn(ctx context.Context) error {
	on := true
	return s.send(ctx, domain.RELAY_COMMAND_SET_STATE, &on)
}

func (s *RelaySwitch) TurnOff(ctx context.Context) error {
	off := false
	return s.send(ctx, domain.RELAY_COMMAND_SET_STATE, &off)
}

func (s *RelaySwitch) Toggle(ctx context.Context) error {
	return s.send(ctx, domain.RELAY_COMMAND_TOGGLE, nil)
}

func (s *RelaySwitch) HandleCommand(ctx context.Context, cmd domain.SwitchCommand) error {
	return s.send(ctx, cmd.Command, cmd.Value)
}

func (s *RelaySwitch) send(ctx context.Context, command domain.RelayCommand, value *bool) error {
	s.mu.Lock()
	deviceId := s.confirmed.ID
	switch {
	case value != nil:
		s.isOn = *value
	case command == domain.RELAY_COMMAND_TOGGLE:
		s.isOn = !s.isOn
	}
	s.mu.Unlock()
	s.publishState()

	// the lock is not held here: the coordinator calls Update while the
	// command completes
	if _, err := s.coordinator.SendCommand(ctx, deviceId, command, value); err != nil {
		s.revert()
		s.logger.Warn("relay command failed", zap.String("command", string(command)), zap.Error(err))
		return err
	}
	return nil
}

// revert goes back to the last state the coordinator knows of.
func (s *RelaySwitch) revert() {
	s.mu.Lock()
	if d, ok := s.coordinator.Snapshot()[s.confirmed.ID]; ok {
		s.confirmed = d
	}
	s.isOn = s.confirmed.State
	s.mu.Unlock()
	s.publishState()
}

func (s *RelaySwitch) publishState() {
	s.sink.Publish(events.SwitchStateUpdateEvent(s.coordinator.TabletId(), s.DeviceId(), s.IsOn()))
}
