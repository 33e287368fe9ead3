package entity

import (
	"maps"
	"sync"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/events"
	"github.com/berfenger/multitek2mqtt/internal/core/port"
)

// DeviceCountSensor reports how many relays the tablet has, grouped by type
// name in its attributes.
type DeviceCountSensor struct {
	coordinator port.Coordinator
	sink        port.EventSink

	mu       sync.Mutex
	snapshot domain.Snapshot
	byType   map[string]int
}

func NewDeviceCountSensor(coordinator port.Coordinator, sink port.EventSink) *DeviceCountSensor {
	return &DeviceCountSensor{
		coordinator: coordinator,
		sink:        sink,
		byType:      map[string]int{},
	}
}

func (s *DeviceCountSensor) Update(snapshot domain.Snapshot) {
	s.mu.Lock()
	s.snapshot = snapshot.Clone()
	s.byType = snapshot.CountByTypeName()
	s.mu.Unlock()
	for _, evt := range events.DeviceCountUpdateEvents(s.coordinator.TabletId(), s.coordinator.Tablet(), snapshot) {
		s.sink.Publish(evt)
	}
}

func (s *DeviceCountSensor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshot)
}

// Snapshot is the snapshot the sensor last rendered.
func (s *DeviceCountSensor) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

func (s *DeviceCountSensor) CountByType() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byType)
}

// ConnectionStatusSensor shows Connected while the last refresh succeeded.
type ConnectionStatusSensor struct {
	coordinator port.Coordinator
	sink        port.EventSink

	mu     sync.Mutex
	status domain.CoordinatorStatus
}

func NewConnectionStatusSensor(coordinator port.Coordinator, sink port.EventSink) *ConnectionStatusSensor {
	return &ConnectionStatusSensor{
		coordinator: coordinator,
		sink:        sink,
	}
}

func (s *ConnectionStatusSensor) Update(status domain.CoordinatorStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	for _, evt := range events.ConnectionStatusUpdateEvents(s.coordinator.TabletId(), s.coordinator.Tablet(), status) {
		s.sink.Publish(evt)
	}
}

func (s *ConnectionStatusSensor) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return events.ConnectionStateText(s.status)
}

func (s *ConnectionStatusSensor) Status() domain.CoordinatorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *ConnectionStatusSensor) Tablet() config.TabletConfig {
	return s.coordinator.Tablet()
}

func (s *ConnectionStatusSensor) Attributes() map[string]any {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()
	evts := events.ConnectionStatusUpdateEvents(s.coordinator.TabletId(), s.coordinator.Tablet(), status)
	return evts[1].(domain.AttributesUpdateEvent).Attributes
}
