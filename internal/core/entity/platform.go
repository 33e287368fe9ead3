package entity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/events"
	"github.com/berfenger/multitek2mqtt/internal/core/port"

	"go.uber.org/zap"
)

var ErrUnknownSwitch = errors.New("unknown switch")

// Platform owns the entities of one tablet. It is handed its coordinator at
// construction and keeps the entities in sync with it.
type Platform struct {
	coordinator  port.Coordinator
	sink         port.EventSink
	tabletDevice domain.Device
	withProbe    bool
	logger       *zap.Logger

	deviceCount *DeviceCountSensor
	connection  *ConnectionStatusSensor

	mu          sync.RWMutex
	switches    map[string]*RelaySwitch
	objectIds   map[string]string
	unsubscribe []func()
}

func NewPlatform(coordinator port.Coordinator, bridge domain.Device, sink port.EventSink, withProbe bool, logger *zap.Logger) *Platform {
	return &Platform{
		coordinator:  coordinator,
		sink:         sink,
		tabletDevice: events.TabletDevice(coordinator.Tablet(), bridge),
		withProbe:    withProbe,
		logger:       logger.With(zap.String("platform", coordinator.TabletId())),
		deviceCount:  NewDeviceCountSensor(coordinator, sink),
		connection:   NewConnectionStatusSensor(coordinator, sink),
		switches:     make(map[string]*RelaySwitch),
		objectIds:    make(map[string]string),
	}
}

// Start creates the entities for the current snapshot, announces them and
// subscribes to the coordinator.
func (p *Platform) Start() {
	snapshot := p.coordinator.Snapshot()
	added := p.addSwitches(snapshot)

	p.sink.Publish(domain.EntitiesAddedEvent{
		TabletId: p.coordinator.TabletId(),
		Sensors:  p.Sensors(),
		Switches: definitions(added),
	})
	p.PublishAll()

	p.mu.Lock()
	p.unsubscribe = append(p.unsubscribe,
		p.coordinator.Subscribe(p.onUpdate),
		p.coordinator.SubscribeStatus(p.connection.Update),
	)
	p.mu.Unlock()
}

func (p *Platform) Close() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()
	for _, fn := range unsubscribe {
		fn()
	}
}

func (p *Platform) onUpdate(update domain.SnapshotUpdate) {
	added := p.addSwitches(update.Snapshot)
	if len(added) > 0 {
		p.logger.Info("new relays found", zap.Int("count", len(added)))
		p.sink.Publish(domain.EntitiesAddedEvent{
			TabletId: p.coordinator.TabletId(),
			Switches: definitions(added),
		})
	}
	for id, d := range update.Snapshot {
		if sw, ok := p.Switch(id); ok {
			sw.Update(d)
		}
	}
	p.deviceCount.Update(update.Snapshot)
}

// addSwitches creates a switch for every on/off relay not seen before.
func (p *Platform) addSwitches(snapshot domain.Snapshot) []*RelaySwitch {
	p.mu.Lock()
	defer p.mu.Unlock()
	var added []*RelaySwitch
	for _, id := range sortedIds(snapshot) {
		d := snapshot[id]
		if _, ok := p.switches[id]; ok || !d.Type.IsSwitch() {
			continue
		}
		sw := NewRelaySwitch(p.coordinator, p.tabletDevice, d, p.sink, p.logger)
		p.switches[id] = sw
		p.objectIds[events.ObjectId(id)] = id
		added = append(added, sw)
	}
	return added
}

// PublishAll sends the current state of every entity.
func (p *Platform) PublishAll() {
	p.deviceCount.Update(p.coordinator.Snapshot())
	p.connection.Update(p.coordinator.Status())
	for _, sw := range p.Switches() {
		sw.Publish()
	}
}

func (p *Platform) TabletId() string {
	return p.coordinator.TabletId()
}

func (p *Platform) TabletDevice() domain.Device {
	return p.tabletDevice
}

func (p *Platform) Sensors() []domain.GenericSensor {
	return events.TabletSensors(p.tabletDevice, p.coordinator.TabletId(), p.withProbe)
}

func (p *Platform) SwitchDefinitions() []domain.GenericSwitch {
	return definitions(p.Switches())
}

func (p *Platform) DeviceCount() *DeviceCountSensor {
	return p.deviceCount
}

func (p *Platform) Connection() *ConnectionStatusSensor {
	return p.connection
}

func (p *Platform) Switch(deviceId string) (*RelaySwitch, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sw, ok := p.switches[deviceId]
	return sw, ok
}

// Switches returns every switch ordered by device id.
func (p *Platform) Switches() []*RelaySwitch {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switches := make([]*RelaySwitch, 0, len(p.switches))
	for _, sw := range p.switches {
		switches = append(switches, sw)
	}
	slices.SortFunc(switches, func(a, b *RelaySwitch) int {
		return strings.Compare(a.DeviceId(), b.DeviceId())
	})
	return switches
}

// SwitchForObjectId resolves an MQTT object id (<tablet>_<device>).
func (p *Platform) SwitchForObjectId(objectId string) (*RelaySwitch, bool) {
	suffix, ok := strings.CutPrefix(objectId, p.coordinator.TabletId()+"_")
	if !ok {
		return nil, false
	}
	p.mu.RLock()
	deviceId, ok := p.objectIds[suffix]
	p.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.Switch(deviceId)
}

func (p *Platform) HandleCommand(ctx context.Context, deviceId string, cmd domain.SwitchCommand) error {
	sw, ok := p.Switch(deviceId)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnknownSwitch, deviceId, p.coordinator.TabletId())
	}
	return sw.HandleCommand(ctx, cmd)
}

func definitions(switches []*RelaySwitch) []domain.GenericSwitch {
	defs := make([]domain.GenericSwitch, 0, len(switches))
	for _, sw := range switches {
		defs = append(defs, sw.Definition())
	}
	return defs
}

func sortedIds(snapshot domain.Snapshot) []string {
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
