package events

import (
	"testing"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTablet = config.TabletConfig{Id: "hall", Host: "192.168.1.50", Port: 8123}

func TestTabletDevice(t *testing.T) {
	bridge := BridgeDevice("multitek")
	dev := TabletDevice(testTablet, bridge)

	assert.Equal(t, "Multitek Tablet 192.168.1.50", dev.Name)
	assert.Equal(t, MANUFACTURER, dev.Manufacturer)
	assert.Equal(t, "http://192.168.1.50:8123", dev.ConfigurationURL)
	assert.Equal(t, bridge.Id, dev.ViaDevice)
	assert.Equal(t, dev.Id, TabletDevice(testTablet, bridge).Id)
}

func TestTabletSensors(t *testing.T) {
	dev := TabletDevice(testTablet, BridgeDevice("multitek"))
	assert.Len(t, TabletSensors(dev, "hall", false), 2)

	sensors := TabletSensors(dev, "hall", true)
	require.Len(t, sensors, 3)
	assert.Equal(t, "hall_device_count", sensors[0].Id)
	assert.Equal(t, "hall_connection_status", sensors[1].Id)
	assert.Equal(t, "hall_online", sensors[2].Id)
	assert.Equal(t, SENSOR_TYPE_BINARY, sensors[2].SensorType)
}

func TestRelaySwitchDefinition(t *testing.T) {
	dev := TabletDevice(testTablet, BridgeDevice("multitek"))
	sw := RelaySwitch(dev, "hall", multitek.Device{ID: "7", Type: multitek.RelayTypeGas})

	assert.Equal(t, "hall_7", sw.Id)
	assert.Equal(t, "Relay 7", sw.Name)
	assert.Equal(t, "mdi:gas-cylinder", sw.Icon)
}

func TestObjectId(t *testing.T) {
	assert.Equal(t, "12", ObjectId("12"))
	assert.Equal(t, "relay_7", ObjectId("relay_7"))

	rewritten := ObjectId("relay-7")
	assert.Regexp(t, "^relay_7_[0-9a-f]{8}$", rewritten)
	assert.NotEqual(t, ObjectId("relay_7"), rewritten)
	assert.NotEqual(t, ObjectId("relay.7"), rewritten)
	assert.Equal(t, rewritten, ObjectId("relay-7"))

	assert.Regexp(t, "^7_2_[0-9a-f]{8}$", ObjectId("7/2"))
	assert.Regexp(t, "^_[0-9a-f]{8}$", ObjectId(""))
	assert.Regexp(t, "^hall_relay_7_[0-9a-f]{8}$", SwitchId("hall", "relay-7"))
}

func TestDeviceCountUpdateEvents(t *testing.T) {
	snapshot := domain.NewSnapshot([]multitek.Device{
		{ID: "1", Type: multitek.RelayTypeLight},
		{ID: "2", Type: multitek.RelayTypeLight, TypeName: "Lamp"},
	})
	evts := DeviceCountUpdateEvents("hall", testTablet, snapshot)
	require.Len(t, evts, 2)

	assert.Equal(t, 2.0, evts[0].(domain.FloatSensorUpdateEvent).Value)
	attrs := evts[1].(domain.AttributesUpdateEvent).Attributes
	assert.Equal(t, map[string]int{"Light": 1, "Lamp": 1}, attrs[ATTR_DEVICE_TYPES])
	assert.Equal(t, "192.168.1.50", attrs[ATTR_TABLET_IP])
}

func TestConnectionStatusUpdateEvents(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	connected := ConnectionStatusUpdateEvents("hall", testTablet, domain.CoordinatorStatus{LastUpdateSuccess: true, LastUpdateTime: &now})
	assert.Equal(t, STATE_CONNECTED, connected[0].(domain.TextSensorUpdateEvent).Value)
	assert.Equal(t, "2024-05-01T10:00:00Z", connected[1].(domain.AttributesUpdateEvent).Attributes[ATTR_LAST_UPDATE])

	disconnected := ConnectionStatusUpdateEvents("hall", testTablet, domain.CoordinatorStatus{LastUpdateTime: &now})
	assert.Equal(t, STATE_DISCONNECTED, disconnected[0].(domain.TextSensorUpdateEvent).Value)
	assert.NotContains(t, disconnected[1].(domain.AttributesUpdateEvent).Attributes, ATTR_LAST_UPDATE)
}
