package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/events"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	return NewMQTTClient(config.MQTTConfig{
		BaseTopic:        "multitek",
		HADiscoveryTopic: "homeassistant",
	}, nil)
}

func TestSwitchCommandParse(t *testing.T) {
	c := testClient()

	cmd, err := c.parseCommand("multitek/switch/hall_12/command", []byte("ON"))
	require.NoError(t, err)
	assert.Equal(t, "hall_12", cmd.ObjectId)
	assert.Equal(t, "ON", cmd.Payload)
}

func TestSwitchCommandParseRewrittenIds(t *testing.T) {
	c := testClient()

	for _, id := range []string{"relay-7", "a1b2c3d4-0001", "7/2", "a+b#", "Relay 7"} {
		objectId := events.SwitchId("hall", id)
		cmd, err := c.parseCommand(c.SwitchCommandTopic(objectId), []byte("on"))
		require.NoError(t, err, id)
		assert.Equal(t, objectId, cmd.ObjectId)
	}
}

func TestSwitchCommandParseFail(t *testing.T) {
	c := testClient()

	for _, topic := range []string{
		"multitek/switch/hall_12/state",
		"multitek/sensor/hall_device_count/command",
		"other/multitek/switch/hall_12/command",
		"multitekX/switch/hall_12/command",
	} {
		_, err := c.parseCommand(topic, nil)
		assert.ErrorIs(t, err, ErrInvalidCommand, topic)
	}
}

func TestTopics(t *testing.T) {
	c := testClient()

	assert.Equal(t, "multitek/bridge/state", c.BridgeStateTopic())
	assert.Equal(t, "multitek/sensor/hall_device_count/state", c.SensorStateTopic("hall_device_count"))
	assert.Equal(t, "multitek/binary_sensor/hall_online/state", c.BinarySensorStateTopic("hall_online"))
	assert.Equal(t, "multitek/switch/hall_1/state", c.SwitchStateTopic("hall_1"))
	assert.Equal(t, "multitek/switch/hall_1/command", c.SwitchCommandTopic("hall_1"))
	assert.Equal(t, "multitek/switch/hall_1/attributes", c.AttributesTopic(COMPONENT_SWITCH, "hall_1"))
	assert.Equal(t, "multitek/switch/+/command", c.commandTopic())
}

func TestClientIdIsUnique(t *testing.T) {
	a, b := ClientId(), ClientId()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("multitek2mqtt_")+8)
}

func TestSwitchDiscoveryMessage(t *testing.T) {
	c := testClient()
	bridge := events.BridgeDevice("multitek")
	tablet := events.TabletDevice(config.TabletConfig{Host: "192.168.1.50", Port: 8123}, bridge)
	sw := events.RelaySwitch(tablet, "hall", multitek.Device{ID: "1", Type: multitek.RelayTypeLight, Name: "Lamp"})

	assert.Equal(t, "homeassistant/switch/"+tablet.Id+"/hall_1/config", HADiscoverySwitchTopic(c.DiscoveryTopic(), sw))

	msg := GenericSwitchToHADiscoveryMessage(c, sw)
	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "multitek/switch/hall_1/state", decoded["state_topic"])
	assert.Equal(t, "multitek/switch/hall_1/command", decoded["command_topic"])
	assert.Equal(t, "multitek/switch/hall_1/attributes", decoded["json_attributes_topic"])
	assert.Equal(t, "Lamp", decoded["name"])
	assert.Equal(t, "mdi:lightbulb", decoded["icon"])
	dev := decoded["device"].(map[string]any)
	assert.Equal(t, bridge.Id, dev["via_device"])
	assert.Equal(t, "Multitek", dev["manufacturer"])
}

func TestSensorDiscoveryMessage(t *testing.T) {
	c := testClient()
	bridge := events.BridgeDevice("multitek")
	tablet := events.TabletDevice(config.TabletConfig{Host: "192.168.1.50", Port: 8123}, bridge)
	sensors := events.TabletSensors(tablet, "hall", true)
	require.Len(t, sensors, 3)

	count := GenericSensorToHADiscoveryMessage(c, sensors[0])
	assert.Equal(t, "multitek/sensor/hall_device_count/state", count.StateTopic)
	assert.Equal(t, "multitek/sensor/hall_device_count/attributes", count.JsonAttributesTopic)
	assert.Equal(t, "multitek/bridge/state", count.AvTopic)
	assert.Equal(t, "homeassistant/sensor/"+tablet.Id+"/hall_device_count/config", HADiscoverySensorTopic(c.DiscoveryTopic(), sensors[0]))

	online := GenericSensorToHADiscoveryMessage(c, sensors[2])
	assert.Equal(t, "multitek/binary_sensor/hall_online/state", online.StateTopic)
	assert.Equal(t, MQTT_PAYLOAD_ON, online.PayloadOn)
	assert.Empty(t, online.JsonAttributesTopic)

	bridgeState := GenericSensorToHADiscoveryMessage(c, events.BridgeSensors(bridge)[0])
	assert.Equal(t, "multitek/bridge/state", bridgeState.StateTopic)
	assert.Equal(t, MQTT_PAYLOAD_ONLINE, bridgeState.PayloadOn)
	assert.Empty(t, bridgeState.AvTopic)
}
