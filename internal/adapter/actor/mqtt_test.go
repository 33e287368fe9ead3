package actor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/events"
	"github.com/berfenger/multitek2mqtt/internal/mqtt"
	"github.com/berfenger/multitek2mqtt/internal/util"
	"github.com/berfenger/multitek2mqtt/internal/util/actorutil"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMappingActor(cfg *config.Config) *MQTTActor {
	act := NewMQTTActor(cfg, nil, zap.NewNop())
	act.client = mqtt.NewMQTTClient(cfg.MQTT, nil)
	return act
}

func TestEventToMQTTMessage(t *testing.T) {
	cfg := util.LoadTestConfig()
	act := newMappingActor(&cfg)

	tablet := config.TabletConfig{Host: "192.168.1.50", Port: 8123}
	snapshot := domain.NewSnapshot([]multitek.Device{{ID: "1", Type: multitek.RelayTypeLight, Name: "Lamp"}})

	evts := events.DeviceCountUpdateEvents("hall", tablet, snapshot)
	require.Len(t, evts, 2)

	state, err := act.event2MQTTMessage(evts[0])
	require.NoError(t, err)
	assert.Equal(t, "multitek/sensor/hall_device_count/state", state.topic)
	assert.Equal(t, "1", state.message)

	attrs, err := act.event2MQTTMessage(evts[1])
	require.NoError(t, err)
	assert.Equal(t, "multitek/sensor/hall_device_count/attributes", attrs.topic)
	assert.True(t, attrs.retain)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(attrs.message), &decoded))
	assert.Equal(t, map[string]any{"Light": float64(1)}, decoded[events.ATTR_DEVICE_TYPES])

	sw, err := act.event2MQTTMessage(events.SwitchStateUpdateEvent("hall", "1", true))
	require.NoError(t, err)
	assert.Equal(t, "multitek/switch/hall_1/state", sw.topic)
	assert.Equal(t, mqtt.MQTT_PAYLOAD_ON, sw.message)
	assert.True(t, sw.retain)

	online, err := act.event2MQTTMessage(domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: events.OnlineSensorId("hall")},
	})
	require.NoError(t, err)
	assert.Equal(t, "multitek/binary_sensor/hall_online/state", online.topic)
	assert.Equal(t, mqtt.MQTT_PAYLOAD_OFF, online.message)

	bridge, err := act.event2MQTTMessage(events.BridgeStateEvent(true))
	require.NoError(t, err)
	assert.Equal(t, "multitek/bridge/state", bridge.topic)
	assert.Equal(t, mqtt.MQTT_PAYLOAD_ONLINE, bridge.message)

	unknown, err := act.event2MQTTMessage(domain.EntitiesAddedEvent{})
	assert.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestDiscoveryMessages(t *testing.T) {
	cfg := util.LoadTestConfig()
	client := mqtt.NewMQTTClient(cfg.MQTT, nil)
	bridge := events.BridgeDevice(cfg.MQTT.BaseTopic)
	tablet := events.TabletDevice(cfg.AllTablets()[0], bridge)

	msgs := discoveryMessages(client,
		append(events.BridgeSensors(bridge), events.TabletSensors(tablet, "hall", false)...),
		[]domain.GenericSwitch{events.RelaySwitch(tablet, "hall", multitek.Device{ID: "7", Type: multitek.RelayTypeWater})},
	)
	require.Len(t, msgs, 4)
	assert.Equal(t, "homeassistant/binary_sensor/"+bridge.Id+"/bridge/config", msgs[0].topic)
	assert.Equal(t, "homeassistant/switch/"+tablet.Id+"/hall_7/config", msgs[3].topic)
	assert.Equal(t, "Relay 7", msgs[3].config.Name)
	assert.Equal(t, "mdi:water", msgs[3].config.Icon)
}

func TestMQTTActor(t *testing.T) {
	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	es := eventstream.NewEventStream()
	recorder := NewMQTTRecorder()

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, es, recorder, logger) })
	pid := as.Root.Spawn(props)
	defer as.Root.Poison(pid)

	result, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, resp.Healthy)

	es.Publish(events.SwitchStateUpdateEvent("hall", "1", true))
	es.Publish(domain.EntitiesAddedEvent{TabletId: "hall"})

	assert.Eventually(t, func() bool {
		msg, ok := recorder.Message("multitek/switch/hall_1/state")
		return ok && msg == mqtt.MQTT_PAYLOAD_ON
	}, 2*time.Second, 20*time.Millisecond)
}
