package actor

import (
	"context"
	"testing"
	"time"

	adactor "github.com/berfenger/multitek2mqtt/internal/adapter/actor"
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

type masterFixture struct {
	system   *actor.ActorSystem
	pid      *actor.PID
	client   *multitek.TestClient
	recorder *adactor.MQTTRecorder
}

func newMasterFixture(t *testing.T, client *multitek.TestClient) *masterFixture {
	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryEnable = true
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	recorder := adactor.NewMQTTRecorder()

	props := MasterProps(cfg, func(config.TabletConfig) multitek.Client {
		return client
	}, func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewTestMQTTActor(&cfg, es, recorder, logger)
	}, logger)
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = as.Root.StopFuture(pid).Wait()
		as.Shutdown()
	})
	return &masterFixture{system: as, pid: pid, client: client, recorder: recorder}
}

func (f *masterFixture) ready(t *testing.T) domain.ReadyResponse {
	res, err := f.system.Root.RequestFuture(f.pid, domain.ReadyRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.ReadyResponse)
	require.True(t, ok)
	return resp
}

func (f *masterFixture) health(t *testing.T) domain.ActorHealthResponse {
	res, err := f.system.Root.RequestFuture(f.pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	return resp
}

func TestMasterActor(t *testing.T) {
	f := newMasterFixture(t, multitek.NewTestClient(
		multitek.Device{ID: "1", Type: multitek.RelayTypeLight, Name: "Lamp"},
		multitek.Device{ID: "2", Type: multitek.RelayTypeShutter, Name: "Blind"},
	))

	require.NoError(t, f.ready(t).GetResponseError())
	assert.True(t, f.health(t).Healthy)

	assert.Eventually(t, func() bool {
		count, ok := f.recorder.Message("multitek/sensor/hall_device_count/state")
		state, okState := f.recorder.Message("multitek/switch/hall_1/state")
		return ok && okState && count == "2" && state == mqtt.MQTT_PAYLOAD_OFF
	}, 2*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(f.recorder.Discovery()) > 0
	}, 2*time.Second, 20*time.Millisecond)
	discovery := f.recorder.Discovery()[0]
	// bridge state, device count, connection status
	assert.Len(t, discovery.Sensors, 3)
	require.Len(t, discovery.Switches, 1)
	assert.Equal(t, "hall_1", discovery.Switches[0].Id)

	res, err := f.system.Root.RequestFuture(f.pid, PlatformsRequest{}, time.Second).Result()
	require.NoError(t, err)
	platforms := res.(PlatformsResponse).Platforms
	require.Len(t, platforms, 1)
	assert.Equal(t, "hall", platforms[0].TabletId())
}

func TestMasterActorRoutesCommands(t *testing.T) {
	f := newMasterFixture(t, multitek.NewTestClient(
		multitek.Device{ID: "1", Type: multitek.RelayTypeLight, Name: "Lamp"},
	))
	require.NoError(t, f.ready(t).GetResponseError())

	f.system.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{ObjectId: "hall_1", Payload: "ON"}})

	assert.Eventually(t, func() bool {
		state, ok := f.recorder.Message("multitek/switch/hall_1/state")
		return f.client.CommandCalls() == 1 && ok && state == mqtt.MQTT_PAYLOAD_ON
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "1", f.client.LastCommandDevice())

	// unknown switches and payloads never reach the tablet
	f.system.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{ObjectId: "hall_9", Payload: "ON"}})
	f.system.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{ObjectId: "hall_1", Payload: "dim"}})
	assert.True(t, f.health(t).Healthy)
	assert.Equal(t, 1, f.client.CommandCalls())
}

func TestMasterActorRoutesCommandsForRewrittenIds(t *testing.T) {
	f := newMasterFixture(t, multitek.NewTestClient(
		multitek.Device{ID: "a1b2-0001", Type: multitek.RelayTypeLight, Name: "Porch"},
	))
	require.NoError(t, f.ready(t).GetResponseError())

	objectId := events.SwitchId("hall", "a1b2-0001")
	f.system.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{ObjectId: objectId, Payload: "ON"}})

	assert.Eventually(t, func() bool {
		state, ok := f.recorder.Message("multitek/switch/" + objectId + "/state")
		return f.client.CommandCalls() == 1 && ok && state == mqtt.MQTT_PAYLOAD_ON
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "a1b2-0001", f.client.LastCommandDevice())
}

func TestMasterActorNotReady(t *testing.T) {
	client := multitek.NewTestClient(multitek.Device{ID: "1", Type: multitek.RelayTypeLight})
	client.SetOnline(false)
	f := newMasterFixture(t, client)

	resp := f.ready(t)
	assert.ErrorIs(t, resp.GetResponseError(), domain.ErrNotReady)
	assert.False(t, f.health(t).Healthy)
	assert.Equal(t, 0, client.DevicesCalls())
}

func TestMasterActorFirstRefreshFailure(t *testing.T) {
	client := multitek.NewTestClient()
	client.DevicesHook = func(ctx context.Context) ([]multitek.Device, error) {
		return nil, multitek.ErrConnectionFailed
	}
	f := newMasterFixture(t, client)

	resp := f.ready(t)
	assert.ErrorIs(t, resp.GetResponseError(), domain.ErrNotReady)
	assert.ErrorIs(t, resp.GetResponseError(), multitek.ErrConnectionFailed)
}
