package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/entity"
	"github.com/berfenger/multitek2mqtt/internal/core/events"
	"github.com/berfenger/multitek2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

var ErrMQTTNotHealthy = errors.New("MQTT actor is not healthy")

// HADiscoveryActor publishes the discovery config of every entity once MQTT
// is up, and of every entity added later on.
type HADiscoveryActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	mqttActor      *actor.PID
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	platforms      []*entity.Platform

	logger *zap.Logger
}

type entitiesAdded struct {
	event domain.EntitiesAddedEvent
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, eventStream *eventstream.EventStream, platforms []*entity.Platform, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		mqttActor:   mqttActor,
		eventStream: eventStream,
		platforms:   platforms,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.eventStreamSub = state.eventStream.SubscribeWithPredicate(func(evt any) {
			root.Send(self, entitiesAdded{event: evt.(domain.EntitiesAddedEvent)})
		}, func(evt any) bool {
			_, ok := evt.(domain.EntitiesAddedEvent)
			return ok
		})

		// the MQTT actor answers once connected
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 10*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(ErrMQTTNotHealthy)
		}
		sensors, switches := state.allEntities()
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors:  sensors,
			Switches: switches,
		})
		state.behavior.Become(state.PublishedReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.unsubscribe()
	case *actor.Stopping:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) PublishedReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case entitiesAdded:
		if len(msg.event.Sensors) == 0 && len(msg.event.Switches) == 0 {
			return
		}
		state.logger.Debug("hadiscovery@published entities added", zap.String("tablet", msg.event.TabletId),
			zap.Int("switches", len(msg.event.Switches)))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors:  msg.event.Sensors,
			Switches: msg.event.Switches,
		})
	case *actor.Restarting:
		state.unsubscribe()
	case *actor.Stopping:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@published: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// allEntities lists the bridge sensors plus the entities of every tablet.
func (state *HADiscoveryActor) allEntities() ([]domain.GenericSensor, []domain.GenericSwitch) {
	bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
	sensors := events.BridgeSensors(bridgeDevice)
	var switches []domain.GenericSwitch
	for _, platform := range state.platforms {
		sensors = append(sensors, platform.Sensors()...)
		switches = append(switches, platform.SwitchDefinitions()...)
	}
	return sensors, switches
}

func (state *HADiscoveryActor) unsubscribe() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}
