package actor

import (
	"context"
	"fmt"
	"time"

	adactor "github.com/berfenger/multitek2mqtt/internal/adapter/actor"
	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/entity"
	"github.com/berfenger/multitek2mqtt/internal/core/events"
	"github.com/berfenger/multitek2mqtt/internal/core/service"
	"github.com/berfenger/multitek2mqtt/internal/mqtt"
	. "github.com/berfenger/multitek2mqtt/internal/util/actorutil"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ClientProvider func(config.TabletConfig) multitek.Client

// PlatformsRequest asks the master for the entity platforms of every tablet.
type PlatformsRequest struct {
	domain.ActorRequestMixIn
}

type PlatformsResponse struct {
	domain.ActorResponseMixIn
	Platforms []*entity.Platform
}

type startupResult struct {
	err error
}

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	mqttActor          *actor.PID
	clients            []multitek.Client
	coordinators       []*Coordinator
	platforms          []*entity.Platform
	probe              *service.ConnectionProbe
	startupError       error
	clientProvider     ClientProvider
	mqttActorProvider  MQTTActorProvider
	logger             *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	expected       int
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, clientProvider ClientProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:       eventstream.NewEventStream(),
		clientProvider:    clientProvider,
		mqttActorProvider: mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// MasterProps restarts a failing child on its own, ten times in ten seconds
// at most.
func MasterProps(config config.Config, clientProvider ClientProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *actor.Props {
	decider := func(reason interface{}) actor.Directive {
		logger.Error("master: child failure", zap.Any("reason", reason))
		return actor.RestartDirective
	}
	return actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(config, clientProvider, mqttActorProvider, logger)
	}, actor.WithSupervisor(actor.NewOneForOneStrategy(10, 10*time.Second, decider)))
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		for _, tablet := range state.config.AllTablets() {
			client := state.clientProvider(tablet)
			coordinator, err := NewCoordinator(ctx, CoordinatorOptions{
				TabletId:       tablet.TabletId(),
				Tablet:         tablet,
				Client:         client,
				UpdateInterval: state.config.Poll.UpdateInterval(),
				Logger:         state.logger,
			})
			if err != nil {
				panic(err)
			}
			state.clients = append(state.clients, client)
			state.coordinators = append(state.coordinators, coordinator)
		}

		clients, coordinators := state.clients, state.coordinators
		NewBackgroundTaskNoError(ctx, func() *startupResult {
			return &startupResult{err: startTablets(context.Background(), clients, coordinators)}
		}).PipeTo(ctx.Self())
	case startupResult:
		if msg.err != nil {
			state.logger.Error("master@starting tablets not ready", zap.Error(msg.err))
			state.startupError = msg.err
			state.behavior.Become(state.FailedReceive)
			state.stash.UnstashAll(ctx)
			return
		}
		state.logger.Info("master@starting tablets ready", zap.Int("tablets", len(state.coordinators)))
		state.startPlatforms()
		state.startProbe()
		if state.config.MQTT.HADiscoveryEnable {
			if _, err := state.startHADiscoveryActor(ctx); err != nil {
				panic(err)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// startTablets validates every tablet and then runs the first refreshes.
func startTablets(ctx context.Context, clients []multitek.Client, coordinators []*Coordinator) error {
	for _, client := range clients {
		if err := service.ValidateTablet(ctx, client); err != nil {
			return err
		}
	}
	return FirstRefreshAll(ctx, coordinators)
}

func (state *MasterOfPuppetsActor) FailedReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ReadyRequest:
		ForRequest(msg).Respond(ctx, domain.ReadyResponse{
			ActorResponseMixIn: domain.ErrorResponse(state.startupError),
		})
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:    domain.ACTOR_ID_MASTER,
			State: "failed",
		})
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("master@failed drop", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ReadyRequest:
		ForRequest(msg).Respond(ctx, domain.ReadyResponse{})
	case PlatformsRequest:
		ForRequest(msg).Respond(ctx, PlatformsResponse{Platforms: state.platforms})
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(1 + len(state.coordinators))
		state.currentHealthCheck.respondTo = ctx.Sender()

		state.requestHealth(ctx, state.mqttActor, domain.ACTOR_ID_MQTT)
		for _, coordinator := range state.coordinators {
			state.requestHealth(ctx, coordinator.PID(), CoordinatorActorId(coordinator.TabletId()))
		}

		ctx.SetReceiveTimeout(1 * time.Second)
		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.MQTTReady:
		// retained state may be gone after a reconnect
		state.logger.Debug("master@default mqtt ready")
		state.eventStream.Publish(events.BridgeStateEvent(true))
		for _, platform := range state.platforms {
			platform.PublishAll()
		}
	case adactor.ParsedCommand:
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			state.handleCommand(ctx, *msg.Command)
		}
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// a child that did not answer is not healthy
		state.currentHealthCheck.respond(ctx)
		ctx.CancelReceiveTimeout()
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			state.currentHealthCheck.respond(ctx)
			ctx.CancelReceiveTimeout()
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) requestHealth(ctx actor.Context, pid *actor.PID, id string) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      id,
			Healthy: false,
		}
	})
}

// handleCommand routes a switch command to the platform owning the object
// id. The command runs off the actor goroutine.
func (state *MasterOfPuppetsActor) handleCommand(ctx actor.Context, cmd mqtt.ParsedMQTTCommand) {
	switchCmd, err := domain.ParseSwitchPayload(cmd.Payload)
	if err != nil {
		state.logger.Warn("master@default invalid switch payload", zap.String("object", cmd.ObjectId), zap.Error(err))
		return
	}
	for _, platform := range state.platforms {
		sw, ok := platform.SwitchForObjectId(cmd.ObjectId)
		if !ok {
			continue
		}
		logger := state.logger
		NewBackgroundTask(ctx, func() (*domain.SwitchCommand, error) {
			return &switchCmd, sw.HandleCommand(context.Background(), switchCmd)
		}).OnError(func(err error) {
			logger.Warn("master@default switch command failed", zap.String("object", cmd.ObjectId), zap.Error(err))
		}).Run()
		return
	}
	state.logger.Warn("master@default unknown switch", zap.String("object", cmd.ObjectId))
}

func (state *MasterOfPuppetsActor) startPlatforms() {
	bridge := events.BridgeDevice(state.config.MQTT.BaseTopic)
	withProbe := state.config.Poll.ProbeInterval() > 0
	for _, coordinator := range state.coordinators {
		platform := entity.NewPlatform(coordinator, bridge, state.eventStream, withProbe, state.logger)
		platform.Start()
		state.platforms = append(state.platforms, platform)
	}
}

func (state *MasterOfPuppetsActor) startProbe() {
	interval := state.config.Poll.ProbeInterval()
	if interval <= 0 {
		return
	}
	state.probe = service.NewConnectionProbe(interval, state.eventStream, state.logger)
	for i, coordinator := range state.coordinators {
		if err := state.probe.Register(coordinator.TabletId(), state.clients[i]); err != nil {
			state.logger.Error("master@starting cannot schedule probe", zap.Error(err))
		}
	}
	state.probe.Start(context.Background())
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {
	platforms := state.platforms
	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.eventStream, platforms, state.logger)
	})
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {
	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	})
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

// stop releases what lives outside the actor tree. Children stop with the
// master.
func (state *MasterOfPuppetsActor) stop() {
	for _, platform := range state.platforms {
		platform.Close()
	}
	state.platforms = nil
	if state.probe != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		state.probe.Stop(stopCtx)
		cancel()
		state.probe = nil
	}
}

func (state *healthCheckResult) reset(expected int) {
	state.healthy = make(map[string]bool, expected)
	state.expected = expected
	state.checksReceived = 0
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	if len(state.healthy) < state.expected {
		return false
	}
	for _, healthy := range state.healthy {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
