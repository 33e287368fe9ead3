package actor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/service"
	"github.com/berfenger/multitek2mqtt/internal/metrics"
	. "github.com/berfenger/multitek2mqtt/internal/util/actorutil"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	DEFAULT_UPDATE_INTERVAL = 30 * time.Second
	DEFAULT_TASK_TIMEOUT    = multitek.DEFAULT_DATA_TIMEOUT + 2*time.Second
)

func CoordinatorActorId(tabletId string) string {
	return fmt.Sprintf("%s_%s", domain.ACTOR_ID_COORDINATOR, tabletId)
}

type CoordinatorOptions struct {
	TabletId       string
	Tablet         config.TabletConfig
	Client         multitek.Client
	UpdateInterval time.Duration
	// TaskTimeout bounds every tablet call made by the actor.
	TaskTimeout time.Duration
	Logger      *zap.Logger
}

// coordinatorView is what the actor last published. Readers outside the
// actor only ever see it through an atomic pointer.
type coordinatorView struct {
	snapshot domain.Snapshot
	status   domain.CoordinatorStatus
}

// coordinatorShared is owned by the Coordinator handle and handed to the
// actor. It survives actor restarts.
type coordinatorShared struct {
	view           atomic.Pointer[coordinatorView]
	dataObservers  *service.ObserverRegistry[domain.SnapshotUpdate]
	stateObservers *service.ObserverRegistry[domain.CoordinatorStatus]
	stopped        atomic.Bool
}

func newCoordinatorShared() *coordinatorShared {
	shared := &coordinatorShared{
		dataObservers:  service.NewObserverRegistry[domain.SnapshotUpdate](),
		stateObservers: service.NewObserverRegistry[domain.CoordinatorStatus](),
	}
	shared.view.Store(&coordinatorView{snapshot: domain.Snapshot{}})
	return shared
}

type refreshTick struct{}

type fetchResult struct {
	devices []multitek.Device
	err     error
}

type commandResult struct {
	replyTo  *actor.PID
	deviceId string
	command  domain.RelayCommand
	patch    *multitek.DevicePatch
	err      error
}

// CoordinatorActor owns the snapshot of one tablet. Fetches and commands run
// as background tasks; while one is in flight the actor sits in a stacked
// state so that fetch, replace and notify (or command, patch and notify)
// never interleave.
type CoordinatorActor struct {
	ActorWithStates
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	opts       CoordinatorOptions
	dispatcher *service.CommandDispatcher
	shared     *coordinatorShared
	snapshot   domain.Snapshot
	status     domain.CoordinatorStatus

	idle       *coordinatorIdleState
	refreshing *coordinatorRefreshingState
	commanding *coordinatorCommandingState

	cancelTick scheduler.CancelFunc
	logger     *zap.Logger
}

func newCoordinatorActor(opts CoordinatorOptions, shared *coordinatorShared) *CoordinatorActor {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = DEFAULT_UPDATE_INTERVAL
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DEFAULT_TASK_TIMEOUT
	}
	view := shared.view.Load()
	act := &CoordinatorActor{
		ActorWithStates: ActorWithStates{Behavior: actor.NewBehavior()},
		stash:           &Stash{},
		opts:            opts,
		dispatcher:      service.NewCommandDispatcher(opts.Client),
		shared:          shared,
		snapshot:        view.snapshot,
		status:          view.status,
		logger:          ActorLogger(CoordinatorActorId(opts.TabletId), opts.Logger),
	}
	act.idle = &coordinatorIdleState{actor: act}
	act.refreshing = &coordinatorRefreshingState{actor: act}
	act.commanding = &coordinatorCommandingState{actor: act}
	act.Become(act.idle)
	return act
}

func (state *CoordinatorActor) Receive(ctx actor.Context) {
	state.Behavior.Receive(ctx)
}

// handleCommon deals with the messages every state answers the same way.
func (state *CoordinatorActor) handleCommon(ctx actor.Context) bool {
	switch ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("coordinator@" + state.StateName() + " started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		// restarted after the first refresh
		if state.status.LastUpdateTime != nil {
			state.startSchedule(ctx)
		}
		return true
	case *actor.Stopping:
		state.logger.Debug("coordinator@" + state.StateName() + " stopping")
		state.stopSchedule()
		state.shared.stopped.Store(true)
		return true
	case *actor.Stopped, *actor.Restarting:
		return true
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      CoordinatorActorId(state.opts.TabletId),
			Healthy: state.status.LastUpdateSuccess,
			State:   state.StateName(),
		})
		return true
	}
	return false
}

func (state *CoordinatorActor) startSchedule(ctx actor.Context) {
	if state.cancelTick != nil {
		return
	}
	interval := state.opts.UpdateInterval
	state.cancelTick = state.scheduler.SendRepeatedly(interval, interval, ctx.Self(), refreshTick{})
}

func (state *CoordinatorActor) stopSchedule() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
}

func (state *CoordinatorActor) startFetch(ctx actor.Context) {
	client := state.opts.Client
	timeout := state.opts.TaskTimeout
	NewBackgroundTask(ctx, func() (*fetchResult, error) {
		fetchCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		devices, err := client.Devices(fetchCtx)
		return &fetchResult{devices: devices, err: err}, nil
	}).WithTimeout(timeout).Recover(func(err error) fetchResult {
		return fetchResult{err: taskError(err)}
	}).PipeTo(ctx.Self())
}

func (state *CoordinatorActor) startCommand(ctx actor.Context, req domain.SendCommandRequest) {
	dispatcher := state.dispatcher
	timeout := state.opts.TaskTimeout
	replyTo := ForRequest(req).ReplyTo(ctx)
	NewBackgroundTask(ctx, func() (*commandResult, error) {
		cmdCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		patch, err := dispatcher.Execute(cmdCtx, req.DeviceId, req.Command, req.Value)
		return &commandResult{replyTo: replyTo, deviceId: req.DeviceId, command: req.Command, patch: patch, err: err}, nil
	}).WithTimeout(timeout).Recover(func(err error) commandResult {
		return commandResult{
			replyTo:  replyTo,
			deviceId: req.DeviceId,
			command:  req.Command,
			err:      &domain.CommandFailedError{DeviceId: req.DeviceId, Reason: taskError(err)},
		}
	}).PipeTo(ctx.Self())
}

// taskError maps a failed background task. Only the task deadline is a
// timeout; panics and empty results keep their own error.
func taskError(err error) error {
	if IsTaskTimeout(err) {
		return fmt.Errorf("%w: %w", multitek.ErrTimeout, err)
	}
	return err
}

// applyFetch updates snapshot and status from a fetch and notifies observers.
func (state *CoordinatorActor) applyFetch(result fetchResult) {
	now := time.Now()
	if result.err != nil {
		state.status = domain.CoordinatorStatus{
			LastUpdateSuccess: false,
			LastUpdateTime:    &now,
			LastError:         result.err,
		}
		state.logger.Warn("coordinator@refreshing fetch failed", zap.Error(result.err))
	} else {
		state.snapshot = domain.NewSnapshot(result.devices)
		state.status = domain.CoordinatorStatus{
			LastUpdateSuccess: true,
			LastUpdateTime:    &now,
		}
		state.logger.Debug("coordinator@refreshing fetch done", zap.Int("devices", len(state.snapshot)))
	}
	metrics.ObserveRefresh(state.opts.TabletId, len(state.snapshot), result.err)
	state.publish()

	if state.shared.stopped.Load() {
		return
	}
	state.shared.stateObservers.Notify(state.status)
	if result.err == nil {
		state.notifyData()
	}
}

// applyCommand patches the snapshot after a successful command. It reports
// whether the snapshot changed.
func (state *CoordinatorActor) applyCommand(result commandResult) bool {
	metrics.ObserveCommand(state.opts.TabletId, string(result.command), result.err)
	if result.err != nil {
		state.logger.Warn("coordinator@commanding command failed", zap.String("device", result.deviceId), zap.Error(result.err))
		return false
	}
	next, patched := service.Apply(state.snapshot, result.deviceId, result.patch)
	if !patched {
		state.logger.Debug("coordinator@commanding device not in snapshot", zap.String("device", result.deviceId))
		return false
	}
	state.snapshot = next
	state.publish()
	if !state.shared.stopped.Load() {
		state.notifyData()
	}
	return true
}

func (state *CoordinatorActor) publish() {
	state.shared.view.Store(&coordinatorView{snapshot: state.snapshot, status: state.status})
}

func (state *CoordinatorActor) notifyData() {
	state.shared.dataObservers.Notify(domain.SnapshotUpdate{
		TabletId: state.opts.TabletId,
		Snapshot: state.snapshot,
		Status:   state.status,
	})
}

func (state *CoordinatorActor) refreshResponse() domain.RefreshResponse {
	resp := domain.RefreshResponse{Status: state.status}
	if !state.status.LastUpdateSuccess {
		resp.ResponseError = state.status.LastError
	}
	return resp
}

// Idle

type coordinatorIdleState struct {
	actor *CoordinatorActor
}

func (s *coordinatorIdleState) Name() string {
	return "idle"
}

func (s *coordinatorIdleState) Receive(ctx actor.Context) {
	state := s.actor
	if state.handleCommon(ctx) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.FirstRefreshRequest:
		state.logger.Debug("coordinator@idle FirstRefreshRequest")
		state.refreshing.begin(ctx, ForRequest(msg).ReplyTo(ctx), true)
	case domain.RefreshRequest:
		state.logger.Debug("coordinator@idle RefreshRequest")
		state.refreshing.begin(ctx, ForRequest(msg).ReplyTo(ctx), false)
	case refreshTick:
		state.logger.Debug("coordinator@idle tick")
		state.refreshing.begin(ctx, nil, false)
	case domain.SendCommandRequest:
		state.logger.Debug("coordinator@idle SendCommandRequest", zap.String("device", msg.DeviceId), zap.String("command", string(msg.Command)))
		state.startCommand(ctx, msg)
		state.BecomeStacked(state.commanding)
	case fetchResult, commandResult:
		// late result from before a restart
		state.logger.Debug("coordinator@idle dropping stale result")
	default:
		state.logger.Debug("coordinator@idle unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Refreshing

type coordinatorRefreshingState struct {
	actor   *CoordinatorActor
	waiters []*actor.PID
	first   bool
}

func (s *coordinatorRefreshingState) Name() string {
	return "refreshing"
}

func (s *coordinatorRefreshingState) begin(ctx actor.Context, replyTo *actor.PID, first bool) {
	s.waiters = nil
	s.first = first
	s.join(replyTo)
	s.actor.startFetch(ctx)
	s.actor.BecomeStacked(s)
}

func (s *coordinatorRefreshingState) join(replyTo *actor.PID) {
	if replyTo != nil {
		s.waiters = append(s.waiters, replyTo)
	}
}

func (s *coordinatorRefreshingState) Receive(ctx actor.Context) {
	state := s.actor
	if state.handleCommon(ctx) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.FirstRefreshRequest:
		state.logger.Debug("coordinator@refreshing join FirstRefreshRequest")
		s.first = true
		s.join(ForRequest(msg).ReplyTo(ctx))
	case domain.RefreshRequest:
		state.logger.Debug("coordinator@refreshing join RefreshRequest")
		s.join(ForRequest(msg).ReplyTo(ctx))
	case refreshTick:
		state.logger.Debug("coordinator@refreshing tick coalesced")
	case fetchResult:
		state.applyFetch(msg)
		resp := state.refreshResponse()
		for _, waiter := range s.waiters {
			ctx.Send(waiter, resp)
		}
		s.waiters = nil
		if s.first {
			state.startSchedule(ctx)
			s.first = false
		}
		state.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("coordinator@refreshing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// Commanding

type coordinatorCommandingState struct {
	actor *CoordinatorActor
}

func (s *coordinatorCommandingState) Name() string {
	return "commanding"
}

func (s *coordinatorCommandingState) Receive(ctx actor.Context) {
	state := s.actor
	if state.handleCommon(ctx) {
		return
	}
	switch msg := ctx.Message().(type) {
	case commandResult:
		patched := state.applyCommand(msg)
		RespondTo(ctx, msg.replyTo, domain.SendCommandResponse{
			ActorResponseMixIn: domain.ErrorResponse(msg.err),
			Result:             msg.patch,
			Patched:            patched,
		})
		state.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("coordinator@commanding stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}
