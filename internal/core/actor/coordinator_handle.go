package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/port"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/asynkron/protoactor-go/actor"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"
)

// Coordinator is the handle presentation adapters and the HTTP API use to
// talk to a CoordinatorActor.
type Coordinator struct {
	tabletId   string
	tablet     config.TabletConfig
	root       *actor.RootContext
	pid        *actor.PID
	shared     *coordinatorShared
	askTimeout time.Duration
}

var _ port.Coordinator = (*Coordinator)(nil)

// CoordinatorProps builds the props of a coordinator actor. The returned
// handle is usable once the props have been spawned and Attach called.
func CoordinatorProps(opts CoordinatorOptions) (*actor.Props, *Coordinator) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DEFAULT_TASK_TIMEOUT
	}
	shared := newCoordinatorShared()
	decider := func(reason interface{}) actor.Directive {
		opts.Logger.Error("coordinator failure", zap.String("tablet", opts.TabletId), zap.Any("reason", reason))
		return actor.RestartDirective
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return newCoordinatorActor(opts, shared)
	}, actor.WithSupervisor(actor.NewOneForOneStrategy(10, 10*time.Second, decider)))

	handle := &Coordinator{
		tabletId: opts.TabletId,
		tablet:   opts.Tablet,
		shared:   shared,
		// a refresh may wait behind a command
		askTimeout: 2*opts.TaskTimeout + time.Second,
	}
	return props, handle
}

// NewCoordinator spawns a coordinator under spawner and returns its handle.
func NewCoordinator(spawner actor.SpawnerContext, opts CoordinatorOptions) (*Coordinator, error) {
	props, handle := CoordinatorProps(opts)
	pid, err := spawner.SpawnNamed(props, CoordinatorActorId(opts.TabletId))
	if err != nil {
		return nil, fmt.Errorf("cannot spawn coordinator for %s: %w", opts.TabletId, err)
	}
	handle.Attach(spawner.ActorSystem().Root, pid)
	return handle, nil
}

func (c *Coordinator) Attach(root *actor.RootContext, pid *actor.PID) {
	c.root = root
	c.pid = pid
}

func (c *Coordinator) PID() *actor.PID {
	return c.pid
}

func (c *Coordinator) TabletId() string {
	return c.tabletId
}

func (c *Coordinator) Tablet() config.TabletConfig {
	return c.tablet
}

// Snapshot returns a copy of the current snapshot. It is safe to call from
// inside an observer.
func (c *Coordinator) Snapshot() domain.Snapshot {
	return c.shared.view.Load().snapshot.Clone()
}

func (c *Coordinator) Status() domain.CoordinatorStatus {
	return c.shared.view.Load().status
}

func (c *Coordinator) Subscribe(observer func(domain.SnapshotUpdate)) func() {
	return c.shared.dataObservers.Subscribe(observer)
}

func (c *Coordinator) SubscribeStatus(observer func(domain.CoordinatorStatus)) func() {
	return c.shared.stateObservers.Subscribe(observer)
}

// FirstRefresh runs the mandatory first fetch and starts the periodic
// schedule. A failure is returned as domain.ErrNotReady.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	resp, err := c.ask(ctx, domain.FirstRefreshRequest{})
	if err == nil {
		err = resp.(domain.RefreshResponse).GetResponseError()
	}
	if err != nil {
		return fmt.Errorf("%w: first refresh of %s failed: %w", domain.ErrNotReady, c.tabletId, err)
	}
	return nil
}

// Refresh fetches the device list, joining a fetch already in flight.
func (c *Coordinator) Refresh(ctx context.Context) (domain.CoordinatorStatus, error) {
	resp, err := c.ask(ctx, domain.RefreshRequest{})
	if err != nil {
		return c.Status(), err
	}
	refresh := resp.(domain.RefreshResponse)
	return refresh.Status, refresh.GetResponseError()
}

// SendCommand issues a relay command. On success the snapshot entry of
// deviceId is patched with the returned fields, when the device is known.
func (c *Coordinator) SendCommand(ctx context.Context, deviceId string, command domain.RelayCommand, value *bool) (*multitek.DevicePatch, error) {
	resp, err := c.ask(ctx, domain.SendCommandRequest{
		DeviceId: deviceId,
		Command:  command,
		Value:    value,
	})
	if err != nil {
		return nil, &domain.CommandFailedError{DeviceId: deviceId, Reason: err}
	}
	cmd := resp.(domain.SendCommandResponse)
	if cmd.HasResponseError() {
		return nil, cmd.GetResponseError()
	}
	return cmd.Result, nil
}

// Stop cancels the schedule, drops every observer and stops the actor. A
// fetch still in flight is discarded.
func (c *Coordinator) Stop() {
	if c.shared.stopped.Swap(true) {
		return
	}
	c.shared.dataObservers.Clear()
	c.shared.stateObservers.Clear()
	if c.root != nil && c.pid != nil {
		c.root.StopFuture(c.pid).Wait()
	}
}

func (c *Coordinator) ask(ctx context.Context, msg any) (any, error) {
	if c.shared.stopped.Load() {
		return nil, domain.ErrStopped
	}
	if c.pid == nil {
		return nil, domain.ErrNotReady
	}
	timeout := c.askTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %w", multitek.ErrTimeout, context.DeadlineExceeded)
	}
	resp, err := c.root.RequestFuture(c.pid, msg, timeout).Result()
	if err != nil {
		if errors.Is(err, actor.ErrTimeout) {
			return nil, fmt.Errorf("%w: coordinator %s did not answer: %w", multitek.ErrTimeout, c.tabletId, err)
		}
		return nil, err
	}
	return resp, nil
}

// FirstRefreshAll runs the first refresh of every coordinator in parallel.
func FirstRefreshAll(ctx context.Context, coordinators []*Coordinator) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range coordinators {
		g.Go(func() error {
			return c.FirstRefresh(ctx)
		})
	}
	return g.Wait()
}
