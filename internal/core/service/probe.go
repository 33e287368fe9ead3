package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/events"
	"github.com/berfenger/multitek2mqtt/internal/core/port"
	"github.com/berfenger/multitek2mqtt/internal/metrics"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// ConnectionProbe runs TestConnection against every registered tablet on a
// quartz schedule and publishes the result as a binary sensor update.
type ConnectionProbe struct {
	scheduler quartz.Scheduler
	interval  time.Duration
	sink      port.EventSink
	logger    *zap.Logger

	mu   sync.Mutex
	last map[string]bool
}

func NewConnectionProbe(interval time.Duration, sink port.EventSink, logger *zap.Logger) *ConnectionProbe {
	return &ConnectionProbe{
		scheduler: quartz.NewStdScheduler(),
		interval:  interval,
		sink:      sink,
		logger:    logger.With(zap.String("component", "probe")),
		last:      make(map[string]bool),
	}
}

func (p *ConnectionProbe) Start(ctx context.Context) {
	p.scheduler.Start(ctx)
}

// Register schedules the probe of one tablet.
func (p *ConnectionProbe) Register(tabletId string, client multitek.Client) error {
	detail := quartz.NewJobDetail(&probeJob{
		probe:    p,
		tabletId: tabletId,
		client:   client,
	}, quartz.NewJobKey(tabletId))
	if err := p.scheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(p.interval)); err != nil {
		return fmt.Errorf("cannot schedule probe for %s: %w", tabletId, err)
	}
	return nil
}

func (p *ConnectionProbe) Unregister(tabletId string) error {
	return p.scheduler.DeleteJob(quartz.NewJobKey(tabletId))
}

// Probe checks one tablet now and publishes the result.
func (p *ConnectionProbe) Probe(ctx context.Context, tabletId string, client multitek.Client) bool {
	ctx, cancel := context.WithTimeout(ctx, multitek.DEFAULT_PROBE_TIMEOUT)
	defer cancel()
	online := TestConnection(ctx, client)

	p.mu.Lock()
	previous, seen := p.last[tabletId]
	p.last[tabletId] = online
	p.mu.Unlock()
	if seen && previous != online {
		p.logger.Warn("tablet connectivity changed", zap.String("tablet", tabletId), zap.Bool("online", online))
	}

	metrics.ObserveProbe(tabletId, online)
	p.sink.Publish(domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: events.OnlineSensorId(tabletId)},
		Value:                  online,
	})
	return online
}

// Online returns the last probe result for the tablet.
func (p *ConnectionProbe) Online(tabletId string) (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	online, ok := p.last[tabletId]
	return online, ok
}

func (p *ConnectionProbe) Stop(ctx context.Context) {
	p.scheduler.Stop()
	p.scheduler.Wait(ctx)
}

type probeJob struct {
	probe    *ConnectionProbe
	tabletId string
	client   multitek.Client
}

func (j *probeJob) Execute(ctx context.Context) error {
	j.probe.Probe(ctx, j.tabletId, j.client)
	return nil
}

func (j *probeJob) Description() string {
	return fmt.Sprintf("ConnectionProbe::%s", j.tabletId)
}
