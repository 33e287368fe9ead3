package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	events []any
}

func (s *recordingSink) Publish(evt any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) Events() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.events...)
}

func TestProbePublishesResult(t *testing.T) {
	sink := &recordingSink{}
	probe := NewConnectionProbe(time.Minute, sink, zap.NewNop())
	client := multitek.NewTestClient()

	assert.True(t, probe.Probe(context.Background(), "hall", client))
	client.StatusHook = func(ctx context.Context) (*multitek.StatusInfo, error) {
		return nil, multitek.ErrTimeout
	}
	assert.False(t, probe.Probe(context.Background(), "hall", client))

	events := sink.Events()
	require.Len(t, events, 2)
	first := events[0].(domain.BinarySensorUpdateEvent)
	assert.Equal(t, "hall_online", first.SensorId())
	assert.True(t, first.Value)
	assert.False(t, events[1].(domain.BinarySensorUpdateEvent).Value)

	online, ok := probe.Online("hall")
	assert.True(t, ok)
	assert.False(t, online)
}

func TestProbeSchedule(t *testing.T) {
	sink := &recordingSink{}
	probe := NewConnectionProbe(50*time.Millisecond, sink, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	probe.Start(ctx)

	require.NoError(t, probe.Register("hall", multitek.NewTestClient()))
	assert.Eventually(t, func() bool {
		return len(sink.Events()) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, probe.Unregister("hall"))
	probe.Stop(ctx)
}
