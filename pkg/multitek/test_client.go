package multitek

import (
	"context"
	"sync"
	"sync/atomic"
)

// TestClient is an in-memory tablet. Hooks, when set, replace the default
// behaviour of the matching call.
type TestClient struct {
	mu      sync.Mutex
	devices []Device
	online  bool

	DevicesHook func(ctx context.Context) ([]Device, error)
	CommandHook func(ctx context.Context, deviceId string, state *bool) (*DevicePatch, error)
	StatusHook  func(ctx context.Context) (*StatusInfo, error)

	AuthRequired bool
	APIKey       string

	devicesCalls  atomic.Int32
	commandCalls  atomic.Int32
	inFlight      atomic.Int32
	maxInFlight   atomic.Int32
	lastCommandId atomic.Value
}

func NewTestClient(devices ...Device) *TestClient {
	return &TestClient{
		devices: devices,
		online:  true,
	}
}

func (c *TestClient) SetDevices(devices ...Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = devices
}

func (c *TestClient) SetOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online = online
}

func (c *TestClient) DevicesCalls() int {
	return int(c.devicesCalls.Load())
}

func (c *TestClient) CommandCalls() int {
	return int(c.commandCalls.Load())
}

// MaxInFlight is the highest number of concurrent Devices calls observed.
func (c *TestClient) MaxInFlight() int {
	return int(c.maxInFlight.Load())
}

func (c *TestClient) LastCommandDevice() string {
	if v, ok := c.lastCommandId.Load().(string); ok {
		return v
	}
	return ""
}

func (c *TestClient) BaseURL() string {
	return "http://test.local:8123"
}

func (c *TestClient) Status(ctx context.Context) (*StatusInfo, error) {
	if c.StatusHook != nil {
		return c.StatusHook(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &StatusInfo{Online: c.online}, nil
}

func (c *TestClient) Discover(ctx context.Context) (*DiscoveryInfo, error) {
	return &DiscoveryInfo{
		Name:  "Test Tablet",
		Model: "Smart Tablet",
		API:   DiscoveryAPI{AuthRequired: c.AuthRequired},
	}, nil
}

func (c *TestClient) TestAuth(ctx context.Context, apiKey string) error {
	if c.AuthRequired && apiKey != c.APIKey {
		return ErrAuthFailed
	}
	return nil
}

func (c *TestClient) Devices(ctx context.Context) ([]Device, error) {
	c.devicesCalls.Add(1)
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		max := c.maxInFlight.Load()
		if n <= max || c.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	if c.DevicesHook != nil {
		return c.DevicesHook(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	devices := make([]Device, len(c.devices))
	copy(devices, c.devices)
	return devices, nil
}

func (c *TestClient) SetRelayState(ctx context.Context, deviceId string, state bool) (*DevicePatch, error) {
	return c.command(ctx, deviceId, &state)
}

func (c *TestClient) ToggleRelay(ctx context.Context, deviceId string) (*DevicePatch, error) {
	return c.command(ctx, deviceId, nil)
}

func (c *TestClient) command(ctx context.Context, deviceId string, state *bool) (*DevicePatch, error) {
	c.commandCalls.Add(1)
	c.lastCommandId.Store(deviceId)
	if c.CommandHook != nil {
		return c.CommandHook(ctx, deviceId, state)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.devices {
		if c.devices[i].ID != deviceId {
			continue
		}
		if state != nil {
			c.devices[i].State = *state
		} else {
			c.devices[i].State = !c.devices[i].State
		}
		id := deviceId
		newState := c.devices[i].State
		return &DevicePatch{ID: &id, State: &newState}, nil
	}
	return nil, &RequestFailedError{Method: "POST", Path: deviceId, Status: 404, Message: "device not found"}
}

var _ Client = (*TestClient)(nil)
