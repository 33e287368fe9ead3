package multitek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	API_STATUS       = "/api/status"
	API_DISCOVER     = "/api/discover"
	API_DEVICES      = "/api/devices"
	API_RELAY_STATE  = "/api/relay/%s/state"
	API_RELAY_TOGGLE = "/api/relay/%s/toggle"

	AUTH_HEADER = "X-HA-Access"

	DEFAULT_PORT          = 8123
	DEFAULT_DATA_TIMEOUT  = 10 * time.Second
	DEFAULT_PROBE_TIMEOUT = 5 * time.Second
)

// Client talks to the REST API of a single tablet.
type Client interface {
	Status(ctx context.Context) (*StatusInfo, error)
	Discover(ctx context.Context) (*DiscoveryInfo, error)
	TestAuth(ctx context.Context, apiKey string) error
	Devices(ctx context.Context) ([]Device, error)
	SetRelayState(ctx context.Context, deviceId string, state bool) (*DevicePatch, error)
	ToggleRelay(ctx context.Context, deviceId string) (*DevicePatch, error)
	BaseURL() string
}

type Options struct {
	Host    string
	Port    uint
	APIKey  string
	UseAuth bool
	// BaseURL overrides Host and Port when set
	BaseURL      string
	DataTimeout  time.Duration
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

type HTTPClient struct {
	baseURL      string
	apiKey       string
	useAuth      bool
	dataTimeout  time.Duration
	probeTimeout time.Duration
	http         *http.Client
	logger       *zap.Logger
}

func NewHTTPClient(opts Options) *HTTPClient {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		port := opts.Port
		if port == 0 {
			port = DEFAULT_PORT
		}
		baseURL = fmt.Sprintf("http://%s:%d", opts.Host, port)
	}
	c := &HTTPClient{
		baseURL:      baseURL,
		apiKey:       opts.APIKey,
		useAuth:      opts.UseAuth,
		dataTimeout:  opts.DataTimeout,
		probeTimeout: opts.ProbeTimeout,
		http:         opts.HTTPClient,
		logger:       opts.Logger,
	}
	if c.dataTimeout <= 0 {
		c.dataTimeout = DEFAULT_DATA_TIMEOUT
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = DEFAULT_PROBE_TIMEOUT
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) Status(ctx context.Context) (*StatusInfo, error) {
	var status StatusInfo
	if err := c.call(ctx, http.MethodGet, API_STATUS, nil, c.probeTimeout, c.authHeader(), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Discover never sends credentials: it is used to find out whether the
// tablet requires them.
func (c *HTTPClient) Discover(ctx context.Context) (*DiscoveryInfo, error) {
	var info DiscoveryInfo
	if err := c.call(ctx, http.MethodGet, API_DISCOVER, nil, c.dataTimeout, http.Header{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) TestAuth(ctx context.Context, apiKey string) error {
	header := http.Header{}
	header.Set(AUTH_HEADER, apiKey)
	return c.call(ctx, http.MethodGet, API_STATUS, nil, c.dataTimeout, header, nil)
}

func (c *HTTPClient) Devices(ctx context.Context) ([]Device, error) {
	var resp devicesResponse
	if err := c.call(ctx, http.MethodGet, API_DEVICES, nil, c.dataTimeout, c.authHeader(), &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

func (c *HTTPClient) SetRelayState(ctx context.Context, deviceId string, state bool) (*DevicePatch, error) {
	var patch DevicePatch
	path := fmt.Sprintf(API_RELAY_STATE, url.PathEscape(deviceId))
	if err := c.call(ctx, http.MethodPost, path, relayStateRequest{State: state}, c.dataTimeout, c.authHeader(), &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

func (c *HTTPClient) ToggleRelay(ctx context.Context, deviceId string) (*DevicePatch, error) {
	var patch DevicePatch
	path := fmt.Sprintf(API_RELAY_TOGGLE, url.PathEscape(deviceId))
	if err := c.call(ctx, http.MethodPost, path, struct{}{}, c.dataTimeout, c.authHeader(), &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

func (c *HTTPClient) authHeader() http.Header {
	header := http.Header{}
	if c.useAuth {
		header.Set(AUTH_HEADER, c.apiKey)
	}
	return header
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body any, timeout time.Duration,
	header http.Header, out any) error {

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("multitek: could not marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("multitek: could not create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("multitek request", zap.String("method", method), zap.String("url", req.URL.String()))

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(method, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", ErrAuthFailed, method, path)
	case resp.StatusCode != http.StatusOK:
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)
		return &RequestFailedError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: errResp.Message,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		if errors.Is(err, ErrInvalidResponse) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %w", ErrInvalidResponse, method, path, err)
	}
	return nil
}

// ensure interface compliance
var _ Client = (*HTTPClient)(nil)
