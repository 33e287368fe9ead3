package multitek

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestDevicesWithoutAuth(t *testing.T) {

	require := require.New(t)

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, API_DEVICES, r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, present := r.Header[http.CanonicalHeaderKey(AUTH_HEADER)]
		assert.False(t, present, "auth header must be absent")
		w.Write([]byte(`{"devices":[
			{"id":"1","type":1,"name":"Lamp","type_name":"Light","room_name":"Kitchen","flat_name":"A","favourite":true,"state":true},
			{"id":7,"name":"Pump"}
		]}`))
	})

	client := NewHTTPClient(Options{BaseURL: srv.URL})
	devices, err := client.Devices(context.Background())
	require.NoError(err)
	require.Len(devices, 2)

	assert.Equal(t, Device{ID: "1", Type: RelayTypeLight, Name: "Lamp", TypeName: "Light",
		RoomName: "Kitchen", FlatName: "A", Favourite: true, State: true}, devices[0])
	assert.Equal(t, "7", devices[1].ID, "numeric ids are normalised")
	assert.Equal(t, RelayTypeOnOff, devices[1].Type, "missing type defaults to on/off")
}

func TestAuthHeaderWhenEnabled(t *testing.T) {

	var got string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(AUTH_HEADER)
		w.Write([]byte(`{"online":true}`))
	})

	client := NewHTTPClient(Options{BaseURL: srv.URL, UseAuth: true, APIKey: "s3cret"})
	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Online)
	assert.Equal(t, "s3cret", got)
}

func TestDiscoverNeverSendsAuth(t *testing.T) {

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, API_DISCOVER, r.URL.Path)
		assert.Empty(t, r.Header.Get(AUTH_HEADER))
		w.Write([]byte(`{"name":"Tablet","api":{"auth_required":true}}`))
	})

	client := NewHTTPClient(Options{BaseURL: srv.URL, UseAuth: true, APIKey: "s3cret"})
	info, err := client.Discover(context.Background())
	require.NoError(t, err)
	assert.True(t, info.API.AuthRequired)
}

func TestUnauthorized(t *testing.T) {

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := NewHTTPClient(Options{BaseURL: srv.URL})
	err := client.TestAuth(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrAuthFailed)

	_, err = client.Devices(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestRequestFailed(t *testing.T) {

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"relay board offline"}`))
	})

	client := NewHTTPClient(Options{BaseURL: srv.URL})
	_, err := client.Devices(context.Background())

	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusInternalServerError, rf.Status)
	assert.Equal(t, "relay board offline", rf.Message)

	status, ok := IsRequestFailed(err)
	assert.True(t, ok)
	assert.Equal(t, 500, status)
}

func TestTimeout(t *testing.T) {

	release := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	client := NewHTTPClient(Options{BaseURL: srv.URL, DataTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := client.Devices(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConnectionFailed(t *testing.T) {

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(Options{BaseURL: url})
	_, err := client.Devices(context.Background())
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestInvalidResponse(t *testing.T) {

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})

	client := NewHTTPClient(Options{BaseURL: srv.URL})
	_, err := client.Devices(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestSetRelayState(t *testing.T) {

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/relay/12/state", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, map[string]any{"state": true}, body)
		w.Write([]byte(`{"id":"12","state":true}`))
	})

	client := NewHTTPClient(Options{BaseURL: srv.URL})
	patch, err := client.SetRelayState(context.Background(), "12", true)
	require.NoError(t, err)
	require.NotNil(t, patch.State)
	assert.True(t, *patch.State)
	assert.Nil(t, patch.Name, "absent fields stay nil")
}

func TestRelayIdIsPathEscaped(t *testing.T) {

	var paths []string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		w.Write([]byte(`{"state":true}`))
	})

	client := NewHTTPClient(Options{BaseURL: srv.URL})
	_, err := client.SetRelayState(context.Background(), "7/2", true)
	require.NoError(t, err)
	_, err = client.ToggleRelay(context.Background(), "relay 7?")
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/relay/7%2F2/state", "/api/relay/relay%207%3F/toggle"}, paths)
}

func TestToggleRelay(t *testing.T) {

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/relay/3/toggle", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{}`, string(raw))
		w.Write([]byte(`{"id":3,"state":false,"name":"Hall"}`))
	})

	client := NewHTTPClient(Options{BaseURL: srv.URL})
	patch, err := client.ToggleRelay(context.Background(), "3")
	require.NoError(t, err)
	require.NotNil(t, patch.ID)
	assert.Equal(t, "3", *patch.ID)

	before := Device{ID: "3", Type: RelayTypeLight, Name: "Old", RoomName: "Hall", State: true}
	after := patch.ApplyTo(before)
	assert.Equal(t, Device{ID: "3", Type: RelayTypeLight, Name: "Hall", RoomName: "Hall", State: false}, after)
}

func TestBaseURLFromHostPort(t *testing.T) {

	assert.Equal(t, "http://10.0.0.5:8123", NewHTTPClient(Options{Host: "10.0.0.5"}).BaseURL())
	assert.Equal(t, "http://10.0.0.5:9000", NewHTTPClient(Options{Host: "10.0.0.5", Port: 9000}).BaseURL())
}

func TestRelayTypes(t *testing.T) {

	assert := assert.New(t)

	assert.True(RelayTypeLight.IsSwitch())
	assert.True(RelayTypeWater.IsSwitch())
	assert.False(RelayTypeShutter.IsSwitch())
	assert.Equal("mdi:gas-cylinder", RelayTypeGas.Icon())
	assert.Equal("mdi:toggle-switch", RelayType(42).Icon())
	assert.Equal("Electric Switch", RelayTypeElectric.DisplayName())
	assert.Equal("Unknown", RelayType(0).DisplayName())
}
