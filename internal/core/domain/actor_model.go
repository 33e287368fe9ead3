package domain

import "github.com/berfenger/multitek2mqtt/pkg/multitek"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_COORDINATOR  = "coordinator"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// Coordinator

type FirstRefreshRequest struct {
	ActorRequestMixIn
}

type RefreshRequest struct {
	ActorRequestMixIn
}

type RefreshResponse struct {
	ActorResponseMixIn
	Status CoordinatorStatus
}

type SendCommandRequest struct {
	ActorRequestMixIn
	DeviceId string
	Command  RelayCommand
	Value    *bool
}

type SendCommandResponse struct {
	ActorResponseMixIn
	Result  *multitek.DevicePatch
	Patched bool
}

// MQTT

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// Master

type ReadyRequest struct {
	ActorRequestMixIn
}

// ReadyResponse is sent once every tablet completed its first refresh, or
// with the startup error when one of them could not.
type ReadyResponse struct {
	ActorResponseMixIn
}
